// Package economy computes resource production and consumption for a
// vault over elapsed time. Pure calculation: nothing here mutates
// vault state or raises on numeric extremes — levels are clamped, and
// the orchestrator persists the returned values.
package economy

import (
	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// Severity grades a resource warning.
type Severity uint8

const (
	SeverityLow      Severity = iota // below 20% of capacity
	SeverityCritical                 // below 5% of capacity
)

// String returns the severity name.
func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "low"
}

// Warning flags a resource that fell under a threshold after the tick.
// At most one warning per resource; critical takes precedence.
type Warning struct {
	Resource vault.ResourceKind
	Severity Severity
	Fraction float64 // level/capacity after the tick
}

// Result is the economy report for one tick.
type Result struct {
	Levels   map[vault.ResourceKind]float64
	Produced map[vault.ResourceKind]float64
	Consumed map[vault.ResourceKind]float64
	Warnings []Warning
}

// resourceFor maps a production room's keyed ability to the resource it
// feeds. Endurance feeds all three evenly; anything unrecognized
// contributes nothing.
func resourceFor(a vault.Ability) (kind vault.ResourceKind, split bool, ok bool) {
	switch a {
	case vault.AbilityStrength:
		return vault.ResourcePower, false, true
	case vault.AbilityAgility:
		return vault.ResourceFood, false, true
	case vault.AbilityPerception:
		return vault.ResourceWater, false, true
	case vault.AbilityEndurance:
		return 0, true, true
	}
	return 0, false, false
}

// Advance computes new clamped resource levels for a vault given its
// rooms, roster, and elapsed seconds. Negative elapsed time is treated
// as zero; all other numeric extremes clamp rather than error.
func Advance(v *vault.Vault, rooms []*vault.Room, inhabitants []*vault.Inhabitant, elapsedSeconds float64, bal config.EconomyBalance) (Result, error) {
	if v == nil {
		return Result{}, fault.NotFound("economy: vault not found")
	}
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	produced := make(map[vault.ResourceKind]float64, vault.NumResources)
	consumed := make(map[vault.ResourceKind]float64, vault.NumResources)

	// Consumption: power per room, food and water per living inhabitant.
	for _, r := range rooms {
		if r == nil {
			return Result{}, fault.NotFound("economy: room not found")
		}
		consumed[vault.ResourcePower] += bal.PowerRoomRate * float64(r.Size) * float64(r.Tier) * elapsedSeconds
	}
	alive := 0
	for _, inh := range inhabitants {
		if inh.Alive() {
			alive++
		}
	}
	consumed[vault.ResourceFood] += bal.FoodRatePerHead * float64(alive) * elapsedSeconds
	consumed[vault.ResourceWater] += bal.WaterRatePerHead * float64(alive) * elapsedSeconds

	// Production: staffed production rooms keyed off an ability.
	for _, r := range rooms {
		if r.Category != vault.RoomProduction || r.Output <= 0 {
			continue
		}
		kind, split, ok := resourceFor(r.Ability)
		if !ok {
			continue
		}

		statSum := 0
		for _, inh := range inhabitants {
			if inh.RoomID != nil && *inh.RoomID == r.ID && inh.Present() {
				statSum += inh.Stats.Get(r.Ability)
			}
		}
		if statSum == 0 {
			continue
		}

		amount := r.Output * float64(statSum) * bal.ProductionBaseRate *
			bal.TierMultiplier(r.Tier) * elapsedSeconds
		if split {
			for _, k := range vault.Kinds {
				produced[k] += amount / vault.NumResources
			}
		} else {
			produced[kind] += amount
		}
	}

	// Net out and clamp; warnings come from the post-tick fraction.
	levels := make(map[vault.ResourceKind]float64, vault.NumResources)
	var warnings []Warning
	for _, kind := range vault.Kinds {
		g := v.Gauge(kind)
		level := vault.Clamp(g.Amount+produced[kind]-consumed[kind], 0, g.Capacity)
		levels[kind] = level

		fraction := 0.0
		if g.Capacity > 0 {
			fraction = level / g.Capacity
		}
		switch {
		case fraction < bal.CriticalThreshold:
			warnings = append(warnings, Warning{Resource: kind, Severity: SeverityCritical, Fraction: fraction})
		case fraction < bal.LowThreshold:
			warnings = append(warnings, Warning{Resource: kind, Severity: SeverityLow, Fraction: fraction})
		}
	}

	return Result{
		Levels:   levels,
		Produced: produced,
		Consumed: consumed,
		Warnings: warnings,
	}, nil
}

// Apply writes a result's levels back onto the vault gauges.
// Split out so Advance itself stays side-effect free.
func Apply(v *vault.Vault, res Result) {
	for _, kind := range vault.Kinds {
		v.Gauge(kind).Set(res.Levels[kind])
	}
}
