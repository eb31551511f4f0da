// Package incident runs the hazard state machine: spawn, combat,
// spread, and resolution of fires, raider attacks, and infestations
// inside a vault.
package incident

import (
	"time"

	"github.com/google/uuid"

	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// Type enumerates hazard categories.
type Type uint8

const (
	TypeFire Type = iota
	TypeRaiderAttack
	TypeInfestation
)

// NumTypes is the number of hazard categories.
const NumTypes = 3

// String returns the hazard name.
func (t Type) String() string {
	switch t {
	case TypeFire:
		return "fire"
	case TypeRaiderAttack:
		return "raider-attack"
	case TypeInfestation:
		return "infestation"
	}
	return "unknown"
}

// Status tracks the incident state machine:
// active → {spreading ⇄ active} → {resolved | failed}.
type Status uint8

const (
	StatusActive Status = iota
	StatusSpreading
	StatusResolved
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSpreading:
		return "spreading"
	case StatusResolved:
		return "resolved"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// Live reports whether the incident still needs processing.
func (s Status) Live() bool {
	return s == StatusActive || s == StatusSpreading
}

// Transition records one status change for observability.
type Transition struct {
	From Status    `json:"from"`
	To   Status    `json:"to"`
	At   time.Time `json:"at"`
}

// Incident is a transient hazard occupying one room.
type Incident struct {
	ID      uuid.UUID `json:"id"`
	VaultID uuid.UUID `json:"vault_id"`
	RoomID  uuid.UUID `json:"room_id"`

	Type       Type   `json:"type"`
	Status     Status `json:"status"`
	Difficulty int    `json:"difficulty"` // 1–10

	DamageDealt     float64 `json:"damage_dealt"`     // cumulative, to inhabitants
	EnemiesDefeated float64 `json:"enemies_defeated"` // fractional accumulation
	SpreadCount     int     `json:"spread_count"`

	StartedAt time.Time `json:"started_at"`

	// Payload once resolved successfully.
	Loot       []vault.Item `json:"loot,omitempty"`
	CapsReward int64        `json:"caps_reward"`

	Transitions []Transition `json:"transitions,omitempty"`
}

func (inc *Incident) transition(to Status, at time.Time) {
	inc.Transitions = append(inc.Transitions, Transition{From: inc.Status, To: to, At: at})
	inc.Status = to
}

// CombatResult reports one processing tick of an incident.
type CombatResult struct {
	Defenders        int
	InhabitantDamage float64 // dealt to defenders this tick
	EnemiesDefeated  float64 // defeated this tick
	Resolved         bool
	Loot             *LootReport
	SpreadTo         *uuid.UUID
}

// LootReport is the reward payload of a successful resolution.
// Crediting caps and storing items is the caller's job.
type LootReport struct {
	Items []vault.Item
	Caps  int64
}

// Engine applies the incident rules with an injected balance table.
type Engine struct {
	bal config.IncidentBalance
}

// NewEngine creates an incident engine.
func NewEngine(bal config.IncidentBalance) *Engine {
	return &Engine{bal: bal}
}

// occupancy maps room IDs to the count of assigned inhabitants who are
// actually inside the vault. Explorers keep their assignment but are
// out in the wasteland, so they count for nothing here.
func occupancy(inhabitants []*vault.Inhabitant) map[uuid.UUID]int {
	occ := make(map[uuid.UUID]int)
	for _, inh := range inhabitants {
		if inh.RoomID != nil && inh.Present() {
			occ[*inh.RoomID]++
		}
	}
	return occ
}

// eligibleRooms returns rooms a hazard can occupy: staffed, not the
// entry elevator, and not already hosting an incident.
func eligibleRooms(rooms []*vault.Room, occ map[uuid.UUID]int, active []*Incident, exclude *uuid.UUID) []*vault.Room {
	hosting := make(map[uuid.UUID]bool, len(active))
	for _, inc := range active {
		if inc.Status.Live() {
			hosting[inc.RoomID] = true
		}
	}

	var out []*vault.Room
	for _, r := range rooms {
		if r.Entry || occ[r.ID] == 0 || hosting[r.ID] {
			continue
		}
		if exclude != nil && r.ID == *exclude {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MaybeSpawn rolls the per-tick spawn check for a vault. Returns nil
// when no incident spawns: population too small, the probability roll
// misses, a different hazard type is already active, or no room is
// eligible. Sampled once per tick per vault.
func (e *Engine) MaybeSpawn(v *vault.Vault, rooms []*vault.Room, inhabitants []*vault.Inhabitant, active []*Incident, elapsedSeconds float64, now time.Time, rng entropy.Source) *Incident {
	alive := 0
	for _, inh := range inhabitants {
		if inh.Alive() {
			alive++
		}
	}
	if alive < e.bal.MinPopulation {
		return nil
	}

	prob := e.bal.BaseHourlyRate * elapsedSeconds / 3600
	if prob > 1 {
		prob = 1
	}
	if rng.Float() >= prob {
		return nil
	}

	// Type roll, then exclusivity: only one hazard type may be live in
	// a vault at a time. A second incident of the live type is allowed
	// in another eligible room.
	typ := Type(rng.Intn(NumTypes))
	for _, inc := range active {
		if inc.Status.Live() && inc.Type != typ {
			return nil
		}
	}

	eligible := eligibleRooms(rooms, occupancy(inhabitants), active, nil)
	if len(eligible) == 0 {
		return nil
	}
	room := eligible[rng.Intn(len(eligible))]

	// Difficulty 1–10, weighted toward the middle of the range.
	difficulty := 1 + entropy.WeightedIndex(rng, e.bal.DifficultyWeights)

	inc := &Incident{
		ID:         uuid.New(),
		VaultID:    v.ID,
		RoomID:     room.ID,
		Type:       typ,
		Status:     StatusActive,
		Difficulty: difficulty,
		StartedAt:  now,
	}
	inc.Transitions = append(inc.Transitions, Transition{From: StatusActive, To: StatusActive, At: now})
	return inc
}

// combatPower sums the defenders' weighted stats, weapon damage, and
// level bonus.
func (e *Engine) combatPower(present []*vault.Inhabitant) float64 {
	power := 0.0
	for _, inh := range present {
		power += e.bal.StrengthWeight*float64(inh.Stats.Strength) +
			e.bal.EnduranceWeight*float64(inh.Stats.Endurance) +
			e.bal.AgilityWeight*float64(inh.Stats.Agility) +
			inh.Weapon.AverageDamage() +
			e.bal.LevelBonus*float64(inh.Level)
	}
	return power
}

// hazardPower is the incident's combat strength.
func (e *Engine) hazardPower(inc *Incident) float64 {
	return float64(inc.Difficulty) * e.bal.HazardPowerPerDifficulty
}

// Process advances one live incident by elapsed seconds. With
// defenders present it resolves combat; unmanned incidents may spread
// instead once their duration has run out. Processing a non-live
// incident is a conflict.
func (e *Engine) Process(inc *Incident, rooms []*vault.Room, inhabitants []*vault.Inhabitant, active []*Incident, elapsedSeconds float64, now time.Time, rng entropy.Source) (CombatResult, error) {
	if !inc.Status.Live() {
		return CombatResult{}, fault.Conflict("incident %s is %s, not active", inc.ID, inc.Status)
	}
	if elapsedSeconds < 0 {
		return CombatResult{}, fault.Invalid("incident %s: negative elapsed time", inc.ID)
	}

	var present []*vault.Inhabitant
	for _, inh := range inhabitants {
		if inh.RoomID != nil && *inh.RoomID == inc.RoomID && inh.Present() {
			present = append(present, inh)
		}
	}

	if len(present) == 0 {
		return e.maybeSpread(inc, rooms, inhabitants, active, now, rng), nil
	}

	// Defenders engaged: a spreading hazard is pinned back down.
	if inc.Status == StatusSpreading {
		inc.transition(StatusActive, now)
	}

	hazard := e.hazardPower(inc)
	defenders := e.combatPower(present)

	// Hazard strikes everyone present, split evenly. Health clamps at 0;
	// death handling is the caller's concern.
	damage := hazard / 10 * elapsedSeconds
	perHead := damage / float64(len(present))
	for _, inh := range present {
		inh.Damage(perHead)
	}
	inc.DamageDealt += damage

	// Defenders grind down the hazard.
	defeated := defenders / 5 * elapsedSeconds / e.bal.HazardPowerPerEnemy
	inc.EnemiesDefeated += defeated

	result := CombatResult{
		Defenders:        len(present),
		InhabitantDamage: damage,
		EnemiesDefeated:  defeated,
	}

	if inc.EnemiesDefeated >= float64(inc.Difficulty*e.bal.VictoryMultiplier) {
		loot := e.generateLoot(inc, rng)
		inc.Loot = loot.Items
		inc.CapsReward = loot.Caps
		inc.transition(StatusResolved, now)
		result.Resolved = true
		result.Loot = &loot
	}

	return result, nil
}

// maybeSpread handles an unmanned incident: after the configured
// duration it jumps to another eligible room, gaining difficulty.
func (e *Engine) maybeSpread(inc *Incident, rooms []*vault.Room, inhabitants []*vault.Inhabitant, active []*Incident, now time.Time, rng entropy.Source) CombatResult {
	if now.Sub(inc.StartedAt).Seconds() < e.bal.DurationSeconds {
		return CombatResult{}
	}
	if inc.SpreadCount >= e.bal.SpreadCap {
		return CombatResult{}
	}

	from := inc.RoomID
	targets := eligibleRooms(rooms, occupancy(inhabitants), active, &from)
	if len(targets) == 0 {
		return CombatResult{}
	}
	target := targets[rng.Intn(len(targets))]

	inc.RoomID = target.ID
	inc.SpreadCount++
	if inc.Difficulty < 10 {
		inc.Difficulty++
	}
	inc.StartedAt = now // next spread needs another full duration
	if inc.Status != StatusSpreading {
		inc.transition(StatusSpreading, now)
	}

	id := target.ID
	return CombatResult{SpreadTo: &id}
}

// Resolve forces an outcome, for manual resolution by an external
// actor. Success grants the same loot formula as combat victory;
// failure ends the incident with no reward.
func (e *Engine) Resolve(inc *Incident, success bool, now time.Time, rng entropy.Source) (LootReport, error) {
	if !inc.Status.Live() {
		return LootReport{}, fault.Conflict("incident %s is %s, not active", inc.ID, inc.Status)
	}

	if !success {
		inc.transition(StatusFailed, now)
		return LootReport{}, nil
	}

	loot := e.generateLoot(inc, rng)
	inc.Loot = loot.Items
	inc.CapsReward = loot.Caps
	inc.transition(StatusResolved, now)
	return loot, nil
}
