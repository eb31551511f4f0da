// Package vault provides the shelter data model: vaults, rooms,
// inhabitants, storage, and the status state machine that ties
// room assignment to inhabitant activity.
package vault

import (
	"time"

	"github.com/google/uuid"
)

// ResourceKind enumerates the three consumable vault resources.
type ResourceKind uint8

const (
	ResourcePower ResourceKind = iota
	ResourceFood
	ResourceWater
)

// NumResources is the total number of resource kinds.
const NumResources = 3

// Kinds lists all resource kinds in a stable order.
var Kinds = [NumResources]ResourceKind{ResourcePower, ResourceFood, ResourceWater}

// String returns the resource name used in logs and persistence.
func (r ResourceKind) String() string {
	switch r {
	case ResourcePower:
		return "power"
	case ResourceFood:
		return "food"
	case ResourceWater:
		return "water"
	}
	return "unknown"
}

// Gauge is a bounded resource level.
type Gauge struct {
	Amount   float64 `json:"amount"`
	Capacity float64 `json:"capacity"`
}

// Set assigns a new amount, clamped to [0, Capacity].
func (g *Gauge) Set(amount float64) {
	g.Amount = Clamp(amount, 0, g.Capacity)
}

// Add applies a delta, clamped to [0, Capacity].
func (g *Gauge) Add(delta float64) {
	g.Set(g.Amount + delta)
}

// Fraction returns Amount/Capacity, or 0 for an empty gauge.
func (g Gauge) Fraction() float64 {
	if g.Capacity <= 0 {
		return 0
	}
	return g.Amount / g.Capacity
}

// Vault is the player's managed habitat. Its gauges are mutated only by
// the orchestrator inside the vault's own tick.
type Vault struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`

	Power Gauge `json:"power"`
	Food  Gauge `json:"food"`
	Water Gauge `json:"water"`

	Caps      int64   `json:"caps"`      // Currency balance
	Happiness float64 `json:"happiness"` // Derived average, 10–100

	// Tick bookkeeping.
	LastTick   time.Time `json:"last_tick"`
	Active     bool      `json:"active"`
	Paused     bool      `json:"paused"`
	SimSeconds int64     `json:"sim_seconds"` // Cumulative simulated time
}

// Gauge returns the gauge for a resource kind.
func (v *Vault) Gauge(kind ResourceKind) *Gauge {
	switch kind {
	case ResourcePower:
		return &v.Power
	case ResourceFood:
		return &v.Food
	case ResourceWater:
		return &v.Water
	}
	return nil
}

// Ability enumerates the seven inhabitant ability stats.
type Ability uint8

const (
	AbilityNone Ability = iota
	AbilityStrength
	AbilityPerception
	AbilityEndurance
	AbilityCharisma
	AbilityIntelligence
	AbilityAgility
	AbilityLuck
)

// String returns the ability name.
func (a Ability) String() string {
	switch a {
	case AbilityStrength:
		return "strength"
	case AbilityPerception:
		return "perception"
	case AbilityEndurance:
		return "endurance"
	case AbilityCharisma:
		return "charisma"
	case AbilityIntelligence:
		return "intelligence"
	case AbilityAgility:
		return "agility"
	case AbilityLuck:
		return "luck"
	}
	return "none"
}

// Stats holds the seven ability values, each 1–10.
type Stats struct {
	Strength     int `json:"strength"`
	Perception   int `json:"perception"`
	Endurance    int `json:"endurance"`
	Charisma     int `json:"charisma"`
	Intelligence int `json:"intelligence"`
	Agility      int `json:"agility"`
	Luck         int `json:"luck"`
}

// Get returns the value for one ability; 0 for AbilityNone.
func (s Stats) Get(a Ability) int {
	switch a {
	case AbilityStrength:
		return s.Strength
	case AbilityPerception:
		return s.Perception
	case AbilityEndurance:
		return s.Endurance
	case AbilityCharisma:
		return s.Charisma
	case AbilityIntelligence:
		return s.Intelligence
	case AbilityAgility:
		return s.Agility
	case AbilityLuck:
		return s.Luck
	}
	return 0
}

// RoomCategory tags a room's behavior; dispatch is on the tag rather
// than a type hierarchy.
type RoomCategory uint8

const (
	RoomProduction RoomCategory = iota
	RoomCapacity
	RoomTraining
	RoomCrafting
	RoomMisc
	RoomQuest
	RoomTheme
)

// String returns the category name.
func (c RoomCategory) String() string {
	switch c {
	case RoomProduction:
		return "production"
	case RoomCapacity:
		return "capacity"
	case RoomTraining:
		return "training"
	case RoomCrafting:
		return "crafting"
	case RoomMisc:
		return "misc"
	case RoomQuest:
		return "quest"
	case RoomTheme:
		return "theme"
	}
	return "unknown"
}

// Room is one chamber of a vault. Immutable during a tick except for
// tier, which changes only through upgrades outside the core.
type Room struct {
	ID       uuid.UUID    `json:"id"`
	VaultID  uuid.UUID    `json:"vault_id"`
	Name     string       `json:"name"`
	Category RoomCategory `json:"category"`
	Ability  Ability      `json:"ability"` // The single stat this room keys off, or AbilityNone
	Tier     int          `json:"tier"`    // 1–3
	Size     int          `json:"size"`
	Output   float64      `json:"output"` // Base production output; 0 for non-producers
	Entry    bool         `json:"entry"`  // Elevator-equivalent; excluded from incidents
}

// Capacity returns how many inhabitants the room holds, derived from
// tier and size.
func (r *Room) Capacity() int {
	return 2 * r.Size * r.Tier
}

// Status is an inhabitant's activity state.
type Status uint8

const (
	StatusIdle Status = iota
	StatusWorking
	StatusTraining
	StatusExploring
	StatusDead
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWorking:
		return "working"
	case StatusTraining:
		return "training"
	case StatusExploring:
		return "exploring"
	case StatusDead:
		return "dead"
	}
	return "unknown"
}

// StatusFor returns the status an inhabitant takes when assigned to a
// room of the given category. Called at every assignment boundary so
// status and assignment stay mutually consistent.
func StatusFor(category RoomCategory) Status {
	switch category {
	case RoomTraining:
		return StatusTraining
	case RoomProduction, RoomCrafting:
		return StatusWorking
	}
	return StatusIdle
}

// Weapon is an equipped item contributing to combat power.
type Weapon struct {
	Name      string  `json:"name"`
	MinDamage float64 `json:"min_damage"`
	MaxDamage float64 `json:"max_damage"`
}

// AverageDamage returns the midpoint of the damage range.
func (w *Weapon) AverageDamage() float64 {
	if w == nil {
		return 0
	}
	return (w.MinDamage + w.MaxDamage) / 2
}

// Inhabitant is a unit with seven ability stats, health, and an
// assignment-driven status.
type Inhabitant struct {
	ID      uuid.UUID  `json:"id"`
	VaultID uuid.UUID  `json:"vault_id"`
	Name    string     `json:"name"`
	RoomID  *uuid.UUID `json:"room_id,omitempty"`

	Stats     Stats   `json:"stats"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	Happiness float64 `json:"happiness"` // 10–100

	Experience int64  `json:"experience"`
	Level      int    `json:"level"`
	Status     Status `json:"status"`

	Weapon *Weapon `json:"weapon,omitempty"`
}

// Alive reports whether the inhabitant can act.
func (i *Inhabitant) Alive() bool {
	return i.Status != StatusDead && i.Health > 0
}

// Present reports whether the inhabitant is physically inside the
// vault and able to act. An expedition is a timed absence: explorers
// keep their room assignment for the return trip but are not present.
func (i *Inhabitant) Present() bool {
	return i.Alive() && i.Status != StatusExploring
}

// Damage reduces health, clamped at 0. Death handling is delegated to
// the surrounding code once health reaches 0.
func (i *Inhabitant) Damage(amount float64) {
	i.Health = Clamp(i.Health-amount, 0, i.MaxHealth)
}

// Heal raises health, clamped at MaxHealth.
func (i *Inhabitant) Heal(amount float64) {
	i.Health = Clamp(i.Health+amount, 0, i.MaxHealth)
}

// SetHappiness assigns happiness within its 10–100 clamp.
func (i *Inhabitant) SetHappiness(value float64) {
	i.Happiness = Clamp(value, 10, 100)
}

// Assign moves the inhabitant into a room and derives the matching
// status. A nil room unassigns and returns the inhabitant to idle.
func (i *Inhabitant) Assign(room *Room) {
	if i.Status == StatusDead {
		return
	}
	if room == nil {
		i.RoomID = nil
		i.Status = StatusIdle
		return
	}
	id := room.ID
	i.RoomID = &id
	i.Status = StatusFor(room.Category)
}

// Rarity grades loot items.
type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityRare
	RarityLegendary
)

// String returns the rarity name.
func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityRare:
		return "rare"
	case RarityLegendary:
		return "legendary"
	}
	return "unknown"
}

// Item is a piece of loot produced by expeditions, incidents, or rewards.
type Item struct {
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity"`
	Type   string `json:"type"` // weapon/outfit/junk/...
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// AverageHappiness recomputes a vault's derived happiness from its
// living inhabitants. Empty vaults keep the floor value.
func AverageHappiness(inhabitants []*Inhabitant) float64 {
	total := 0.0
	alive := 0
	for _, i := range inhabitants {
		if i.Alive() {
			total += i.Happiness
			alive++
		}
	}
	if alive == 0 {
		return 10
	}
	return total / float64(alive)
}
