// Package expedition manages timed trips into the wasteland: launch,
// periodic event generation while out, and reward settlement on
// completion or recall.
package expedition

import (
	"time"

	"github.com/google/uuid"

	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/vault"
	"github.com/hollowvale/vaultkeep/internal/wasteland"
)

// Status tracks the expedition lifecycle: active → {completed | recalled}.
// Both terminal states settle rewards exactly once.
type Status uint8

const (
	StatusActive Status = iota
	StatusCompleted
	StatusRecalled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusRecalled:
		return "recalled"
	}
	return "unknown"
}

// EventType categorizes expedition log entries.
type EventType uint8

const (
	EventLoot EventType = iota
	EventDanger
	EventSafe
)

// String returns the event type name.
func (t EventType) String() string {
	switch t {
	case EventLoot:
		return "loot"
	case EventDanger:
		return "danger"
	case EventSafe:
		return "safe"
	}
	return "unknown"
}

// Event is one ordered, timestamped log entry.
type Event struct {
	At          time.Time   `json:"at"`
	Type        EventType   `json:"type"`
	Description string      `json:"description"`
	Loot        *vault.Item `json:"loot,omitempty"`
	Caps        int64       `json:"caps,omitempty"`
}

// Expedition is a timed absence of one inhabitant. Ability stats are
// snapshotted at launch and frozen for all reward math.
type Expedition struct {
	ID           uuid.UUID `json:"id"`
	VaultID      uuid.UUID `json:"vault_id"`
	InhabitantID uuid.UUID `json:"inhabitant_id"`

	Status    Status        `json:"status"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`

	Snapshot vault.Stats `json:"snapshot"`

	Distance           float64      `json:"distance"`
	CapsFound          int64        `json:"caps_found"`
	EnemiesEncountered int          `json:"enemies_encountered"`
	Events             []Event      `json:"events"`
	Loot               []vault.Item `json:"loot"`

	LastEventAt time.Time `json:"last_event_at"`
}

// Rewards is the settlement result of a completed or recalled expedition.
type Rewards struct {
	Caps         int64
	Experience   int64
	LevelsGained int
	Transferred  []vault.Item
	Overflow     []vault.Item // beyond storage capacity, surfaced not swallowed
}

// Coordinator applies the expedition rules with an injected balance
// table and wasteland field.
type Coordinator struct {
	bal   config.ExpeditionBalance
	field *wasteland.Field
}

// NewCoordinator creates an expedition coordinator.
func NewCoordinator(bal config.ExpeditionBalance, field *wasteland.Field) *Coordinator {
	return &Coordinator{bal: bal, field: field}
}

// Launch sends an inhabitant into the wasteland. The inhabitant keeps
// their room assignment so settlement can restore the matching status.
func (c *Coordinator) Launch(v *vault.Vault, inh *vault.Inhabitant, duration time.Duration, now time.Time) (*Expedition, error) {
	if v == nil {
		return nil, fault.NotFound("expedition: vault not found")
	}
	if inh == nil {
		return nil, fault.NotFound("expedition: inhabitant not found")
	}
	if duration <= 0 {
		return nil, fault.Invalid("expedition: duration must be positive, got %s", duration)
	}
	if inh.Status == vault.StatusExploring {
		return nil, fault.Conflict("inhabitant %s is already on an expedition", inh.ID)
	}
	if !inh.Alive() {
		return nil, fault.Conflict("inhabitant %s cannot explore while dead", inh.ID)
	}

	inh.Status = vault.StatusExploring
	return &Expedition{
		ID:           uuid.New(),
		VaultID:      v.ID,
		InhabitantID: inh.ID,
		Status:       StatusActive,
		Duration:     duration,
		StartedAt:    now,
		Snapshot:     inh.Stats,
		LastEventAt:  now,
	}, nil
}

// Complete settles a naturally finished expedition with the full reward.
func (c *Coordinator) Complete(exp *Expedition, inh *vault.Inhabitant, v *vault.Vault, storage *vault.Storage, rooms []*vault.Room, now time.Time) (Rewards, error) {
	return c.settle(exp, inh, v, storage, rooms, now, 1.0, StatusCompleted)
}

// Recall settles an early, player-initiated return. Experience is
// scaled by progress through the planned duration; at 100% progress a
// recall pays exactly what a natural completion would.
func (c *Coordinator) Recall(exp *Expedition, inh *vault.Inhabitant, v *vault.Vault, storage *vault.Storage, rooms []*vault.Room, now time.Time) (Rewards, error) {
	if exp == nil {
		return Rewards{}, fault.NotFound("expedition not found")
	}
	progress := 1.0
	if exp.Duration > 0 {
		progress = vault.Clamp(now.Sub(exp.StartedAt).Seconds()/exp.Duration.Seconds(), 0, 1)
	}
	return c.settle(exp, inh, v, storage, rooms, now, progress, StatusRecalled)
}

// settle transfers caps and loot, computes experience, and restores the
// inhabitant's status. Runs exactly once per expedition.
func (c *Coordinator) settle(exp *Expedition, inh *vault.Inhabitant, v *vault.Vault, storage *vault.Storage, rooms []*vault.Room, now time.Time, progress float64, final Status) (Rewards, error) {
	if exp == nil {
		return Rewards{}, fault.NotFound("expedition not found")
	}
	if exp.Status != StatusActive {
		return Rewards{}, fault.Conflict("expedition %s is %s, not active", exp.ID, exp.Status)
	}
	if inh == nil {
		return Rewards{}, fault.NotFound("expedition %s: inhabitant not found", exp.ID)
	}
	if v == nil {
		return Rewards{}, fault.NotFound("expedition %s: vault not found", exp.ID)
	}
	if storage == nil {
		return Rewards{}, fault.NotFound("expedition %s: storage not found", exp.ID)
	}

	// Caps go straight to the vault balance.
	v.Caps += exp.CapsFound

	// Experience and the return to vault duty apply to survivors; a dead
	// explorer keeps their state untouched for the external death handler.
	var experience int64
	gained := 0
	if inh.Alive() {
		xp := exp.Distance*c.bal.XPPerDistance +
			float64(exp.EnemiesEncountered)*c.bal.XPPerEnemy +
			float64(len(exp.Events))*c.bal.XPPerEvent
		if inh.MaxHealth > 0 && inh.Health > c.bal.SurvivalHealthFraction*inh.MaxHealth {
			xp *= 1 + c.bal.SurvivalBonus
		}
		xp *= 1 + c.bal.LuckBonusPerPoint*float64(exp.Snapshot.Luck)
		xp *= progress

		experience = int64(xp)
		gained = inh.AddExperience(experience)

		// Back to idle/working/training based on the prior room assignment.
		inh.Status = vault.StatusIdle
		if inh.RoomID != nil {
			for _, r := range rooms {
				if r.ID == *inh.RoomID {
					inh.Status = vault.StatusFor(r.Category)
					break
				}
			}
		}
	}

	transferred, overflow := storage.Transfer(exp.Loot)

	exp.Status = final
	ended := now
	exp.EndedAt = &ended

	return Rewards{
		Caps:         exp.CapsFound,
		Experience:   experience,
		LevelsGained: gained,
		Transferred:  transferred,
		Overflow:     overflow,
	}, nil
}
