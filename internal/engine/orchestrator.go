// Package engine provides the tick orchestrator: it advances every
// active vault over elapsed wall-clock time, driving the economy,
// incident, and expedition subsystems in a fixed order.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/economy"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/vault"
	"github.com/hollowvale/vaultkeep/internal/wasteland"
)

// State bundles everything one vault tick reads and mutates. No shared
// mutable state crosses vault boundaries, so ticks for different
// vaults may run in parallel.
type State struct {
	Vault       *vault.Vault
	Rooms       []*vault.Room
	Inhabitants []*vault.Inhabitant
	Incidents   []*incident.Incident
	Expeditions []*expedition.Expedition
	Storage     *vault.Storage
}

// Store is the persistence boundary: the only blocking point inside a
// tick. Implemented by internal/persistence.
type Store interface {
	ListVaults(ctx context.Context) ([]uuid.UUID, error)
	LoadState(ctx context.Context, vaultID uuid.UUID) (*State, error)
	SaveState(ctx context.Context, st *State) error
}

// TickReport summarizes one vault tick.
type TickReport struct {
	VaultID uuid.UUID
	Skipped bool // paused or inactive
	Elapsed time.Duration

	Warnings []economy.Warning

	IncidentSpawned      bool
	IncidentsResolved    int
	IncidentsSpread      int
	ExpeditionEvents     int
	ExpeditionsCompleted int
	LootOverflow         int // items dropped for lack of storage space
}

// BatchReport aggregates one orchestrator invocation across vaults.
type BatchReport struct {
	Processed     int
	SkippedPaused int
	Errored       int
}

// Orchestrator runs vault ticks. One vault's failure never aborts the
// batch; it is counted and logged instead.
type Orchestrator struct {
	store       Store
	bal         config.Balance
	incidents   *incident.Engine
	expeditions *expedition.Coordinator

	// MinTickInterval is the floor on simulated elapsed time per tick;
	// MaxOfflineCatchup is the ceiling, so a vault offline for weeks
	// cannot generate unbounded simulated time in one tick.
	MinTickInterval   time.Duration
	MaxOfflineCatchup time.Duration

	// Workers bounds the parallel vault ticks in RunAll.
	Workers int

	// Now and NewSource are injection points for tests.
	Now       func() time.Time
	NewSource func() entropy.Source

	locks sync.Map // vault ID → *sync.Mutex
}

// New creates an orchestrator wired to a store and a wasteland field.
func New(store Store, bal config.Balance, field *wasteland.Field) *Orchestrator {
	return &Orchestrator{
		store:             store,
		bal:               bal,
		incidents:         incident.NewEngine(bal.Incident),
		expeditions:       expedition.NewCoordinator(bal.Expedition, field),
		MinTickInterval:   time.Minute,
		MaxOfflineCatchup: 24 * time.Hour,
		Workers:           4,
		Now:               time.Now,
		NewSource: func() entropy.Source {
			src, err := entropy.New()
			if err != nil {
				// crypto/rand is effectively infallible; fall back to a
				// time seed rather than killing the tick.
				return entropy.NewSeeded(time.Now().UnixNano())
			}
			return src
		},
	}
}

// vaultLock returns the per-vault mutex, creating it on first use.
func (o *Orchestrator) vaultLock(id uuid.UUID) *sync.Mutex {
	mu, _ := o.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithVault runs fn while holding the vault's update lock. Surrounding
// code uses this for player-initiated actions (manual incident
// resolution, manual recall) so they cannot race an in-flight tick.
func (o *Orchestrator) WithVault(vaultID uuid.UUID, fn func() error) error {
	mu := o.vaultLock(vaultID)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// RunAll ticks every vault, bounded by the worker pool. Per-vault
// failures are counted, logged, and skipped over.
func (o *Orchestrator) RunAll(ctx context.Context) (BatchReport, error) {
	ids, err := o.store.ListVaults(ctx)
	if err != nil {
		return BatchReport{}, fault.Wrap(fault.KindUnknown, err, "list vaults")
	}

	var processed, skipped, errored atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for _, id := range ids {
		g.Go(func() error {
			report, err := o.RunTick(gctx, id)
			switch {
			case err != nil:
				errored.Add(1)
				slog.Error("vault tick failed", "vault", id, "error", err)
			case report.Skipped:
				skipped.Add(1)
			default:
				processed.Add(1)
			}
			return nil // failures are isolated, never abort the batch
		})
	}
	_ = g.Wait()

	report := BatchReport{
		Processed:     int(processed.Load()),
		SkippedPaused: int(skipped.Load()),
		Errored:       int(errored.Load()),
	}
	slog.Info("tick batch complete",
		"processed", report.Processed,
		"skipped", report.SkippedPaused,
		"errored", report.Errored,
	)
	return report, nil
}

// RunTick advances a single vault: economy, then incidents, then
// expeditions, persisting after each subsystem. The order matters —
// expedition settlement reads post-economy vault currency, and
// incident resolution credits the same pool.
func (o *Orchestrator) RunTick(ctx context.Context, vaultID uuid.UUID) (TickReport, error) {
	mu := o.vaultLock(vaultID)
	mu.Lock()
	defer mu.Unlock()

	st, err := o.store.LoadState(ctx, vaultID)
	if err != nil {
		return TickReport{}, err
	}

	report := TickReport{VaultID: vaultID}
	v := st.Vault
	if !v.Active || v.Paused {
		report.Skipped = true
		return report, nil
	}

	now := o.Now()
	elapsed := o.clampElapsed(now.Sub(v.LastTick))
	seconds := elapsed.Seconds()
	report.Elapsed = elapsed
	rng := o.NewSource()

	// 1. Resource economy.
	res, err := economy.Advance(v, st.Rooms, st.Inhabitants, seconds, o.bal.Economy)
	if err != nil {
		return report, err
	}
	economy.Apply(v, res)
	report.Warnings = res.Warnings
	for _, w := range res.Warnings {
		slog.Warn("resource warning",
			"vault", vaultID,
			"resource", w.Resource,
			"severity", w.Severity,
			"fraction", w.Fraction,
		)
	}

	v.LastTick = now
	v.SimSeconds += int64(seconds)
	v.Happiness = vault.AverageHappiness(st.Inhabitants)

	if err := o.store.SaveState(ctx, st); err != nil {
		return report, err
	}

	// 2. Incidents: spawn check, then process everything live.
	if err := o.tickIncidents(st, &report, seconds, now, rng); err != nil {
		return report, err
	}
	if err := o.store.SaveState(ctx, st); err != nil {
		return report, err
	}

	// 3. Expeditions: event generation and auto-completion.
	if err := o.tickExpeditions(st, &report, now, rng); err != nil {
		return report, err
	}
	if err := o.store.SaveState(ctx, st); err != nil {
		return report, err
	}

	slog.Debug("vault tick complete",
		"vault", vaultID,
		"elapsed", elapsed,
		"caps", v.Caps,
		"happiness", v.Happiness,
	)
	return report, nil
}

// clampElapsed bounds simulated time per tick: never less than one
// minimum interval, never more than the offline catch-up ceiling.
func (o *Orchestrator) clampElapsed(elapsed time.Duration) time.Duration {
	if elapsed < o.MinTickInterval {
		return o.MinTickInterval
	}
	if elapsed > o.MaxOfflineCatchup {
		return o.MaxOfflineCatchup
	}
	return elapsed
}

func (o *Orchestrator) tickIncidents(st *State, report *TickReport, seconds float64, now time.Time, rng entropy.Source) error {
	if spawned := o.incidents.MaybeSpawn(st.Vault, st.Rooms, st.Inhabitants, st.Incidents, seconds, now, rng); spawned != nil {
		st.Incidents = append(st.Incidents, spawned)
		report.IncidentSpawned = true
		slog.Info("incident spawned",
			"vault", st.Vault.ID,
			"type", spawned.Type,
			"room", spawned.RoomID,
			"difficulty", spawned.Difficulty,
		)
	}

	for _, inc := range st.Incidents {
		if !inc.Status.Live() {
			continue
		}
		result, err := o.incidents.Process(inc, st.Rooms, st.Inhabitants, st.Incidents, seconds, now, rng)
		if err != nil {
			return err
		}
		if result.SpreadTo != nil {
			report.IncidentsSpread++
			slog.Info("incident spread",
				"vault", st.Vault.ID,
				"incident", inc.ID,
				"room", *result.SpreadTo,
				"difficulty", inc.Difficulty,
			)
		}
		if result.Resolved {
			report.IncidentsResolved++
			st.Vault.Caps += result.Loot.Caps
			_, overflow := st.Storage.Transfer(result.Loot.Items)
			report.LootOverflow += len(overflow)
			slog.Info("incident resolved",
				"vault", st.Vault.ID,
				"incident", inc.ID,
				"caps", result.Loot.Caps,
				"items", len(result.Loot.Items),
			)
		}
	}
	return nil
}

func (o *Orchestrator) tickExpeditions(st *State, report *TickReport, now time.Time, rng entropy.Source) error {
	byID := make(map[uuid.UUID]*vault.Inhabitant, len(st.Inhabitants))
	for _, inh := range st.Inhabitants {
		byID[inh.ID] = inh
	}

	for _, exp := range st.Expeditions {
		if exp.Status != expedition.StatusActive {
			continue
		}
		inh, ok := byID[exp.InhabitantID]
		if !ok {
			return fault.NotFound("expedition %s: inhabitant %s not found", exp.ID, exp.InhabitantID)
		}

		ev, err := o.expeditions.GenerateEvent(exp, inh, now, rng)
		if err != nil {
			return err
		}
		if ev != nil {
			report.ExpeditionEvents++
		}

		if now.Sub(exp.StartedAt) >= exp.Duration {
			rewards, err := o.expeditions.Complete(exp, inh, st.Vault, st.Storage, st.Rooms, now)
			if err != nil {
				return err
			}
			report.ExpeditionsCompleted++
			report.LootOverflow += len(rewards.Overflow)
			slog.Info("expedition completed",
				"vault", st.Vault.ID,
				"expedition", exp.ID,
				"caps", rewards.Caps,
				"xp", rewards.Experience,
				"levels", rewards.LevelsGained,
				"overflow", len(rewards.Overflow),
			)
		}
	}
	return nil
}
