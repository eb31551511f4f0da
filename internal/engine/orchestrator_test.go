package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowvale/vaultkeep/internal/config"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/vault"
	"github.com/hollowvale/vaultkeep/internal/wasteland"
)

// fakeStore keeps state in memory and counts SaveState calls.
type fakeStore struct {
	mu       sync.Mutex
	states   map[uuid.UUID]*State
	saves    map[uuid.UUID]int
	failLoad map[uuid.UUID]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:   make(map[uuid.UUID]*State),
		saves:    make(map[uuid.UUID]int),
		failLoad: make(map[uuid.UUID]bool),
	}
}

func (f *fakeStore) add(st *State) {
	f.states[st.Vault.ID] = st
}

func (f *fakeStore) ListVaults(ctx context.Context) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(f.states))
	for id := range f.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) LoadState(ctx context.Context, vaultID uuid.UUID) (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad[vaultID] {
		return nil, fault.NotFound("vault %s not found", vaultID)
	}
	st, ok := f.states[vaultID]
	if !ok {
		return nil, fault.NotFound("vault %s not found", vaultID)
	}
	return st, nil
}

func (f *fakeStore) SaveState(ctx context.Context, st *State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves[st.Vault.ID]++
	f.states[st.Vault.ID] = st
	return nil
}

var tickNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func testOrchestrator(store Store) *Orchestrator {
	o := New(store, config.Defaults(), wasteland.NewField(42))
	o.Now = func() time.Time { return tickNow }
	o.NewSource = func() entropy.Source { return entropy.NewSeeded(7) }
	return o
}

// testState builds a small vault: one staffed power room, roster kept
// under the incident population threshold so ticks stay deterministic.
func testState(lastTick time.Time) *State {
	v := &vault.Vault{
		ID:       uuid.New(),
		Name:     "test",
		Power:    vault.Gauge{Amount: 50, Capacity: 1000},
		Food:     vault.Gauge{Amount: 500, Capacity: 1000},
		Water:    vault.Gauge{Amount: 500, Capacity: 1000},
		LastTick: lastTick,
		Active:   true,
	}
	room := &vault.Room{
		ID: uuid.New(), VaultID: v.ID,
		Category: vault.RoomProduction, Ability: vault.AbilityStrength,
		Tier: 1, Size: 2, Output: 2,
	}
	inh := &vault.Inhabitant{
		ID: uuid.New(), VaultID: v.ID,
		Stats:  vault.Stats{Strength: 5},
		Health: 100, MaxHealth: 100, Happiness: 80, Level: 1,
	}
	inh.Assign(room)

	return &State{
		Vault:       v,
		Rooms:       []*vault.Room{room},
		Inhabitants: []*vault.Inhabitant{inh},
		Storage:     &vault.Storage{ID: uuid.New(), VaultID: v.ID, Capacity: 20},
	}
}

func TestRunTickSkipsPausedVault(t *testing.T) {
	store := newFakeStore()
	st := testState(tickNow.Add(-time.Hour))
	st.Vault.Paused = true
	store.add(st)

	o := testOrchestrator(store)
	report, err := o.RunTick(context.Background(), st.Vault.ID)
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Zero(t, store.saves[st.Vault.ID], "a skipped tick must not write")
	assert.Equal(t, tickNow.Add(-time.Hour), st.Vault.LastTick)
}

func TestRunTickAdvancesAndPersists(t *testing.T) {
	store := newFakeStore()
	st := testState(tickNow.Add(-10 * time.Minute))
	store.add(st)

	o := testOrchestrator(store)
	report, err := o.RunTick(context.Background(), st.Vault.ID)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, report.Elapsed)
	assert.Equal(t, tickNow, st.Vault.LastTick)
	assert.Equal(t, int64(600), st.Vault.SimSeconds)
	assert.Greater(t, st.Vault.Power.Amount, 50.0, "production must raise the power level")
	assert.Equal(t, 80.0, st.Vault.Happiness)

	// One save per subsystem stage.
	assert.Equal(t, 3, store.saves[st.Vault.ID])
}

func TestRunTickClampsElapsed(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(store)

	// A tick one second after the last still simulates the floor.
	fast := testState(tickNow.Add(-time.Second))
	store.add(fast)
	report, err := o.RunTick(context.Background(), fast.Vault.ID)
	require.NoError(t, err)
	assert.Equal(t, o.MinTickInterval, report.Elapsed)

	// A vault offline for two days catches up at most one day.
	stale := testState(tickNow.Add(-48 * time.Hour))
	store.add(stale)
	report, err = o.RunTick(context.Background(), stale.Vault.ID)
	require.NoError(t, err)
	assert.Equal(t, o.MaxOfflineCatchup, report.Elapsed)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), stale.Vault.SimSeconds)
}

func TestRunTickUnknownVault(t *testing.T) {
	o := testOrchestrator(newFakeStore())
	_, err := o.RunTick(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
}

func TestRunAllIsolatesFailures(t *testing.T) {
	store := newFakeStore()

	healthy := testState(tickNow.Add(-time.Hour))
	paused := testState(tickNow.Add(-time.Hour))
	paused.Vault.Paused = true
	broken := testState(tickNow.Add(-time.Hour))
	store.add(healthy)
	store.add(paused)
	store.add(broken)
	store.failLoad[broken.Vault.ID] = true

	o := testOrchestrator(store)
	report, err := o.RunAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.SkippedPaused)
	assert.Equal(t, 1, report.Errored)
}

func TestRunTickAutoCompletesExpedition(t *testing.T) {
	store := newFakeStore()
	st := testState(tickNow.Add(-time.Minute))

	explorer := &vault.Inhabitant{
		ID: uuid.New(), VaultID: st.Vault.ID,
		Stats:  vault.Stats{Perception: 5, Luck: 5},
		Health: 100, MaxHealth: 100, Happiness: 80, Level: 1,
		Status: vault.StatusExploring,
	}
	st.Inhabitants = append(st.Inhabitants, explorer)

	exp := &expedition.Expedition{
		ID:           uuid.New(),
		VaultID:      st.Vault.ID,
		InhabitantID: explorer.ID,
		Status:       expedition.StatusActive,
		Duration:     time.Hour,
		StartedAt:    tickNow.Add(-2 * time.Hour),
		LastEventAt:  tickNow,
		Snapshot:     explorer.Stats,
		Distance:     6,
		CapsFound:    40,
	}
	st.Expeditions = append(st.Expeditions, exp)
	store.add(st)

	o := testOrchestrator(store)
	report, err := o.RunTick(context.Background(), st.Vault.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, report.ExpeditionsCompleted)
	assert.Equal(t, expedition.StatusCompleted, exp.Status)
	assert.Equal(t, int64(40), st.Vault.Caps)
	assert.NotEqual(t, vault.StatusExploring, explorer.Status)
	assert.Greater(t, explorer.Experience, int64(0))
}

func TestWithVaultSerializesAccess(t *testing.T) {
	o := testOrchestrator(newFakeStore())
	id := uuid.New()

	var inside bool
	err := o.WithVault(id, func() error {
		inside = true
		locked := o.vaultLock(id).TryLock()
		assert.False(t, locked, "lock must be held during fn")
		return nil
	})
	require.NoError(t, err)
	assert.True(t, inside)

	// Released afterwards.
	require.True(t, o.vaultLock(id).TryLock())
	o.vaultLock(id).Unlock()
}
