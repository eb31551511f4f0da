package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Timestamps persist as Unix seconds, so fixtures use whole seconds.
var fixedTime = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func fullState() *engine.State {
	v := &vault.Vault{
		ID:         uuid.New(),
		Name:       "Vault 117",
		Power:      vault.Gauge{Amount: 150, Capacity: 300},
		Food:       vault.Gauge{Amount: 120, Capacity: 250},
		Water:      vault.Gauge{Amount: 120, Capacity: 250},
		Caps:       500,
		Happiness:  75,
		LastTick:   fixedTime,
		Active:     true,
		SimSeconds: 3600,
	}

	room := &vault.Room{
		ID: uuid.New(), VaultID: v.ID, Name: "Power Plant",
		Category: vault.RoomProduction, Ability: vault.AbilityStrength,
		Tier: 2, Size: 3, Output: 4,
	}

	worker := &vault.Inhabitant{
		ID: uuid.New(), VaultID: v.ID, Name: "June Barrow",
		Stats:  vault.Stats{Strength: 7, Perception: 3, Luck: 5},
		Health: 90, MaxHealth: 104, Happiness: 80,
		Experience: 750, Level: 2,
		Weapon: &vault.Weapon{Name: "Hunting Rifle", MinDamage: 3, MaxDamage: 7},
	}
	worker.Assign(room)

	explorer := &vault.Inhabitant{
		ID: uuid.New(), VaultID: v.ID, Name: "Harlan Vance",
		Stats:  vault.Stats{Agility: 6},
		Health: 100, MaxHealth: 100, Happiness: 70, Level: 1,
		Status: vault.StatusExploring,
	}

	inc := &incident.Incident{
		ID: uuid.New(), VaultID: v.ID, RoomID: room.ID,
		Type: incident.TypeFire, Status: incident.StatusActive, Difficulty: 4,
		DamageDealt: 12.5, EnemiesDefeated: 1.25, SpreadCount: 1,
		StartedAt: fixedTime,
		Transitions: []incident.Transition{
			{From: incident.StatusActive, To: incident.StatusActive, At: fixedTime},
		},
	}

	exp := &expedition.Expedition{
		ID: uuid.New(), VaultID: v.ID, InhabitantID: explorer.ID,
		Status: expedition.StatusActive, Duration: 2 * time.Hour,
		StartedAt: fixedTime, Snapshot: explorer.Stats,
		Distance: 14, CapsFound: 80, EnemiesEncountered: 2,
		Events: []expedition.Event{
			{At: fixedTime, Type: expedition.EventLoot, Description: "found Tin Can (common) and 25 caps", Caps: 25},
		},
		Loot:        []vault.Item{{Name: "Tin Can", Rarity: vault.RarityCommon, Type: "junk"}},
		LastEventAt: fixedTime,
	}

	return &engine.State{
		Vault:       v,
		Rooms:       []*vault.Room{room},
		Inhabitants: []*vault.Inhabitant{worker, explorer},
		Incidents:   []*incident.Incident{inc},
		Expeditions: []*expedition.Expedition{exp},
		Storage: &vault.Storage{
			ID: uuid.New(), VaultID: v.ID, Capacity: 40,
			Items: []vault.Item{{Name: "Fire Axe", Rarity: vault.RarityRare, Type: "weapon"}},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	st := fullState()

	require.NoError(t, db.SaveState(ctx, st))

	loaded, err := db.LoadState(ctx, st.Vault.ID)
	require.NoError(t, err)

	assert.Equal(t, st.Vault, loaded.Vault)
	assert.Equal(t, st.Rooms, loaded.Rooms)
	assert.Equal(t, st.Storage, loaded.Storage)

	require.Len(t, loaded.Inhabitants, 2)
	byName := map[string]*vault.Inhabitant{}
	for _, inh := range loaded.Inhabitants {
		byName[inh.Name] = inh
	}
	assert.Equal(t, st.Inhabitants[0], byName["June Barrow"])
	assert.Equal(t, st.Inhabitants[1], byName["Harlan Vance"])

	require.Len(t, loaded.Incidents, 1)
	assert.Equal(t, st.Incidents[0], loaded.Incidents[0])

	require.Len(t, loaded.Expeditions, 1)
	assert.Equal(t, st.Expeditions[0], loaded.Expeditions[0])
}

func TestSaveStateReplacesChildren(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	st := fullState()

	require.NoError(t, db.SaveState(ctx, st))

	// Drop the incident and a resident, then save again: the stale rows
	// must be gone on the next load.
	st.Incidents = nil
	st.Inhabitants = st.Inhabitants[:1]
	st.Vault.Caps = 640
	require.NoError(t, db.SaveState(ctx, st))

	loaded, err := db.LoadState(ctx, st.Vault.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.Incidents)
	assert.Len(t, loaded.Inhabitants, 1)
	assert.Equal(t, int64(640), loaded.Vault.Caps)
}

func TestListVaults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ids, err := db.ListVaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	a, b := fullState(), fullState()
	require.NoError(t, db.SaveState(ctx, a))
	require.NoError(t, db.SaveState(ctx, b))

	ids, err = db.ListVaults(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.Vault.ID, b.Vault.ID}, ids)
}

func TestLoadMissingVault(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadState(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, fault.IsNotFound(err))
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := db.GetMeta(ctx, "world_seed")
	assert.True(t, fault.IsNotFound(err))

	require.NoError(t, db.SaveMeta(ctx, "world_seed", "42"))
	value, err := db.GetMeta(ctx, "world_seed")
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	require.NoError(t, db.SaveMeta(ctx, "world_seed", "43"))
	value, err = db.GetMeta(ctx, "world_seed")
	require.NoError(t, err)
	assert.Equal(t, "43", value)
}
