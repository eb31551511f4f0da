// Command vaultseed creates a demo vault so the daemon has something
// to simulate. Deterministic for a given seed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/entropy"
	"github.com/hollowvale/vaultkeep/internal/persistence"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

var firstNames = []string{
	"June", "Harlan", "Mags", "Cooper", "Lucy", "Theo", "Nadia", "Ellis",
	"Ruth", "Sol", "Vera", "Amos", "Pearl", "Dex", "Opal", "Cassius",
}

var lastNames = []string{
	"Barrow", "Vance", "Holt", "Quinn", "Mercer", "Ashby", "Reyes", "Calder",
}

func main() {
	dbPath := flag.String("db", "data/vaultkeep.db", "database path")
	name := flag.String("name", "Vault 117", "vault name")
	residents := flag.Int("residents", 12, "number of inhabitants")
	seed := flag.Int64("seed", 42, "generation seed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	st := buildVault(*name, *residents, entropy.NewSeeded(*seed))
	if err := db.SaveState(context.Background(), st); err != nil {
		slog.Error("failed to save vault", "error", err)
		os.Exit(1)
	}

	slog.Info("vault seeded",
		"vault", st.Vault.ID,
		"name", st.Vault.Name,
		"rooms", len(st.Rooms),
		"inhabitants", len(st.Inhabitants),
		"caps", humanize.Comma(st.Vault.Caps),
	)
}

func buildVault(name string, residents int, rng entropy.Source) *engine.State {
	now := time.Now().UTC()
	v := &vault.Vault{
		ID:        uuid.New(),
		Name:      name,
		Power:     vault.Gauge{Amount: 150, Capacity: 300},
		Food:      vault.Gauge{Amount: 120, Capacity: 250},
		Water:     vault.Gauge{Amount: 120, Capacity: 250},
		Caps:      500,
		Happiness: 75,
		LastTick:  now,
		Active:    true,
	}

	rooms := []*vault.Room{
		{ID: uuid.New(), VaultID: v.ID, Name: "Vault Door", Category: vault.RoomMisc, Tier: 1, Size: 1, Entry: true},
		{ID: uuid.New(), VaultID: v.ID, Name: "Power Plant", Category: vault.RoomProduction, Ability: vault.AbilityStrength, Tier: 1, Size: 3, Output: 4},
		{ID: uuid.New(), VaultID: v.ID, Name: "Diner", Category: vault.RoomProduction, Ability: vault.AbilityAgility, Tier: 1, Size: 3, Output: 3},
		{ID: uuid.New(), VaultID: v.ID, Name: "Water Treatment", Category: vault.RoomProduction, Ability: vault.AbilityPerception, Tier: 1, Size: 3, Output: 3},
		{ID: uuid.New(), VaultID: v.ID, Name: "Living Quarters", Category: vault.RoomCapacity, Tier: 1, Size: 2},
		{ID: uuid.New(), VaultID: v.ID, Name: "Weight Room", Category: vault.RoomTraining, Ability: vault.AbilityStrength, Tier: 1, Size: 2},
	}

	// Staff the production rooms round-robin; leave the rest idle.
	producers := rooms[1:4]
	inhabitants := make([]*vault.Inhabitant, 0, residents)
	for i := 0; i < residents; i++ {
		inh := &vault.Inhabitant{
			ID:        uuid.New(),
			VaultID:   v.ID,
			Name:      fmt.Sprintf("%s %s", firstNames[rng.Intn(len(firstNames))], lastNames[rng.Intn(len(lastNames))]),
			Stats:     rollStats(rng),
			Health:    100,
			MaxHealth: 100,
			Happiness: 75,
			Level:     1,
		}
		if i < len(producers)*3 {
			inh.Assign(producers[i%len(producers)])
		}
		inhabitants = append(inhabitants, inh)
	}

	return &engine.State{
		Vault:       v,
		Rooms:       rooms,
		Inhabitants: inhabitants,
		Storage: &vault.Storage{
			ID:       uuid.New(),
			VaultID:  v.ID,
			Capacity: 40,
		},
	}
}

func rollStats(rng entropy.Source) vault.Stats {
	roll := func() int { return 1 + rng.Intn(10) }
	return vault.Stats{
		Strength:     roll(),
		Perception:   roll(),
		Endurance:    roll(),
		Charisma:     roll(),
		Intelligence: roll(),
		Agility:      roll(),
		Luck:         roll(),
	}
}
