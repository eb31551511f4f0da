// Package persistence provides SQLite-backed vault state storage.
// Implements the orchestrator's Store interface: state is loaded as a
// bundle per vault and saved with full-replace transactions.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/hollowvale/vaultkeep/internal/engine"
	"github.com/hollowvale/vaultkeep/internal/expedition"
	"github.com/hollowvale/vaultkeep/internal/fault"
	"github.com/hollowvale/vaultkeep/internal/incident"
	"github.com/hollowvale/vaultkeep/internal/vault"
)

// DB wraps a SQLite connection for vault state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vaults (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		power_amount REAL NOT NULL,
		power_capacity REAL NOT NULL,
		food_amount REAL NOT NULL,
		food_capacity REAL NOT NULL,
		water_amount REAL NOT NULL,
		water_capacity REAL NOT NULL,
		caps INTEGER NOT NULL,
		happiness REAL NOT NULL,
		last_tick INTEGER NOT NULL,
		active INTEGER NOT NULL,
		paused INTEGER NOT NULL,
		sim_seconds INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category INTEGER NOT NULL,
		ability INTEGER NOT NULL,
		tier INTEGER NOT NULL,
		size INTEGER NOT NULL,
		output REAL NOT NULL,
		entry INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS inhabitants (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		name TEXT NOT NULL,
		room_id TEXT,
		stats_json TEXT NOT NULL,
		health REAL NOT NULL,
		max_health REAL NOT NULL,
		happiness REAL NOT NULL,
		experience INTEGER NOT NULL,
		level INTEGER NOT NULL,
		status INTEGER NOT NULL,
		weapon_json TEXT
	);

	CREATE TABLE IF NOT EXISTS incidents (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		room_id TEXT NOT NULL,
		type INTEGER NOT NULL,
		status INTEGER NOT NULL,
		difficulty INTEGER NOT NULL,
		damage_dealt REAL NOT NULL,
		enemies_defeated REAL NOT NULL,
		spread_count INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		loot_json TEXT NOT NULL,
		caps_reward INTEGER NOT NULL,
		transitions_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS expeditions (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL,
		inhabitant_id TEXT NOT NULL,
		status INTEGER NOT NULL,
		duration_seconds REAL NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		snapshot_json TEXT NOT NULL,
		distance REAL NOT NULL,
		caps_found INTEGER NOT NULL,
		enemies_encountered INTEGER NOT NULL,
		events_json TEXT NOT NULL,
		loot_json TEXT NOT NULL,
		last_event_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS storages (
		id TEXT PRIMARY KEY,
		vault_id TEXT NOT NULL UNIQUE,
		capacity INTEGER NOT NULL,
		items_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_vault ON rooms(vault_id);
	CREATE INDEX IF NOT EXISTS idx_inhabitants_vault ON inhabitants(vault_id);
	CREATE INDEX IF NOT EXISTS idx_incidents_vault ON incidents(vault_id);
	CREATE INDEX IF NOT EXISTS idx_expeditions_vault ON expeditions(vault_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// ListVaults returns the IDs of all stored vaults.
func (db *DB) ListVaults(ctx context.Context) ([]uuid.UUID, error) {
	var raw []string
	if err := db.conn.SelectContext(ctx, &raw, "SELECT id FROM vaults ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, fmt.Errorf("parse vault id %q: %w", r, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LoadState loads the complete state bundle for one vault.
func (db *DB) LoadState(ctx context.Context, vaultID uuid.UUID) (*engine.State, error) {
	v, err := db.loadVault(ctx, vaultID)
	if err != nil {
		return nil, err
	}

	st := &engine.State{Vault: v}
	if st.Rooms, err = db.loadRooms(ctx, vaultID); err != nil {
		return nil, err
	}
	if st.Inhabitants, err = db.loadInhabitants(ctx, vaultID); err != nil {
		return nil, err
	}
	if st.Incidents, err = db.loadIncidents(ctx, vaultID); err != nil {
		return nil, err
	}
	if st.Expeditions, err = db.loadExpeditions(ctx, vaultID); err != nil {
		return nil, err
	}
	if st.Storage, err = db.loadStorage(ctx, vaultID); err != nil {
		return nil, err
	}
	return st, nil
}

func (db *DB) loadVault(ctx context.Context, id uuid.UUID) (*vault.Vault, error) {
	var row struct {
		ID            string  `db:"id"`
		Name          string  `db:"name"`
		PowerAmount   float64 `db:"power_amount"`
		PowerCapacity float64 `db:"power_capacity"`
		FoodAmount    float64 `db:"food_amount"`
		FoodCapacity  float64 `db:"food_capacity"`
		WaterAmount   float64 `db:"water_amount"`
		WaterCapacity float64 `db:"water_capacity"`
		Caps          int64   `db:"caps"`
		Happiness     float64 `db:"happiness"`
		LastTick      int64   `db:"last_tick"`
		Active        bool    `db:"active"`
		Paused        bool    `db:"paused"`
		SimSeconds    int64   `db:"sim_seconds"`
	}
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM vaults WHERE id = ?", id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("vault %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load vault %s: %w", id, err)
	}

	return &vault.Vault{
		ID:         id,
		Name:       row.Name,
		Power:      vault.Gauge{Amount: row.PowerAmount, Capacity: row.PowerCapacity},
		Food:       vault.Gauge{Amount: row.FoodAmount, Capacity: row.FoodCapacity},
		Water:      vault.Gauge{Amount: row.WaterAmount, Capacity: row.WaterCapacity},
		Caps:       row.Caps,
		Happiness:  row.Happiness,
		LastTick:   time.Unix(row.LastTick, 0).UTC(),
		Active:     row.Active,
		Paused:     row.Paused,
		SimSeconds: row.SimSeconds,
	}, nil
}

func (db *DB) loadRooms(ctx context.Context, vaultID uuid.UUID) ([]*vault.Room, error) {
	var rows []struct {
		ID       string  `db:"id"`
		VaultID  string  `db:"vault_id"`
		Name     string  `db:"name"`
		Category uint8   `db:"category"`
		Ability  uint8   `db:"ability"`
		Tier     int     `db:"tier"`
		Size     int     `db:"size"`
		Output   float64 `db:"output"`
		Entry    bool    `db:"entry"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM rooms WHERE vault_id = ?", vaultID.String()); err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}

	out := make([]*vault.Room, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse room id %q: %w", r.ID, err)
		}
		out = append(out, &vault.Room{
			ID:       id,
			VaultID:  vaultID,
			Name:     r.Name,
			Category: vault.RoomCategory(r.Category),
			Ability:  vault.Ability(r.Ability),
			Tier:     r.Tier,
			Size:     r.Size,
			Output:   r.Output,
			Entry:    r.Entry,
		})
	}
	return out, nil
}

func (db *DB) loadInhabitants(ctx context.Context, vaultID uuid.UUID) ([]*vault.Inhabitant, error) {
	var rows []struct {
		ID         string  `db:"id"`
		VaultID    string  `db:"vault_id"`
		Name       string  `db:"name"`
		RoomID     *string `db:"room_id"`
		StatsJSON  string  `db:"stats_json"`
		Health     float64 `db:"health"`
		MaxHealth  float64 `db:"max_health"`
		Happiness  float64 `db:"happiness"`
		Experience int64   `db:"experience"`
		Level      int     `db:"level"`
		Status     uint8   `db:"status"`
		WeaponJSON *string `db:"weapon_json"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM inhabitants WHERE vault_id = ?", vaultID.String()); err != nil {
		return nil, fmt.Errorf("load inhabitants: %w", err)
	}

	out := make([]*vault.Inhabitant, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse inhabitant id %q: %w", r.ID, err)
		}
		inh := &vault.Inhabitant{
			ID:         id,
			VaultID:    vaultID,
			Name:       r.Name,
			Health:     r.Health,
			MaxHealth:  r.MaxHealth,
			Happiness:  r.Happiness,
			Experience: r.Experience,
			Level:      r.Level,
			Status:     vault.Status(r.Status),
		}
		if err := json.Unmarshal([]byte(r.StatsJSON), &inh.Stats); err != nil {
			return nil, fmt.Errorf("parse stats for %s: %w", id, err)
		}
		if r.RoomID != nil {
			roomID, err := uuid.Parse(*r.RoomID)
			if err != nil {
				return nil, fmt.Errorf("parse room id %q: %w", *r.RoomID, err)
			}
			inh.RoomID = &roomID
		}
		if r.WeaponJSON != nil && *r.WeaponJSON != "" {
			inh.Weapon = &vault.Weapon{}
			if err := json.Unmarshal([]byte(*r.WeaponJSON), inh.Weapon); err != nil {
				return nil, fmt.Errorf("parse weapon for %s: %w", id, err)
			}
		}
		out = append(out, inh)
	}
	return out, nil
}

func (db *DB) loadIncidents(ctx context.Context, vaultID uuid.UUID) ([]*incident.Incident, error) {
	var rows []struct {
		ID              string  `db:"id"`
		VaultID         string  `db:"vault_id"`
		RoomID          string  `db:"room_id"`
		Type            uint8   `db:"type"`
		Status          uint8   `db:"status"`
		Difficulty      int     `db:"difficulty"`
		DamageDealt     float64 `db:"damage_dealt"`
		EnemiesDefeated float64 `db:"enemies_defeated"`
		SpreadCount     int     `db:"spread_count"`
		StartedAt       int64   `db:"started_at"`
		LootJSON        string  `db:"loot_json"`
		CapsReward      int64   `db:"caps_reward"`
		TransitionsJSON string  `db:"transitions_json"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM incidents WHERE vault_id = ?", vaultID.String()); err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}

	out := make([]*incident.Incident, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse incident id %q: %w", r.ID, err)
		}
		roomID, err := uuid.Parse(r.RoomID)
		if err != nil {
			return nil, fmt.Errorf("parse incident room id %q: %w", r.RoomID, err)
		}
		inc := &incident.Incident{
			ID:              id,
			VaultID:         vaultID,
			RoomID:          roomID,
			Type:            incident.Type(r.Type),
			Status:          incident.Status(r.Status),
			Difficulty:      r.Difficulty,
			DamageDealt:     r.DamageDealt,
			EnemiesDefeated: r.EnemiesDefeated,
			SpreadCount:     r.SpreadCount,
			StartedAt:       time.Unix(r.StartedAt, 0).UTC(),
			CapsReward:      r.CapsReward,
		}
		if err := json.Unmarshal([]byte(r.LootJSON), &inc.Loot); err != nil {
			return nil, fmt.Errorf("parse incident loot for %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(r.TransitionsJSON), &inc.Transitions); err != nil {
			return nil, fmt.Errorf("parse incident transitions for %s: %w", id, err)
		}
		out = append(out, inc)
	}
	return out, nil
}

func (db *DB) loadExpeditions(ctx context.Context, vaultID uuid.UUID) ([]*expedition.Expedition, error) {
	var rows []struct {
		ID                 string  `db:"id"`
		VaultID            string  `db:"vault_id"`
		InhabitantID       string  `db:"inhabitant_id"`
		Status             uint8   `db:"status"`
		DurationSeconds    float64 `db:"duration_seconds"`
		StartedAt          int64   `db:"started_at"`
		EndedAt            *int64  `db:"ended_at"`
		SnapshotJSON       string  `db:"snapshot_json"`
		Distance           float64 `db:"distance"`
		CapsFound          int64   `db:"caps_found"`
		EnemiesEncountered int     `db:"enemies_encountered"`
		EventsJSON         string  `db:"events_json"`
		LootJSON           string  `db:"loot_json"`
		LastEventAt        int64   `db:"last_event_at"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM expeditions WHERE vault_id = ?", vaultID.String()); err != nil {
		return nil, fmt.Errorf("load expeditions: %w", err)
	}

	out := make([]*expedition.Expedition, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("parse expedition id %q: %w", r.ID, err)
		}
		inhID, err := uuid.Parse(r.InhabitantID)
		if err != nil {
			return nil, fmt.Errorf("parse expedition inhabitant id %q: %w", r.InhabitantID, err)
		}
		exp := &expedition.Expedition{
			ID:                 id,
			VaultID:            vaultID,
			InhabitantID:       inhID,
			Status:             expedition.Status(r.Status),
			Duration:           time.Duration(r.DurationSeconds * float64(time.Second)),
			StartedAt:          time.Unix(r.StartedAt, 0).UTC(),
			Distance:           r.Distance,
			CapsFound:          r.CapsFound,
			EnemiesEncountered: r.EnemiesEncountered,
			LastEventAt:        time.Unix(r.LastEventAt, 0).UTC(),
		}
		if r.EndedAt != nil {
			ended := time.Unix(*r.EndedAt, 0).UTC()
			exp.EndedAt = &ended
		}
		if err := json.Unmarshal([]byte(r.SnapshotJSON), &exp.Snapshot); err != nil {
			return nil, fmt.Errorf("parse expedition snapshot for %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(r.EventsJSON), &exp.Events); err != nil {
			return nil, fmt.Errorf("parse expedition events for %s: %w", id, err)
		}
		if err := json.Unmarshal([]byte(r.LootJSON), &exp.Loot); err != nil {
			return nil, fmt.Errorf("parse expedition loot for %s: %w", id, err)
		}
		out = append(out, exp)
	}
	return out, nil
}

func (db *DB) loadStorage(ctx context.Context, vaultID uuid.UUID) (*vault.Storage, error) {
	var row struct {
		ID        string `db:"id"`
		VaultID   string `db:"vault_id"`
		Capacity  int    `db:"capacity"`
		ItemsJSON string `db:"items_json"`
	}
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM storages WHERE vault_id = ?", vaultID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fault.NotFound("storage for vault %s not found", vaultID)
	}
	if err != nil {
		return nil, fmt.Errorf("load storage: %w", err)
	}

	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse storage id %q: %w", row.ID, err)
	}
	st := &vault.Storage{ID: id, VaultID: vaultID, Capacity: row.Capacity}
	if err := json.Unmarshal([]byte(row.ItemsJSON), &st.Items); err != nil {
		return nil, fmt.Errorf("parse storage items: %w", err)
	}
	return st, nil
}

// SaveState writes a vault's complete state bundle in one transaction,
// full-replacing the vault's child rows in the format LoadState reads.
func (db *DB) SaveState(ctx context.Context, st *engine.State) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	v := st.Vault
	vid := v.ID.String()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO vaults
		(id, name, power_amount, power_capacity, food_amount, food_capacity,
		 water_amount, water_capacity, caps, happiness, last_tick, active, paused, sim_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		vid, v.Name, v.Power.Amount, v.Power.Capacity, v.Food.Amount, v.Food.Capacity,
		v.Water.Amount, v.Water.Capacity, v.Caps, v.Happiness,
		v.LastTick.Unix(), v.Active, v.Paused, v.SimSeconds,
	)
	if err != nil {
		return fmt.Errorf("save vault %s: %w", v.ID, err)
	}

	for _, table := range []string{"rooms", "inhabitants", "incidents", "expeditions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE vault_id = ?", vid); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, r := range st.Rooms {
		_, err := tx.ExecContext(ctx, `INSERT INTO rooms
			(id, vault_id, name, category, ability, tier, size, output, entry)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), vid, r.Name, r.Category, r.Ability, r.Tier, r.Size, r.Output, r.Entry,
		)
		if err != nil {
			return fmt.Errorf("save room %s: %w", r.ID, err)
		}
	}

	for _, inh := range st.Inhabitants {
		statsJSON, _ := json.Marshal(inh.Stats)
		var roomID *string
		if inh.RoomID != nil {
			s := inh.RoomID.String()
			roomID = &s
		}
		var weaponJSON *string
		if inh.Weapon != nil {
			b, _ := json.Marshal(inh.Weapon)
			s := string(b)
			weaponJSON = &s
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO inhabitants
			(id, vault_id, name, room_id, stats_json, health, max_health,
			 happiness, experience, level, status, weapon_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inh.ID.String(), vid, inh.Name, roomID, string(statsJSON),
			inh.Health, inh.MaxHealth, inh.Happiness, inh.Experience, inh.Level, inh.Status, weaponJSON,
		)
		if err != nil {
			return fmt.Errorf("save inhabitant %s: %w", inh.ID, err)
		}
	}

	for _, inc := range st.Incidents {
		lootJSON, _ := json.Marshal(inc.Loot)
		transJSON, _ := json.Marshal(inc.Transitions)
		_, err := tx.ExecContext(ctx, `INSERT INTO incidents
			(id, vault_id, room_id, type, status, difficulty, damage_dealt,
			 enemies_defeated, spread_count, started_at, loot_json, caps_reward, transitions_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inc.ID.String(), vid, inc.RoomID.String(), inc.Type, inc.Status, inc.Difficulty,
			inc.DamageDealt, inc.EnemiesDefeated, inc.SpreadCount, inc.StartedAt.Unix(),
			string(lootJSON), inc.CapsReward, string(transJSON),
		)
		if err != nil {
			return fmt.Errorf("save incident %s: %w", inc.ID, err)
		}
	}

	for _, exp := range st.Expeditions {
		snapJSON, _ := json.Marshal(exp.Snapshot)
		eventsJSON, _ := json.Marshal(exp.Events)
		lootJSON, _ := json.Marshal(exp.Loot)
		var ended *int64
		if exp.EndedAt != nil {
			t := exp.EndedAt.Unix()
			ended = &t
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO expeditions
			(id, vault_id, inhabitant_id, status, duration_seconds, started_at, ended_at,
			 snapshot_json, distance, caps_found, enemies_encountered, events_json, loot_json, last_event_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			exp.ID.String(), vid, exp.InhabitantID.String(), exp.Status,
			exp.Duration.Seconds(), exp.StartedAt.Unix(), ended,
			string(snapJSON), exp.Distance, exp.CapsFound, exp.EnemiesEncountered,
			string(eventsJSON), string(lootJSON), exp.LastEventAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("save expedition %s: %w", exp.ID, err)
		}
	}

	if st.Storage != nil {
		itemsJSON, _ := json.Marshal(st.Storage.Items)
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO storages
			(id, vault_id, capacity, items_json) VALUES (?, ?, ?, ?)`,
			st.Storage.ID.String(), vid, st.Storage.Capacity, string(itemsJSON),
		)
		if err != nil {
			return fmt.Errorf("save storage %s: %w", st.Storage.ID, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in the meta table.
func (db *DB) SaveMeta(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.GetContext(ctx, &value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fault.NotFound("meta key %q not found", key)
	}
	return value, err
}
