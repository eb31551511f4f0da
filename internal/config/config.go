// Package config holds the daemon's runtime settings and the game
// balance table. Runtime settings come from environment variables;
// balance constants are compiled-in defaults that an optional YAML
// file can override for tuning without a rebuild.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Runtime is the daemon configuration parsed from the environment.
type Runtime struct {
	DBPath       string        `env:"VAULTKEEP_DB" envDefault:"data/vaultkeep.db"`
	TickInterval time.Duration `env:"VAULTKEEP_TICK_INTERVAL" envDefault:"1m"`
	Workers      int           `env:"VAULTKEEP_WORKERS" envDefault:"4"`
	Seed         int64         `env:"VAULTKEEP_SEED" envDefault:"0"` // 0 = crypto-seeded
	BalancePath  string        `env:"VAULTKEEP_BALANCE" envDefault:""`
	LogLevel     string        `env:"VAULTKEEP_LOG_LEVEL" envDefault:"info"`
	APIPort      int           `env:"VAULTKEEP_API_PORT" envDefault:"0"` // 0 = API disabled

	MinTickInterval   time.Duration `env:"VAULTKEEP_MIN_TICK" envDefault:"1m"`
	MaxOfflineCatchup time.Duration `env:"VAULTKEEP_MAX_CATCHUP" envDefault:"24h"`
}

// ParseEnv loads the runtime configuration from environment variables.
func ParseEnv() (Runtime, error) {
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return Runtime{}, fmt.Errorf("parse env: %w", err)
	}
	return rt, nil
}

// Balance holds every simulation rate, threshold, and cap. Injected
// into the subsystems at startup; never read from globals.
type Balance struct {
	Economy    EconomyBalance    `yaml:"economy"`
	Incident   IncidentBalance   `yaml:"incident"`
	Expedition ExpeditionBalance `yaml:"expedition"`
}

// EconomyBalance tunes resource production and consumption.
type EconomyBalance struct {
	// Consumption. Power accrues per room as rate×size×tier×seconds;
	// food and water accrue per inhabitant as rate×seconds.
	PowerRoomRate    float64 `yaml:"power_room_rate"`
	FoodRatePerHead  float64 `yaml:"food_rate_per_head"`
	WaterRatePerHead float64 `yaml:"water_rate_per_head"`

	// Production: output × stat sum × base rate × tier multiplier × seconds.
	ProductionBaseRate float64 `yaml:"production_base_rate"`
	TierMultiplierStep float64 `yaml:"tier_multiplier_step"` // tier mult = 1 + step×(tier−1)

	// Warning thresholds as fractions of capacity.
	LowThreshold      float64 `yaml:"low_threshold"`
	CriticalThreshold float64 `yaml:"critical_threshold"`
}

// TierMultiplier returns the production multiplier for a room tier.
func (e EconomyBalance) TierMultiplier(tier int) float64 {
	if tier < 1 {
		tier = 1
	}
	return 1 + e.TierMultiplierStep*float64(tier-1)
}

// IncidentBalance tunes hazard spawn, combat, and loot.
type IncidentBalance struct {
	MinPopulation  int     `yaml:"min_population"`
	BaseHourlyRate float64 `yaml:"base_hourly_rate"` // spawn probability per hour of elapsed time

	// Difficulty 1–10 weights, rising to the middle then falling.
	DifficultyWeights []int `yaml:"difficulty_weights"`

	// Combat power.
	HazardPowerPerDifficulty float64 `yaml:"hazard_power_per_difficulty"`
	HazardPowerPerEnemy      float64 `yaml:"hazard_power_per_enemy"`
	StrengthWeight           float64 `yaml:"strength_weight"`
	EnduranceWeight          float64 `yaml:"endurance_weight"`
	AgilityWeight            float64 `yaml:"agility_weight"`
	LevelBonus               float64 `yaml:"level_bonus"` // per inhabitant level

	// Victory at enemies defeated ≥ difficulty × VictoryMultiplier.
	VictoryMultiplier int `yaml:"victory_multiplier"`

	// Spreading: only after DurationSeconds with no defenders, up to
	// SpreadCap hops.
	DurationSeconds float64 `yaml:"duration_seconds"`
	SpreadCap       int     `yaml:"spread_cap"`

	// Loot on success.
	NamedItemChancePerDifficulty float64 `yaml:"named_item_chance_per_difficulty"`
	CapsPerDifficulty            int64   `yaml:"caps_per_difficulty"`
}

// ExpeditionBalance tunes outside-zone event generation and rewards.
type ExpeditionBalance struct {
	EventIntervalSeconds float64 `yaml:"event_interval_seconds"`

	// Experience formula: distance×XPPerDistance + enemies×XPPerEnemy +
	// events×XPPerEvent, then survival and luck bonuses.
	XPPerDistance float64 `yaml:"xp_per_distance"`
	XPPerEnemy    float64 `yaml:"xp_per_enemy"`
	XPPerEvent    float64 `yaml:"xp_per_event"`

	SurvivalHealthFraction float64 `yaml:"survival_health_fraction"` // bonus gate, fraction of max health
	SurvivalBonus          float64 `yaml:"survival_bonus"`
	LuckBonusPerPoint      float64 `yaml:"luck_bonus_per_point"`

	CapsBase         int64   `yaml:"caps_base"`          // base caps per loot discovery
	CapsPerLuck      int64   `yaml:"caps_per_luck"`      // added per luck point
	DangerBaseDamage float64 `yaml:"danger_base_damage"` // scaled by the wasteland danger field
}

// Defaults returns the compiled-in balance table.
func Defaults() Balance {
	return Balance{
		Economy: EconomyBalance{
			PowerRoomRate:      0.02,
			FoodRatePerHead:    0.012,
			WaterRatePerHead:   0.012,
			ProductionBaseRate: 0.1,
			TierMultiplierStep: 0.25,
			LowThreshold:       0.20,
			CriticalThreshold:  0.05,
		},
		Incident: IncidentBalance{
			MinPopulation:                5,
			BaseHourlyRate:               0.15,
			DifficultyWeights:            []int{1, 2, 3, 4, 5, 5, 4, 3, 2, 1},
			HazardPowerPerDifficulty:     12,
			HazardPowerPerEnemy:          25,
			StrengthWeight:               0.5,
			EnduranceWeight:              0.3,
			AgilityWeight:                0.2,
			LevelBonus:                   0.5,
			VictoryMultiplier:            2,
			DurationSeconds:              120,
			SpreadCap:                    3,
			NamedItemChancePerDifficulty: 0.08,
			CapsPerDifficulty:            50,
		},
		Expedition: ExpeditionBalance{
			EventIntervalSeconds:   300,
			XPPerDistance:          12,
			XPPerEnemy:             35,
			XPPerEvent:             8,
			SurvivalHealthFraction: 0.7,
			SurvivalBonus:          0.2,
			LuckBonusPerPoint:      0.02,
			CapsBase:               20,
			CapsPerLuck:            8,
			DangerBaseDamage:       8,
		},
	}
}

// LoadBalance returns the defaults, overlaid with a YAML file when
// path is non-empty.
func LoadBalance(path string) (Balance, error) {
	bal := Defaults()
	if path == "" {
		return bal, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance file: %w", err)
	}
	if err := yaml.Unmarshal(data, &bal); err != nil {
		return Balance{}, fmt.Errorf("parse balance file: %w", err)
	}
	return bal, nil
}
