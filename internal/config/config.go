// Package config provides environment-driven runtime configuration.
// Balance constants default to the shipped tuning and can be overridden per
// deployment without rebuilding.
package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"

	"github.com/talgya/virus-sandbox/internal/engine"
)

// Config holds all runtime settings.
type Config struct {
	CatalogPath string `env:"VIRUS_CATALOG" envDefault:"data/catalog.yaml"`
	DBPath      string `env:"VIRUS_DB" envDefault:"data/virus-sandbox.db"`
	Port        int    `env:"VIRUS_PORT" envDefault:"8080"`

	// AdminKey is the bearer token for command endpoints. Empty disables
	// them.
	AdminKey string `env:"VIRUS_ADMIN_KEY"`

	// Seed pins the per-session random seed. Zero draws a fresh seed per
	// session.
	Seed int64 `env:"VIRUS_SEED" envDefault:"0"`

	// Economy and build-phase constants.
	StartingEP      int `env:"VIRUS_STARTING_EP" envDefault:"100"`
	DeckSize        int `env:"VIRUS_DECK_SIZE" envDefault:"10"`
	PolymeraseLimit int `env:"VIRUS_POLYMERASE_LIMIT" envDefault:"1"`

	// Simulation balance constants.
	VictoryThreshold int     `env:"VIRUS_VICTORY_THRESHOLD" envDefault:"10000"`
	HistoryLimit     int     `env:"VIRUS_HISTORY_LIMIT" envDefault:"50"`
	InterferonDecay  float64 `env:"VIRUS_INTERFERON_DECAY" envDefault:"2.0"`
	BaseDegradation  float64 `env:"VIRUS_BASE_DEGRADATION" envDefault:"0.02"`
	YieldStride      int     `env:"VIRUS_YIELD_STRIDE" envDefault:"5"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// EngineParams maps the simulation constants into engine parameters.
func (c Config) EngineParams() engine.Params {
	return engine.Params{
		VictoryThreshold: c.VictoryThreshold,
		HistoryLimit:     c.HistoryLimit,
		InterferonDecay:  c.InterferonDecay,
		BaseDegradation:  c.BaseDegradation,
		YieldStride:      c.YieldStride,
	}
}
