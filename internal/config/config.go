// Package config resolves engine tuning knobs. Every knob has a built-in
// default so the engine works with no configuration at all; operators
// override individual values with LINEUP_* environment variables or a .env
// file in the working directory.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Engine holds the search tuning parameters.
type Engine struct {
	PopulationSize  int           `mapstructure:"LINEUP_POPULATION_SIZE"`  // lineups per generation
	Generations     int           `mapstructure:"LINEUP_GENERATIONS"`      // fixed generation budget
	EliteCount      int           `mapstructure:"LINEUP_ELITE_COUNT"`      // top scorers carried over unchanged
	MutationRate    float64       `mapstructure:"LINEUP_MUTATION_RATE"`    // per-offspring swap probability
	RetryMultiplier int           `mapstructure:"LINEUP_RETRY_MULTIPLIER"` // retry budget = multiplier x requested draws
	FitnessWorkers  int           `mapstructure:"LINEUP_FITNESS_WORKERS"`  // bounded fitness worker pool, 0 = GOMAXPROCS
	ScoringTimeout  time.Duration `mapstructure:"LINEUP_SCORING_TIMEOUT"`  // cap on one generation's scoring phase, 0 = none
}

// Defaults returns the built-in tuning values.
func Defaults() Engine {
	return Engine{
		PopulationSize:  100,
		Generations:     50,
		EliteCount:      20,
		MutationRate:    0.10,
		RetryMultiplier: 10,
		FitnessWorkers:  0,
		ScoringTimeout:  10 * time.Second,
	}
}

// Load resolves tuning from defaults, a .env config file when present, and
// LINEUP_* environment variables, in increasing precedence.
func Load() (Engine, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// Defaults double as key registration: AutomaticEnv only surfaces
	// variables viper already knows about during Unmarshal.
	d := Defaults()
	v.SetDefault("LINEUP_POPULATION_SIZE", d.PopulationSize)
	v.SetDefault("LINEUP_GENERATIONS", d.Generations)
	v.SetDefault("LINEUP_ELITE_COUNT", d.EliteCount)
	v.SetDefault("LINEUP_MUTATION_RATE", d.MutationRate)
	v.SetDefault("LINEUP_RETRY_MULTIPLIER", d.RetryMultiplier)
	v.SetDefault("LINEUP_FITNESS_WORKERS", d.FitnessWorkers)
	v.SetDefault("LINEUP_SCORING_TIMEOUT", d.ScoringTimeout.String())

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Engine{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Engine
	if err := v.Unmarshal(&cfg); err != nil {
		return Engine{}, fmt.Errorf("unable to decode engine config: %w", err)
	}
	return cfg, nil
}

// FromEnv is Load for callers that cannot act on a config error: malformed
// values fall back to the built-in defaults wholesale.
func FromEnv() Engine {
	cfg, err := Load()
	if err != nil {
		return Defaults()
	}
	return cfg
}
