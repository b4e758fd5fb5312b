package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 100, cfg.PopulationSize)
	assert.Equal(t, 50, cfg.Generations)
	assert.Equal(t, 20, cfg.EliteCount)
	assert.InDelta(t, 0.10, cfg.MutationRate, 1e-9)
	assert.Equal(t, 10, cfg.RetryMultiplier)
	assert.Equal(t, 0, cfg.FitnessWorkers)
	assert.Equal(t, 10*time.Second, cfg.ScoringTimeout)
}

func TestLoadWithoutEnvironment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LINEUP_POPULATION_SIZE", "64")
	t.Setenv("LINEUP_GENERATIONS", "25")
	t.Setenv("LINEUP_MUTATION_RATE", "0.25")
	t.Setenv("LINEUP_FITNESS_WORKERS", "4")
	t.Setenv("LINEUP_SCORING_TIMEOUT", "2s")

	cfg := FromEnv()
	assert.Equal(t, 64, cfg.PopulationSize)
	assert.Equal(t, 25, cfg.Generations)
	assert.InDelta(t, 0.25, cfg.MutationRate, 1e-9)
	assert.Equal(t, 4, cfg.FitnessWorkers)
	assert.Equal(t, 2*time.Second, cfg.ScoringTimeout)

	// Untouched knobs keep their defaults.
	assert.Equal(t, 20, cfg.EliteCount)
	assert.Equal(t, 10, cfg.RetryMultiplier)
}

func TestLoadReportsMalformedValues(t *testing.T) {
	t.Setenv("LINEUP_GENERATIONS", "plenty")

	_, err := Load()
	require.Error(t, err)
}

func TestFromEnvFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("LINEUP_GENERATIONS", "plenty")
	t.Setenv("LINEUP_SCORING_TIMEOUT", "soon")

	cfg := FromEnv()
	assert.Equal(t, Defaults(), cfg)
}
