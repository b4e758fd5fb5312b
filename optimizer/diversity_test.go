package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stitts-dev/lineup-engine/types"
)

func TestDecayUsedPenalizesRosteredPlayers(t *testing.T) {
	pool := []types.Player{
		{ID: "a", ProjectedPoints: 40},
		{ID: "b", ProjectedPoints: 30},
		{ID: "c", ProjectedPoints: 20},
	}
	used := types.ScoredLineup{PlayerIDs: []string{"a", "c"}}

	decayUsed(pool, used, 0.5)

	assert.InDelta(t, 20, pool[0].ProjectedPoints, 1e-9)
	assert.InDelta(t, 30, pool[1].ProjectedPoints, 1e-9, "unused player untouched")
	assert.InDelta(t, 10, pool[2].ProjectedPoints, 1e-9)
}

func TestDecayUsedCompounds(t *testing.T) {
	pool := []types.Player{{ID: "a", ProjectedPoints: 40}}
	used := types.ScoredLineup{PlayerIDs: []string{"a"}}

	decayUsed(pool, used, 0.5)
	decayUsed(pool, used, 0.5)

	assert.InDelta(t, 10, pool[0].ProjectedPoints, 1e-9,
		"repeat winners decay multiplicatively across rounds")
}

func TestDecayUsedLeavesOtherStatsAlone(t *testing.T) {
	pool := []types.Player{{
		ID:              "a",
		Salary:          8000,
		ProjectedPoints: 40,
		FloorPoints:     25,
		CeilingPoints:   55,
		InjuryRisk:      0.2,
	}}
	used := types.ScoredLineup{PlayerIDs: []string{"a"}}

	decayUsed(pool, used, 0.4)

	assert.Equal(t, 8000, pool[0].Salary)
	assert.InDelta(t, 25, pool[0].FloorPoints, 1e-9)
	assert.InDelta(t, 55, pool[0].CeilingPoints, 1e-9)
	assert.InDelta(t, 0.2, pool[0].InjuryRisk, 1e-9)
}
