package optimizer

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/lineup-engine/types"
)

var testTeams = []string{"ATL", "BOS", "CHI", "DEN"}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testLogEntry() *logrus.Entry {
	return testLogger().WithField("component", "test")
}

// testPool builds a 20-player pool: 8 guards and 12 forwards spread over
// four teams, with salaries and projections fanned out so weighted
// selection and salary repair both have real work to do.
func testPool() []types.Player {
	players := make([]types.Player, 0, 20)
	for i := 0; i < 8; i++ {
		players = append(players, types.Player{
			ID:              fmt.Sprintf("g%d", i+1),
			Name:            fmt.Sprintf("Guard %d", i+1),
			Team:            testTeams[i%4],
			Position:        "G",
			Salary:          5000 + i*400,
			ProjectedPoints: 20 + float64(i)*1.5,
			FloorPoints:     12 + float64(i),
			CeilingPoints:   30 + float64(i)*2,
			Ownership:       0.10 + float64(i)*0.02,
			Confidence:      0.60 + float64(i%4)*0.05,
			InjuryRisk:      0.05 + float64(i%3)*0.05,
			MatchupRating:   0.50 + float64(i%2)*0.03,
		})
	}
	for i := 0; i < 12; i++ {
		players = append(players, types.Player{
			ID:              fmt.Sprintf("f%d", i+1),
			Name:            fmt.Sprintf("Forward %d", i+1),
			Team:            testTeams[(i+1)%4],
			Position:        "F",
			Salary:          4200 + i*350,
			ProjectedPoints: 15 + float64(i)*1.2,
			FloorPoints:     9 + float64(i)*0.9,
			CeilingPoints:   22 + float64(i)*1.8,
			Ownership:       0.08 + float64(i)*0.015,
			Confidence:      0.55 + float64(i%5)*0.04,
			InjuryRisk:      0.04 + float64(i%4)*0.04,
			MatchupRating:   0.45 + float64(i%3)*0.02,
		})
	}
	return players
}

// testSpec asks for two guards and three forwards, no caps.
func testSpec() types.ConstraintSpec {
	return types.ConstraintSpec{
		Slots: types.ExactSlots(map[string]int{"G": 2, "F": 3}),
	}
}

func poolByID(pool []types.Player) map[string]types.Player {
	byID := make(map[string]types.Player, len(pool))
	for _, p := range pool {
		byID[p.ID] = p
	}
	return byID
}

// mustLineup assembles a lineup from player IDs given in slot order.
func mustLineup(t *testing.T, spec *types.ConstraintSpec, pool []types.Player, ids ...string) *lineup {
	t.Helper()
	byID := poolByID(pool)
	slots := buildSlotOrder(spec)
	players := make([]types.Player, len(ids))
	for i, id := range ids {
		p, ok := byID[id]
		require.True(t, ok, "player %s not in test pool", id)
		players[i] = p
	}
	return newLineup(players, slots)
}

// requireValidScored rebuilds the lineup a ScoredLineup came from and runs
// it back through constraint validation.
func requireValidScored(t *testing.T, sl types.ScoredLineup, spec *types.ConstraintSpec, pool []types.Player) {
	t.Helper()
	l := mustLineup(t, spec, pool, sl.PlayerIDs...)
	require.Nil(t, validateLineup(l, spec), "scored lineup violates constraints: %v", sl.PlayerIDs)
}

// stubModel scores deterministically from total projection so search
// results are reproducible under a fixed seed.
type stubModel struct {
	calls int32
}

func (m *stubModel) ScoreBase(_ context.Context, f types.LineupFeatures) (float64, error) {
	atomic.AddInt32(&m.calls, 1)
	return clampUnit(f.TotalProjected / 200), nil
}

// batchStubModel adds the batch path on top of stubModel.
type batchStubModel struct {
	stubModel
	batchCalls int32
}

func (m *batchStubModel) ScoreBatch(_ context.Context, features []types.LineupFeatures) ([]float64, error) {
	atomic.AddInt32(&m.batchCalls, 1)
	out := make([]float64, len(features))
	for i, f := range features {
		out[i] = clampUnit(f.TotalProjected / 200)
	}
	return out, nil
}

// failingModel is a dead collaborator.
type failingModel struct{}

func (failingModel) ScoreBase(context.Context, types.LineupFeatures) (float64, error) {
	return 0, fmt.Errorf("model offline")
}

// flakyModel fails every fifth call, simulating isolated upstream errors.
type flakyModel struct {
	calls int32
}

func (m *flakyModel) ScoreBase(_ context.Context, f types.LineupFeatures) (float64, error) {
	n := atomic.AddInt32(&m.calls, 1)
	if n%5 == 0 {
		return 0, fmt.Errorf("transient model error")
	}
	return clampUnit(f.TotalProjected / 200), nil
}
