package optimizer

import (
	"context"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/lineup-engine/scoring"
	"github.com/stitts-dev/lineup-engine/types"
)

// generatePortfolio produces count lineups for multi-entry play. Each
// round runs the full generator-plus-search pipeline; before every round
// after the first, the projections of players used by the previous output
// are decayed by (1 - diversityFactor) on a working copy of the pool.
// The decay compounds for players that keep winning rounds, so exposure
// bookkeeping is cumulative across the whole batch. Overlap shrinks as
// the factor grows without ever being forbidden outright; a hard
// anti-overlap rule would over-constrain small pools.
func (e *Engine) generatePortfolio(ctx context.Context, req *Request, count int, model scoring.Model, table *CorrelationTable, rng *rand.Rand, log *logrus.Entry) ([]types.ScoredLineup, int, error) {
	pool := make([]types.Player, len(req.Players))
	copy(pool, req.Players)

	lineups := make([]types.ScoredLineup, 0, count)
	generations := 0

	for round := 0; round < count; round++ {
		if err := ctx.Err(); err != nil {
			return nil, generations, err
		}

		if round > 0 && req.DiversityFactor > 0 {
			decayUsed(pool, lineups[round-1], req.DiversityFactor)
		}

		ranked, err := e.runSearch(ctx, pool, &req.Spec, req.Strategy, model, table, rng, log)
		if err != nil {
			return nil, generations, err
		}
		generations += e.cfg.Generations

		best := ranked[0]
		lineups = append(lineups, best)
		log.WithFields(logrus.Fields{
			"round":           round + 1,
			"fitness":         best.Fitness,
			"total_projected": best.TotalProjected,
		}).Debug("Portfolio round completed")
	}
	return lineups, generations, nil
}

// decayUsed penalizes the projection of every pool player rostered by the
// given lineup. Salary, floor, ceiling, and risk survive untouched: the
// decay only steers future draws and fitness away from repeats.
func decayUsed(pool []types.Player, used types.ScoredLineup, diversityFactor float64) {
	for i := range pool {
		if used.Contains(pool[i].ID) {
			pool[i].ProjectedPoints *= 1 - diversityFactor
		}
	}
}
