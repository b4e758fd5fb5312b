// Package scoring defines the interface to the externally-owned learned
// scoring model and the client adapters the engine ships with. The model is
// a collaborator: the engine hands it a lineup's feature summary and gets a
// base quality estimate back. How the model computes that estimate is not
// this module's concern.
package scoring

import (
	"context"
	"fmt"

	"github.com/stitts-dev/lineup-engine/types"
)

// Model scores one lineup feature summary, returning a value in [0,1].
// Implementations must be safe for concurrent use: the engine calls
// ScoreBase from its fitness worker pool.
type Model interface {
	ScoreBase(ctx context.Context, features types.LineupFeatures) (float64, error)
}

// BatchModel is implemented by collaborators that accept a whole
// generation's feature summaries in one round trip. The engine prefers the
// batch path when available.
type BatchModel interface {
	Model
	ScoreBatch(ctx context.Context, features []types.LineupFeatures) ([]float64, error)
}

// validateScore rejects collaborator responses outside the contract range.
func validateScore(score float64) (float64, error) {
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("model returned score %.4f outside [0,1]", score)
	}
	return score, nil
}
