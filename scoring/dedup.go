package scoring

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/stitts-dev/lineup-engine/types"
)

// Dedup memoizes model responses by feature hash for the lifetime of one
// optimization request. Elites survive generations unchanged, so the same
// feature vector is scored dozens of times per run; a request-scoped cache
// keeps an expensive collaborator from seeing those repeats. Safe for
// concurrent use.
type Dedup struct {
	inner Model

	mu     sync.Mutex
	scores map[uint64]float64
}

// NewDedup wraps a model with request-lifetime feature-hash deduplication.
// Create one Dedup per optimization request; it is not meant to outlive it.
func NewDedup(inner Model) *Dedup {
	return &Dedup{
		inner:  inner,
		scores: make(map[uint64]float64),
	}
}

// NewDedupModel wraps inner with request-lifetime deduplication while
// preserving its shape: a batch collaborator stays a BatchModel, a per-call
// collaborator stays per-call. Shape matters to callers that treat batch
// and per-call failures differently.
func NewDedupModel(inner Model) Model {
	d := NewDedup(inner)
	if _, ok := inner.(BatchModel); ok {
		return d
	}
	return baseOnlyDedup{d}
}

// baseOnlyDedup hides Dedup's batch method so wrapping a per-call model
// does not change which scoring path the caller selects.
type baseOnlyDedup struct {
	d *Dedup
}

func (b baseOnlyDedup) ScoreBase(ctx context.Context, features types.LineupFeatures) (float64, error) {
	return b.d.ScoreBase(ctx, features)
}

// ScoreBase returns the cached score for features when present, otherwise
// delegates to the wrapped model and caches the result. Errors are not
// cached.
func (d *Dedup) ScoreBase(ctx context.Context, features types.LineupFeatures) (float64, error) {
	key := hashFeatures(features)

	d.mu.Lock()
	if score, ok := d.scores[key]; ok {
		d.mu.Unlock()
		return score, nil
	}
	d.mu.Unlock()

	score, err := d.inner.ScoreBase(ctx, features)
	if err != nil {
		return 0, err
	}

	d.mu.Lock()
	d.scores[key] = score
	d.mu.Unlock()
	return score, nil
}

// ScoreBatch serves cache hits locally and forwards only the misses,
// preserving positional alignment. When the wrapped model does not batch,
// misses fall back to sequential ScoreBase calls.
func (d *Dedup) ScoreBatch(ctx context.Context, features []types.LineupFeatures) ([]float64, error) {
	out := make([]float64, len(features))
	missIdx := make([]int, 0, len(features))

	d.mu.Lock()
	for i, f := range features {
		if score, ok := d.scores[hashFeatures(f)]; ok {
			out[i] = score
		} else {
			missIdx = append(missIdx, i)
		}
	}
	d.mu.Unlock()

	if len(missIdx) == 0 {
		return out, nil
	}

	missFeatures := make([]types.LineupFeatures, len(missIdx))
	for j, i := range missIdx {
		missFeatures[j] = features[i]
	}

	var missScores []float64
	var err error
	if bm, ok := d.inner.(BatchModel); ok {
		missScores, err = bm.ScoreBatch(ctx, missFeatures)
		if err != nil {
			return nil, err
		}
	} else {
		missScores = make([]float64, len(missFeatures))
		for j, f := range missFeatures {
			missScores[j], err = d.inner.ScoreBase(ctx, f)
			if err != nil {
				return nil, err
			}
		}
	}

	d.mu.Lock()
	for j, i := range missIdx {
		out[i] = missScores[j]
		d.scores[hashFeatures(features[i])] = missScores[j]
	}
	d.mu.Unlock()
	return out, nil
}

// hashFeatures packs the fixed-shape feature struct into a stable byte
// sequence and hashes it. Field order is fixed by the struct definition, so
// identical features always collide to the same key.
func hashFeatures(f types.LineupFeatures) uint64 {
	fields := [...]float64{
		f.LineupSize,
		f.TotalProjected,
		f.TotalFloor,
		f.TotalCeiling,
		f.FloorCeilingSpread,
		f.MeanConfidence,
		f.MeanInjuryRisk,
		f.MeanMatchupRating,
		f.PositionSpread,
		f.TeamDiversity,
		f.MeanOwnership,
		f.OwnershipStdDev,
		f.PointsPerSalary,
	}

	buf := make([]byte, 8*len(fields))
	for i, v := range fields {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return xxhash.Sum64(buf)
}
