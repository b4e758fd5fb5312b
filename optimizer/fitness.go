package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/stitts-dev/lineup-engine/scoring"
	"github.com/stitts-dev/lineup-engine/types"
)

// Fitness blend and penalty shape. The learned base score and the strategy
// heuristic contribute equally; risk scales the product down unless the
// strategy tolerates it.
const (
	baseBlendWeight      = 0.5
	heuristicBlendWeight = 0.5

	riskInjuryWeight     = 0.4
	riskConfidenceWeight = 0.3
	riskVolatilityWeight = 0.3

	correlationHeuristicBase  = 0.7
	correlationHeuristicScale = 0.3

	pairingStep = 0.02
	pairingCap  = 0.10
)

// fitnessEvaluator turns a lineup into a ScoredLineup by blending the
// external model's base score with the strategy heuristic, then applying
// risk, correlation, and exposure adjustments. The evaluator holds no
// mutable state after construction, so one instance serves the whole
// fitness worker pool.
type fitnessEvaluator struct {
	table    *CorrelationTable
	model    scoring.Model
	strategy types.Strategy
	pairings []types.PairingRule

	// Per-pool normalizers: lineup size x pool maximum of each stat, so a
	// lineup of the pool's best players normalizes to 1.0.
	normProjected float64
	normFloor     float64
	normCeiling   float64

	log *logrus.Entry
}

func newFitnessEvaluator(pool []types.Player, lineupSize int, table *CorrelationTable, model scoring.Model, strategy types.Strategy, pairings []types.PairingRule, log *logrus.Entry) *fitnessEvaluator {
	var maxProjected, maxFloor, maxCeiling float64
	for _, p := range pool {
		maxProjected = math.Max(maxProjected, p.ProjectedPoints)
		maxFloor = math.Max(maxFloor, p.FloorPoints)
		maxCeiling = math.Max(maxCeiling, p.CeilingPoints)
	}

	size := float64(lineupSize)
	return &fitnessEvaluator{
		table:         table,
		model:         model,
		strategy:      strategy,
		pairings:      pairings,
		normProjected: nonZero(size * maxProjected),
		normFloor:     nonZero(size * maxFloor),
		normCeiling:   nonZero(size * maxCeiling),
		log:           log,
	}
}

// Score runs the full pipeline for one lineup: feature extraction, the
// external model call with heuristic-only fallback, then finalize. The only
// returned error is context cancellation; model failures degrade instead.
func (fe *fitnessEvaluator) Score(ctx context.Context, l *lineup) (types.ScoredLineup, error) {
	features, err := fe.features(l)
	if err != nil {
		return types.ScoredLineup{}, err
	}

	base, err := fe.model.ScoreBase(ctx, features)
	if err != nil {
		if ctx.Err() != nil {
			return types.ScoredLineup{}, ctx.Err()
		}
		fe.log.WithError(err).Warn("Scoring model call failed, falling back to heuristic-only fitness")
		return fe.finalize(l, 0, true), nil
	}
	return fe.finalize(l, base, false), nil
}

// features builds the fixed-shape summary the scoring model consumes. An
// empty lineup cannot populate it and is rejected rather than zero-padded.
func (fe *fitnessEvaluator) features(l *lineup) (types.LineupFeatures, error) {
	n := l.size()
	if n == 0 {
		return types.LineupFeatures{}, fmt.Errorf("cannot build features for empty lineup")
	}

	confidences := make([]float64, n)
	risks := make([]float64, n)
	matchups := make([]float64, n)
	ownerships := make([]float64, n)
	positions := make(map[string]bool, n)
	teams := make(map[string]bool, n)

	for i, p := range l.players {
		confidences[i] = p.Confidence
		risks[i] = p.InjuryRisk
		matchups[i] = p.MatchupRating
		ownerships[i] = p.Ownership
		positions[p.Position] = true
		if p.Team != "" {
			teams[p.Team] = true
		}
	}

	pointsPerSalary := 0.0
	if l.salary > 0 {
		pointsPerSalary = l.projected / float64(l.salary) * 1000
	}

	return types.LineupFeatures{
		LineupSize:         float64(n),
		TotalProjected:     l.projected,
		TotalFloor:         l.floor,
		TotalCeiling:       l.ceiling,
		FloorCeilingSpread: l.ceiling - l.floor,
		MeanConfidence:     stat.Mean(confidences, nil),
		MeanInjuryRisk:     stat.Mean(risks, nil),
		MeanMatchupRating:  stat.Mean(matchups, nil),
		PositionSpread:     float64(len(positions)) / float64(n),
		TeamDiversity:      float64(len(teams)) / float64(n),
		MeanOwnership:      stat.Mean(ownerships, nil),
		OwnershipStdDev:    sampleStdDev(ownerships),
		PointsPerSalary:    pointsPerSalary,
	}, nil
}

// finalize computes the fitness for a lineup given the model's base score.
// With degraded set, the heuristic stands alone instead of blending.
func (fe *fitnessEvaluator) finalize(l *lineup, base float64, degraded bool) types.ScoredLineup {
	corr := fe.table.LineupCorrelation(l.players)
	risk := fe.riskScore(l)
	heuristic := fe.heuristicScore(l, corr)

	fitness := heuristic
	if !degraded {
		fitness = baseBlendWeight*base + heuristicBlendWeight*heuristic
	}

	fitness *= 1 - risk*(1-fe.strategy.RiskTolerance)
	if fe.strategy.CorrelationWeight > 0 {
		fitness *= 1 + fe.strategy.CorrelationWeight*corr
	}
	if fe.strategy.ExposureWeight > 0 {
		fitness *= 1 - fe.strategy.ExposureWeight*fe.meanOwnership(l)
	}

	return types.ScoredLineup{
		PlayerIDs:        l.ids(),
		SlotAssignments:  l.slotAssignments(),
		TotalProjected:   l.projected,
		TotalFloor:       l.floor,
		TotalCeiling:     l.ceiling,
		TotalSalary:      l.salary,
		Fitness:          clampUnit(fitness),
		BaseScore:        base,
		RiskScore:        risk,
		CorrelationScore: corr,
		Degraded:         degraded,
	}
}

// heuristicScore maps the strategy objective onto the lineup's normalized
// aggregates.
func (fe *fitnessEvaluator) heuristicScore(l *lineup, corr float64) float64 {
	p := l.projected / fe.normProjected
	f := l.floor / fe.normFloor
	c := l.ceiling / fe.normCeiling

	var score float64
	switch fe.strategy.Type {
	case types.StrategyCeiling:
		score = c
	case types.StrategyFloor:
		score = f
	case types.StrategyContrarian:
		score = p * (1 - fe.meanOwnership(l))
	case types.StrategyCorrelation:
		score = p * (correlationHeuristicBase + correlationHeuristicScale*corr)
	case types.StrategyBalanced:
		score = (p + f + c) / 3
	default:
		fe.log.WithField("strategy", fe.strategy.Type).Warn("Unknown strategy type, using balanced")
		score = (p + f + c) / 3
	}

	return clampUnit(score + fe.pairingAdjustment(l))
}

// riskScore blends injury exposure, projection confidence, and projection
// dispersion into one scalar in [0,1].
func (fe *fitnessEvaluator) riskScore(l *lineup) float64 {
	n := l.size()
	if n == 0 {
		return 0
	}

	risks := make([]float64, n)
	confidences := make([]float64, n)
	projections := make([]float64, n)
	for i, p := range l.players {
		risks[i] = p.InjuryRisk
		confidences[i] = p.Confidence
		projections[i] = p.ProjectedPoints
	}

	meanProjection := stat.Mean(projections, nil)
	variation := 0.0
	if meanProjection > 0 {
		variation = sampleStdDev(projections) / meanProjection
	}

	risk := riskInjuryWeight*stat.Mean(risks, nil) +
		riskConfidenceWeight*(1-stat.Mean(confidences, nil)) +
		riskVolatilityWeight*clampUnit(variation)
	return clampUnit(risk)
}

// pairingAdjustment applies the request's soft pairing preferences: each
// same-team pair at the named positions nudges the heuristic up or down.
func (fe *fitnessEvaluator) pairingAdjustment(l *lineup) float64 {
	if len(fe.pairings) == 0 {
		return 0
	}

	adjustment := 0.0
	for _, rule := range fe.pairings {
		pairs := 0
		for i := 0; i < l.size(); i++ {
			for j := i + 1; j < l.size(); j++ {
				a, b := l.players[i], l.players[j]
				if a.Team == "" || a.Team != b.Team {
					continue
				}
				if (a.Position == rule.PositionA && b.Position == rule.PositionB) ||
					(a.Position == rule.PositionB && b.Position == rule.PositionA) {
					pairs++
				}
			}
		}
		if rule.Encourage {
			adjustment += pairingStep * float64(pairs)
		} else {
			adjustment -= pairingStep * float64(pairs)
		}
	}
	return math.Max(-pairingCap, math.Min(pairingCap, adjustment))
}

func (fe *fitnessEvaluator) meanOwnership(l *lineup) float64 {
	if l.size() == 0 {
		return 0
	}
	total := 0.0
	for _, p := range l.players {
		total += p.Ownership
	}
	return total / float64(l.size())
}

func sampleStdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func nonZero(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}
