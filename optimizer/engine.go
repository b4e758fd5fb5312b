// Package optimizer implements the lineup optimization core: candidate
// pool modeling, constraint-valid population generation with salvage
// repair, multi-objective fitness evaluation against an external scoring
// model, a genetic search loop, and diversity-aware multi-lineup
// generation.
package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/lineup-engine/pkg/logger"
	"github.com/stitts-dev/lineup-engine/scoring"
	"github.com/stitts-dev/lineup-engine/types"
)

const maxAlternates = 4

// Engine runs optimization requests against one scoring collaborator. It
// keeps no per-request state; a single Engine serves concurrent requests.
type Engine struct {
	model scoring.Model
	cfg   Config
	log   *logrus.Logger
}

// NewEngine creates an engine. A nil logger falls back to the shared one.
func NewEngine(model scoring.Model, cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		model: model,
		cfg:   cfg.withDefaults(),
		log:   log,
	}
}

// Request describes one optimization run. Count 1 (or 0) returns the
// single best lineup plus alternates; Count > 1 produces a diversified
// portfolio. Seed 0 draws a seed from the clock; any other value makes the
// run reproducible.
type Request struct {
	Players         []types.Player
	Spec            types.ConstraintSpec
	Strategy        types.Strategy
	Count           int
	DiversityFactor float64
	Seed            int64
}

// Result carries the ranked output of one optimization run.
type Result struct {
	OptimizationID   string               `json:"optimization_id"`
	Lineups          []types.ScoredLineup `json:"lineups"`
	Alternates       []types.ScoredLineup `json:"alternates,omitempty"`
	Generations      int                  `json:"generations"`
	OptimizationTime int64                `json:"optimization_time_ms"`
}

// Optimize searches for the best constraint-valid lineup(s) for the
// request. Cancellation is honored at generation boundaries and between
// diversity iterations.
func (e *Engine) Optimize(ctx context.Context, req Request) (*Result, error) {
	if err := validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid optimization request: %w", err)
	}

	optimizationID := uuid.New().String()
	start := time.Now()

	count := req.Count
	if count < 1 {
		count = 1
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	log := e.log.WithFields(logrus.Fields{
		"optimization_id":  optimizationID,
		"strategy":         string(req.Strategy.Type),
		"pool_size":        len(req.Players),
		"lineup_count":     count,
		"diversity_factor": req.DiversityFactor,
	})
	log.Info("Starting optimization")

	// Built once per request from the full pool; read-only during search.
	table := NewCorrelationTable(req.Players)

	// Request-scoped dedup: elites survive generations unchanged and would
	// otherwise hit the model again every round. The wrapper keeps the
	// model's shape so per-call collaborators stay on the per-call path.
	model := scoring.NewDedupModel(e.model)

	result := &Result{OptimizationID: optimizationID}

	if count > 1 {
		lineups, generations, err := e.generatePortfolio(ctx, &req, count, model, table, rng, log)
		if err != nil {
			return nil, err
		}
		result.Lineups = lineups
		result.Generations = generations
	} else {
		ranked, err := e.runSearch(ctx, req.Players, &req.Spec, req.Strategy, model, table, rng, log)
		if err != nil {
			return nil, err
		}
		result.Lineups = ranked[:1]
		result.Alternates = selectAlternates(ranked, maxAlternates)
		result.Generations = e.cfg.Generations
	}

	result.OptimizationTime = time.Since(start).Milliseconds()
	log.WithFields(logrus.Fields{
		"lineups_returned":     len(result.Lineups),
		"optimization_time_ms": result.OptimizationTime,
	}).Info("Optimization completed")
	return result, nil
}

// runSearch wires one generator/evaluator pair to the orchestrator and
// executes a full genetic search against the given pool.
func (e *Engine) runSearch(ctx context.Context, pool []types.Player, spec *types.ConstraintSpec, strategy types.Strategy, model scoring.Model, table *CorrelationTable, rng *rand.Rand, log *logrus.Entry) ([]types.ScoredLineup, error) {
	gen, err := newPopulationGenerator(pool, spec, e.cfg.RetryMultiplier, rng, log)
	if err != nil {
		return nil, err
	}
	eval := newFitnessEvaluator(pool, spec.LineupSize(), table, model, strategy, spec.Pairings, log)
	orch := &orchestrator{
		cfg:  e.cfg,
		gen:  gen,
		eval: eval,
		rng:  rng,
		log:  log,
	}
	return orch.run(ctx)
}

// selectAlternates walks the ranked population below the winner, keeping
// lineups whose roster differs from everything already selected.
func selectAlternates(ranked []types.ScoredLineup, limit int) []types.ScoredLineup {
	seen := map[string]bool{rosterKey(ranked[0]): true}
	alternates := make([]types.ScoredLineup, 0, limit)
	for _, sl := range ranked[1:] {
		if len(alternates) == limit {
			break
		}
		key := rosterKey(sl)
		if seen[key] {
			continue
		}
		seen[key] = true
		alternates = append(alternates, sl)
	}
	return alternates
}

// rosterKey is order-insensitive: two lineups with the same players in
// different slots are the same roster.
func rosterKey(sl types.ScoredLineup) string {
	ids := make([]string, len(sl.PlayerIDs))
	copy(ids, sl.PlayerIDs)
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

func validateRequest(req *Request) error {
	if len(req.Players) == 0 {
		return fmt.Errorf("candidate pool is empty")
	}
	if len(req.Spec.Slots) == 0 && (req.Spec.Flex == nil || req.Spec.Flex.Count == 0) {
		return fmt.Errorf("constraint spec declares no slots")
	}
	for tag, rule := range req.Spec.Slots {
		if rule.Min < 0 || rule.Max < rule.Min {
			return fmt.Errorf("slot %s has invalid bounds %d-%d", tag, rule.Min, rule.Max)
		}
	}
	if req.Spec.Flex != nil && req.Spec.Flex.Count > 0 && len(req.Spec.Flex.Positions) == 0 {
		return fmt.Errorf("flex slot declares no eligible positions")
	}

	size := req.Spec.LineupSize()
	if size <= 0 {
		return fmt.Errorf("constraint spec requires zero players")
	}
	if len(req.Spec.Locked) > size {
		return fmt.Errorf("%d locked players cannot fit a %d-player lineup", len(req.Spec.Locked), size)
	}

	excluded := make(map[string]bool, len(req.Spec.Excluded))
	for _, id := range req.Spec.Excluded {
		excluded[id] = true
	}
	for _, id := range req.Spec.Locked {
		if excluded[id] {
			return fmt.Errorf("player %s is both locked and excluded", id)
		}
	}

	if req.DiversityFactor < 0 || req.DiversityFactor >= 1 {
		return fmt.Errorf("diversity factor %.2f outside [0,1)", req.DiversityFactor)
	}
	if req.Count < 0 {
		return fmt.Errorf("lineup count cannot be negative")
	}
	if req.Strategy.RiskTolerance < 0 || req.Strategy.RiskTolerance > 1 {
		return fmt.Errorf("risk tolerance %.2f outside [0,1]", req.Strategy.RiskTolerance)
	}
	if req.Strategy.CorrelationWeight < 0 {
		return fmt.Errorf("correlation weight cannot be negative")
	}
	if req.Strategy.ExposureWeight < 0 {
		return fmt.Errorf("exposure weight cannot be negative")
	}
	return nil
}
