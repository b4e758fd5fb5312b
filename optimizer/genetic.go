package optimizer

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/stitts-dev/lineup-engine/internal/config"
	"github.com/stitts-dev/lineup-engine/scoring"
	"github.com/stitts-dev/lineup-engine/types"
)

// Config tunes the genetic search. Zero fields fall back to the engine
// defaults, so callers can set only what they care about.
type Config struct {
	PopulationSize  int
	Generations     int
	EliteCount      int
	MutationRate    float64
	RetryMultiplier int
	FitnessWorkers  int
	ScoringTimeout  time.Duration
}

// DefaultConfig resolves tuning from the environment (LINEUP_* variables)
// on top of the built-in defaults.
func DefaultConfig() Config {
	env := config.FromEnv()
	return Config{
		PopulationSize:  env.PopulationSize,
		Generations:     env.Generations,
		EliteCount:      env.EliteCount,
		MutationRate:    env.MutationRate,
		RetryMultiplier: env.RetryMultiplier,
		FitnessWorkers:  env.FitnessWorkers,
		ScoringTimeout:  env.ScoringTimeout,
	}
}

func (c Config) withDefaults() Config {
	d := config.Defaults()
	if c.PopulationSize <= 0 {
		c.PopulationSize = d.PopulationSize
	}
	if c.Generations <= 0 {
		c.Generations = d.Generations
	}
	if c.EliteCount <= 0 {
		c.EliteCount = d.EliteCount
	}
	if c.EliteCount > c.PopulationSize {
		c.EliteCount = c.PopulationSize
	}
	if c.MutationRate <= 0 {
		c.MutationRate = d.MutationRate
	}
	if c.RetryMultiplier <= 0 {
		c.RetryMultiplier = d.RetryMultiplier
	}
	return c
}

// orchestrator drives the generational search: score, select elites, breed
// offspring, repeat for a fixed generation budget. Generations are strictly
// sequential; only fitness evaluation inside one generation fans out. All
// randomness stays on the orchestrator goroutine, so a fixed seed
// reproduces the search exactly.
type orchestrator struct {
	cfg  Config
	gen  *populationGenerator
	eval *fitnessEvaluator
	rng  *rand.Rand
	log  *logrus.Entry
}

// run executes the search and returns the final population ranked by
// fitness, best first.
func (o *orchestrator) run(ctx context.Context) ([]types.ScoredLineup, error) {
	population, err := o.gen.Generate(o.cfg.PopulationSize)
	if err != nil {
		return nil, err
	}

	for generation := 0; generation < o.cfg.Generations; generation++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scored, err := o.scoreGeneration(ctx, population, generation)
		if err != nil {
			return nil, err
		}
		order := rankIndices(scored)

		eliteCount := o.cfg.EliteCount
		if eliteCount > len(population) {
			eliteCount = len(population)
		}
		elites := make([]*lineup, eliteCount)
		for i := 0; i < eliteCount; i++ {
			elites[i] = population[order[i]]
		}

		if generation%10 == 0 {
			o.log.WithFields(logrus.Fields{
				"generation":   generation,
				"best_fitness": scored[order[0]].Fitness,
				"population":   len(population),
			}).Debug("Generation scored")
		}

		next := make([]*lineup, 0, len(population))
		next = append(next, elites...)
		for len(next) < len(population) {
			next = append(next, o.offspring(elites))
		}
		population = next
	}

	scored, err := o.scoreGeneration(ctx, population, o.cfg.Generations)
	if err != nil {
		return nil, err
	}
	order := rankIndices(scored)
	ranked := make([]types.ScoredLineup, len(order))
	for i, idx := range order {
		ranked[i] = scored[idx]
	}
	return ranked, nil
}

// offspring breeds one valid child from two uniformly chosen elite parents.
// A child failing validation gets one regeneration attempt; after that a
// fresh generator draw takes its place, and as a last resort the best elite
// is cloned so the population never shrinks.
func (o *orchestrator) offspring(elites []*lineup) *lineup {
	for attempt := 0; attempt < 2; attempt++ {
		a := elites[o.rng.Intn(len(elites))]
		b := elites[o.rng.Intn(len(elites))]
		child := o.crossover(a, b)
		if child == nil {
			continue
		}
		if o.rng.Float64() < o.cfg.MutationRate {
			o.mutate(child)
		}
		if validateLineup(child, o.gen.spec) == nil {
			return child
		}
	}

	if fresh, violation := o.gen.draw(); violation == nil {
		return fresh
	}
	o.log.Debug("Offspring regeneration and fresh draw both failed, cloning best elite")
	return elites[0].clone()
}

// crossover splits at a single point: the child takes parent A's prefix and
// fills the remaining slots from parent B, deduplicating by ID. Slots B
// cannot serve fall back to a weighted pool draw. The asymmetric split+fill
// shape is intentional.
func (o *orchestrator) crossover(a, b *lineup) *lineup {
	n := a.size()
	if n < 2 {
		return a.clone()
	}
	point := 1 + o.rng.Intn(n-1)

	players := make([]types.Player, n)
	used := make(map[string]bool, n)
	copy(players, a.players[:point])
	for _, p := range players[:point] {
		used[p.ID] = true
	}

	for i := point; i < n; i++ {
		slot := a.slots[i]
		candidate, ok := pickFromParent(b, i, slot, used)
		if !ok {
			pool := o.gen.eligible(slot, used)
			if len(pool) == 0 {
				return nil
			}
			candidate = o.gen.weightedPick(pool)
		}
		players[i] = candidate
		used[candidate.ID] = true
	}
	return newLineup(players, a.slots)
}

// pickFromParent prefers parent B's player at the same slot index, then any
// unused B member the slot accepts, in B's order.
func pickFromParent(b *lineup, i int, slot slotSpec, used map[string]bool) (types.Player, bool) {
	if i < b.size() {
		p := b.players[i]
		if !used[p.ID] && slot.accepts(p.Position) {
			return p, true
		}
	}
	for _, p := range b.players {
		if !used[p.ID] && slot.accepts(p.Position) {
			return p, true
		}
	}
	return types.Player{}, false
}

// mutate swaps one non-locked member for a slot-compatible alternative from
// the pool, chosen by the same squared-projection weighting as generation.
func (o *orchestrator) mutate(l *lineup) {
	swappable := make([]int, 0, l.size())
	for i, p := range l.players {
		if !o.gen.lockedSet[p.ID] {
			swappable = append(swappable, i)
		}
	}
	if len(swappable) == 0 {
		return
	}

	i := swappable[o.rng.Intn(len(swappable))]
	current := l.players[i]
	used := l.usedSet()
	delete(used, current.ID)

	candidates := o.gen.eligible(l.slots[i], used)
	alternatives := make([]types.Player, 0, len(candidates))
	for _, c := range candidates {
		if c.ID != current.ID {
			alternatives = append(alternatives, c)
		}
	}
	if len(alternatives) == 0 {
		return
	}
	l.replace(i, o.gen.weightedPick(alternatives))
}

// scoreGeneration evaluates every individual of one generation. The batch
// path sends the whole generation to the collaborator in one call (with a
// single retry); the per-individual path fans out on a bounded worker pool
// and tolerates isolated model failures by degrading those individuals to
// heuristic-only scores. Either way, a generation the collaborator cannot
// score at all aborts the search.
func (o *orchestrator) scoreGeneration(ctx context.Context, population []*lineup, generation int) ([]types.ScoredLineup, error) {
	scoringCtx := ctx
	if o.cfg.ScoringTimeout > 0 {
		var cancel context.CancelFunc
		scoringCtx, cancel = context.WithTimeout(ctx, o.cfg.ScoringTimeout)
		defer cancel()
	}

	scored := make([]types.ScoredLineup, len(population))

	if batch, ok := o.eval.model.(scoring.BatchModel); ok {
		features := make([]types.LineupFeatures, len(population))
		for i, l := range population {
			f, err := o.eval.features(l)
			if err != nil {
				return nil, err
			}
			features[i] = f
		}

		scores, err := batch.ScoreBatch(scoringCtx, features)
		if err != nil && ctx.Err() == nil {
			o.log.WithError(err).WithField("generation", generation).Warn("Batch scoring failed, retrying once")
			scores, err = batch.ScoreBatch(scoringCtx, features)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ScoringUnavailableError{
				Generation: generation,
				Failures:   len(population),
				Err:        err,
			}
		}
		for i, l := range population {
			scored[i] = o.eval.finalize(l, scores[i], false)
		}
		return scored, nil
	}

	workers := o.cfg.FitnessWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(scoringCtx)
	g.SetLimit(workers)
	for i := range population {
		i := i
		g.Go(func() error {
			sl, err := o.eval.Score(gctx, population[i])
			if err != nil {
				return err
			}
			scored[i] = sl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	degraded := 0
	for _, sl := range scored {
		if sl.Degraded {
			degraded++
		}
	}
	if degraded == len(scored) && len(scored) > 0 {
		return nil, &ScoringUnavailableError{
			Generation: generation,
			Failures:   degraded,
			Err:        fmt.Errorf("all %d fitness evaluations fell back to heuristic", degraded),
		}
	}
	if degraded > 0 {
		o.log.WithFields(logrus.Fields{
			"generation": generation,
			"degraded":   degraded,
			"population": len(scored),
		}).Warn("Some individuals scored without the external model")
	}
	return scored, nil
}

// rankIndices orders population indices by fitness descending, breaking
// ties by projection then by index so ranking is deterministic.
func rankIndices(scored []types.ScoredLineup) []int {
	order := make([]int, len(scored))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if scored[order[a]].Fitness != scored[order[b]].Fitness {
			return scored[order[a]].Fitness > scored[order[b]].Fitness
		}
		return scored[order[a]].TotalProjected > scored[order[b]].TotalProjected
	})
	return order
}
