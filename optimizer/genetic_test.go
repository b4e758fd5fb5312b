package optimizer

import (
	"context"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/lineup-engine/scoring"
	"github.com/stitts-dev/lineup-engine/types"
)

func testSearchConfig() Config {
	return Config{
		PopulationSize:  30,
		Generations:     8,
		EliteCount:      6,
		MutationRate:    0.10,
		RetryMultiplier: 10,
	}
}

func newTestOrchestrator(t *testing.T, pool []types.Player, spec *types.ConstraintSpec, model scoring.Model, seed int64) *orchestrator {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	gen, err := newPopulationGenerator(pool, spec, 10, rng, testLogEntry())
	require.NoError(t, err)
	table := NewCorrelationTable(pool)
	eval := newFitnessEvaluator(pool, spec.LineupSize(), table, model, types.DefaultStrategy(), spec.Pairings, testLogEntry())
	return &orchestrator{
		cfg:  testSearchConfig(),
		gen:  gen,
		eval: eval,
		rng:  rng,
		log:  testLogEntry(),
	}
}

func TestRunReturnsRankedValidLineups(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 42)

	ranked, err := o.run(context.Background())
	require.NoError(t, err)
	require.Len(t, ranked, 30)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Fitness, ranked[i].Fitness,
			"population must come back best first")
	}
	for _, sl := range ranked[:5] {
		requireValidScored(t, sl, &spec, pool)
		assert.False(t, sl.Degraded)
	}
}

func TestRunDeterministicForSeed(t *testing.T) {
	pool := testPool()
	spec := testSpec()

	first, err := newTestOrchestrator(t, pool, &spec, &stubModel{}, 777).run(context.Background())
	require.NoError(t, err)
	second, err := newTestOrchestrator(t, pool, &spec, &stubModel{}, 777).run(context.Background())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PlayerIDs, second[i].PlayerIDs)
		assert.Equal(t, first[i].Fitness, second[i].Fitness)
	}
}

func TestRunImprovesOverRandomDraws(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 9)

	initial, err := o.gen.Generate(30)
	require.NoError(t, err)
	bestInitial := 0.0
	for _, l := range initial {
		sl, err := o.eval.Score(context.Background(), l)
		require.NoError(t, err)
		if sl.Fitness > bestInitial {
			bestInitial = sl.Fitness
		}
	}

	ranked, err := newTestOrchestrator(t, pool, &spec, &stubModel{}, 9).run(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ranked[0].Fitness, bestInitial,
		"elitism never loses the best individual found")
}

func TestRunRespectsLocksAndExcludes(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	spec.Locked = []string{"g2", "f5"}
	spec.Excluded = []string{"f1"}

	ranked, err := newTestOrchestrator(t, pool, &spec, &stubModel{}, 31).run(context.Background())
	require.NoError(t, err)

	for _, sl := range ranked {
		assert.True(t, sl.Contains("g2"))
		assert.True(t, sl.Contains("f5"))
		assert.False(t, sl.Contains("f1"))
	}
}

func TestRunScoringUnavailable(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, failingModel{}, 4)

	_, err := o.run(context.Background())
	require.Error(t, err)

	var unavailable *ScoringUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 30, unavailable.Failures)
}

func TestRunToleratesIsolatedModelFailures(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &flakyModel{}, 13)

	ranked, err := o.run(context.Background())
	require.NoError(t, err, "a partially failing model degrades individuals, not the search")
	require.Len(t, ranked, 30)
}

func TestRunUsesBatchModel(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	model := &batchStubModel{}
	o := newTestOrchestrator(t, pool, &spec, model, 55)

	ranked, err := o.run(context.Background())
	require.NoError(t, err)
	require.Len(t, ranked, 30)

	// One batch call per generation plus the final ranking pass.
	assert.Equal(t, int32(o.cfg.Generations+1), atomic.LoadInt32(&model.batchCalls))
	assert.Zero(t, atomic.LoadInt32(&model.calls), "batch path never scores individually")
}

func TestRunHonorsCancellation(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCrossoverProducesEligibleChild(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 66)

	for i := 0; i < 20; i++ {
		a, v := o.gen.draw()
		require.Nil(t, v)
		b, v := o.gen.draw()
		require.Nil(t, v)

		child := o.crossover(a, b)
		require.NotNil(t, child)
		assert.Equal(t, 5, child.size())
		assert.Nil(t, checkDuplicates(child))
		for j, p := range child.players {
			assert.True(t, child.slots[j].accepts(p.Position),
				"child slot %s holds ineligible %s", child.slots[j].name, p.Position)
		}
	}
}

func TestMutatePreservesLocksAndEligibility(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	spec.Locked = []string{"g1", "f2"}
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 88)

	for i := 0; i < 20; i++ {
		l, v := o.gen.draw()
		require.Nil(t, v)
		o.mutate(l)

		assert.True(t, l.contains("g1"))
		assert.True(t, l.contains("f2"))
		assert.Nil(t, checkDuplicates(l))
		for j, p := range l.players {
			assert.True(t, l.slots[j].accepts(p.Position))
		}
	}
}

func TestOffspringNeverShrinksPopulation(t *testing.T) {
	pool := testPool()
	spec := testSpec()
	o := newTestOrchestrator(t, pool, &spec, &stubModel{}, 14)

	elites := make([]*lineup, 0, 4)
	for len(elites) < 4 {
		l, v := o.gen.draw()
		require.Nil(t, v)
		elites = append(elites, l)
	}

	for i := 0; i < 30; i++ {
		child := o.offspring(elites)
		require.NotNil(t, child)
		assert.Nil(t, validateLineup(child, &spec))
	}
}

func TestRankIndicesDeterministicTies(t *testing.T) {
	scored := []types.ScoredLineup{
		{Fitness: 0.5, TotalProjected: 100},
		{Fitness: 0.9, TotalProjected: 90},
		{Fitness: 0.5, TotalProjected: 120},
		{Fitness: 0.5, TotalProjected: 120}, // full tie with index 2
	}
	order := rankIndices(scored)
	assert.Equal(t, []int{1, 2, 3, 0}, order)
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 100, cfg.PopulationSize)
	assert.Equal(t, 50, cfg.Generations)
	assert.Equal(t, 20, cfg.EliteCount)
	assert.InDelta(t, 0.10, cfg.MutationRate, 1e-9)
	assert.Equal(t, 10, cfg.RetryMultiplier)

	small := Config{PopulationSize: 10, EliteCount: 50}.withDefaults()
	assert.Equal(t, 10, small.EliteCount, "elite count caps at population size")
}
