package search_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/diversity"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/perturbation"
	"vrp-search-service/internal/search"
	"vrp-search-service/internal/services"
	"vrp-search-service/internal/solution"
)

type recorder struct {
	started  bool
	samples  []domain.Sample
	plans    []domain.RoutePlan
	finished *search.Result
}

func (r *recorder) OnStart(*domain.Instance, config.Config) { r.started = true }

func (r *recorder) OnImprovement(s domain.Sample, p domain.RoutePlan) {
	r.samples = append(r.samples, s)
	r.plans = append(r.plans, p)
}

func (r *recorder) OnFinish(res search.Result) { r.finished = &res }

func testInstance(t *testing.T, customers int, seed int64) *domain.Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	pts := []domain.Point{{X: 50, Y: 50}}
	for i := 0; i < customers; i++ {
		pts = append(pts, domain.Point{X: float64(rng.Intn(101)), Y: float64(rng.Intn(101)), Demand: 1 + rng.Intn(30)})
	}
	in, err := domain.NewInstance("engine", pts, 100, domain.InstanceOptions{Rounded: true})
	require.NoError(t, err)
	return in
}

func iterationConfig(limit float64) config.Config {
	cfg := config.Default()
	cfg.StoppingCriterion = config.Iteration
	cfg.Limit = limit
	cfg.Debug = true
	cfg.Gamma = 10
	return cfg
}

func run(t *testing.T, in *domain.Instance, cfg config.Config) (search.Result, *recorder, *search.Engine) {
	t.Helper()
	rec := &recorder{}
	e, err := search.NewEngine(in, cfg, search.Deps{Factory: services.Toolkits{Varphi: cfg.Varphi}, Observer: rec})
	require.NoError(t, err)
	assert.Equal(t, search.Initializing, e.State())

	res, err := e.Search(context.Background())
	require.NoError(t, err)
	assert.Equal(t, search.Stopped, e.State())
	return res, rec, e
}

func assertValidResult(t *testing.T, in *domain.Instance, res search.Result, rec *recorder) {
	t.Helper()
	require.True(t, rec.started)
	require.NotNil(t, rec.finished)
	require.NotEmpty(t, rec.samples)

	for i := 1; i < len(rec.samples); i++ {
		assert.Less(t, rec.samples[i].Cost, rec.samples[i-1].Cost)
		assert.GreaterOrEqual(t, rec.samples[i].Iteration, rec.samples[i-1].Iteration)
	}
	last := rec.samples[len(rec.samples)-1]
	assert.Equal(t, last.Cost, res.Best.Cost)
	assert.Equal(t, last.Iteration, res.IterationOfBest)
	assert.Equal(t, rec.samples, res.Samples)

	s := solution.New(in, 0.01)
	require.NoError(t, s.LoadPlan(res.Best))
	require.NoError(t, s.Checking("best", true, true))
	assert.InDelta(t, res.Best.Cost, s.F, 0.01)
}

func TestSequentialSearch(t *testing.T) {
	in := testInstance(t, 40, 1)
	res, rec, _ := run(t, in, iterationConfig(150))

	assert.Equal(t, 150, res.Iterations)
	assertValidResult(t, in, res, rec)
	assert.Contains(t, res.Omegas, "Sequential")
}

func TestParallelSearch(t *testing.T) {
	in := testInstance(t, 40, 2)
	cfg := iterationConfig(100)
	cfg.Parallel = true

	res, rec, _ := run(t, in, cfg)

	assert.Equal(t, 100, res.Iterations)
	assertValidResult(t, in, res, rec)
	assert.GreaterOrEqual(t, res.TotalTime, 0.0)
}

func TestParallelSearchSumAccounting(t *testing.T) {
	in := testInstance(t, 30, 3)
	cfg := iterationConfig(40)
	cfg.Parallel = true
	cfg.CPUAccounting = config.CPUSum

	res, rec, _ := run(t, in, cfg)
	assertValidResult(t, in, res, rec)
}

func TestSearchWithDecomposition(t *testing.T) {
	in := testInstance(t, 60, 4)
	cfg := iterationConfig(30)
	cfg.Perturbations = []string{"Concentric", "Decomposition"}
	cfg.Selection = config.SelectionRoundRobin
	cfg.TargetMaxSpCustomers = 20
	cfg.DecompositionRounds = 5

	res, rec, _ := run(t, in, cfg)
	assertValidResult(t, in, res, rec)
	assert.Contains(t, res.Omegas, "Concentric")
}

func TestSearchStopsAtOptimalTarget(t *testing.T) {
	in := testInstance(t, 20, 5)
	cfg := iterationConfig(1000)
	cfg.Optimal = 1e9

	res, rec, _ := run(t, in, cfg)
	assert.Equal(t, 0, res.Iterations)
	assert.Len(t, rec.samples, 1)
}

func TestSearchTimeBudget(t *testing.T) {
	in := testInstance(t, 30, 6)
	cfg := config.Default()
	cfg.Limit = 0.05

	res, rec, _ := run(t, in, cfg)
	assert.Greater(t, res.Iterations, 0)
	assert.GreaterOrEqual(t, res.TotalTime, 0.05)
	assertValidResult(t, in, res, rec)
}

func TestSearchCancelledContext(t *testing.T) {
	in := testInstance(t, 20, 7)
	e, err := search.NewEngine(in, iterationConfig(1000), search.Deps{Factory: services.Toolkits{Varphi: 40}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Search(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Iterations)
	assert.NotEmpty(t, res.Best.Routes)

	_, err = e.Search(context.Background())
	assert.Error(t, err)
}

func TestNewEngineRejectsBadConfiguration(t *testing.T) {
	in := testInstance(t, 10, 8)
	deps := search.Deps{Factory: services.Toolkits{Varphi: 40}}

	cfg := iterationConfig(10)
	cfg.Perturbations = []string{"Shuffle"}
	_, err := search.NewEngine(in, cfg, deps)
	assert.ErrorIs(t, err, perturbation.ErrUnknownOperator)

	cfg = iterationConfig(10)
	cfg.Decay = "stepwise"
	_, err = search.NewEngine(in, cfg, deps)
	assert.ErrorIs(t, err, diversity.ErrUnknownDecay)

	cfg = iterationConfig(0)
	_, err = search.NewEngine(in, cfg, deps)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = search.NewEngine(in, iterationConfig(10), search.Deps{})
	assert.Error(t, err)
}
