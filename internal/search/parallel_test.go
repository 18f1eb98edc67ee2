package search

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/cputime"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/solution"
)

// scriptedToolkit appends reinserted customers to the first route. Its
// LocalSearch burns a fixed amount of thread CPU, optionally waits for
// release and then reports a fixed cost when one is set.
type scriptedToolkit struct {
	burn    time.Duration
	cost    float64
	release chan struct{}
}

func (tk *scriptedToolkit) Construct(s *solution.Solution) {}

func (tk *scriptedToolkit) Insert(s *solution.Solution, nodes []*solution.Node) float64 {
	delta := 0.0
	for _, n := range nodes {
		delta += s.Routes[0].AddNodeEndRoute(n)
	}
	s.F += delta
	return delta
}

func (tk *scriptedToolkit) MakeFeasible(s *solution.Solution) {}

func (tk *scriptedToolkit) LocalSearch(s *solution.Solution, interRoute bool) {
	if tk.release != nil {
		<-tk.release
	}
	sw := cputime.Start()
	for sw.Elapsed() < tk.burn.Seconds() {
	}
	if tk.cost > 0 {
		s.F = tk.cost
	}
}

// scriptedFactory hands out its toolkits in branch order.
type scriptedFactory struct {
	toolkits []*scriptedToolkit
	next     int
}

func (f *scriptedFactory) NewToolkit(*domain.Instance, *rand.Rand) ports.Toolkit {
	tk := f.toolkits[f.next]
	f.next++
	return tk
}

func parallelEngine(t *testing.T, cfg config.Config, toolkits ...*scriptedToolkit) *Engine {
	t.Helper()
	pts := []domain.Point{{X: 0, Y: 0}}
	ids := make([]int, 0, 12)
	for i := 1; i <= 12; i++ {
		pts = append(pts, domain.Point{X: float64(i % 4), Y: float64(i / 4), Demand: 1})
		ids = append(ids, i)
	}
	in, err := domain.NewInstance("parallel", pts, 100, domain.InstanceOptions{})
	require.NoError(t, err)

	cfg.Parallel = true
	cfg.Perturbations = []string{"Concentric"}
	cfg.StoppingCriterion = config.Iteration
	cfg.Limit = 10
	e, err := NewEngine(in, cfg, Deps{Factory: &scriptedFactory{toolkits: toolkits}})
	require.NoError(t, err)
	require.Len(t, e.branches, 2)
	require.NoError(t, e.reference.LoadPlan(domain.RoutePlan{Routes: [][]int{ids}}))
	return e
}

func TestRunBranchesPicksCheaperBranch(t *testing.T) {
	cases := []struct {
		name   string
		costs  [2]float64
		winner int
	}{
		{name: "second cheaper", costs: [2]float64{50, 40}, winner: 1},
		{name: "first cheaper", costs: [2]float64{30, 40}, winner: 0},
		{name: "tie", costs: [2]float64{40, 40}, winner: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := parallelEngine(t, config.Default(),
				&scriptedToolkit{cost: tc.costs[0]},
				&scriptedToolkit{cost: tc.costs[1]})

			winner, err := e.runBranches(context.Background())
			require.NoError(t, err)
			assert.Same(t, e.branches[tc.winner], winner)
			assert.Equal(t, tc.costs[tc.winner], winner.sol.F)
		})
	}
}

func TestRunBranchesCPUAccounting(t *testing.T) {
	const burn = 20 * time.Millisecond

	accounted := func(mode string) float64 {
		cfg := config.Default()
		cfg.CPUAccounting = mode
		e := parallelEngine(t, cfg, &scriptedToolkit{burn: burn}, &scriptedToolkit{burn: burn})
		_, err := e.runBranches(context.Background())
		require.NoError(t, err)
		return e.branchCPU
	}

	maxCPU := accounted(config.CPUMax)
	sumCPU := accounted(config.CPUSum)

	assert.GreaterOrEqual(t, maxCPU, burn.Seconds())
	assert.GreaterOrEqual(t, sumCPU, 2*burn.Seconds())
	assert.InEpsilon(t, 2*maxCPU, sumCPU, 0.25)
}

func TestSearchTotalTimeFollowsAccounting(t *testing.T) {
	const burn = 5 * time.Millisecond

	total := func(mode string) float64 {
		cfg := config.Default()
		cfg.CPUAccounting = mode
		e := parallelEngine(t, cfg, &scriptedToolkit{burn: burn}, &scriptedToolkit{burn: burn})
		res, err := e.Search(context.Background())
		require.NoError(t, err)
		require.Equal(t, 10, res.Iterations)
		return res.TotalTime
	}

	maxTotal := total(config.CPUMax)
	sumTotal := total(config.CPUSum)

	// Ten iterations of two branches, plus the initial local search.
	assert.GreaterOrEqual(t, maxTotal, 11*burn.Seconds())
	assert.GreaterOrEqual(t, sumTotal, 21*burn.Seconds())
	assert.Greater(t, sumTotal, maxTotal)
}

func TestRunBranchesShutdownTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.ShutdownTimeout = 20 * time.Millisecond
	release := make(chan struct{})
	e := parallelEngine(t, cfg, &scriptedToolkit{release: release}, &scriptedToolkit{release: release})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := e.runBranches(ctx)
	assert.ErrorIs(t, err, ErrShutdownTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunBranchesFinishesWithinShutdownTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.ShutdownTimeout = 5 * time.Second
	release := make(chan struct{})
	e := parallelEngine(t, cfg, &scriptedToolkit{release: release, cost: 10}, &scriptedToolkit{release: release, cost: 20})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	time.AfterFunc(10*time.Millisecond, func() { close(release) })

	winner, err := e.runBranches(ctx)
	require.NoError(t, err)
	assert.Same(t, e.branches[0], winner)
}
