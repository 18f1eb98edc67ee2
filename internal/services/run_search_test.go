package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/search"
	"vrp-search-service/internal/solution"
)

type memoryRuns struct {
	mu        sync.Mutex
	runs      []domain.Run
	samples   map[string][]domain.Sample
	bestKnown map[string]float64
}

func newMemoryRuns() *memoryRuns {
	return &memoryRuns{samples: map[string][]domain.Sample{}, bestKnown: map[string]float64{}}
}

func (m *memoryRuns) SaveRun(_ context.Context, run domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) AddSample(_ context.Context, runID string, s domain.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[runID] = append(m.samples[runID], s)
	return nil
}

func (m *memoryRuns) ListRuns(context.Context, int) ([]domain.Run, error) { return m.runs, nil }

func (m *memoryRuns) ListSamples(_ context.Context, runID string) ([]domain.Sample, error) {
	return m.samples[runID], nil
}

func (m *memoryRuns) BestKnown(_ context.Context, name string) (domain.BestKnown, error) {
	c, ok := m.bestKnown[name]
	if !ok {
		return domain.BestKnown{}, ports.ErrNotFound
	}
	return domain.BestKnown{Instance: name, Cost: c}, nil
}

type memoryIncumbents struct {
	mu    sync.Mutex
	plans map[string]domain.RoutePlan
}

func (m *memoryIncumbents) Get(_ context.Context, key string) (domain.RoutePlan, error) {
	p, ok := m.plans[key]
	if !ok {
		return domain.RoutePlan{}, ports.ErrNotFound
	}
	return p, nil
}

func (m *memoryIncumbents) PutIfBetter(_ context.Context, key string, plan domain.RoutePlan) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[key]; ok && p.Cost <= plan.Cost {
		return false, nil
	}
	m.plans[key] = plan
	return true, nil
}

type staticSource struct{ inst *domain.Instance }

func (s staticSource) Load(_ context.Context, ref string) (*domain.Instance, error) {
	if ref != s.inst.Name {
		return nil, ports.ErrNotFound
	}
	return s.inst, nil
}

func searchConfig(iterations float64) config.Config {
	cfg := config.Default()
	cfg.StoppingCriterion = config.Iteration
	cfg.Limit = iterations
	return cfg
}

func TestRunSearchPersistsRunAndSamples(t *testing.T) {
	in := randomInstance(t, 30, 11)
	runs := newMemoryRuns()
	inc := &memoryIncumbents{plans: map[string]domain.RoutePlan{}}
	deps := RunSearchDeps{Source: staticSource{in}, Runs: runs, Incumbents: inc, Host: "test-host"}

	out, err := RunSearch(context.Background(), RunSearchRequest{Ref: "random", Config: searchConfig(50)}, deps)
	if err != nil {
		t.Fatalf("run search: %v", err)
	}

	if len(runs.runs) != 1 {
		t.Fatalf("saved runs = %d, want 1", len(runs.runs))
	}
	run := runs.runs[0]
	if run.ID != out.Run.ID || run.Host != "test-host" || run.Iterations != 50 {
		t.Fatalf("saved run = %+v, want id %s from test-host after 50 iterations", run, out.Run.ID)
	}
	if run.Fingerprint != in.Fingerprint() {
		t.Fatalf("fingerprint = %s, want %s", run.Fingerprint, in.Fingerprint())
	}
	if got, want := len(runs.samples[run.ID]), len(out.Result.Samples); got != want {
		t.Fatalf("persisted samples = %d, want %d", got, want)
	}
	if !out.NewIncumbent {
		t.Fatalf("first run should become the incumbent")
	}
	if inc.plans[run.Fingerprint].Cost != out.Run.Cost {
		t.Fatalf("incumbent cost = %.2f, want %.2f", inc.plans[run.Fingerprint].Cost, out.Run.Cost)
	}
}

func TestRunSearchStopsAtBestKnownCost(t *testing.T) {
	in := randomInstance(t, 20, 12)
	runs := newMemoryRuns()
	runs.bestKnown[in.Name] = 1e9

	out, err := RunSearch(context.Background(), RunSearchRequest{Instance: in, Config: searchConfig(500)}, RunSearchDeps{Runs: runs})
	if err != nil {
		t.Fatalf("run search: %v", err)
	}
	if out.Result.Iterations != 0 {
		t.Fatalf("iterations = %d, want 0 once the best known cost is reached", out.Result.Iterations)
	}
}

func TestRunSearchErrors(t *testing.T) {
	in := randomInstance(t, 10, 13)

	_, err := RunSearch(context.Background(), RunSearchRequest{Ref: "other", Config: searchConfig(5)}, RunSearchDeps{Source: staticSource{in}})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	_, err = RunSearch(context.Background(), RunSearchRequest{Ref: "random"}, RunSearchDeps{})
	if err == nil {
		t.Fatalf("expected an error without instance source")
	}

	_, err = RunSearch(context.Background(), RunSearchRequest{Instance: in, Config: searchConfig(0)}, RunSearchDeps{})
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestRunBatchRunsEverySeed(t *testing.T) {
	in := randomInstance(t, 20, 14)
	runs := newMemoryRuns()

	out, err := RunBatch(context.Background(), RunSearchRequest{Ref: "random", Config: searchConfig(20)}, []int64{1, 2, 3}, 2,
		RunSearchDeps{Source: staticSource{in}, Runs: runs})
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	if len(out) != 3 || len(runs.runs) != 3 {
		t.Fatalf("results = %d, saved = %d, want 3 each", len(out), len(runs.runs))
	}
	for i, seed := range []int64{1, 2, 3} {
		if out[i].Run.Seed != seed {
			t.Fatalf("result %d seed = %d, want %d", i, out[i].Run.Seed, seed)
		}
	}
}

// slowRuns fails sample writes whose context ends while the write is in flight.
type slowRuns struct {
	*memoryRuns
}

func (r slowRuns) AddSample(ctx context.Context, runID string, s domain.Sample) error {
	time.Sleep(20 * time.Millisecond)
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.memoryRuns.AddSample(ctx, runID, s)
}

type cancelOnImprovement struct {
	cancel context.CancelFunc
}

func (c cancelOnImprovement) OnStart(*domain.Instance, config.Config)      {}
func (c cancelOnImprovement) OnImprovement(domain.Sample, domain.RoutePlan) { c.cancel() }
func (c cancelOnImprovement) OnFinish(search.Result)                       {}

func TestRunSearchKeepsSamplesOfCancelledRun(t *testing.T) {
	in := randomInstance(t, 20, 15)
	runs := newMemoryRuns()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := RunSearchRequest{
		Instance:  in,
		Config:    searchConfig(1000),
		Observers: []search.Observer{cancelOnImprovement{cancel: cancel}},
	}
	out, err := RunSearch(ctx, req, RunSearchDeps{Runs: slowRuns{runs}})
	if err != nil {
		t.Fatalf("run search: %v", err)
	}
	if len(out.Result.Samples) == 0 {
		t.Fatalf("cancelled run has no samples")
	}
	if len(runs.runs) != 1 {
		t.Fatalf("saved runs = %d, want 1", len(runs.runs))
	}
	if got, want := len(runs.samples[out.Run.ID]), len(out.Result.Samples); got != want {
		t.Fatalf("persisted samples = %d, want %d", got, want)
	}
}

// brokenToolkit leaves every customer unrouted once released.
type brokenToolkit struct {
	release <-chan struct{}
}

func (b brokenToolkit) Construct(*solution.Solution)                        { <-b.release }
func (b brokenToolkit) Insert(*solution.Solution, []*solution.Node) float64 { return 0 }
func (b brokenToolkit) MakeFeasible(*solution.Solution)                     {}
func (b brokenToolkit) LocalSearch(*solution.Solution, bool)                {}

// firstRunBroken hands the first engine a broken toolkit that fails only
// after a second engine has been built.
type firstRunBroken struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
}

func (f *firstRunBroken) NewToolkit(in *domain.Instance, rng *rand.Rand) ports.Toolkit {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	switch f.calls {
	case 1:
		return brokenToolkit{release: f.started}
	case 2:
		close(f.started)
	}
	return Toolkits{Varphi: 40}.NewToolkit(in, rng)
}

func TestRunBatchFailureDoesNotCutRunningSearches(t *testing.T) {
	in := randomInstance(t, 20, 16)
	cfg := searchConfig(100)
	cfg.Debug = true
	deps := RunSearchDeps{Factory: &firstRunBroken{started: make(chan struct{})}}

	out, err := RunBatch(context.Background(), RunSearchRequest{Instance: in, Config: cfg}, []int64{1, 2}, 2, deps)
	if err == nil {
		t.Fatalf("expected the broken run to fail the batch")
	}

	finished := 0
	for _, r := range out {
		if r.Run.ID == "" {
			continue
		}
		finished++
		if r.Result.Iterations != 100 {
			t.Fatalf("iterations = %d, want 100 for a run that was already searching", r.Result.Iterations)
		}
	}
	if finished != 1 {
		t.Fatalf("finished runs = %d, want 1", finished)
	}
}
