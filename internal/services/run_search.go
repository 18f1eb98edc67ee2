package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/search"

	"github.com/google/uuid"
)

type RunSearchRequest struct {
	// Instance is searched directly when set; otherwise Ref is loaded.
	Instance *domain.Instance
	Ref      string
	Config   config.Config
	// Extra observers, notified after the persistence observer.
	Observers []search.Observer
}

// Adapters used by RunSearch. Only Source is required, and only for
// requests that carry a Ref.
type RunSearchDeps struct {
	Source     ports.InstanceSource
	Runs       ports.RunRepository
	Incumbents ports.IncumbentStore
	Factory    ports.ToolkitFactory
	Host       string
}

type RunSearchResult struct {
	Run    domain.Run
	Result search.Result
	// Set when the incumbent store took the run's best plan.
	NewIncumbent bool
}

// sampleSink writes improvement samples to the run repository from its own
// goroutine so a slow database never stalls the search thread. Its context
// must outlive the search: cancellation is a normal way for a run to end.
type sampleSink struct {
	ch   chan domain.Sample
	wg   sync.WaitGroup
	errs []error
}

func newSampleSink(ctx context.Context, runID string, repo ports.RunRepository) *sampleSink {
	s := &sampleSink{ch: make(chan domain.Sample, 64)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for sample := range s.ch {
			if err := repo.AddSample(ctx, runID, sample); err != nil {
				s.errs = append(s.errs, err)
			}
		}
	}()
	return s
}

func (s *sampleSink) OnStart(*domain.Instance, config.Config) {}

func (s *sampleSink) OnImprovement(sample domain.Sample, _ domain.RoutePlan) { s.ch <- sample }

func (s *sampleSink) OnFinish(search.Result) {}

// Close drains pending samples and returns the write failures.
func (s *sampleSink) Close() error {
	close(s.ch)
	s.wg.Wait()
	return errors.Join(s.errs...)
}

// RunSearch loads the instance, targets its best known cost when the config
// has none, runs the engine and records the outcome. Persistence failures
// after the search are logged; the search result is still returned.
func RunSearch(ctx context.Context, req RunSearchRequest, deps RunSearchDeps) (_ RunSearchResult, err error) {
	runID := uuid.NewString()
	ctx = obs.WithRunID(ctx, runID)
	defer obs.Time(ctx, "run_search")(&err)

	inst := req.Instance
	if inst == nil {
		if deps.Source == nil {
			return RunSearchResult{}, errors.New("run search: no instance and no instance source")
		}
		if inst, err = deps.Source.Load(ctx, req.Ref); err != nil {
			return RunSearchResult{}, fmt.Errorf("run search: %w", err)
		}
	}

	cfg := req.Config
	if cfg.Optimal <= 0 && deps.Runs != nil {
		bk, err := deps.Runs.BestKnown(ctx, inst.Name)
		switch {
		case err == nil:
			cfg.Optimal = bk.Cost
			obs.Logf(ctx, "op=run_search instance=%s best_known=%.2f", inst.Name, bk.Cost)
		case !errors.Is(err, ports.ErrNotFound):
			obs.Logf(ctx, "op=run_search instance=%s best_known_err=%v", inst.Name, err)
		}
	}

	factory := deps.Factory
	if factory == nil {
		factory = Toolkits{Varphi: cfg.Varphi}
	}

	var sink *sampleSink
	obsList := search.MultiObserver{}
	if deps.Runs != nil {
		sink = newSampleSink(context.WithoutCancel(ctx), runID, deps.Runs)
		obsList = append(obsList, sink)
	}
	obsList = append(obsList, req.Observers...)

	engine, err := search.NewEngine(inst, cfg, search.Deps{Factory: factory, Observer: obsList})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return RunSearchResult{}, fmt.Errorf("run search: %w", err)
	}

	started := time.Now()
	res, searchErr := engine.Search(ctx)
	if sink != nil {
		if err := sink.Close(); err != nil {
			obs.Logf(ctx, "op=run_search phase=samples err=%v", err)
		}
	}
	if searchErr != nil {
		return RunSearchResult{}, fmt.Errorf("run search: %w", searchErr)
	}

	out := RunSearchResult{
		Run: domain.Run{
			ID:          runID,
			Instance:    inst.Name,
			Fingerprint: inst.Fingerprint(),
			Seed:        cfg.Seed,
			StartedAt:   started,
			Cost:        res.Best.Cost,
			Routes:      len(res.Best.Routes),
			Iterations:  res.Iterations,
			TotalTime:   res.TotalTime,
			TimeOfBest:  res.TimeOfBest,
			Host:        deps.Host,
			Plan:        res.Best,
		},
		Result: res,
	}

	// Persistence must not be cut short by the cancellation that ended the search.
	storeCtx := context.WithoutCancel(ctx)
	if deps.Runs != nil {
		if err := deps.Runs.SaveRun(storeCtx, out.Run); err != nil {
			obs.Logf(ctx, "op=run_search phase=save err=%v", err)
		}
	}
	if deps.Incumbents != nil {
		updated, err := deps.Incumbents.PutIfBetter(storeCtx, out.Run.Fingerprint, res.Best)
		if err != nil {
			obs.Logf(ctx, "op=run_search phase=incumbent err=%v", err)
		}
		out.NewIncumbent = updated
	}

	return out, nil
}

// RunBatch repeats req once per seed, at most parallelism runs at a time,
// and returns the results in seed order. The first failure stops the runs
// still waiting for a slot; runs already searching finish under ctx.
// req.Observers are shared by concurrent runs.
func RunBatch(
	ctx context.Context,
	req RunSearchRequest,
	seeds []int64,
	parallelism int,
	deps RunSearchDeps,
) ([]RunSearchResult, error) {
	if parallelism < 1 {
		parallelism = 1
	}
	if req.Instance == nil && len(seeds) > 1 {
		if deps.Source == nil {
			return nil, errors.New("run batch: no instance and no instance source")
		}
		inst, err := deps.Source.Load(ctx, req.Ref)
		if err != nil {
			return nil, fmt.Errorf("run batch: %w", err)
		}
		req.Instance = inst
	}

	failed, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, parallelism)
	results := make([]RunSearchResult, len(seeds))
	errs := make([]error, len(seeds))
	var wg sync.WaitGroup

	for i, seed := range seeds {
		wg.Add(1)
		go func(i int, seed int64) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-failed.Done():
				errs[i] = failed.Err()
				return
			}
			defer func() { <-sem }()

			r := req
			r.Config.Seed = seed
			results[i], errs[i] = RunSearch(ctx, r, deps)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("run batch: seed %d: %w", seed, errs[i])
				cancel()
			}
		}(i, seed)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return results, err
		}
	}
	if err := errors.Join(errs...); err != nil {
		return results, err
	}
	return results, nil
}
