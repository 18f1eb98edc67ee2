package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"go.uber.org/atomic"

	"vrp-search-service/internal/config"
	"vrp-search-service/internal/diversity"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/perturbation"
	"vrp-search-service/internal/platform/cputime"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/solution"
)

var ErrShutdownTimeout = errors.New("search: branches did not finish before the shutdown timeout")

type State int32

const (
	Initializing State = iota
	Iterating
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Iterating:
		return "Iterating"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Deps struct {
	Factory  ports.ToolkitFactory
	Observer Observer
}

// branch is one perturbation, repair and local search pipeline with its own
// scratch solution and collaborators.
type branch struct {
	sol       *solution.Solution
	toolkit   ports.Toolkit
	operators []perturbation.Operator

	// Set by each run.
	op  perturbation.Operator
	cpu float64
}

func (b *branch) run(ref *solution.Solution, opIndex int) error {
	b.sol.Clone(ref)
	b.op = b.operators[opIndex]
	if err := b.op.Apply(b.sol); err != nil {
		return fmt.Errorf("apply %s: %w", b.op.Type(), err)
	}
	b.toolkit.MakeFeasible(b.sol)
	b.toolkit.LocalSearch(b.sol, true)
	return nil
}

// Engine runs one AILS-II search over an instance. It is not reusable.
type Engine struct {
	inst     *domain.Instance
	cfg      config.Config
	observer Observer
	state    *atomic.Int32

	rng        *rand.Rand
	selectOp   selection
	ideal      *diversity.IdealDist
	omegas     *diversity.OmegaRegistry
	distAdj    *diversity.DistAdjustment
	acceptance *diversity.AcceptanceCriterion

	branches  []*branch
	reference *solution.Solution
	best      *solution.Solution

	iteration       int
	iterationOfBest int
	timeOfBest      float64
	samples         []domain.Sample

	clock     cputime.Stopwatch
	branchCPU float64
}

// NewEngine validates cfg and wires the diversity controllers, branches and
// operators. The parallel variant gets two branches, the sequential one.
func NewEngine(inst *domain.Instance, cfg config.Config, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}
	if deps.Factory == nil {
		return nil, errors.New("new engine: toolkit factory is nil")
	}
	decay, err := diversity.ParseDecay(cfg.Decay)
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e := &Engine{
		inst:     inst,
		cfg:      cfg,
		observer: deps.Observer,
		state:    atomic.NewInt32(int32(Initializing)),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.selectOp, err = newSelection(cfg.Selection, e.rng); err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	schedule := diversity.Schedule{
		ByTime:  cfg.StoppingCriterion == config.Time,
		Budget:  cfg.Limit,
		Elapsed: e.elapsed,
	}
	e.ideal = diversity.NewIdealDist(cfg.DMax)
	e.omegas = diversity.NewOmegaRegistry(e.ideal, cfg.Gamma, inst.Size())
	e.distAdj = diversity.NewDistAdjustment(e.ideal, cfg.DMin, cfg.DMax, decay, schedule)
	e.acceptance = diversity.NewAcceptanceCriterion(cfg.EtaMin, cfg.EtaMax, cfg.Gamma, schedule)

	numBranches := 1
	if cfg.Parallel {
		numBranches = 2
	}
	for i := 0; i < numBranches; i++ {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i) + 1))
		tk := deps.Factory.NewToolkit(inst, rng)
		ops, err := perturbation.New(cfg.Perturbations, perturbation.Deps{
			Inst:                 inst,
			Omegas:               e.omegas,
			Toolkit:              tk,
			Rng:                  rng,
			Epsilon:              cfg.Epsilon,
			Factory:              deps.Factory,
			TargetMaxSpCustomers: cfg.TargetMaxSpCustomers,
			Rounds:               cfg.DecompositionRounds,
			KNNLimit:             cfg.KNNLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("new engine: %w", err)
		}
		e.branches = append(e.branches, &branch{
			sol:       solution.New(inst, cfg.Epsilon),
			toolkit:   tk,
			operators: ops,
		})
	}
	e.reference = solution.New(inst, cfg.Epsilon)
	e.best = solution.New(inst, cfg.Epsilon)

	return e, nil
}

func (e *Engine) State() State { return State(e.state.Load()) }

// elapsed is the accounted CPU time of the run: the orchestrator thread plus
// the per-iteration accounting of parallel branches. Only valid on the
// orchestrator goroutine.
func (e *Engine) elapsed() float64 { return e.clock.Elapsed() + e.branchCPU }

// Search runs until the best cost reaches cfg.Optimal, the budget is spent
// or ctx is cancelled. Cancellation is a normal stop and returns the best
// found so far; only shutdown timeouts and failed Debug checks are errors.
func (e *Engine) Search(ctx context.Context) (res Result, err error) {
	defer obs.Time(ctx, "search")(&err)
	if e.State() != Initializing {
		return Result{}, errors.New("search: engine already used")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	e.clock = cputime.Start()
	defer e.state.Store(int32(Stopped))

	e.observer.OnStart(e.inst, e.cfg)
	if err := e.initialize(ctx); err != nil {
		return Result{}, err
	}

	e.state.Store(int32(Iterating))
	for !e.shouldStop(ctx) {
		e.iteration++

		cand, op, err := e.iterate(ctx)
		if err != nil {
			return e.result(), err
		}
		if e.cfg.Debug {
			if err := cand.Checking(fmt.Sprintf("iteration %d after %s", e.iteration, op.Type()), false, false); err != nil {
				return e.result(), fmt.Errorf("search: %w", err)
			}
		}

		distance := solution.PairwiseDistance(cand, e.reference)
		e.evaluate(ctx, cand)
		e.distAdj.Adjust()
		if omega := op.ChosenOmega(); omega != nil {
			omega.SetDistance(float64(distance))
		}

		accepted := cand.Feasible() && e.acceptance.Accept(cand.F)
		if accepted {
			e.reference.Clone(cand)
		}
		if e.cfg.Print {
			obs.Logf(ctx, "iter=%d op=%s f=%.2f dist=%d ideal=%.2f eta=%.4f accepted=%t best=%.2f",
				e.iteration, op.Type(), cand.F, distance, e.ideal.Get(), e.acceptance.Eta(), accepted, e.best.F)
		}
	}

	res = e.result()
	obs.Logf(ctx, "op=search phase=finish iterations=%d best=%.2f iter_of_best=%d time_of_best=%.3f total_time=%.3f",
		res.Iterations, res.Best.Cost, res.IterationOfBest, res.TimeOfBest, res.TotalTime)
	e.observer.OnFinish(res)
	return res, nil
}

func (e *Engine) initialize(ctx context.Context) error {
	tk := e.branches[0].toolkit
	e.reference.NumRoutes = e.inst.MinNumberRoutes()
	tk.Construct(e.reference)
	tk.MakeFeasible(e.reference)
	tk.LocalSearch(e.reference, true)
	if e.cfg.Debug {
		if err := e.reference.Checking("initial solution", false, false); err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}

	e.best.Clone(e.reference)
	e.record()
	obs.Logf(ctx, "op=search phase=initial time=%.3f best=%.2f routes=%d feasible=%t",
		e.timeOfBest, e.best.F, e.best.NumRoutes, e.best.Feasible())
	return nil
}

// evaluate promotes a feasible candidate that beats the best by more than epsilon.
func (e *Engine) evaluate(ctx context.Context, cand *solution.Solution) {
	if !cand.Feasible() || cand.F-e.best.F >= -e.cfg.Epsilon {
		return
	}
	e.best.Clone(cand)
	e.record()
	obs.Logf(ctx, "op=search phase=improvement iter=%d time=%.3f best=%.2f", e.iteration, e.timeOfBest, e.best.F)
}

func (e *Engine) record() {
	e.iterationOfBest = e.iteration
	e.timeOfBest = e.elapsed()
	sample := domain.Sample{Iteration: e.iteration, Time: e.timeOfBest, Cost: e.best.F}
	e.samples = append(e.samples, sample)
	e.observer.OnImprovement(sample, e.best.Plan())
}

func (e *Engine) shouldStop(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	if e.cfg.Optimal > 0 && e.best.F <= e.cfg.Optimal {
		return true
	}
	if e.cfg.StoppingCriterion == config.Iteration {
		return float64(e.iteration) >= e.cfg.Limit
	}
	return e.elapsed() >= e.cfg.Limit
}

// iterate produces this iteration's candidate and the operator that made it.
func (e *Engine) iterate(ctx context.Context) (*solution.Solution, perturbation.Operator, error) {
	if len(e.branches) == 1 {
		b := e.branches[0]
		if err := b.run(e.reference, e.selectOp(len(b.operators))); err != nil {
			return nil, nil, fmt.Errorf("search: iteration %d: %w", e.iteration, err)
		}
		return b.sol, b.op, nil
	}

	winner, err := e.runBranches(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("search: iteration %d: %w", e.iteration, err)
	}
	return winner.sol, winner.op, nil
}

func (e *Engine) result() Result {
	return Result{
		Best:            e.best.Plan(),
		Iterations:      e.iteration,
		IterationOfBest: e.iterationOfBest,
		TimeOfBest:      e.timeOfBest,
		TotalTime:       e.elapsed(),
		Samples:         append([]domain.Sample(nil), e.samples...),
		Omegas:          e.omegas.Snapshot(),
	}
}
