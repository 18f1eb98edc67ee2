package search

import (
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
)

// Observer receives the outputs of a run. Calls come from the orchestrator
// goroutine, in order.
type Observer interface {
	OnStart(inst *domain.Instance, cfg config.Config)
	// Called for the initial solution and every later improvement of the best.
	OnImprovement(sample domain.Sample, best domain.RoutePlan)
	OnFinish(res Result)
}

type nopObserver struct{}

func (nopObserver) OnStart(*domain.Instance, config.Config)     {}
func (nopObserver) OnImprovement(domain.Sample, domain.RoutePlan) {}
func (nopObserver) OnFinish(Result)                               {}

// Result summarizes a finished run.
type Result struct {
	Best            domain.RoutePlan
	Iterations      int
	IterationOfBest int
	// Accounted CPU seconds when the best was found and at the end.
	TimeOfBest float64
	TotalTime  float64
	Samples    []domain.Sample
	// Final omega per operator key.
	Omegas map[string]float64
}

// MultiObserver fans every callback out to its members, in order.
type MultiObserver []Observer

func (m MultiObserver) OnStart(inst *domain.Instance, cfg config.Config) {
	for _, o := range m {
		o.OnStart(inst, cfg)
	}
}

func (m MultiObserver) OnImprovement(sample domain.Sample, best domain.RoutePlan) {
	for _, o := range m {
		o.OnImprovement(sample, best)
	}
}

func (m MultiObserver) OnFinish(res Result) {
	for _, o := range m {
		o.OnFinish(res)
	}
}
