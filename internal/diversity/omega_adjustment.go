package diversity

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/atomic"
)

// Smallest denominator used by the feedback controllers.
const minPositive = 1e-9

// OmegaAdjustment adapts one operator's neighborhood size so that the
// displacement it actually causes tracks the ideal distance.
type OmegaAdjustment struct {
	omega    *atomic.Float64
	ideal    *IdealDist
	observed *Mean
	gamma    int
	calls    int
	omegaMax float64
}

// NewOmegaAdjustment starts omega at the current ideal distance. size is the
// instance size including the depot; omega stays within [1, size-2].
func NewOmegaAdjustment(ideal *IdealDist, gamma, size int) *OmegaAdjustment {
	if gamma < 1 {
		gamma = 1
	}
	a := &OmegaAdjustment{
		ideal:    ideal,
		observed: NewMean(gamma),
		gamma:    gamma,
		omegaMax: math.Max(1, float64(size-2)),
	}
	a.omega = atomic.NewFloat64(a.clamp(ideal.Get()))
	return a
}

func (a *OmegaAdjustment) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Min(a.omegaMax, math.Max(1, v))
}

// SetDistance records one observed displacement. Every gamma calls omega is
// scaled by idealDist / mean observed displacement.
func (a *OmegaAdjustment) SetDistance(d float64) {
	a.observed.Add(d)
	a.calls++
	if a.calls%a.gamma != 0 {
		return
	}
	mean := math.Max(a.observed.Value(), minPositive)
	a.omega.Store(a.clamp(a.omega.Load() * a.ideal.Get() / mean))
}

// ActualOmega is omega rounded to the integer domain [1, size-2].
func (a *OmegaAdjustment) ActualOmega() int {
	return int(math.Round(a.clamp(a.omega.Load())))
}

func (a *OmegaAdjustment) Omega() float64 { return a.omega.Load() }

func (a *OmegaAdjustment) String() string {
	return fmt.Sprintf("omega=%.2f actual=%d observed=%.2f", a.omega.Load(), a.ActualOmega(), a.observed.Value())
}

// OmegaRegistry hands out one OmegaAdjustment per operator kind, created on
// first use. Kinds scoped by route count pass numRoutes > 0 and get one
// adjustment per (kind, numRoutes).
type OmegaRegistry struct {
	ideal *IdealDist
	gamma int
	size  int

	mu   sync.Mutex
	byID map[string]*OmegaAdjustment
}

func NewOmegaRegistry(ideal *IdealDist, gamma, size int) *OmegaRegistry {
	return &OmegaRegistry{ideal: ideal, gamma: gamma, size: size, byID: make(map[string]*OmegaAdjustment)}
}

func (r *OmegaRegistry) Get(kind string, numRoutes int) *OmegaAdjustment {
	key := kind
	if numRoutes > 0 {
		key = fmt.Sprintf("%s%d", kind, numRoutes)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[key]
	if !ok {
		a = NewOmegaAdjustment(r.ideal, r.gamma, r.size)
		r.byID[key] = a
	}
	return a
}

// Snapshot returns the current omega of every adjustment by key.
func (r *OmegaRegistry) Snapshot() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.byID))
	for k, a := range r.byID {
		out[k] = a.Omega()
	}
	return out
}
