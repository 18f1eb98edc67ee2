package diversity

import "go.uber.org/atomic"

// IdealDist is the shared diversification target of one search run.
// Only DistAdjustment writes it; readers may run on other goroutines.
type IdealDist struct {
	v *atomic.Float64
}

func NewIdealDist(initial float64) *IdealDist {
	return &IdealDist{v: atomic.NewFloat64(initial)}
}

func (d *IdealDist) Get() float64 { return d.v.Load() }

func (d *IdealDist) set(v float64) { d.v.Store(v) }
