package diversity

import "math"

// DistAdjustment shrinks the ideal distance from DMax towards DMin.
// Every call multiplies it by the decay factor of the current progress.
type DistAdjustment struct {
	ideal      *IdealDist
	dMin, dMax float64
	decay      DecayFunction
	schedule   Schedule
	iteration  int
}

// NewDistAdjustment resets ideal to dMax.
func NewDistAdjustment(ideal *IdealDist, dMin, dMax float64, decay DecayFunction, schedule Schedule) *DistAdjustment {
	if decay == nil {
		decay = Exponential
	}
	ideal.set(dMax)
	return &DistAdjustment{ideal: ideal, dMin: dMin, dMax: dMax, decay: decay, schedule: schedule}
}

func (a *DistAdjustment) Adjust() {
	a.iteration++
	alpha := a.decay(a.schedule.Progress(a.iteration))
	alpha = math.Min(1, math.Max(0, alpha))

	d := a.ideal.Get() * alpha
	a.ideal.set(math.Min(a.dMax, math.Max(d, a.dMin)))
}
