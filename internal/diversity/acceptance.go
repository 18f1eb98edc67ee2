package diversity

import "math"

// AcceptanceCriterion is a threshold-accepting gate on local search optima.
//
// A candidate is accepted when f <= upperLimit + eta*(mean - upperLimit),
// where mean is the running mean of the last gamma candidates and upperLimit
// is the best candidate since the last re-anchoring. Every gamma calls
// upperLimit is reset to the best value seen in that period and eta moves
// geometrically from etaMax towards etaMin following the schedule.
type AcceptanceCriterion struct {
	etaMin, etaMax float64
	eta            float64
	gamma          int
	schedule       Schedule
	window         *Mean

	upperLimit        float64
	updatedUpperLimit float64
	threshold         float64
	iteration         int
}

func NewAcceptanceCriterion(etaMin, etaMax float64, gamma int, schedule Schedule) *AcceptanceCriterion {
	if gamma < 1 {
		gamma = 1
	}
	return &AcceptanceCriterion{
		etaMin:            etaMin,
		etaMax:            etaMax,
		eta:               etaMax,
		gamma:             gamma,
		schedule:          schedule,
		window:            NewMean(gamma),
		upperLimit:        math.Inf(1),
		updatedUpperLimit: math.Inf(1),
		threshold:         math.Inf(1),
	}
}

// Accept records f and reports whether it passes the current threshold.
func (a *AcceptanceCriterion) Accept(f float64) bool {
	a.iteration++
	a.window.Add(f)

	if f < a.upperLimit {
		a.upperLimit = f
	}
	if f < a.updatedUpperLimit {
		a.updatedUpperLimit = f
	}
	if a.iteration%a.gamma == 0 {
		a.eta = a.etaAt(a.schedule.Progress(a.iteration))
		a.upperLimit = a.updatedUpperLimit
		a.updatedUpperLimit = math.Inf(1)
	}

	a.threshold = a.upperLimit + a.eta*(a.window.Value()-a.upperLimit)
	return f <= a.threshold
}

func (a *AcceptanceCriterion) etaAt(progress float64) float64 {
	if a.etaMax <= 0 {
		return 0
	}
	p := clampProgress(progress)
	return math.Max(a.etaMin, a.etaMax*math.Pow(math.Max(a.etaMin, 0)/a.etaMax, p))
}

func (a *AcceptanceCriterion) Eta() float64 { return a.eta }

func (a *AcceptanceCriterion) UpperLimit() float64 { return a.upperLimit }

func (a *AcceptanceCriterion) Threshold() float64 { return a.threshold }
