package diversity

// Schedule turns the run's consumption into normalized progress. In time
// mode Elapsed reports the accounted CPU seconds of the run; in iteration
// mode the caller's iteration count is used.
type Schedule struct {
	ByTime  bool
	Budget  float64
	Elapsed func() float64
}

func (s Schedule) Progress(iteration int) float64 {
	if s.Budget <= 0 {
		return 0
	}
	if s.ByTime {
		if s.Elapsed == nil {
			return 0
		}
		return s.Elapsed() / s.Budget
	}
	return float64(iteration) / s.Budget
}
