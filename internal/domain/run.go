package domain

import "time"

// One (time, cost) point of a search run, recorded on every improvement.
type Sample struct {
	Iteration int
	Time      float64
	Cost      float64
}

// Represents a finished search run as stored by the run repositories.
type Run struct {
	ID          string
	Instance    string
	Fingerprint string
	Seed        int64
	StartedAt   time.Time
	Cost        float64
	Routes      int
	Iterations  int
	TotalTime   float64
	TimeOfBest  float64
	Host        string
	Plan        RoutePlan
}
