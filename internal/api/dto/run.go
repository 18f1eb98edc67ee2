package dto

import "time"

type RunResponse struct {
	ID          string    `json:"id"`
	Instance    string    `json:"instance"`
	Fingerprint string    `json:"fingerprint"`
	Seed        int64     `json:"seed"`
	StartedAt   time.Time `json:"started_at"`
	Cost        float64   `json:"cost"`
	Routes      int       `json:"routes"`
	Iterations  int       `json:"iterations"`
	TotalTime   float64   `json:"total_time"`
	TimeOfBest  float64   `json:"time_of_best"`
	Host        string    `json:"host"`
}

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type SampleResponse struct {
	Iteration int     `json:"iteration"`
	Time      float64 `json:"time"`
	Cost      float64 `json:"cost"`
}

type ListSamplesResponse struct {
	RunID   string           `json:"run_id"`
	Samples []SampleResponse `json:"samples"`
}
