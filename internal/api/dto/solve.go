package dto

import "vrp-search-service/internal/adapters/instance"

// SolveRequest carries either an inline instance or a reference resolved by
// the server's instance source. Iterations selects an iteration budget,
// otherwise Seconds is a CPU time budget.
type SolveRequest struct {
	Instance      *instance.Document `json:"instance"`
	Ref           string             `json:"ref"`
	Iterations    int                `json:"iterations"`
	Seconds       float64            `json:"seconds"`
	Seed          *int64             `json:"seed"`
	Parallel      bool               `json:"parallel"`
	Perturbations []string           `json:"perturbations"`
}

type SolveResponse struct {
	RunID        string  `json:"run_id"`
	Instance     string  `json:"instance"`
	Cost         float64 `json:"cost"`
	Routes       [][]int `json:"routes"`
	Iterations   int     `json:"iterations"`
	TimeOfBest   float64 `json:"time_of_best"`
	TotalTime    float64 `json:"total_time"`
	NewIncumbent bool    `json:"new_incumbent"`
}
