package api

import (
	"net/http"
	"vrp-search-service/internal/api/handlers"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/services"
)

type RouterDeps struct {
	DB       handlers.Pinger
	Search   services.RunSearchDeps
	Defaults config.Config

	MaxSeconds    float64
	MaxIterations int
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	healthHandler := &handlers.HealthHandler{DB: deps.DB}
	solveHandler := &handlers.SolveHandler{
		Deps:          deps.Search,
		Defaults:      deps.Defaults,
		MaxSeconds:    deps.MaxSeconds,
		MaxIterations: deps.MaxIterations,
	}

	mux.HandleFunc("/health", healthHandler.Health)
	mux.HandleFunc("/solve", solveHandler.Solve)
	if deps.Search.Runs != nil {
		runHandler := &handlers.RunHandler{Repo: deps.Search.Runs}
		mux.HandleFunc("/runs", runHandler.List)
		mux.HandleFunc("/runs/{id}/samples", runHandler.Samples)
	}

	return requestIDMiddleware(loggingMiddleware(mux))
}
