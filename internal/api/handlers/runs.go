package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"vrp-search-service/internal/api/dto"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
)

// RunHandler exposes read-only access to persisted search runs.
type RunHandler struct {
	Repo ports.RunRepository
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.Repo.ListRuns(r.Context(), limit)
	if err != nil {
		obs.Logf(r.Context(), "list runs failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListRunsResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, run := range runs {
		res.Runs = append(res.Runs, dto.RunResponse{
			ID:          run.ID,
			Instance:    run.Instance,
			Fingerprint: run.Fingerprint,
			Seed:        run.Seed,
			StartedAt:   run.StartedAt,
			Cost:        run.Cost,
			Routes:      run.Routes,
			Iterations:  run.Iterations,
			TotalTime:   run.TotalTime,
			TimeOfBest:  run.TimeOfBest,
			Host:        run.Host,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}

// Samples returns the improvement trace of the run named by the {id} path value.
func (h *RunHandler) Samples(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	id := r.PathValue("id")
	samples, err := h.Repo.ListSamples(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		log.Printf("%s list samples failed: run=%s err=%v", obs.Fields(r.Context()), id, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	res := dto.ListSamplesResponse{RunID: id, Samples: make([]dto.SampleResponse, 0, len(samples))}
	for _, s := range samples {
		res.Samples = append(res.Samples, dto.SampleResponse{Iteration: s.Iteration, Time: s.Time, Cost: s.Cost})
	}
	writeJSON(w, r, http.StatusOK, res)
}
