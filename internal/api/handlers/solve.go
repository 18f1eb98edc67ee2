package handlers

import (
	"errors"
	"net/http"
	"strings"
	"vrp-search-service/internal/adapters/instance"
	"vrp-search-service/internal/api/dto"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/perturbation"
	"vrp-search-service/internal/platform/obs"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/services"
)

// Bodies larger than this are rejected; inline instances with a few
// thousand customers stay well below it.
const maxSolveBody = 8 << 20

// SolveHandler runs one search per request, synchronously. A client that
// disconnects stops the search; the best plan found so far is still stored.
type SolveHandler struct {
	Deps     services.RunSearchDeps
	Defaults config.Config
	// Upper bounds on the budgets a request may ask for.
	MaxSeconds    float64
	MaxIterations int
}

func (h *SolveHandler) Solve(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodPost) {
		return
	}

	var req dto.SolveRequest
	if err := decodeJSON(w, r, maxSolveBody, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ref := strings.TrimSpace(req.Ref)
	if (req.Instance == nil) == (ref == "") {
		writeError(w, r, http.StatusBadRequest, "exactly one of instance and ref is required")
		return
	}

	cfg := h.Defaults
	switch {
	case req.Iterations < 0 || req.Seconds < 0:
		writeError(w, r, http.StatusBadRequest, "budgets must not be negative")
		return
	case req.Iterations > 0:
		if h.MaxIterations > 0 && req.Iterations > h.MaxIterations {
			writeError(w, r, http.StatusBadRequest, "iterations above the server limit")
			return
		}
		cfg.StoppingCriterion = config.Iteration
		cfg.Limit = float64(req.Iterations)
	case req.Seconds > 0:
		if h.MaxSeconds > 0 && req.Seconds > h.MaxSeconds {
			writeError(w, r, http.StatusBadRequest, "seconds above the server limit")
			return
		}
		cfg.StoppingCriterion = config.Time
		cfg.Limit = req.Seconds
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.Parallel {
		cfg.Parallel = true
	}
	if len(req.Perturbations) > 0 {
		cfg.Perturbations = req.Perturbations
	}

	svcReq := services.RunSearchRequest{Ref: ref, Config: cfg}
	if req.Instance != nil {
		inst, err := req.Instance.Build(domain.InstanceOptions{Rounded: cfg.Rounded, KNNLimit: cfg.KNNLimit})
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		svcReq.Instance = inst
	}

	out, err := services.RunSearch(r.Context(), svcReq, h.Deps)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "instance not found")
		return
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, perturbation.ErrUnknownOperator),
		errors.Is(err, instance.ErrFormat),
		errors.Is(err, domain.ErrInvalidInstance):
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		obs.Logf(r.Context(), "solve failed: %v", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, r, http.StatusOK, dto.SolveResponse{
		RunID:        out.Run.ID,
		Instance:     out.Run.Instance,
		Cost:         out.Run.Cost,
		Routes:       out.Run.Plan.Routes,
		Iterations:   out.Result.Iterations,
		TimeOfBest:   out.Result.TimeOfBest,
		TotalTime:    out.Result.TotalTime,
		NewIncumbent: out.NewIncumbent,
	})
}
