package handlers

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports liveness and, when DB is set, database reachability.
type HealthHandler struct {
	DB Pinger
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if !allowOnly(w, r, http.MethodGet) {
		return
	}

	res := map[string]string{"status": "ok"}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			res["status"] = "degraded"
			res["database"] = err.Error()
			writeJSON(w, r, http.StatusServiceUnavailable, res)
			return
		}
		res["database"] = "ok"
	}
	writeJSON(w, r, http.StatusOK, res)
}
