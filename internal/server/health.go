package server

import (
	"context"
	"net/http"
	"time"
)

type healthCheck struct {
	Status string `json:"status"` // "ok" | "error"
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status string                 `json:"status"` // "ok" | "degraded" | "unhealthy"
	Checks map[string]healthCheck `json:"checks"`
}

// handleHealthz probes every dependency. The store or queue being down
// makes the service unhealthy; a degraded pool cache only degrades it
// (discovery falls back to polling).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]healthCheck{}}
	unhealthy := false
	degraded := false

	if err := s.store.Ping(ctx); err != nil {
		resp.Checks["store"] = healthCheck{Status: "error", Detail: err.Error()}
		unhealthy = true
	} else {
		resp.Checks["store"] = healthCheck{Status: "ok"}
	}

	if !s.queue.Running() {
		resp.Checks["queue"] = healthCheck{Status: "error", Detail: "workers not running"}
		unhealthy = true
	} else {
		resp.Checks["queue"] = healthCheck{Status: "ok"}
	}

	if s.cache != nil {
		if err := s.cache.Ping(); err != nil {
			resp.Checks["pool_cache"] = healthCheck{Status: "error", Detail: err.Error()}
			degraded = true
		} else {
			resp.Checks["pool_cache"] = healthCheck{Status: "ok"}
		}
	}

	if len(s.venues) == 0 {
		resp.Checks["venues"] = healthCheck{Status: "error", Detail: "no venues configured"}
		unhealthy = true
	} else {
		resp.Checks["venues"] = healthCheck{Status: "ok"}
	}

	code := http.StatusOK
	switch {
	case unhealthy:
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case degraded:
		resp.Status = "degraded"
	}
	writeJSON(w, code, resp)
}
