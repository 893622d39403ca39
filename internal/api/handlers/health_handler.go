package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

const readinessTimeout = 2 * time.Second

// HealthCheck probes one dependency. A failing Critical check makes the
// instance not ready; other failures only mark it degraded, because the
// service falls back to in-process replacements.
type HealthCheck struct {
	Name     string
	Critical bool
	Probe    func(ctx context.Context) error
}

type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Ready handles GET /health/ready, probing every dependency concurrently
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]error, len(h.checks))
	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Probe(ctx)
		}()
	}
	wg.Wait()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for i, c := range h.checks {
		if results[i] == nil {
			checks[c.Name] = "ok"
			continue
		}
		checks[c.Name] = results[i].Error()
		if c.Critical {
			status, code = "unavailable", http.StatusServiceUnavailable
		} else if status == "ok" {
			status = "degraded"
		}
	}
	respondWithJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}
