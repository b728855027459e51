package handlers

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealth runs every dependency check; any failure answers 503
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "healthy", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			resp.Checks[check.Name()] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name()] = "ok"
	}

	writeJSON(w, status, resp)
}

// CheckFunc adapts a function to HealthCheck
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckFunc) Name() string                    { return c.CheckName }
func (c CheckFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
