package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/token"
)

// healthResponse is the body of the probe endpoints.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func healthy(data any) healthResponse {
	return healthResponse{Status: "healthy", Timestamp: time.Now().UTC(), Data: data}
}

func unhealthy(errMsg string) healthResponse {
	return healthResponse{Status: "unhealthy", Timestamp: time.Now().UTC(), Error: errMsg}
}

// Health serves the unauthenticated probe endpoints.
//
//   - Liveness: is the server process running?
//   - Readiness: are the endpoint registry and token database usable?
type Health struct {
	registry  *endpoint.Registry
	tokens    *token.Service
	version   string
	startedAt time.Time
}

// NewHealth creates the probe handler. Either dependency may be nil, in
// which case readiness reports unhealthy.
func NewHealth(registry *endpoint.Registry, tokens *token.Service, version string) *Health {
	return &Health{
		registry:  registry,
		tokens:    tokens,
		version:   version,
		startedAt: time.Now(),
	}
}

// Liveness handles GET /health. It succeeds as long as the HTTP server is
// responsive.
func (h *Health) Liveness(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.startedAt)
	gateway.WriteJSON(w, http.StatusOK, healthy(map[string]any{
		"service":    "portway",
		"version":    h.version,
		"started_at": h.startedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready. It answers 200 once the descriptor
// tree has been loaded and the token database responds to a ping, and 503
// otherwise.
func (h *Health) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		gateway.WriteJSON(w, http.StatusServiceUnavailable, unhealthy("endpoint registry not initialized"))
		return
	}
	if h.tokens == nil {
		gateway.WriteJSON(w, http.StatusServiceUnavailable, unhealthy("token service not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.tokens.Healthcheck(ctx); err != nil {
		gateway.WriteJSON(w, http.StatusServiceUnavailable, unhealthy("token database unreachable: "+err.Error()))
		return
	}

	snap := h.registry.Snapshot()
	gateway.WriteJSON(w, http.StatusOK, healthy(map[string]any{
		"endpoints":         snap.Len(),
		"descriptor_errors": len(snap.Errors()),
	}))
}
