// Package health carries the wire shape of the gateway's probe endpoints
// for CLI consumers.
package health

// Statuses reported by the probes.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ServiceInfo is the data payload of the liveness probe.
type ServiceInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
}

// Response is the body of GET /health and GET /health/ready.
type Response struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Data      ServiceInfo `json:"data"`
	Error     string      `json:"error,omitempty"`
}

// Healthy reports whether the probe succeeded.
func (r *Response) Healthy() bool { return r.Status == StatusHealthy }
