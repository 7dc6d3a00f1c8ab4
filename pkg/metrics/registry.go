// Package metrics provides Prometheus instrumentation for the gateway.
//
// The package owns a process-wide custom registry so that collectors are
// only registered when metrics are enabled in the configuration. Components
// obtain their collectors through constructors in this package; every
// constructor returns nil when metrics are disabled, and all collector
// methods are nil-safe, so callers never need to guard call sites.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	gm := metrics.NewGatewayMetrics()
//
//	// Without metrics (zero overhead)
//	var gm *metrics.GatewayMetrics // nil receiver methods are no-ops
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry.
//
// Must be called before any collector constructor for metrics to be
// recorded. Calling it more than once is safe; subsequent calls keep the
// existing registry.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled (InitRegistry not called).
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// ResetForTesting discards the registry so tests can re-initialise it
// without duplicate-registration panics. Not for production use.
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}
