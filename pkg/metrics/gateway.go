package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// GatewayMetrics instruments the request-dispatch path.
type GatewayMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestErrors    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge
	registryReloads  prometheus.Counter
	registryEntries  prometheus.Gauge
	registryErrors   prometheus.Gauge
	tokenVerifies    *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
}

// NewGatewayMetrics creates the Prometheus collectors for the gateway.
//
// Returns nil if metrics are not enabled (InitRegistry not called); all
// methods on a nil receiver are no-ops.
func NewGatewayMetrics() *GatewayMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &GatewayMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portway_requests_total",
				Help: "Total number of gateway requests by environment, handler kind, method and status",
			},
			[]string{"environment", "kind", "method", "status"},
		),
		requestErrors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portway_request_errors_total",
				Help: "Total number of non-2xx gateway responses by error kind",
			},
			[]string{"kind"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "portway_request_duration_milliseconds",
				Help: "Request handling duration in milliseconds by handler kind",
				Buckets: []float64{
					1,     // in-memory (static, health)
					5,     // fast SQL
					10,    //
					50,    //
					100,   // typical SQL / proxy
					500,   //
					1000,  // 1s - slow upstream
					5000,  // 5s
					30000, // 30s - default deadline
				},
			},
			[]string{"kind"},
		),
		requestsInFlight: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "portway_requests_in_flight",
				Help: "Current number of requests being handled",
			},
		),
		registryReloads: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "portway_registry_reloads_total",
				Help: "Total number of endpoint registry rescans",
			},
		),
		registryEntries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "portway_registry_endpoints",
				Help: "Number of endpoints in the current registry snapshot",
			},
		),
		registryErrors: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "portway_registry_load_errors",
				Help: "Number of descriptor load errors in the current registry snapshot",
			},
		),
		tokenVerifies: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portway_token_verifications_total",
				Help: "Total number of bearer token verifications by result",
			},
			[]string{"result"}, // "ok", "denied"
		),
		upstreamCalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "portway_upstream_calls_total",
				Help: "Total number of proxied upstream calls by endpoint and status class",
			},
			[]string{"endpoint", "class"}, // class: "2xx".."5xx", "error"
		),
	}
}

// ObserveRequest records one completed request.
func (m *GatewayMetrics) ObserveRequest(environment, kind, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(environment, kind, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(duration.Seconds() * 1000)
}

// RecordError counts a non-2xx response by its error kind.
func (m *GatewayMetrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(kind).Inc()
}

// RequestStarted increments the in-flight gauge; the returned func
// decrements it and must be called when the request finishes.
func (m *GatewayMetrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.requestsInFlight.Inc()
	return m.requestsInFlight.Dec
}

// RecordRegistryReload records one rescan and the resulting snapshot sizes.
func (m *GatewayMetrics) RecordRegistryReload(endpoints, loadErrors int) {
	if m == nil {
		return
	}
	m.registryReloads.Inc()
	m.registryEntries.Set(float64(endpoints))
	m.registryErrors.Set(float64(loadErrors))
}

// RecordTokenVerification counts a verification attempt.
func (m *GatewayMetrics) RecordTokenVerification(ok bool) {
	if m == nil {
		return
	}
	result := "denied"
	if ok {
		result = "ok"
	}
	m.tokenVerifies.WithLabelValues(result).Inc()
}

// RecordUpstreamCall counts a proxied call by response class.
func (m *GatewayMetrics) RecordUpstreamCall(endpoint string, status int) {
	if m == nil {
		return
	}

	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	m.upstreamCalls.WithLabelValues(endpoint, class).Inc()
}
