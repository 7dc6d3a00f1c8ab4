package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilReceiversAreNoOps(t *testing.T) {
	var m *GatewayMetrics

	m.ObserveRequest("prod", "sql", "GET", 200, time.Millisecond)
	m.RecordError("not_found")
	m.RecordRegistryReload(3, 0)
	m.RecordTokenVerification(true)
	m.RecordUpstreamCall("orders", 502)

	done := m.RequestStarted()
	if done == nil {
		t.Fatal("RequestStarted on nil receiver returned nil func")
	}
	done()
}

func TestConstructorsReturnNilWhenDisabled(t *testing.T) {
	ResetForTesting()

	if IsEnabled() {
		t.Fatal("IsEnabled true before InitRegistry")
	}
	if GetRegistry() != nil {
		t.Fatal("GetRegistry non-nil before InitRegistry")
	}
	if m := NewGatewayMetrics(); m != nil {
		t.Error("NewGatewayMetrics non-nil while disabled")
	}
	if s := NewServer(9090); s != nil {
		t.Error("NewServer non-nil while disabled")
	}
}

func TestInitRegistryIsIdempotent(t *testing.T) {
	ResetForTesting()

	InitRegistry()
	first := GetRegistry()
	if first == nil {
		t.Fatal("registry not created")
	}
	InitRegistry()
	if GetRegistry() != first {
		t.Error("second InitRegistry replaced the registry")
	}
}

func TestGatewayCollectors(t *testing.T) {
	ResetForTesting()
	InitRegistry()

	m := NewGatewayMetrics()
	if m == nil {
		t.Fatal("NewGatewayMetrics returned nil with metrics enabled")
	}

	m.ObserveRequest("prod", "sql", "GET", 200, 12*time.Millisecond)
	m.ObserveRequest("prod", "sql", "GET", 200, 3*time.Millisecond)
	if got := testutil.ToFloat64(m.requestsTotal.WithLabelValues("prod", "sql", "GET", "200")); got != 2 {
		t.Errorf("requests_total = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.requestDuration); got != 1 {
		t.Errorf("request_duration series = %d, want 1", got)
	}

	m.RecordError("not_found")
	if got := testutil.ToFloat64(m.requestErrors.WithLabelValues("not_found")); got != 1 {
		t.Errorf("request_errors = %v, want 1", got)
	}

	done := m.RequestStarted()
	if got := testutil.ToFloat64(m.requestsInFlight); got != 1 {
		t.Errorf("in_flight = %v, want 1", got)
	}
	done()
	if got := testutil.ToFloat64(m.requestsInFlight); got != 0 {
		t.Errorf("in_flight after done = %v, want 0", got)
	}

	m.RecordRegistryReload(5, 1)
	if got := testutil.ToFloat64(m.registryEntries); got != 5 {
		t.Errorf("registry_endpoints = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.registryErrors); got != 1 {
		t.Errorf("registry_load_errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.registryReloads); got != 1 {
		t.Errorf("registry_reloads = %v, want 1", got)
	}

	m.RecordTokenVerification(true)
	m.RecordTokenVerification(false)
	if got := testutil.ToFloat64(m.tokenVerifies.WithLabelValues("ok")); got != 1 {
		t.Errorf("token ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tokenVerifies.WithLabelValues("denied")); got != 1 {
		t.Errorf("token denied = %v, want 1", got)
	}

	m.RecordUpstreamCall("orders", 502)
	m.RecordUpstreamCall("orders", 0)
	if got := testutil.ToFloat64(m.upstreamCalls.WithLabelValues("orders", "5xx")); got != 1 {
		t.Errorf("upstream 5xx = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.upstreamCalls.WithLabelValues("orders", "error")); got != 1 {
		t.Errorf("upstream error = %v, want 1", got)
	}
}

func TestServerNilReceiver(t *testing.T) {
	var s *Server

	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop on nil receiver: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); err != nil {
		t.Errorf("Start on nil receiver: %v", err)
	}
}
