package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "portway", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false, ServiceName: "portway"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())
}

func TestTracerBeforeInitIsNoOp(t *testing.T) {
	tr := Tracer()
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "anything")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestStartSpanPropagatesContext(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "lookup")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

func TestRecordErrorIsSafeWithoutSpan(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() { RecordError(ctx, nil) })
	assert.NotPanics(t, func() { RecordError(ctx, errors.New("boom")) })
}

func TestSetAttributesIsSafeWithoutSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAttributes(context.Background(), Environment("prod"), HTTPStatus(200))
	})
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		key  string
		got  any
		want any
	}{
		{"ClientAddr", AttrClientAddr, ClientAddr("10.0.0.1:993").Value.AsString(), "10.0.0.1:993"},
		{"HTTPMethod", AttrHTTPMethod, HTTPMethod("POST").Value.AsString(), "POST"},
		{"HTTPStatus", AttrHTTPStatus, HTTPStatus(502).Value.AsInt64(), int64(502)},
		{"Environment", AttrEnvironment, Environment("prod").Value.AsString(), "prod"},
		{"Endpoint", AttrEndpoint, Endpoint("internal/orders").Value.AsString(), "internal/orders"},
		{"HandlerKind", AttrHandler, HandlerKind("sql").Value.AsString(), "sql"},
		{"CorrelationID", AttrCorrelationID, CorrelationID("abc").Value.AsString(), "abc"},
		{"UpstreamURL", AttrUpstreamURL, UpstreamURL("http://erp/svc").Value.AsString(), "http://erp/svc"},
		{"StepName", AttrStepName, StepName("create").Value.AsString(), "create"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.Equal(t, AttrEndpoint, string(Endpoint("x").Key))
}

func TestStartRequestSpan(t *testing.T) {
	ctx, span := StartRequestSpan(context.Background(), "prod", "items", "sql", "GET")
	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	span.End()
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{
		Enabled:      true,
		ServiceName:  "portway",
		Endpoint:     "http://localhost:4040",
		ProfileTypes: []string{"heap_madness"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heap_madness")
}
