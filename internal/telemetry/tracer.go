package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for request spans. HTTP keys follow OpenTelemetry
// semantic conventions; gateway.* keys are ours.
const (
	AttrClientAddr    = "client.address"
	AttrHTTPMethod    = "http.request.method"
	AttrHTTPStatus    = "http.response.status_code"
	AttrEnvironment   = "gateway.environment"
	AttrEndpoint      = "gateway.endpoint"
	AttrHandler       = "gateway.handler"
	AttrCorrelationID = "gateway.correlation_id"
	AttrUpstreamURL   = "upstream.url"
	AttrStepName      = "composite.step"
)

// SpanRequest is the root span covering one dispatched gateway request.
const SpanRequest = "gateway.request"

func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

func HTTPMethod(method string) attribute.KeyValue {
	return attribute.String(AttrHTTPMethod, method)
}

func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

func Environment(name string) attribute.KeyValue {
	return attribute.String(AttrEnvironment, name)
}

func Endpoint(path string) attribute.KeyValue {
	return attribute.String(AttrEndpoint, path)
}

func HandlerKind(kind string) attribute.KeyValue {
	return attribute.String(AttrHandler, kind)
}

func CorrelationID(id string) attribute.KeyValue {
	return attribute.String(AttrCorrelationID, id)
}

func UpstreamURL(url string) attribute.KeyValue {
	return attribute.String(AttrUpstreamURL, url)
}

func StepName(name string) attribute.KeyValue {
	return attribute.String(AttrStepName, name)
}

// StartRequestSpan opens the root span for a request the dispatcher has
// resolved to an endpoint (or webhook sink).
func StartRequestSpan(ctx context.Context, env, endpoint, kind, method string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanRequest,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			Environment(env),
			Endpoint(endpoint),
			HandlerKind(kind),
			HTTPMethod(method),
		),
	)
}
