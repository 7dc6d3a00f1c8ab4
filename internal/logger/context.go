package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	CorrelationID string    // Correlation ID echoed back to the caller
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	Environment   string    // Target environment (dev, prod, etc.)
	Endpoint      string    // Endpoint name, including namespace if any
	Handler       string    // Handler kind: sql, proxy, composite, static, file
	Method        string    // HTTP method of the inbound request
	ClientIP      string    // Client IP address (without port)
	TokenName     string    // Name of the authenticated token
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		CorrelationID: lc.CorrelationID,
		TraceID:       lc.TraceID,
		SpanID:        lc.SpanID,
		Environment:   lc.Environment,
		Endpoint:      lc.Endpoint,
		Handler:       lc.Handler,
		Method:        lc.Method,
		ClientIP:      lc.ClientIP,
		TokenName:     lc.TokenName,
		StartTime:     lc.StartTime,
	}
}

// WithRoute returns a copy with the resolved environment and endpoint set
func (lc *LogContext) WithRoute(env, endpoint string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Environment = env
		clone.Endpoint = endpoint
	}
	return clone
}

// WithHandler returns a copy with the handler kind set
func (lc *LogContext) WithHandler(handler string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Handler = handler
	}
	return clone
}

// WithToken returns a copy with the authenticated token name set
func (lc *LogContext) WithToken(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TokenName = name
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
