package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so gateway traffic
// can be aggregated and queried by correlation ID, environment, or endpoint.
const (
	// ========================================================================
	// Correlation & Tracing
	// ========================================================================
	KeyCorrelationID = "correlation_id" // Correlation ID echoed in X-Correlation-Id
	KeyTraceID       = "trace_id"       // OpenTelemetry trace ID
	KeySpanID        = "span_id"        // OpenTelemetry span ID

	// ========================================================================
	// Routing
	// ========================================================================
	KeyEnv       = "env"       // Target environment segment
	KeyEndpoint  = "endpoint"  // Endpoint name, namespace-qualified
	KeyNamespace = "namespace" // Endpoint namespace
	KeyHandler   = "handler"   // Handler kind: sql, proxy, composite, static, file
	KeyMethod    = "method"    // HTTP method
	KeyPath      = "path"      // Request path
	KeyStatus    = "status"    // HTTP status code
	KeyBytes     = "bytes"     // Response body size in bytes

	// ========================================================================
	// Authentication
	// ========================================================================
	KeyClientIP  = "client_ip"  // Client IP address
	KeyTokenName = "token_name" // Name of the authenticated token
	KeyScope     = "scope"      // Scope that was checked

	// ========================================================================
	// SQL Execution
	// ========================================================================
	KeyObject     = "object"      // Database object name (table, view, proc, function)
	KeyObjectType = "object_type" // table, view, proc, or function
	KeyRows       = "rows"        // Rows affected or returned
	KeyParams     = "params"      // Number of bound parameters
	KeyDriver     = "driver"      // SQL driver name
	KeyTop        = "top"         // Effective $top value
	KeySkip       = "skip"        // Effective $skip value

	// ========================================================================
	// Proxy
	// ========================================================================
	KeyUpstream         = "upstream"          // Upstream URL the request was forwarded to
	KeyTranslatedMethod = "translated_method" // Method after translation

	// ========================================================================
	// Composite Orchestration
	// ========================================================================
	KeyStep  = "step"  // Step name within a composite flow
	KeySteps = "steps" // Number of steps in a flow
	KeyItem  = "item"  // Item index during array expansion
	KeyState = "state" // Step state: pending, running, success, failed, ...

	// ========================================================================
	// Files & Static Content
	// ========================================================================
	KeyFileID      = "file_id"      // Content-derived file identifier
	KeyFilename    = "filename"     // Original file name
	KeySize        = "size"         // Size in bytes
	KeyContentType = "content_type" // MIME type
	KeyETag        = "etag"         // Entity tag

	// ========================================================================
	// Endpoint Registry
	// ========================================================================
	KeyDir       = "dir"       // Directory being scanned or watched
	KeyEndpoints = "endpoints" // Number of endpoints in a snapshot
	KeyWebhook   = "webhook"   // Webhook sink identifier

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyCount      = "count"       // Generic count
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// CorrelationID returns a slog.Attr for a request correlation ID
func CorrelationID(id string) slog.Attr {
	return slog.String(KeyCorrelationID, id)
}

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Env returns a slog.Attr for the target environment
func Env(name string) slog.Attr {
	return slog.String(KeyEnv, name)
}

// Endpoint returns a slog.Attr for the endpoint name
func Endpoint(name string) slog.Attr {
	return slog.String(KeyEndpoint, name)
}

// Namespace returns a slog.Attr for the endpoint namespace
func Namespace(ns string) slog.Attr {
	return slog.String(KeyNamespace, ns)
}

// Handler returns a slog.Attr for the handler kind
func Handler(kind string) slog.Attr {
	return slog.String(KeyHandler, kind)
}

// Method returns a slog.Attr for the HTTP method
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Path returns a slog.Attr for the request path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Status returns a slog.Attr for the HTTP status code
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// Bytes returns a slog.Attr for a byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// ClientIP returns a slog.Attr for the client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// TokenName returns a slog.Attr for the authenticated token name
func TokenName(name string) slog.Attr {
	return slog.String(KeyTokenName, name)
}

// Scope returns a slog.Attr for a scope check
func Scope(s string) slog.Attr {
	return slog.String(KeyScope, s)
}

// Object returns a slog.Attr for a database object name
func Object(name string) slog.Attr {
	return slog.String(KeyObject, name)
}

// ObjectType returns a slog.Attr for a database object type
func ObjectType(t string) slog.Attr {
	return slog.String(KeyObjectType, t)
}

// Rows returns a slog.Attr for rows affected or returned
func Rows(n int64) slog.Attr {
	return slog.Int64(KeyRows, n)
}

// Params returns a slog.Attr for the number of bound parameters
func Params(n int) slog.Attr {
	return slog.Int(KeyParams, n)
}

// Driver returns a slog.Attr for the SQL driver name
func Driver(name string) slog.Attr {
	return slog.String(KeyDriver, name)
}

// Top returns a slog.Attr for the effective $top value
func Top(n int) slog.Attr {
	return slog.Int(KeyTop, n)
}

// Skip returns a slog.Attr for the effective $skip value
func Skip(n int) slog.Attr {
	return slog.Int(KeySkip, n)
}

// Upstream returns a slog.Attr for the upstream URL
func Upstream(url string) slog.Attr {
	return slog.String(KeyUpstream, url)
}

// TranslatedMethod returns a slog.Attr for the translated upstream method
func TranslatedMethod(m string) slog.Attr {
	return slog.String(KeyTranslatedMethod, m)
}

// Step returns a slog.Attr for a composite step name
func Step(name string) slog.Attr {
	return slog.String(KeyStep, name)
}

// Steps returns a slog.Attr for the number of steps in a flow
func Steps(n int) slog.Attr {
	return slog.Int(KeySteps, n)
}

// Item returns a slog.Attr for an array expansion item index
func Item(i int) slog.Attr {
	return slog.Int(KeyItem, i)
}

// State returns a slog.Attr for a composite step state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// FileID returns a slog.Attr for a stored file identifier
func FileID(id string) slog.Attr {
	return slog.String(KeyFileID, id)
}

// Filename returns a slog.Attr for a file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a size in bytes
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// ContentType returns a slog.Attr for a MIME type
func ContentType(ct string) slog.Attr {
	return slog.String(KeyContentType, ct)
}

// ETag returns a slog.Attr for an entity tag
func ETag(tag string) slog.Attr {
	return slog.String(KeyETag, tag)
}

// Dir returns a slog.Attr for a scanned or watched directory
func Dir(path string) slog.Attr {
	return slog.String(KeyDir, path)
}

// Endpoints returns a slog.Attr for the number of endpoints in a snapshot
func Endpoints(n int) slog.Attr {
	return slog.Int(KeyEndpoints, n)
}

// Webhook returns a slog.Attr for a webhook sink identifier
func Webhook(id string) slog.Attr {
	return slog.String(KeyWebhook, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Count returns a slog.Attr for a generic count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
