package gateway

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/metrics"
)

// HeaderCorrelationID carries the request correlation id in both directions.
const HeaderCorrelationID = "X-Correlation-Id"

// correlationID tags every request with a correlation id, honouring an
// inbound X-Correlation-Id when the caller supplies one, and echoes it on
// the response. The id rides the request context in a logger.LogContext so
// every log line for this request carries it.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderCorrelationID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		lc := logger.NewLogContext(clientIP(r))
		lc.CorrelationID = id
		lc.Method = r.Method
		if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
			lc.TraceID = sc.TraceID().String()
			lc.SpanID = sc.SpanID().String()
		}

		w.Header().Set(HeaderCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context(), lc)))
	})
}

// requestLogger logs request start at DEBUG and completion at INFO. Probe
// paths complete at DEBUG so health checks do not flood the log.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger.DebugCtx(r.Context(), "request started",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.ClientIP(clientIP(r)),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logger.InfoCtx
		if strings.HasPrefix(r.URL.Path, "/health") {
			log = logger.DebugCtx
		}
		log(r.Context(), "request completed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Status(ww.Status()),
			logger.Bytes(int64(ww.BytesWritten())),
			logger.DurationMs(logger.Duration(start)),
		)
	})
}

// recoverer converts panics into the standard error envelope instead of a
// dropped connection. http.ErrAbortHandler passes through untouched.
func recoverer(m *metrics.GatewayMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorCtx(r.Context(), "handler panicked",
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				WriteError(w, r, Internal(panicError{rec}), m)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type panicError struct{ value any }

func (p panicError) Error() string { return "panic in handler" }

// clientIP strips the port from RemoteAddr. RealIP middleware has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
