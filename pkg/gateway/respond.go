package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/metrics"
)

// ListResult is the envelope for list reads. NextLink is null on the last
// page and otherwise points at the same URL with $skip advanced by $top.
type ListResult struct {
	Count    int     `json:"count"`
	Value    any     `json:"value"`
	NextLink *string `json:"nextLink"`
}

// MutationResult is the envelope for inserts, updates, and deletes that do
// not return the affected record.
type MutationResult struct {
	Success      bool   `json:"success"`
	ID           any    `json:"id,omitempty"`
	RowsAffected *int64 `json:"rowsAffected,omitempty"`
	Message      string `json:"message"`
}

// FieldError is one entry of a validation failure's details array.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

// Rows returns a pointer suitable for MutationResult.RowsAffected.
func Rows(n int64) *int64 { return &n }

// NewListResult builds the list envelope. A nextLink is emitted only when
// the page came back full: len(rows) equals the effective top.
func NewListResult[T any](rows []T, top, skip int, requestURL *url.URL) ListResult {
	return ListResult{
		Count:    len(rows),
		Value:    rows,
		NextLink: NextLink(requestURL, top, skip, len(rows)),
	}
}

// NextLink returns the URL of the next page, or nil when paging is done.
func NextLink(u *url.URL, top, skip, returned int) *string {
	if u == nil || top <= 0 || returned < top {
		return nil
	}
	next := *u
	q := next.Query()
	q.Set("$top", strconv.Itoa(top))
	q.Set("$skip", strconv.Itoa(skip+top))
	next.RawQuery = q.Encode()
	s := next.String()
	return &s
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", logger.Err(err))
	}
}

// WriteError classifies err, logs it, counts it, and writes the error
// envelope. A disconnected client gets nothing: cancellation is not a
// failure and must not produce a response or an error metric.
func WriteError(w http.ResponseWriter, r *http.Request, err error, m *metrics.GatewayMetrics) {
	if errors.Is(r.Context().Err(), context.Canceled) {
		logger.DebugCtx(r.Context(), "client disconnected", logger.Path(r.URL.Path))
		return
	}

	ge := Classify(err)
	status := ge.Kind().HTTPStatus()

	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(r.Context(), "request failed",
			"kind", string(ge.Kind()),
			logger.Status(status),
			logger.Err(err),
		)
	} else {
		logger.WarnCtx(r.Context(), "request rejected",
			"kind", string(ge.Kind()),
			logger.Status(status),
			"reason", ge.Message(),
		)
	}

	m.RecordError(string(ge.Kind()))

	body := errorBody{
		Error:   ge.Message(),
		Details: ge.Details(),
	}
	if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
		body.TraceID = sc.TraceID().String()
	}

	WriteJSON(w, status, body)
}
