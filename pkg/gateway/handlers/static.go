package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
	"github.com/portway-io/portway/pkg/odata"
)

// Static serves fixed payloads loaded at descriptor time, with conditional
// GET support and optional client-side OData filtering over JSON arrays.
type Static struct{}

// NewStatic creates the static content handler.
func NewStatic() *Static { return &Static{} }

func (h *Static) Handle(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext) error {
	spec := rc.Endpoint.Static
	if spec == nil {
		return gateway.Internal(fmt.Errorf("endpoint %s has no static spec", rc.Endpoint.FullPath))
	}

	if spec.EnableFiltering && hasODataOptions(rc.Query) && isJSONContent(spec.ContentType) {
		return h.filtered(w, r, rc, spec)
	}

	etag := `"` + spec.ETag() + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", spec.LastModified().UTC().Format(http.TimeFormat))
	w.Header().Set("Content-Type", spec.ContentType)

	if clientHasCurrent(r, spec) {
		logger.DebugCtx(r.Context(), "static payload unchanged", logger.ETag(spec.ETag()))
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(spec.Payload()); err != nil {
		logger.WarnCtx(r.Context(), "static write interrupted", logger.Err(err))
	}
	return nil
}

// filtered applies the OData options over the payload's top-level array.
// Filtered responses are computed per request and carry no validators.
func (h *Static) filtered(w http.ResponseWriter, r *http.Request, rc *gateway.RequestContext, spec *endpoint.StaticSpec) error {
	var tree any
	if err := json.Unmarshal(spec.Payload(), &tree); err != nil {
		return gateway.Internal(fmt.Errorf("static payload for %s is not valid JSON: %w", rc.Endpoint.FullPath, err))
	}

	rows, ok := tree.([]any)
	if !ok {
		// Filtering only makes sense over arrays; other documents pass
		// through as loaded.
		w.Header().Set("Content-Type", spec.ContentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(spec.Payload())
		return nil
	}

	q, err := odata.ParseQuery(rc.Query)
	if err != nil {
		return err
	}
	out, err := odata.ApplyQuery(q, rows)
	if err != nil {
		return err
	}
	if out == nil {
		out = []any{}
	}

	logger.DebugCtx(r.Context(), "static payload filtered", logger.Rows(int64(len(out))))
	gateway.WriteJSON(w, http.StatusOK, out)
	return nil
}

// clientHasCurrent evaluates the conditional request headers. If-None-Match
// wins over If-Modified-Since when both are present.
func clientHasCurrent(r *http.Request, spec *endpoint.StaticSpec) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return etagMatch(inm, spec.ETag())
	}
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		if t, err := http.ParseTime(ims); err == nil {
			return !spec.LastModified().Truncate(time.Second).After(t)
		}
	}
	return false
}

func etagMatch(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func hasODataOptions(q url.Values) bool {
	for _, key := range []string{"$select", "$filter", "$orderby", "$top", "$skip"} {
		if q.Get(key) != "" {
			return true
		}
	}
	return false
}

func isJSONContent(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}
