package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/gateway"
)

// parseStaticEndpoint writes the payload next to the descriptor, matching
// how static endpoints ship: the data file lives in the endpoint directory.
func parseStaticEndpoint(t *testing.T, payload, descriptor string) *endpoint.Definition {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, endpoint.DescriptorFileName), []byte(descriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	def, err := endpoint.ParseDescriptor(dir, "", "lookup")
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	return def
}

const staticPayload = `[{"code":"A","qty":1},{"code":"B","qty":2}]`

func staticGet(t *testing.T, def *endpoint.Definition, rawQuery string, prepare func(r *http.Request)) (*httptest.ResponseRecorder, error) {
	t.Helper()
	target := "/api/prod/lookup"
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if prepare != nil {
		prepare(r)
	}
	w := httptest.NewRecorder()
	env := newStubEnv(t, "prod")
	return w, NewStatic().Handle(w, r, newRequestContext(r, env, def))
}

func TestStaticServesPayload(t *testing.T) {
	def := parseStaticEndpoint(t, staticPayload, `{
		"Path": "data.json",
		"ContentType": "application/json"
	}`)

	w, err := staticGet(t, def, "", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", w.Code)
	}
	if w.Body.String() != staticPayload {
		t.Errorf("body = %q", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("ETag") == "" || w.Header().Get("Last-Modified") == "" {
		t.Error("cache validators must be set")
	}
}

func TestStaticConditionalGet(t *testing.T) {
	def := parseStaticEndpoint(t, staticPayload, `{
		"Path": "data.json",
		"ContentType": "application/json"
	}`)

	w, err := staticGet(t, def, "", nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	etag := w.Header().Get("ETag")

	t.Run("MatchingETagIs304", func(t *testing.T) {
		w, err := staticGet(t, def, "", func(r *http.Request) {
			r.Header.Set("If-None-Match", etag)
		})
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Code != http.StatusNotModified {
			t.Errorf("status = %d, expected 304", w.Code)
		}
		if w.Body.Len() != 0 {
			t.Errorf("304 must carry no body, got %q", w.Body.String())
		}
	})

	t.Run("WeakETagMatches", func(t *testing.T) {
		w, err := staticGet(t, def, "", func(r *http.Request) {
			r.Header.Set("If-None-Match", "W/"+etag)
		})
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Code != http.StatusNotModified {
			t.Errorf("status = %d, expected 304", w.Code)
		}
	})

	t.Run("StaleETagIs200", func(t *testing.T) {
		w, err := staticGet(t, def, "", func(r *http.Request) {
			r.Header.Set("If-None-Match", `"outdated"`)
		})
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, expected 200", w.Code)
		}
	})

	t.Run("FreshIfModifiedSinceIs304", func(t *testing.T) {
		w, err := staticGet(t, def, "", func(r *http.Request) {
			r.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		})
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Code != http.StatusNotModified {
			t.Errorf("status = %d, expected 304", w.Code)
		}
	})

	t.Run("StaleIfModifiedSinceIs200", func(t *testing.T) {
		w, err := staticGet(t, def, "", func(r *http.Request) {
			r.Header.Set("If-Modified-Since", time.Now().Add(-2*time.Hour).UTC().Format(http.TimeFormat))
		})
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, expected 200", w.Code)
		}
	})
}

func TestStaticFiltersJSONArray(t *testing.T) {
	def := parseStaticEndpoint(t, staticPayload, `{
		"Path": "data.json",
		"ContentType": "application/json",
		"EnableFiltering": true
	}`)

	q := url.Values{}
	q.Set("$filter", "code eq 'A'")
	w, err := staticGet(t, def, q.Encode(), nil)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", w.Code)
	}

	var rows []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(rows) != 1 || rows[0]["code"] != "A" {
		t.Errorf("rows = %v", rows)
	}

	// Computed responses are not cacheable against the raw payload.
	if w.Header().Get("ETag") != "" {
		t.Error("filtered response must carry no ETag")
	}
}

func TestStaticFilteringEdgeCases(t *testing.T) {
	t.Run("DisabledFilteringServesRawPayload", func(t *testing.T) {
		def := parseStaticEndpoint(t, staticPayload, `{
			"Path": "data.json",
			"ContentType": "application/json"
		}`)

		w, err := staticGet(t, def, "%24filter=code+eq+%27A%27", nil)
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Body.String() != staticPayload {
			t.Errorf("body = %q, expected the unfiltered payload", w.Body.String())
		}
	})

	t.Run("NonArrayPayloadPassesThrough", func(t *testing.T) {
		def := parseStaticEndpoint(t, `{"version": 3}`, `{
			"Path": "data.json",
			"ContentType": "application/json",
			"EnableFiltering": true
		}`)

		w, err := staticGet(t, def, "%24top=1", nil)
		if err != nil {
			t.Fatalf("Handle: %v", err)
		}
		if w.Body.String() != `{"version": 3}` {
			t.Errorf("body = %q", w.Body.String())
		}
	})

	t.Run("FilterSyntaxErrorIsBadRequest", func(t *testing.T) {
		def := parseStaticEndpoint(t, staticPayload, `{
			"Path": "data.json",
			"ContentType": "application/json",
			"EnableFiltering": true
		}`)

		q := url.Values{}
		q.Set("$filter", "code eqq 'A'")
		_, err := staticGet(t, def, q.Encode(), nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if kind := gateway.Classify(err).Kind(); kind != gateway.KindBadRequest {
			t.Errorf("kind = %s, expected bad_request", kind)
		}
	})
}
