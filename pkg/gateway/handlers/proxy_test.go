package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/environment"
	"github.com/portway-io/portway/pkg/gateway"
)

// newStubEnv builds an environment handle whose pool is never opened; proxy
// and composite handlers only read the name.
func newStubEnv(t *testing.T, name string) *environment.Handle {
	t.Helper()
	reg, err := environment.NewRegistry([]environment.Config{{
		Name:             name,
		Driver:           "sqlite",
		ConnectionString: ":memory:",
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	env, err := reg.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return env
}

// capturedRequest records what the upstream saw.
type capturedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

func captureUpstream(t *testing.T, status int, respond func(w http.ResponseWriter)) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Method = r.Method
		got.Path = r.URL.Path
		got.Query = r.URL.Query()
		got.Header = r.Header.Clone()
		got.Body, _ = io.ReadAll(r.Body)
		if respond != nil {
			respond(w)
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func proxyEndpoint(t *testing.T, descriptor string) *endpoint.Definition {
	t.Helper()
	return parseTestEndpoint(t, "reports", descriptor)
}

func TestProxyForwardsRequest(t *testing.T) {
	srv, got := captureUpstream(t, http.StatusOK, func(w http.ResponseWriter) {
		w.Header().Set("X-Upstream", "yes")
	})
	def := proxyEndpoint(t, `{"TargetUrlTemplate": "`+srv.URL+`/services/{env}/reports"}`)

	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	r := httptest.NewRequest(http.MethodGet, "/api/prod/reports/monthly", nil)
	r.Header.Set("Authorization", "Bearer secret")
	r.Header.Set("X-Custom", "keep")
	w := httptest.NewRecorder()

	rc := newRequestContext(r, env, def)
	rc.Rest = []string{"monthly"}

	if err := h.Handle(w, r, rc); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got.Method != http.MethodGet {
		t.Errorf("upstream method = %s", got.Method)
	}
	if got.Path != "/services/prod/reports/monthly" {
		t.Errorf("upstream path = %s", got.Path)
	}
	// GET forwards a $top default so the upstream never returns unbounded data.
	if got.Query.Get("$top") != "10" {
		t.Errorf("upstream $top = %q, expected default 10", got.Query.Get("$top"))
	}
	if got.Header.Get("Authorization") != "" {
		t.Error("gateway Authorization header must not leak upstream")
	}
	if got.Header.Get("X-Custom") != "keep" {
		t.Error("client headers must be forwarded")
	}

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, expected 200", w.Code)
	}
	if w.Header().Get("X-Upstream") != "yes" {
		t.Error("upstream response headers must reach the client")
	}
}

func TestProxyMethodTranslationAndHeaderAppend(t *testing.T) {
	srv, got := captureUpstream(t, http.StatusOK, nil)
	def := proxyEndpoint(t, `{
		"TargetUrlTemplate": "`+srv.URL+`/legacy/{env}",
		"MethodTranslation": {"DELETE": "POST"},
		"HeaderAppend": {
			"DELETE": [{"Key": "X-Action", "Value": "{ORIGINAL_METHOD} as {TRANSLATED_METHOD}"}]
		},
		"AllowedMethods": ["DELETE"]
	}`)

	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	r := httptest.NewRequest(http.MethodDelete, "/api/prod/reports?id=4", nil)
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, newRequestContext(r, env, def)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got.Method != http.MethodPost {
		t.Errorf("upstream method = %s, expected translated POST", got.Method)
	}
	if got.Header.Get("X-Action") != "DELETE as POST" {
		t.Errorf("X-Action = %q", got.Header.Get("X-Action"))
	}
	if got.Query.Get("id") != "4" {
		t.Errorf("query id = %q", got.Query.Get("id"))
	}
}

func TestProxyHeaderConflictPolicies(t *testing.T) {
	cases := []struct {
		name   string
		policy string
		want   []string
	}{
		{"SkipKeepsClientValue", "Skip", []string{"client"}},
		{"OverwriteReplaces", "Overwrite", []string{"descriptor"}},
		{"LogAndAddAppends", "LogAndAdd", []string{"client", "descriptor"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, got := captureUpstream(t, http.StatusOK, nil)
			def := proxyEndpoint(t, `{
				"TargetUrlTemplate": "`+srv.URL+`/x/{env}",
				"HeaderAppend": {"GET": [{"Key": "X-Tag", "Value": "descriptor"}]},
				"HeaderConflict": "`+tc.policy+`"
			}`)

			env := newStubEnv(t, "prod")
			h := NewProxy(nil, 0)

			r := httptest.NewRequest(http.MethodGet, "/api/prod/reports", nil)
			r.Header.Set("X-Tag", "client")
			w := httptest.NewRecorder()

			if err := h.Handle(w, r, newRequestContext(r, env, def)); err != nil {
				t.Fatalf("Handle: %v", err)
			}

			values := got.Header.Values("X-Tag")
			if len(values) != len(tc.want) {
				t.Fatalf("X-Tag = %v, expected %v", values, tc.want)
			}
			for i := range tc.want {
				if values[i] != tc.want[i] {
					t.Errorf("X-Tag = %v, expected %v", values, tc.want)
				}
			}
		})
	}
}

func TestProxyRewritesODataFieldNames(t *testing.T) {
	srv, got := captureUpstream(t, http.StatusOK, nil)
	def := proxyEndpoint(t, `{
		"TargetUrlTemplate": "`+srv.URL+`/odata/{env}",
		"AllowedColumns": ["Code:ItemCode", "Total"]
	}`)

	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	q := url.Values{}
	q.Set("$select", "Code,Total")
	q.Set("$filter", "Code eq 'A1'")
	q.Set("$orderby", "Code desc")
	r := httptest.NewRequest(http.MethodGet, "/api/prod/reports?"+q.Encode(), nil)
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, newRequestContext(r, env, def)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got.Query.Get("$select") != "ItemCode,Total" {
		t.Errorf("$select = %q", got.Query.Get("$select"))
	}
	if got.Query.Get("$filter") != "ItemCode eq 'A1'" {
		t.Errorf("$filter = %q", got.Query.Get("$filter"))
	}
	if got.Query.Get("$orderby") != "ItemCode desc" {
		t.Errorf("$orderby = %q", got.Query.Get("$orderby"))
	}
}

func TestProxyStreamsBodyUpstream(t *testing.T) {
	srv, got := captureUpstream(t, http.StatusCreated, nil)
	def := proxyEndpoint(t, `{
		"TargetUrlTemplate": "`+srv.URL+`/ingest/{env}",
		"AllowedMethods": ["POST"]
	}`)

	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	body := `{"name": "report"}`
	r := httptest.NewRequest(http.MethodPost, "/api/prod/reports", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, newRequestContext(r, env, def)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if string(got.Body) != body {
		t.Errorf("upstream body = %q", got.Body)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
	}
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, expected the upstream 201", w.Code)
	}
}

func TestProxyUpstreamErrorPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error": "backend broke"}`))
	}))
	t.Cleanup(srv.Close)
	def := proxyEndpoint(t, `{"TargetUrlTemplate": "`+srv.URL+`/x/{env}"}`)

	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	r := httptest.NewRequest(http.MethodGet, "/api/prod/reports", nil)
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, newRequestContext(r, env, def)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, expected upstream 502 verbatim", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "backend broke" {
		t.Errorf("body = %v, expected the upstream body untouched", body)
	}
}

func TestProxyUnreachableUpstreamIsBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	def := proxyEndpoint(t, `{"TargetUrlTemplate": "`+target+`/x/{env}"}`)
	env := newStubEnv(t, "prod")
	h := NewProxy(nil, 0)

	r := httptest.NewRequest(http.MethodGet, "/api/prod/reports", nil)
	w := httptest.NewRecorder()

	err := h.Handle(w, r, newRequestContext(r, env, def))
	if err == nil {
		t.Fatal("expected error for unreachable upstream")
	}
	if kind := gateway.Classify(err).Kind(); kind != gateway.KindBadGateway {
		t.Errorf("kind = %s, expected bad_gateway", kind)
	}
}
