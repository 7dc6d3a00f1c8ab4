package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/portway-io/portway/pkg/gateway"
)

func webhookContext(r *http.Request, id string) *gateway.RequestContext {
	return &gateway.RequestContext{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Rest:   []string{id},
	}
}

func TestWebhookForwardsToSink(t *testing.T) {
	var got struct {
		method string
		body   string
		header http.Header
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.body = string(data)
		got.header = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"received": true}`))
	}))
	t.Cleanup(srv.Close)

	h := NewWebhook(nil, map[string]gateway.WebhookSink{
		"orders": {URL: srv.URL + "/hooks/orders", Headers: map[string]string{"X-Sink-Key": "abc"}},
	}, 0)

	body := `{"event": "created"}`
	r := httptest.NewRequest(http.MethodPost, "/api/prod/webhook/orders", strings.NewReader(body))
	r.Header.Set("Authorization", "Bearer secret")
	r.Header.Set("X-Event-Source", "erp")
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, webhookContext(r, "orders")); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if got.method != http.MethodPost {
		t.Errorf("sink method = %s", got.method)
	}
	if got.body != body {
		t.Errorf("sink body = %q", got.body)
	}
	if got.header.Get("X-Sink-Key") != "abc" {
		t.Error("sink headers must be applied")
	}
	if got.header.Get("X-Event-Source") != "erp" {
		t.Error("client headers must be forwarded")
	}
	if got.header.Get("Authorization") != "" {
		t.Error("gateway Authorization header must not leak to the sink")
	}

	// The sink's answer comes back verbatim.
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, expected 202", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received"`) {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestWebhookSinkHeadersWinOverClient(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Sink-Key")
	}))
	t.Cleanup(srv.Close)

	h := NewWebhook(nil, map[string]gateway.WebhookSink{
		"orders": {URL: srv.URL, Headers: map[string]string{"X-Sink-Key": "abc"}},
	}, 0)

	r := httptest.NewRequest(http.MethodPost, "/api/prod/webhook/orders", strings.NewReader(`{}`))
	r.Header.Set("X-Sink-Key", "spoofed")
	w := httptest.NewRecorder()

	if err := h.Handle(w, r, webhookContext(r, "orders")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gotKey != "abc" {
		t.Errorf("X-Sink-Key = %q, sink credentials must override the client", gotKey)
	}
}

func TestWebhookUnknownSinkIs404(t *testing.T) {
	h := NewWebhook(nil, map[string]gateway.WebhookSink{}, 0)

	r := httptest.NewRequest(http.MethodPost, "/api/prod/webhook/ghost", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	err := h.Handle(w, r, webhookContext(r, "ghost"))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := gateway.Classify(err).Kind(); kind != gateway.KindNotFound {
		t.Errorf("kind = %s, expected not_found", kind)
	}
}

func TestWebhookDeadSinkIsBadGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	h := NewWebhook(nil, map[string]gateway.WebhookSink{
		"orders": {URL: target},
	}, 0)

	r := httptest.NewRequest(http.MethodPost, "/api/prod/webhook/orders", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	err := h.Handle(w, r, webhookContext(r, "orders"))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := gateway.Classify(err).Kind(); kind != gateway.KindBadGateway {
		t.Errorf("kind = %s, expected bad_gateway", kind)
	}
}
