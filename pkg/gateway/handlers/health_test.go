package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/token"
)

func newTestRegistry(t *testing.T) *endpoint.Registry {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "items")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, endpoint.DescriptorFileName), []byte(itemsDescriptor), 0o644); err != nil {
		t.Fatalf("write descriptor: %v", err)
	}
	reg, err := endpoint.NewRegistry(root)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func newTestTokenService(t *testing.T) *token.Service {
	t.Helper()
	store, err := token.NewStore(&token.Config{
		Type:   token.DatabaseTypeSQLite,
		SQLite: token.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return token.NewService(store)
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHealthLiveness(t *testing.T) {
	h := NewHealth(nil, nil, "1.2.3")

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Liveness(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", w.Code)
	}
	body := decodeHealth(t, w)
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	data, _ := body["data"].(map[string]any)
	if data["service"] != "portway" || data["version"] != "1.2.3" {
		t.Errorf("data = %v", data)
	}
}

func TestHealthReadiness(t *testing.T) {
	t.Run("NotReadyWithoutRegistry", func(t *testing.T) {
		h := NewHealth(nil, newTestTokenService(t), "test")

		w := httptest.NewRecorder()
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, expected 503", w.Code)
		}
		if body := decodeHealth(t, w); body["status"] != "unhealthy" {
			t.Errorf("status = %v", body["status"])
		}
	})

	t.Run("NotReadyWithoutTokenService", func(t *testing.T) {
		h := NewHealth(newTestRegistry(t), nil, "test")

		w := httptest.NewRecorder()
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, expected 503", w.Code)
		}
	})

	t.Run("Ready", func(t *testing.T) {
		h := NewHealth(newTestRegistry(t), newTestTokenService(t), "test")

		w := httptest.NewRecorder()
		h.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, expected 200", w.Code)
		}
		body := decodeHealth(t, w)
		if body["status"] != "healthy" {
			t.Errorf("status = %v", body["status"])
		}
		data, _ := body["data"].(map[string]any)
		if data["endpoints"] != float64(1) {
			t.Errorf("endpoints = %v", data["endpoints"])
		}
	})
}
