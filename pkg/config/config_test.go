package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Write minimal config with new structure
	configContent := `
logging:
  level: "INFO"

gateway:
  port: 8080

endpoints:
  directory: "` + yamlSafePath(tmpDir) + `/endpoints"

environments:
  - name: dev
    driver: sqlite
    connection_string: "file:` + yamlSafePath(tmpDir) + `/dev.db"

token_database:
  type: sqlite
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Load config
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify defaults were applied
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("Expected gateway port 8080, got %d", cfg.Gateway.Port)
	}
	if cfg.Gateway.RequestTimeout != 30*time.Second {
		t.Errorf("Expected default request timeout 30s, got %v", cfg.Gateway.RequestTimeout)
	}
	if cfg.TokenDatabase.SQLite.Path == "" {
		t.Error("Expected default token database path to be filled in")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config.
	// This allows users to run the gateway without a config file for quick testing.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}

	// Verify default config is returned
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}

	// Verify default gateway port
	if cfg.Gateway.Port != 8080 {
		t.Errorf("Expected default gateway port 8080, got %d", cfg.Gateway.Port)
	}
	if len(cfg.Environments) == 0 {
		t.Error("Expected default config to include a sample environment")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	// Write invalid YAML
	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	// Should return error
	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[gateway]
port = 8080

[endpoints]
directory = "` + yamlSafePath(tmpDir) + `/endpoints"

[[environments]]
name = "dev"
driver = "sqlite"
connection_string = "file:` + yamlSafePath(tmpDir) + `/dev.db"

[token_database]
type = "sqlite"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoad_HumanReadableSizesAndDurations(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

shutdown_timeout: 45s

gateway:
  port: 8080
  request_timeout: 2m
  max_proxy_buffer_bytes: 8Mi

endpoints:
  directory: "` + yamlSafePath(tmpDir) + `/endpoints"

environments:
  - name: dev
    driver: sqlite
    connection_string: "file:` + yamlSafePath(tmpDir) + `/dev.db"

token_database:
  type: sqlite
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.ShutdownTimeout != 45*time.Second {
		t.Errorf("Expected shutdown_timeout 45s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Gateway.RequestTimeout != 2*time.Minute {
		t.Errorf("Expected request_timeout 2m, got %v", cfg.Gateway.RequestTimeout)
	}
	if cfg.Gateway.MaxProxyBufferBytes != 8<<20 {
		t.Errorf("Expected max_proxy_buffer_bytes 8Mi, got %d", cfg.Gateway.MaxProxyBufferBytes)
	}
}

func TestLoad_Webhooks(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

gateway:
  port: 8080

endpoints:
  directory: "` + yamlSafePath(tmpDir) + `/endpoints"

environments:
  - name: dev
    driver: sqlite
    connection_string: "file:` + yamlSafePath(tmpDir) + `/dev.db"

token_database:
  type: sqlite

webhooks:
  alerts:
    url: "https://hooks.example.com/alerts"
    headers:
      X-Api-Key: "secret"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	sink, ok := cfg.Webhooks["alerts"]
	if !ok {
		t.Fatal("Expected webhook sink 'alerts' to be configured")
	}
	if sink.URL != "https://hooks.example.com/alerts" {
		t.Errorf("Expected sink URL to round-trip, got %q", sink.URL)
	}
	if sink.Headers["X-Api-Key"] != "secret" {
		t.Errorf("Expected sink header to round-trip, got %q", sink.Headers["X-Api-Key"])
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// Verify all defaults are set
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Gateway.Port != 8080 {
		t.Errorf("Expected default gateway port 8080, got %d", cfg.Gateway.Port)
	}
	if len(cfg.Environments) != 1 || cfg.Environments[0].Name != "dev" {
		t.Errorf("Expected a single default 'dev' environment, got %+v", cfg.Environments)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	// Should contain portway and config.yaml
	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	// Should contain portway
	if filepath.Base(dir) != "portway" {
		t.Errorf("Expected directory name 'portway', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	// Set environment variables
	_ = os.Setenv("PORTWAY_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("PORTWAY_GATEWAY_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("PORTWAY_LOGGING_LEVEL")
		_ = os.Unsetenv("PORTWAY_GATEWAY_PORT")
	}()

	// Create minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

gateway:
  port: 8080

endpoints:
  directory: "` + yamlSafePath(tmpDir) + `/endpoints"

environments:
  - name: dev
    driver: sqlite
    connection_string: "file:` + yamlSafePath(tmpDir) + `/dev.db"

token_database:
  type: sqlite
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify environment variables override config file
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Gateway.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.Gateway.Port)
	}
}
