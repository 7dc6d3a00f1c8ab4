package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfigTemplate is the commented configuration written by
// `portway init`. The rendered file must load and validate as-is; values
// match GetDefaultConfig so the generated gateway starts without edits.
const sampleConfigTemplate = `# Portway Configuration File
#
# Endpoint definitions are NOT configured here: they live as descriptors
# under endpoints.directory (one directory per endpoint, holding an
# entity.json file) and reload automatically when changed.
#
# Every value can be overridden with a PORTWAY_* environment variable,
# e.g. PORTWAY_LOGGING_LEVEL=DEBUG or PORTWAY_GATEWAY_PORT=9000.

logging:
  # DEBUG, INFO, WARN, ERROR
  level: INFO
  # text or json
  format: text
  # stdout, stderr, or a file path
  output: stdout

shutdown_timeout: 30s

gateway:
  port: 8080
  # Optional path prefix in front of /{env}/{endpoint}, e.g. "/api".
  # prefix: /api
  request_timeout: 30s
  # Per-endpoint deadline overrides by endpoint path.
  # endpoint_timeouts:
  #   reports/monthly: 2m

endpoints:
  directory: %s

# One entry per environment reachable as /{env}/... .
# Drivers: sqlserver, postgres, sqlite.
environments:
  - name: dev
    driver: sqlite
    connection_string: "file:portway-dev.db?cache=shared"
    # storage_root: /var/lib/portway/files/dev

# Bearer tokens are stored here; manage them with pwctl.
token_database:
  type: sqlite
  # postgres:
  #   host: localhost
  #   database: portway
  #   user: portway

files:
  storage_root: %s

metrics:
  enabled: false
  # port: 9090

# telemetry:
#   enabled: true
#   endpoint: localhost:4317
#   insecure: true

# Webhook sinks, addressed as POST /{env}/webhook/{id}.
# webhooks:
#   alerts:
#     url: https://hooks.example.com/services/T000/B000
#     headers:
#       X-Api-Key: secret
`

// sampleHelloDescriptor is a static endpoint answering GET /{env}/hello.
// It works with no database, so a fresh install can verify token and routing
// behavior end to end.
const sampleHelloDescriptor = `{
  "Kind": "static",
  "AllowedMethods": ["GET"],
  "ContentType": "application/json",
  "Path": "data.json",
  "EnableFiltering": true
}
`

const sampleHelloPayload = `[
  {"name": "hello", "kind": "static", "description": "This document, served from disk"},
  {"name": "orders", "kind": "sql", "description": "CRUD over the orders table with OData queries"}
]
`

// sampleOrdersDescriptor is a SQL endpoint over an "orders" table. The
// schema is "main" to match the sample SQLite environment; point it at your
// own schema when switching drivers.
const sampleOrdersDescriptor = `{
  "Kind": "sql",
  "AllowedMethods": ["GET", "POST", "PUT", "DELETE"],
  "Schema": "main",
  "ObjectName": "orders",
  "PrimaryKey": "id",
  "AllowedColumns": ["id", "customer", "total", "created_at"],
  "RequiredColumns": ["customer"]
}
`

// InitSampleEndpoints writes example endpoint descriptors under dir and
// returns the endpoint names written. Endpoints that already exist are left
// alone, so re-running init never clobbers edited descriptors.
func InitSampleEndpoints(dir string) ([]string, error) {
	samples := []struct {
		name  string
		files map[string]string
	}{
		{name: "hello", files: map[string]string{
			"entity.json": sampleHelloDescriptor,
			"data.json":   sampleHelloPayload,
		}},
		{name: "orders", files: map[string]string{
			"entity.json": sampleOrdersDescriptor,
		}},
	}

	var written []string
	for _, sample := range samples {
		endpointDir := filepath.Join(dir, sample.name)
		if _, err := os.Stat(filepath.Join(endpointDir, "entity.json")); err == nil {
			continue
		}
		if err := os.MkdirAll(endpointDir, 0755); err != nil {
			return written, fmt.Errorf("failed to create endpoint directory: %w", err)
		}
		for name, content := range sample.files {
			if err := os.WriteFile(filepath.Join(endpointDir, name), []byte(content), 0644); err != nil {
				return written, fmt.Errorf("failed to write %s: %w", name, err)
			}
		}
		written = append(written, sample.name)
	}
	return written, nil
}

// InitConfig writes the commented sample configuration to the default
// location and returns its path. Fails if the file already exists unless
// force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the commented sample configuration to path.
// Fails if the file already exists unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(sampleConfigTemplate,
		filepath.ToSlash(filepath.Join(getConfigDir(), "endpoints")),
		filepath.ToSlash(filepath.Join(getConfigDir(), "files")),
	)

	// Same restricted permissions as SaveConfig: the file will usually grow
	// real connection strings.
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
