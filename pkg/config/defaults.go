package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/portway-io/portway/pkg/environment"
	"github.com/portway-io/portway/pkg/token"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	cfg.Gateway.ApplyDefaults()
	applyEndpointsDefaults(&cfg.Endpoints)
	applyEnvironmentDefaults(cfg.Environments)
	applyTokenDatabaseDefaults(&cfg.TokenDatabase)
	applyMetricsDefaults(&cfg.Metrics)
	applyFilesDefaults(&cfg.Files)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyEndpointsDefaults sets the descriptor tree default location.
func applyEndpointsDefaults(cfg *EndpointsConfig) {
	if cfg.Directory == "" {
		cfg.Directory = filepath.Join(getConfigDir(), "endpoints")
	}
}

// applyEnvironmentDefaults fills in pool defaults per environment.
func applyEnvironmentDefaults(envs []environment.Config) {
	for i := range envs {
		envs[i].ApplyDefaults()
	}
}

// applyTokenDatabaseDefaults sets token database defaults.
func applyTokenDatabaseDefaults(cfg *token.Config) {
	cfg.ApplyDefaults()
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyFilesDefaults sets the default file storage root.
func applyFilesDefaults(cfg *FilesConfig) {
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = filepath.Join(getConfigDir(), "files")
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
//
// The single "dev" environment runs on a local SQLite file so a freshly
// initialized gateway starts without external dependencies.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Logging: LoggingConfig{},
		Environments: []environment.Config{
			{
				Name:             "dev",
				Driver:           "sqlite",
				ConnectionString: "file:portway-dev.db?cache=shared",
			},
		},
		TokenDatabase: token.Config{
			Type: token.DatabaseTypeSQLite, // Default to SQLite for single-node
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
