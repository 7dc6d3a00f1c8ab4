package telemetry

// Config selects the trace backend. The zero value disables tracing.
type Config struct {
	Enabled        bool
	ServiceName    string  // service.name resource attribute
	ServiceVersion string  // service.version resource attribute
	Endpoint       string  // OTLP gRPC endpoint, host:port
	Insecure       bool    // plaintext connection to the collector
	SampleRate     float64 // fraction of root spans kept, 0.0 to 1.0
}

// DefaultConfig returns the development defaults: tracing off, local
// collector, full sampling.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "portway",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}
