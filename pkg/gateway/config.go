package gateway

import (
	"strings"
	"time"

	"github.com/portway-io/portway/internal/bytesize"
)

// Config configures the gateway HTTP server and the dispatcher.
type Config struct {
	// Port is the HTTP port the gateway listens on.
	// Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// Prefix is an optional path prefix in front of /{env}/{endpoint}.
	// Default: empty (routes mount at the root)
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// ReadTimeout bounds reading the entire request including the body.
	// Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout bounds writes of the response. Must cover streaming
	// downloads; keep it above RequestTimeout.
	// Default: 60s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive waits.
	// Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`

	// RequestTimeout is the per-request deadline handlers must observe.
	// Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`

	// EndpointTimeouts overrides RequestTimeout per endpoint FullPath.
	EndpointTimeouts map[string]time.Duration `mapstructure:"endpoint_timeouts" yaml:"endpoint_timeouts,omitempty"`

	// MaxProxyBufferBytes caps buffering of proxied bodies whose length is
	// unknown. Bodies with a known Content-Length stream through unbuffered.
	// Supports human-readable sizes: "4Mi", "512Ki".
	// Default: 4 MiB
	MaxProxyBufferBytes bytesize.ByteSize `mapstructure:"max_proxy_buffer_bytes" validate:"omitempty,min=1024" yaml:"max_proxy_buffer_bytes,omitempty"`
}

// WebhookSink is one configured webhook forwarding target, addressed as
// POST /{env}/webhook/{id}.
type WebhookSink struct {
	// URL receives the forwarded body.
	URL string `mapstructure:"url" validate:"required,url" yaml:"url"`

	// Headers are set on every forwarded request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.MaxProxyBufferBytes == 0 {
		c.MaxProxyBufferBytes = 4 * bytesize.MiB
	}
	c.Prefix = normalizePrefix(c.Prefix)
}

// TimeoutFor returns the request deadline for an endpoint path.
func (c *Config) TimeoutFor(fullPath string) time.Duration {
	if d, ok := c.EndpointTimeouts[fullPath]; ok && d > 0 {
		return d
	}
	return c.RequestTimeout
}

// normalizePrefix folds the configured prefix onto "/name" form, or ""
// when no prefix is wanted.
func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return "/" + prefix
}
