// Package environment maintains the set of backends the gateway is allowed
// to talk to. Each environment pairs a name used in request paths with a
// database pool, a SQL dialect, and a file storage root.
package environment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/portway-io/portway/internal/logger"
)

// Registry resolves environment names to handles. It is immutable after
// construction and safe for concurrent use.
type Registry struct {
	handles map[string]*Handle
	ordered []*Handle
}

// NewRegistry builds a registry from the configured environments. Names are
// matched case-insensitively; duplicates are rejected.
func NewRegistry(configs []Config) (*Registry, error) {
	r := &Registry{handles: make(map[string]*Handle, len(configs))}

	for _, cfg := range configs {
		h, err := newHandle(cfg)
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", cfg.Name, err)
		}
		key := strings.ToLower(cfg.Name)
		if _, dup := r.handles[key]; dup {
			return nil, fmt.Errorf("duplicate environment %q", cfg.Name)
		}
		r.handles[key] = h
		r.ordered = append(r.ordered, h)
	}

	logger.Info("environment registry initialized", "environments", len(r.ordered))
	return r, nil
}

// IsAllowed reports whether the environment is configured.
func (r *Registry) IsAllowed(env string) bool {
	_, ok := r.handles[strings.ToLower(env)]
	return ok
}

// Resolve returns the handle for the environment, or ErrUnknownEnvironment.
func (r *Registry) Resolve(env string) (*Handle, error) {
	h, ok := r.handles[strings.ToLower(env)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvironment, env)
	}
	return h, nil
}

// Names returns the environment names in configuration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	for i, h := range r.ordered {
		out[i] = h.Name()
	}
	return out
}

// Close releases every pool that was opened.
func (r *Registry) Close() error {
	var errs []error
	for _, h := range r.ordered {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close environment %q: %w", h.Name(), err))
		}
	}
	return errors.Join(errs...)
}
