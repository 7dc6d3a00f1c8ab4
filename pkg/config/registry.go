package config

import (
	"fmt"
	"os"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/endpoint"
	"github.com/portway-io/portway/pkg/environment"
)

// CreateEndpointRegistry loads the descriptor tree named by the
// configuration and returns the registry holding the initial snapshot.
//
// A missing directory is created empty rather than rejected: a freshly
// initialized gateway has no endpoints yet, and the watcher picks up
// descriptors as they are dropped in.
func CreateEndpointRegistry(cfg *Config) (*endpoint.Registry, error) {
	dir := cfg.Endpoints.Directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create endpoint directory %q: %w", dir, err)
	}

	reg, err := endpoint.NewRegistry(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load endpoint descriptors: %w", err)
	}

	logger.Debug("endpoint registry created", "dir", dir, "endpoints", reg.Snapshot().Len())
	return reg, nil
}

// CreateEnvironmentRegistry opens one database pool per configured
// environment. The caller owns the registry and must Close it.
func CreateEnvironmentRegistry(cfg *Config) (*environment.Registry, error) {
	reg, err := environment.NewRegistry(cfg.Environments)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize environments: %w", err)
	}
	return reg, nil
}
