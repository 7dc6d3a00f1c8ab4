package config

import (
	"fmt"

	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/token"
)

// CreateTokenStore opens the token database named by the configuration.
// The schema is migrated automatically; the caller owns the store and must
// Close it.
func CreateTokenStore(cfg *Config) (*token.Store, error) {
	store, err := token.NewStore(&cfg.TokenDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}

	logger.Debug("token store opened", "type", string(cfg.TokenDatabase.Type))
	return store, nil
}
