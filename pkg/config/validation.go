package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration for errors.
//
// Struct tags carry the field-level rules (required, oneof, ranges); the
// cross-field rules that tags cannot express are checked here afterwards.
// Validation never mutates the configuration; normalization belongs to
// ApplyDefaults.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on the %q rule", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Driver names, connection strings and duplicate environment names need
	// domain knowledge the tag language does not have.
	seen := make(map[string]bool, len(cfg.Environments))
	for i := range cfg.Environments {
		env := &cfg.Environments[i]
		if err := env.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: environments[%d]: %w", i, err)
		}
		key := strings.ToLower(env.Name)
		if seen[key] {
			return fmt.Errorf("invalid configuration: duplicate environment %q", env.Name)
		}
		seen[key] = true
	}

	if err := cfg.TokenDatabase.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: token_database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("invalid configuration: telemetry is enabled but no endpoint is configured")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("invalid configuration: profiling is enabled but no endpoint is configured")
	}

	return nil
}
