package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Portway configuration file.

Checks for syntax errors, missing required fields, and invalid values.
This validates the gateway configuration only; endpoint descriptors are
checked with 'portway validate'.

Examples:
  # Validate default config
  portway config validate

  # Validate specific config file
  portway config validate --config /etc/portway/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	// File endpoints need a storage root from somewhere
	if cfg.Files.StorageRoot == "" {
		allEnvsHaveRoot := true
		for _, env := range cfg.Environments {
			if env.StorageRoot == "" {
				allEnvsHaveRoot = false
				break
			}
		}
		if !allEnvsHaveRoot {
			warnings = append(warnings, "files.storage_root not configured - file endpoints without their own StorageRoot will fail")
		}
	}

	// Streaming responses must outlive the request deadline
	if cfg.Gateway.WriteTimeout > 0 && cfg.Gateway.WriteTimeout < cfg.Gateway.RequestTimeout {
		warnings = append(warnings, "gateway.write_timeout is below gateway.request_timeout - long responses may be cut off")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	envNames := make([]string, 0, len(cfg.Environments))
	for _, env := range cfg.Environments {
		envNames = append(envNames, env.Name)
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Gateway port:    %d\n", cfg.Gateway.Port)
	fmt.Printf("  Environments:    %s\n", strings.Join(envNames, ", "))
	fmt.Printf("  Token database:  %s\n", cfg.TokenDatabase.Type)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
