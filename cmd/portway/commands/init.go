package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Portway configuration file and example endpoints.

By default, the configuration file is created at $XDG_CONFIG_HOME/portway/config.yaml
together with example endpoint descriptors under the endpoints directory.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  portway init

  # Initialize with custom path
  portway init --config /etc/portway/config.yaml

  # Force overwrite existing config
  portway init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)

	// Example descriptors land in the directory the sample config names.
	endpointsDir := filepath.Join(config.GetConfigDir(), "endpoints")
	written, err := config.InitSampleEndpoints(endpointsDir)
	if err != nil {
		return fmt.Errorf("failed to write example endpoints: %w", err)
	}
	if len(written) > 0 {
		fmt.Printf("Example endpoints created under: %s\n", endpointsDir)
		for _, name := range written {
			fmt.Printf("  - %s\n", name)
		}
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add your environments")
	fmt.Println("  2. Issue a token with: pwctl issue --username admin")
	fmt.Println("  3. Start the gateway with: portway start")
	fmt.Println("  4. Try it: curl -H 'Authorization: Bearer <token>' http://localhost:8080/dev/hello")

	return nil
}
