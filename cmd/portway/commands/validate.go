package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/internal/cli/output"
	"github.com/portway-io/portway/pkg/config"
	"github.com/portway-io/portway/pkg/endpoint"
)

var validateDir string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate endpoint descriptors",
	Long: `Validate the endpoint descriptor tree.

Walks the descriptor directory, parses every endpoint, and reports the
descriptors that fail to load. The command exits non-zero when any
descriptor is invalid, so it can gate deploys in CI.

By default the directory comes from the configuration file. Use --dir
to validate a tree directly without a configuration file.

Examples:
  # Validate the configured descriptor tree
  portway validate

  # Validate a tree before deploying it
  portway validate --dir ./endpoints`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateDir, "dir", "", "Descriptor directory (default: endpoints.directory from config)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := validateDir
	if dir == "" {
		cfg, err := config.MustLoad(GetConfigFile())
		if err != nil {
			return err
		}
		dir = cfg.Endpoints.Directory
	}

	registry, err := endpoint.NewRegistry(dir)
	if err != nil {
		return err
	}
	snap := registry.Snapshot()

	fmt.Printf("Descriptor tree: %s\n\n", dir)

	if defs := snap.Definitions(); len(defs) > 0 {
		table := output.NewTableData("ENDPOINT", "KIND", "METHODS", "VISIBILITY")
		for _, def := range defs {
			visibility := "public"
			if def.IsPrivate {
				visibility = "private"
			}
			table.AddRow(def.FullPath, string(def.Kind), strings.Join(def.AllowedMethods, ","), visibility)
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
		fmt.Println()
	}

	if errs := snap.Errors(); len(errs) > 0 {
		fmt.Println("Errors:")
		for _, loadErr := range errs {
			fmt.Printf("  %s\n    %v\n", loadErr.Path, loadErr.Err)
		}
		fmt.Println()
		fmt.Printf("%d endpoint(s) loaded, %d descriptor(s) invalid\n", snap.Len(), len(errs))
		return fmt.Errorf("%d descriptor(s) failed validation", len(errs))
	}

	fmt.Printf("%d endpoint(s) loaded, no errors\n", snap.Len())
	return nil
}
