// Package commands implements the CLI commands for pwctl token administration.
package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
	"github.com/portway-io/portway/internal/cli/prompt"
	"github.com/portway-io/portway/internal/logger"
	"github.com/portway-io/portway/pkg/token"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Exit codes. Scripts depend on these staying stable.
const (
	ExitOK      = 0
	ExitAuth    = 1
	ExitUsage   = 2
	ExitRuntime = 3
)

// usageError marks a bad command line (exit code 2).
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pwctl",
	Short: "Portway Control - Token administration",
	Long: `pwctl manages Portway bearer tokens and the management passphrase.

It operates directly on the token database named in the gateway
configuration file, so the gateway does not need to be running.
All commands authenticate with the management passphrase; on first
run you will be prompted to create one.

The passphrase can be supplied non-interactively via the
PWCTL_PASSPHRASE environment variable.

Use "pwctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Keep service logs off stdout; command output is the interface.
		_ = logger.Init(logger.Config{Level: "ERROR", Format: "text", Output: "stderr"})

		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Yes, _ = cmd.Flags().GetBool("yes")
	},
}

// Execute runs the root command and maps the error to a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
		return exitCode(err)
	}
	return ExitOK
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// exitCode classifies an error from a command run.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, token.ErrInvalidPassphrase),
		errors.Is(err, token.ErrManagementLocked),
		errors.Is(err, token.ErrPassphraseNotSet),
		prompt.IsAborted(err):
		return ExitAuth
	case isUsageError(err):
		return ExitUsage
	default:
		return ExitRuntime
	}
}

func isUsageError(err error) bool {
	var uerr *usageError
	if errors.As(err, &uerr) {
		return true
	}
	// Cobra reports unknown subcommands as plain errors.
	return strings.HasPrefix(err.Error(), "unknown command")
}

// exactArgs validates the positional argument count, flagging violations as
// usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{fmt.Errorf("%q accepts %d arg(s), received %d", cmd.CommandPath(), n, len(args))}
		}
		return nil
	}
}

// noArgs rejects positional arguments, flagging violations as usage errors.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{fmt.Errorf("%q accepts no arguments", cmd.CommandPath())}
	}
	return nil
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("config", "", "gateway config file (default: $XDG_CONFIG_HOME/portway/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("yes", "y", false, "Skip confirmation prompts")

	// Flag parse failures are usage errors, not runtime errors.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(rotateCmd)
	rootCmd.AddCommand(setScopesCmd)
	rootCmd.AddCommand(setEnvsCmd)
	rootCmd.AddCommand(setExpiryCmd)
	rootCmd.AddCommand(changePassphraseCmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
