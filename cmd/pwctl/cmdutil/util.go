// Package cmdutil provides shared utilities for pwctl commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/portway-io/portway/internal/cli/output"
	"github.com/portway-io/portway/internal/cli/prompt"
	"github.com/portway-io/portway/pkg/config"
	"github.com/portway-io/portway/pkg/token"
)

// EnvPassphrase names the environment variable consulted before prompting
// for the management passphrase. Intended for scripts and CI.
const EnvPassphrase = "PWCTL_PASSPHRASE"

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	NoColor    bool
	Yes        bool
}

// Session bundles an open token service with its backing store so commands
// can close the database when done.
type Session struct {
	Service *token.Service

	store *token.Store
}

// Close releases the underlying database connection.
func (s *Session) Close() error {
	return s.store.Close()
}

// OpenSession opens the token database named by the gateway configuration.
//
// pwctl reads the same configuration file as the gateway and operates on the
// token database directly: it does not need the gateway to be running. With
// no configuration file the default SQLite database location is used.
func OpenSession() (*Session, error) {
	cfg, err := config.Load(Flags.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := token.NewStore(&cfg.TokenDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to open token database: %w", err)
	}

	return &Session{
		Service: token.NewService(store),
		store:   store,
	}, nil
}

// Authenticate gates a command behind the management passphrase.
//
// On first run, when no management record exists, the user is prompted to
// create one and the command proceeds as authenticated. Otherwise the
// passphrase comes from PWCTL_PASSPHRASE or a masked prompt and is verified
// against the stored record, which drives the lockout counters.
func Authenticate(ctx context.Context, svc *token.Service) error {
	has, err := svc.HasPassphrase(ctx)
	if err != nil {
		return fmt.Errorf("failed to read management record: %w", err)
	}

	if !has {
		fmt.Println("No management passphrase is set. Create one now.")
		passphrase, err := prompt.PasswordWithConfirmation(
			"New management passphrase", "Confirm passphrase", token.MinPassphraseLength)
		if err != nil {
			return err
		}
		if err := svc.SetPassphrase(ctx, passphrase); err != nil {
			return fmt.Errorf("failed to store passphrase: %w", err)
		}
		PrintSuccess("Management passphrase created")
		return nil
	}

	passphrase := os.Getenv(EnvPassphrase)
	if passphrase == "" {
		passphrase, err = prompt.Password("Management passphrase")
		if err != nil {
			return err
		}
	}

	return svc.VerifyPassphrase(ctx, passphrase)
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses
// the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResource prints a resource in the specified format.
// For table format, it uses the provided tableRenderer.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, !Flags.NoColor)
	printer.Success(msg)
}

// ParseCommaSeparatedList parses a comma-separated string into a slice of
// trimmed strings.
func ParseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
