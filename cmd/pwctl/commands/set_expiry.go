package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
)

var setExpiryCmd = &cobra.Command{
	Use:   "set-expiry <token-id> <expiry>",
	Short: "Change when a token expires",
	Long: `Change a token's expiry.

The expiry is one of:
  never           the token never expires
  a duration      relative to now, e.g. 720h or 30m
  an RFC3339 time an absolute instant, e.g. 2026-12-31T00:00:00Z

Examples:
  # Make a token permanent
  pwctl set-expiry 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c never

  # Expire in 30 days
  pwctl set-expiry 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c 720h

  # Expire at a fixed instant
  pwctl set-expiry 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c 2026-12-31T00:00:00Z`,
	Args: exactArgs(2),
	RunE: runSetExpiry,
}

// parseExpiry turns the expiry argument into an absolute instant, or nil for
// "never".
func parseExpiry(arg string) (*time.Time, error) {
	if arg == "never" {
		return nil, nil
	}
	if d, err := time.ParseDuration(arg); err == nil {
		if d <= 0 {
			return nil, &usageError{fmt.Errorf("expiry duration must be positive, got %q", arg)}
		}
		t := time.Now().Add(d)
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		return &t, nil
	}
	return nil, &usageError{fmt.Errorf("invalid expiry %q: want \"never\", a duration like 720h, or an RFC3339 time", arg)}
}

func runSetExpiry(cmd *cobra.Command, args []string) error {
	id := args[0]

	expiresAt, err := parseExpiry(args[1])
	if err != nil {
		return err
	}

	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	if err := session.Service.UpdateExpiry(ctx, id, expiresAt); err != nil {
		return fmt.Errorf("failed to update expiry: %w", err)
	}

	if expiresAt == nil {
		cmdutil.PrintSuccess(fmt.Sprintf("Token %s no longer expires", id))
	} else {
		cmdutil.PrintSuccess(fmt.Sprintf("Token %s expires at %s", id, expiresAt.Format(time.RFC3339)))
	}
	return nil
}
