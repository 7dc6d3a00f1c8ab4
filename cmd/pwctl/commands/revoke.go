package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
	"github.com/portway-io/portway/internal/cli/prompt"
)

var revokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke a token",
	Long: `Revoke a bearer token immediately.

Revocation is permanent; issue a new token to restore access.

Examples:
  # Revoke a token with confirmation
  pwctl revoke 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c

  # Revoke without prompting
  pwctl revoke 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c --yes`,
	Args: exactArgs(1),
	RunE: runRevoke,
}

func runRevoke(cmd *cobra.Command, args []string) error {
	id := args[0]

	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	tok, err := session.Service.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Revoke token %s (user '%s')? This cannot be undone.", tok.ID, tok.Username),
		cmdutil.Flags.Yes,
	)
	if err != nil {
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := session.Service.Revoke(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Token %s revoked", id))
	return nil
}
