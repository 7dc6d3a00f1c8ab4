package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate <token-id>",
	Short: "Rotate a token",
	Long: `Replace a token's secret with a fresh one, keeping its identity.

The token keeps its ID, username, scopes, environments and expiry;
only the secret changes. The old plaintext stops working immediately.
The new plaintext is printed exactly once.

Examples:
  # Rotate a token
  pwctl rotate 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c

  # Rotate and capture as JSON
  pwctl rotate 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c -o json`,
	Args: exactArgs(1),
	RunE: runRotate,
}

func runRotate(cmd *cobra.Command, args []string) error {
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

	plaintext, tok, err := session.Service.Rotate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to rotate token: %w", err)
	}

	return printIssuedToken("Token rotated", plaintext, tok)
}
