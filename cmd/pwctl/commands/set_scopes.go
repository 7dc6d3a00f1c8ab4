package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
)

var setScopesCmd = &cobra.Command{
	Use:   "set-scopes <token-id> <scopes>",
	Short: "Replace a token's endpoint scopes",
	Long: `Replace the endpoint patterns a token may call.

Scopes are comma-separated patterns: "*" matches everything,
"prefix*" matches by prefix, "namespace/*" matches a namespace,
and anything else must match exactly.

Examples:
  # Grant access to every endpoint
  pwctl set-scopes 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c "*"

  # Restrict to the orders endpoint and the reports namespace
  pwctl set-scopes 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c "orders,reports/*"`,
	Args: exactArgs(2),
	RunE: runSetScopes,
}

func runSetScopes(cmd *cobra.Command, args []string) error {
	id := args[0]
	scopes := cmdutil.ParseCommaSeparatedList(args[1])

	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	if err := session.Service.UpdateScopes(ctx, id, scopes); err != nil {
		return fmt.Errorf("failed to update scopes: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Scopes updated for token %s", id))
	return nil
}
