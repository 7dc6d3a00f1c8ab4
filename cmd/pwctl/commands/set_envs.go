package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
)

var setEnvsCmd = &cobra.Command{
	Use:   "set-envs <token-id> <environments>",
	Short: "Replace a token's allowed environments",
	Long: `Replace the environments a token may target.

Environments are comma-separated patterns using the same grammar as
scopes: "*", "prefix*" or exact names.

Examples:
  # Allow every environment
  pwctl set-envs 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c "*"

  # Restrict to dev and staging
  pwctl set-envs 7f3c2a9e-1b4d-4e8f-9a2c-5d6e7f8a9b0c "dev,staging"`,
	Args: exactArgs(2),
	RunE: runSetEnvs,
}

func runSetEnvs(cmd *cobra.Command, args []string) error {
	id := args[0]
	envs := cmdutil.ParseCommaSeparatedList(args[1])

	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	if err := session.Service.UpdateEnvironments(ctx, id, envs); err != nil {
		return fmt.Errorf("failed to update environments: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Environments updated for token %s", id))
	return nil
}
