package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
	"github.com/portway-io/portway/internal/cli/prompt"
	"github.com/portway-io/portway/pkg/token"
)

var changePassphraseCmd = &cobra.Command{
	Use:   "change-passphrase",
	Short: "Change the management passphrase",
	Long: `Change the passphrase guarding token administration.

You are asked for the current passphrase and then for the new one
twice. A wrong current passphrase counts towards the lockout limit.
If no passphrase exists yet, one is created.

Examples:
  # Change the passphrase interactively
  pwctl change-passphrase`,
	Args: noArgs,
	RunE: runChangePassphrase,
}

func runChangePassphrase(cmd *cobra.Command, args []string) error {
	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	svc := session.Service

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
		cmdutil.PrintSuccess("Management passphrase created")
		return nil
	}

	// ChangePassphrase verifies the current passphrase itself, so this
	// command must not go through Authenticate or the user would be asked
	// twice and a typo would count two lockout strikes.
	current := os.Getenv(cmdutil.EnvPassphrase)
	if current == "" {
		current, err = prompt.Password("Current passphrase")
		if err != nil {
			return err
		}
	}

	next, err := prompt.PasswordWithConfirmation(
		"New passphrase", "Confirm new passphrase", token.MinPassphraseLength)
	if err != nil {
		return err
	}

	if err := svc.ChangePassphrase(ctx, current, next); err != nil {
		return fmt.Errorf("failed to change passphrase: %w", err)
	}

	cmdutil.PrintSuccess("Management passphrase changed")
	return nil
}
