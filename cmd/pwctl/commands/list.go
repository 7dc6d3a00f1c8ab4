package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
	"github.com/portway-io/portway/internal/cli/timeutil"
	"github.com/portway-io/portway/pkg/token"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tokens",
	Long: `List all bearer tokens in the token database, including revoked
and expired ones.

Examples:
  # List tokens as table
  pwctl list

  # List as JSON
  pwctl list -o json

  # List as YAML
  pwctl list -o yaml`,
	Args: noArgs,
	RunE: runList,
}

// TokenList is a list of tokens for table rendering.
type TokenList []*token.AuthToken

// Headers implements TableRenderer.
func (tl TokenList) Headers() []string {
	return []string{"ID", "USERNAME", "SCOPES", "ENVIRONMENTS", "STATUS", "CREATED", "EXPIRES"}
}

// Rows implements TableRenderer.
func (tl TokenList) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(tl))
	for _, t := range tl {
		rows = append(rows, []string{
			t.ID,
			t.Username,
			cmdutil.EmptyOr(t.AllowedScopes, "-"),
			cmdutil.EmptyOr(t.AllowedEnvironments, "-"),
			tokenStatus(t, now),
			t.CreatedAt.Local().Format(timeutil.LocalTimeFormat),
			formatExpiry(t.ExpiresAt),
		})
	}
	return rows
}

func tokenStatus(t *token.AuthToken, now time.Time) string {
	switch {
	case t.RevokedAt != nil:
		return "revoked"
	case t.ExpiresAt != nil && !t.ExpiresAt.After(now):
		return "expired"
	default:
		return "active"
	}
}

func formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never"
	}
	return expiresAt.Local().Format(timeutil.LocalTimeFormat)
}

func runList(cmd *cobra.Command, args []string) error {
	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	tokens, err := session.Service.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, tokens, len(tokens) == 0, "No tokens found.", TokenList(tokens))
}
