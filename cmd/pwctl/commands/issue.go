package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/portway-io/portway/cmd/pwctl/cmdutil"
	"github.com/portway-io/portway/internal/cli/output"
	"github.com/portway-io/portway/internal/cli/prompt"
	"github.com/portway-io/portway/pkg/token"
)

var (
	issueUsername string
	issueScopes   string
	issueEnvs     string
	issueTTL      time.Duration
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a new bearer token",
	Long: `Issue a new bearer token and print it.

The plaintext token is printed exactly once; only its hash is stored.
Scopes and environments are comma-separated patterns supporting "*",
"prefix*" and "namespace/*" wildcards. A TTL of 0 means the token
never expires.

Examples:
  # Issue a token interactively
  pwctl issue

  # Issue a token for a user with full access
  pwctl issue --username alice

  # Issue a token restricted to two endpoints in production
  pwctl issue -u ci --scopes "orders,invoices/*" --envs prod --ttl 720h`,
	Args: noArgs,
	RunE: runIssue,
}

func init() {
	issueCmd.Flags().StringVarP(&issueUsername, "username", "u", "", "Token owner (prompts if not provided)")
	issueCmd.Flags().StringVar(&issueScopes, "scopes", "*", "Comma-separated endpoint patterns")
	issueCmd.Flags().StringVar(&issueEnvs, "envs", "*", "Comma-separated environment patterns")
	issueCmd.Flags().DurationVar(&issueTTL, "ttl", 0, "Token lifetime, e.g. 720h (0 = never expires)")
}

// issuedToken is the printable result of issue and rotate. It is the only
// place the plaintext ever appears.
type issuedToken struct {
	Token               string     `json:"token" yaml:"token"`
	ID                  string     `json:"id" yaml:"id"`
	Username            string     `json:"username" yaml:"username"`
	AllowedScopes       string     `json:"allowed_scopes" yaml:"allowed_scopes"`
	AllowedEnvironments string     `json:"allowed_environments" yaml:"allowed_environments"`
	CreatedAt           time.Time  `json:"created_at" yaml:"created_at"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// printIssuedToken prints a freshly minted token. In table mode the token is
// shown with a reminder that it cannot be recovered later.
func printIssuedToken(action, plaintext string, tok *token.AuthToken) error {
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	result := issuedToken{
		Token:               plaintext,
		ID:                  tok.ID,
		Username:            tok.Username,
		AllowedScopes:       tok.AllowedScopes,
		AllowedEnvironments: tok.AllowedEnvironments,
		CreatedAt:           tok.CreatedAt,
		ExpiresAt:           tok.ExpiresAt,
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, result)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, result)
	}

	fmt.Printf("%s for '%s' (ID: %s)\n", action, tok.Username, tok.ID)
	fmt.Printf("  Scopes:       %s\n", cmdutil.EmptyOr(tok.AllowedScopes, "-"))
	fmt.Printf("  Environments: %s\n", cmdutil.EmptyOr(tok.AllowedEnvironments, "-"))
	fmt.Printf("  Expires:      %s\n\n", formatExpiry(tok.ExpiresAt))
	fmt.Printf("  %s\n\n", plaintext)
	fmt.Println("Store this token now. It cannot be displayed again.")
	return nil
}

func runIssue(cmd *cobra.Command, args []string) error {
	session, err := cmdutil.OpenSession()
	if err != nil {
		return err
	}
	defer session.Close()

	ctx := cmd.Context()
	if err := cmdutil.Authenticate(ctx, session.Service); err != nil {
		return err
	}

	// Get username interactively if not provided
	username := issueUsername
	if username == "" {
		username, err = prompt.InputRequired("Username")
		if err != nil {
			return err
		}
	}

	scopes := cmdutil.ParseCommaSeparatedList(issueScopes)
	envs := cmdutil.ParseCommaSeparatedList(issueEnvs)

	plaintext, tok, err := session.Service.Issue(ctx, username, scopes, envs, issueTTL)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	return printIssuedToken("Token issued", plaintext, tok)
}
