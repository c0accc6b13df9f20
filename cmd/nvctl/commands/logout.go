package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/credentials"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear stored credentials",
	Long: `Clear stored credentials for the current context.

The refresh token is revoked on the daemon, which also drops your
unlocked key material there. The server URL and context configuration
are kept for easy re-login.

Examples:
  # Logout from current context
  nvctl logout`,
	RunE: runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	contextName := store.CurrentName()
	if contextName == "" {
		return fmt.Errorf("not logged in - no current context")
	}

	sess, err := store.Current()
	if err != nil {
		return err
	}

	// Best effort revocation; local credentials are cleared either way.
	if sess.RefreshToken != "" {
		if client, err := cmdutil.GetAuthenticatedClient(); err == nil {
			if err := client.Logout(sess.RefreshToken); err != nil && cmdutil.IsVerbose() {
				fmt.Printf("Server-side logout failed: %v\n", err)
			}
		}
	}

	if err := store.ClearTokens(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	fmt.Printf("Logged out from context: %s\n", contextName)
	return nil
}
