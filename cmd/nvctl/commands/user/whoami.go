package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	Long: `Show the user the current session is authenticated as.

Examples:
  # Show current user
  nvctl user whoami`,
	RunE: runUserWhoami,
}

func runUserWhoami(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	me, err := client.Me()
	if err != nil {
		return fmt.Errorf("failed to fetch current user: %w", err)
	}

	return printUser(me)
}
