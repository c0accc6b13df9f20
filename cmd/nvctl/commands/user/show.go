package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var showCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show user details",
	Long: `Show details of one user (admin only).

Examples:
  # Show a user
  nvctl user show alice`,
	Args: cobra.ExactArgs(1),
	RunE: runUserShow,
}

func runUserShow(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	u, err := client.GetUser(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch user: %w", err)
	}

	return printUser(u)
}
