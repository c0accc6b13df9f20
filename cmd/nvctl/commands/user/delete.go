package user

import (
	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user",
	Long: `Delete a user (admin only).

The user's folders and shares are removed with them. Their wrapped
keys are destroyed, so anything not shared to another user becomes
unrecoverable.

Examples:
  # Delete a user
  nvctl user delete alice

  # Delete without confirmation
  nvctl user delete alice --force`,
	Args: cobra.ExactArgs(1),
	RunE: runUserDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	username := args[0]
	return cmdutil.RunDeleteWithConfirmation("user", username, deleteForce, func() error {
		return client.DeleteUser(username)
	})
}
