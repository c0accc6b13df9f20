package folder

import (
	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <folder-id>",
	Short: "Forget a folder",
	Long: `Forget a folder: its keys, index records, and shares are removed
from the daemon.

Articles already posted to Usenet cannot be retracted; without the keys
they are indistinguishable from random noise. Local files are never
touched.

Examples:
  # Delete a folder
  nvctl folder delete 4f1a9c…

  # Delete without confirmation
  nvctl folder delete 4f1a9c… --force`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runFolderDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	id := args[0]
	return cmdutil.RunDeleteWithConfirmation("folder", id, deleteForce, func() error {
		return client.DeleteFolder(id)
	})
}
