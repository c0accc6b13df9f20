package folder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var indexRedundancy uint8

var indexCmd = &cobra.Command{
	Use:   "index <folder-id>",
	Short: "Snapshot the folder into a new version",
	Long: `Walk the folder on the daemon's filesystem and record a new version.

Files are hashed and cut into segments; unchanged segments are reused
from previous versions, so only new data will be uploaded. The run
happens in the background.

Examples:
  # Index with the daemon's default redundancy
  nvctl folder index 4f1a9c…

  # Index with two extra copies per segment
  nvctl folder index 4f1a9c… --redundancy 2`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderIndex,
}

func init() {
	indexCmd.Flags().Uint8Var(&indexRedundancy, "redundancy", 0, "Copies posted per segment (0 uses the daemon default)")
}

func runFolderIndex(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	started, err := client.IndexFolder(args[0], indexRedundancy)
	if err != nil {
		return fmt.Errorf("failed to start index run: %w", err)
	}

	if err := cmdutil.PrintResourceWithSuccess(os.Stdout, started,
		fmt.Sprintf("Index run started (operation %s)", started.OperationID)); err != nil {
		return err
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Follow progress with: nvctl op watch %s", started.OperationID))
	return nil
}
