package folder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <folder-id>",
	Short: "Post the current version to Usenet",
	Long: `Post every pending segment of the folder's current version.

Segments are sealed, staged, and posted through the daemon's posting
provider. The run happens in the background and survives daemon
restarts; re-running upload resumes where the previous run stopped.

Examples:
  # Upload the current version
  nvctl folder upload 4f1a9c…`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderUpload,
}

func runFolderUpload(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	started, err := client.UploadFolder(args[0])
	if err != nil {
		return fmt.Errorf("failed to start upload run: %w", err)
	}

	if err := cmdutil.PrintResourceWithSuccess(os.Stdout, started,
		fmt.Sprintf("Upload run started (operation %s)", started.OperationID)); err != nil {
		return err
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Follow progress with: nvctl op watch %s", started.OperationID))
	return nil
}
