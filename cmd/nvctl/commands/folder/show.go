package folder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
)

var showCmd = &cobra.Command{
	Use:   "show <folder-id>",
	Short: "Show folder details",
	Long: `Show details of one folder.

Examples:
  # Show a folder
  nvctl folder show 4f1a9c…

  # Show as JSON
  nvctl folder show 4f1a9c… -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderShow,
}

func runFolderShow(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	folder, err := client.GetFolder(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch folder: %w", err)
	}

	indexed := "-"
	if folder.IndexedAt != nil {
		indexed = output.FormatTime(*folder.IndexedAt)
	}

	return cmdutil.PrintResource(os.Stdout, folder, [][2]string{
		{"ID", folder.ID},
		{"Name", folder.Name},
		{"Path", folder.RootPath},
		{"Newsgroup", folder.Newsgroup},
		{"Version", fmt.Sprintf("%d", folder.CurrentVersion)},
		{"Signing key", folder.SigningPublicKey},
		{"Created", output.FormatTime(folder.CreatedAt)},
		{"Indexed", indexed},
	})
}
