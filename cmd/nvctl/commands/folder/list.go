package folder

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders",
	Long: `List the folders you own on the daemon.

Examples:
  # List folders as table
  nvctl folder list

  # List as JSON
  nvctl folder list -o json`,
	RunE: runFolderList,
}

// FolderList renders folders as a table.
type FolderList []apiclient.Folder

// Headers implements TableRenderer.
func (fl FolderList) Headers() []string {
	return []string{"ID", "NAME", "PATH", "VERSION", "NEWSGROUP", "INDEXED"}
}

// Rows implements TableRenderer.
func (fl FolderList) Rows() [][]string {
	rows := make([][]string, 0, len(fl))
	for _, f := range fl {
		indexed := "-"
		if f.IndexedAt != nil {
			indexed = output.Ago(*f.IndexedAt)
		}
		rows = append(rows, []string{
			f.ID,
			f.Name,
			f.RootPath,
			fmt.Sprintf("%d", f.CurrentVersion),
			f.Newsgroup,
			indexed,
		})
	}
	return rows
}

func runFolderList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	folders, err := client.ListFolders()
	if err != nil {
		return fmt.Errorf("failed to list folders: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, folders, len(folders) == 0,
		"No folders found. Run 'nvctl folder create <path>' to register one.", FolderList(folders))
}
