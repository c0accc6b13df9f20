package share

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var listFolderID string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List shares for a folder",
	Long: `List the shares minted for one of your folders.

Examples:
  # List shares for a folder
  nvctl share list --folder 4f1a9c…

  # List as JSON
  nvctl share list --folder 4f1a9c… -o json`,
	RunE: runShareList,
}

func init() {
	listCmd.Flags().StringVarP(&listFolderID, "folder", "f", "", "Folder ID (required)")
	_ = listCmd.MarkFlagRequired("folder")
}

// ShareList renders shares as a table.
type ShareList []apiclient.Share

// Headers implements TableRenderer.
func (sl ShareList) Headers() []string {
	return []string{"SHARE ID", "VERSION", "ACCESS", "CREATED", "EXPIRES"}
}

// Rows implements TableRenderer.
func (sl ShareList) Rows() [][]string {
	rows := make([][]string, 0, len(sl))
	for _, s := range sl {
		expires := "-"
		if s.ExpiresAt != nil {
			expires = output.FormatTime(*s.ExpiresAt)
		}
		rows = append(rows, []string{
			s.ShareID,
			fmt.Sprintf("%d", s.FolderVersion),
			s.AccessLevel,
			output.Ago(s.CreatedAt),
			expires,
		})
	}
	return rows
}

func runShareList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	shares, err := client.ListShares(listFolderID)
	if err != nil {
		return fmt.Errorf("failed to list shares: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, shares, len(shares) == 0,
		"No shares found for this folder.", ShareList(shares))
}
