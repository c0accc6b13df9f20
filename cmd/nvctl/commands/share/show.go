package share

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
)

var showCmd = &cobra.Command{
	Use:   "show <share-id>",
	Short: "Show share details",
	Long: `Show the metadata of one share.

Examples:
  # Show a share
  nvctl share show mfne2qvbhtos673ggmzaoalu`,
	Args: cobra.ExactArgs(1),
	RunE: runShareShow,
}

func runShareShow(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	share, err := client.GetShare(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch share: %w", err)
	}

	expires := "-"
	if share.ExpiresAt != nil {
		expires = output.FormatTime(*share.ExpiresAt)
	}

	return cmdutil.PrintResource(os.Stdout, share, [][2]string{
		{"Share ID", share.ShareID},
		{"Folder", share.FolderID},
		{"Version", fmt.Sprintf("%d", share.FolderVersion)},
		{"Access", share.AccessLevel},
		{"Created", output.FormatTime(share.CreatedAt)},
		{"Expires", expires},
	})
}
