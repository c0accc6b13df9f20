package share

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a share record",
	Long: `Import a share record exported by another vault.

After import the share can be downloaded with 'nvctl download'. Use "-"
to read the record from stdin.

Examples:
  # Import from a file
  nvctl share import holidays.nvshare

  # Import from stdin
  cat holidays.nvshare | nvctl share import -`,
	Args: cobra.ExactArgs(1),
	RunE: runShareImport,
}

func runShareImport(cmd *cobra.Command, args []string) error {
	var record []byte
	var err error

	if args[0] == "-" {
		record, err = io.ReadAll(os.Stdin)
	} else {
		record, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read share record: %w", err)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	share, err := client.ImportShare(record)
	if err != nil {
		return fmt.Errorf("failed to import share: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, share,
		fmt.Sprintf("Share '%s' imported (%s access)", share.ShareID, share.AccessLevel))
}
