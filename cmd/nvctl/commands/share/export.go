package share

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <share-id>",
	Short: "Export a share record",
	Long: `Export a share record for out-of-band transfer.

The record carries everything another vault needs to import the share:
the share ID, access metadata, and the sealed key material. It contains
no plaintext keys; private and protected shares still demand the right
credentials at download time.

Examples:
  # Print the record to stdout
  nvctl share export mfne2qvbhtos673ggmzaoalu

  # Write the record to a file
  nvctl share export mfne2qvbhtos673ggmzaoalu --output holidays.nvshare`,
	Args: cobra.ExactArgs(1),
	RunE: runShareExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
}

func runShareExport(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	record, err := client.ExportShare(args[0])
	if err != nil {
		return fmt.Errorf("failed to export share: %w", err)
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, record, 0600); err != nil {
			return fmt.Errorf("failed to write share record: %w", err)
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Share record written to %s", exportOutput))
		return nil
	}

	_, err = os.Stdout.Write(record)
	return err
}
