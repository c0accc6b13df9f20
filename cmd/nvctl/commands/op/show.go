package op

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var showCmd = &cobra.Command{
	Use:   "show <operation-id>",
	Short: "Show one operation",
	Long: `Show the current snapshot of one operation.

Examples:
  # Show an operation
  nvctl op show 7c3e…`,
	Args: cobra.ExactArgs(1),
	RunE: runOpShow,
}

func runOpShow(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	op, err := client.GetOperation(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch operation: %w", err)
	}

	return printOperation(op)
}
