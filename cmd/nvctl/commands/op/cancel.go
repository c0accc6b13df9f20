package op

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Cancel a running operation",
	Long: `Cancel a running operation.

The run stops at the next segment boundary; work already done is kept,
so a cancelled upload can be resumed later with 'nvctl folder upload'.

Examples:
  # Cancel an operation
  nvctl op cancel 7c3e…`,
	Args: cobra.ExactArgs(1),
	RunE: runOpCancel,
}

func runOpCancel(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	if err := client.CancelOperation(args[0]); err != nil {
		return fmt.Errorf("failed to cancel operation: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Operation '%s' cancelled", args[0]))
	return nil
}
