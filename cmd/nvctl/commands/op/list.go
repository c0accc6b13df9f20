package op

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
	Short: "List operations",
	Long: `List background operations, newest first.

Settled operations stay visible until the daemon restarts.

Examples:
  # List operations
  nvctl op list

  # List as JSON
  nvctl op list -o json`,
	RunE: runOpList,
}

// OpList renders operations as a table.
type OpList []apiclient.Operation

// Headers implements TableRenderer.
func (ol OpList) Headers() []string {
	return []string{"ID", "KIND", "STATUS", "PROGRESS", "STARTED"}
}

// Rows implements TableRenderer.
func (ol OpList) Rows() [][]string {
	rows := make([][]string, 0, len(ol))
	for _, o := range ol {
		rows = append(rows, []string{
			o.ID,
			o.Kind,
			o.Status,
			progress(o),
			output.Ago(o.StartedAt),
		})
	}
	return rows
}

func runOpList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	ops, err := client.ListOperations()
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, ops, len(ops) == 0,
		"No operations.", OpList(ops))
}
