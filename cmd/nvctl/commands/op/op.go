// Package op implements background operation tracking subcommands.
package op

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

// Cmd is the op subcommand.
var Cmd = &cobra.Command{
	Use:   "op",
	Short: "Track background operations",
	Long: `Track index, upload, and download runs on the daemon.

Subcommands:
  list    List operations
  show    Show one operation
  watch   Follow an operation until it settles
  cancel  Cancel a running operation`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(watchCmd)
	Cmd.AddCommand(cancelCmd)
}

// progress formats done/total as a human-readable cell.
func progress(op apiclient.Operation) string {
	if op.Total <= 0 {
		return fmt.Sprintf("%d", op.Done)
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", op.Done, op.Total, float64(op.Done)/float64(op.Total)*100)
}

// printOperation renders one operation in the selected format.
func printOperation(op *apiclient.Operation) error {
	finished := "-"
	if op.FinishedAt != nil {
		finished = output.FormatTime(*op.FinishedAt)
	}

	return cmdutil.PrintResource(os.Stdout, op, [][2]string{
		{"ID", op.ID},
		{"Kind", op.Kind},
		{"Status", op.Status},
		{"Folder", cmdutil.EmptyOr(op.FolderID, "-")},
		{"Share", cmdutil.EmptyOr(op.ShareID, "-")},
		{"Progress", progress(*op)},
		{"Started", output.FormatTime(op.StartedAt)},
		{"Finished", finished},
		{"Error", cmdutil.EmptyOr(op.Error, "-")},
	})
}
