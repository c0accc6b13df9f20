// Package share implements publication management subcommands.
package share

import (
	"github.com/spf13/cobra"
)

// Cmd is the share subcommand.
var Cmd = &cobra.Command{
	Use:   "share",
	Short: "Manage shares",
	Long: `Manage shares minted from your folders.

Subcommands:
  list       List shares for a folder
  show       Show share details
  revoke     Revoke a share
  authorize  Grant a user access to a private share
  export     Export a share record for out-of-band transfer
  import     Import a share record from another vault`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(revokeCmd)
	Cmd.AddCommand(authorizeCmd)
	Cmd.AddCommand(exportCmd)
	Cmd.AddCommand(importCmd)
}
