// Package folder implements folder lifecycle subcommands.
package folder

import (
	"github.com/spf13/cobra"
)

// Cmd is the folder subcommand.
var Cmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage vault folders",
	Long: `Manage folders registered with the nntpvault daemon.

A folder is a local directory tracked for archival. Index it to compute
its current version, upload the version to Usenet, then publish it as a
share others can download.

Subcommands:
  create   Register a local directory
  list     List folders
  show     Show folder details
  delete   Forget a folder
  index    Snapshot the folder into a new version
  upload   Post the current version to Usenet
  publish  Mint a share for the current version`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(indexCmd)
	Cmd.AddCommand(uploadCmd)
	Cmd.AddCommand(publishCmd)
}
