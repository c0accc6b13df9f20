// Package user implements user management subcommands.
package user

import (
	"github.com/spf13/cobra"
)

// Cmd is the user subcommand.
var Cmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	Long: `Manage users on the nntpvault daemon.

Except for 'whoami', these commands require an admin account.

Subcommands:
  whoami   Show the authenticated user
  create   Create a user
  list     List users
  show     Show user details
  enable   Enable a user
  disable  Disable a user
  delete   Delete a user`,
}

func init() {
	Cmd.AddCommand(whoamiCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(deleteCmd)
}
