// Package context implements context management subcommands for
// switching between saved daemon connections.
package context

import (
	"github.com/spf13/cobra"
)

// Cmd is the context subcommand.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage saved server contexts.

A context stores the server URL and session tokens for one nntpvault
daemon, so you can switch between several daemons without re-entering
credentials.

Subcommands:
  list     List all configured contexts
  current  Show the current context
  use      Switch to a different context
  delete   Delete a saved context`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(currentCmd)
	Cmd.AddCommand(useCmd)
	Cmd.AddCommand(deleteCmd)
}
