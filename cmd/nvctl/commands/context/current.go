package context

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/credentials"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current context",
	Long: `Show the currently selected server context.

Examples:
  # Show current context
  nvctl context current`,
	RunE: runContextCurrent,
}

func runContextCurrent(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := store.CurrentName()
	if name == "" {
		fmt.Println("No current context. Run 'nvctl login' to create one.")
		return nil
	}

	sess, err := store.Current()
	if err != nil {
		return err
	}

	info := ContextInfo{
		Name:      name,
		Current:   true,
		ServerURL: sess.ServerURL,
		Username:  sess.Username,
		LoggedIn:  sess.LoggedIn() && !sess.TokenExpired(),
	}

	return cmdutil.PrintResource(os.Stdout, info, [][2]string{
		{"Name", info.Name},
		{"Server", info.ServerURL},
		{"User", cmdutil.EmptyOr(info.Username, "-")},
		{"Logged in", cmdutil.BoolToYesNo(info.LoggedIn)},
	})
}
