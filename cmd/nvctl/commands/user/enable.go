package user

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var enableCmd = &cobra.Command{
	Use:   "enable <username>",
	Short: "Enable a user",
	Long: `Enable a previously disabled user (admin only).

Examples:
  # Enable a user
  nvctl user enable alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserEnabled(args[0], true)
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable <username>",
	Short: "Disable a user",
	Long: `Disable a user (admin only).

A disabled user cannot log in; existing sessions are revoked and their
unlocked key material is dropped from the daemon.

Examples:
  # Disable a user
  nvctl user disable alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setUserEnabled(args[0], false)
	},
}

func setUserEnabled(username string, enabled bool) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	if err := client.SetUserEnabled(username, enabled); err != nil {
		verb := "enable"
		if !enabled {
			verb = "disable"
		}
		return fmt.Errorf("failed to %s user: %w", verb, err)
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	cmdutil.PrintSuccess(fmt.Sprintf("User '%s' %s", username, state))
	return nil
}
