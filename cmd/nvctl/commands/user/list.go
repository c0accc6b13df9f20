package user

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
	Short: "List users",
	Long: `List all users on the daemon (admin only).

Examples:
  # List users
  nvctl user list

  # List as JSON
  nvctl user list -o json`,
	RunE: runUserList,
}

// UserList renders users as a table.
type UserList []apiclient.User

// Headers implements TableRenderer.
func (ul UserList) Headers() []string {
	return []string{"USERNAME", "ROLE", "ENABLED", "LAST LOGIN"}
}

// Rows implements TableRenderer.
func (ul UserList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		lastLogin := "-"
		if u.LastLogin != nil {
			lastLogin = output.Ago(*u.LastLogin)
		}
		rows = append(rows, []string{
			u.Username,
			u.Role,
			cmdutil.BoolToYesNo(u.Enabled),
			lastLogin,
		})
	}
	return rows
}

func runUserList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	users, err := client.ListUsers()
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, users, len(users) == 0,
		"No users found.", UserList(users))
}
