package user

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/output"
	"github.com/nntpvault/nntpvault/internal/cli/prompt"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var (
	createPassword string
	createRole     string
)

var createCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Long: `Create a user on the daemon (admin only).

The daemon generates fresh keypairs for the user and wraps them with a
key derived from the password. The password is never stored.

Examples:
  # Create a user, prompting for the password
  nvctl user create alice

  # Create an admin
  nvctl user create bob --role admin`,
	Args: cobra.ExactArgs(1),
	RunE: runUserCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createPassword, "password", "p", "", "Password (prompted when omitted)")
	createCmd.Flags().StringVar(&createRole, "role", "user", "Role (user|admin)")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := createPassword
	if password == "" {
		var err error
		password, err = prompt.NewPassword(fmt.Sprintf("Password for %s", username))
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	created, err := client.CreateUser(apiclient.CreateUserRequest{
		Username: username,
		Password: password,
		Role:     createRole,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, created,
		fmt.Sprintf("User '%s' created (ID %s)", created.Username, created.ID))
}

// printUser renders one user in the selected format.
func printUser(u *apiclient.User) error {
	lastLogin := "-"
	if u.LastLogin != nil {
		lastLogin = output.FormatTime(*u.LastLogin)
	}

	return cmdutil.PrintResource(os.Stdout, u, [][2]string{
		{"ID", u.ID},
		{"Username", u.Username},
		{"Role", u.Role},
		{"Enabled", cmdutil.BoolToYesNo(u.Enabled)},
		{"Signing key", u.SigningPublicKey},
		{"Box key", u.BoxPublicKey},
		{"Created", output.FormatTime(u.CreatedAt)},
		{"Last login", lastLogin},
	})
}
