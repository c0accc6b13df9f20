package share

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize <share-id> <user-id>",
	Short: "Grant a user access to a private share",
	Long: `Grant a user access to a private share.

The share's content key is wrapped to the user's public key, so only
their credentials can unwrap it. Works only on private shares you own.

Examples:
  # Authorize a user
  nvctl share authorize mfne2qvbhtos673ggmzaoalu 91ab…`,
	Args: cobra.ExactArgs(2),
	RunE: runShareAuthorize,
}

func runShareAuthorize(cmd *cobra.Command, args []string) error {
	shareID, userID := args[0], args[1]

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	if err := client.AuthorizeShare(shareID, userID); err != nil {
		return fmt.Errorf("failed to authorize user: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("User '%s' authorized on share '%s'", userID, shareID))
	return nil
}
