package share

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/prompt"
)

var revokeForce bool

var revokeCmd = &cobra.Command{
	Use:   "revoke <share-id>",
	Short: "Revoke a share",
	Long: `Revoke a share on this daemon.

Revocation deletes the publication record locally. Vaults that already
imported the share record can still download; articles on Usenet are
beyond recall.

Examples:
  # Revoke a share
  nvctl share revoke mfne2qvbhtos673ggmzaoalu

  # Revoke without confirmation
  nvctl share revoke mfne2qvbhtos673ggmzaoalu --force`,
	Args: cobra.ExactArgs(1),
	RunE: runShareRevoke,
}

func init() {
	revokeCmd.Flags().BoolVarP(&revokeForce, "force", "f", false, "Skip confirmation prompt")
}

func runShareRevoke(cmd *cobra.Command, args []string) error {
	shareID := args[0]

	if !revokeForce {
		confirmed, err := prompt.Confirm(fmt.Sprintf("Revoke share '%s'?", shareID), false)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return nil
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	if err := client.RevokeShare(shareID); err != nil {
		return fmt.Errorf("failed to revoke share: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Share '%s' revoked", shareID))
	return nil
}
