package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/credentials"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved context",
	Long: `Delete a saved server context and its stored credentials.

Examples:
  # Delete a context
  nvctl context delete vault.example.com:8419

  # Delete without confirmation
  nvctl context delete vault.example.com:8419 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runContextDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runContextDelete(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := args[0]
	return cmdutil.RunDeleteWithConfirmation("context", name, deleteForce, func() error {
		if err := store.DeleteContext(name); err != nil {
			if errors.Is(err, credentials.ErrContextNotFound) {
				return fmt.Errorf("context %q not found", name)
			}
			return err
		}
		return nil
	})
}
