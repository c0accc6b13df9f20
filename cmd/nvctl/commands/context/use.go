package context

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/internal/cli/credentials"
)

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch to a different context",
	Long: `Switch the current context to the named one.

Examples:
  # Switch to the context for vault.example.com
  nvctl context use vault.example.com:8419`,
	Args: cobra.ExactArgs(1),
	RunE: runContextUse,
}

func runContextUse(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	name := args[0]
	if err := store.UseContext(name); err != nil {
		if errors.Is(err, credentials.ErrContextNotFound) {
			return fmt.Errorf("context %q not found. Run 'nvctl context list' to see saved contexts", name)
		}
		return err
	}

	fmt.Printf("Switched to context: %s\n", name)
	return nil
}
