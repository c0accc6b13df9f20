package op

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <operation-id>",
	Short: "Follow an operation until it settles",
	Long: `Poll an operation and print its progress until it succeeds,
fails, or is cancelled.

Exits non-zero when the operation fails.

Examples:
  # Watch an upload run
  nvctl op watch 7c3e…

  # Poll every 10 seconds
  nvctl op watch 7c3e… --interval 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runOpWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "Poll interval")
}

func runOpWatch(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	var last string
	for {
		op, err := client.GetOperation(args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch operation: %w", err)
		}

		line := fmt.Sprintf("%s %s %s", op.Kind, op.Status, progress(*op))
		if line != last {
			fmt.Println(line)
			last = line
		}

		if op.Finished() {
			switch op.Status {
			case apiclient.OpSucceeded:
				cmdutil.PrintSuccess("Operation completed successfully")
				return nil
			case apiclient.OpCancelled:
				fmt.Println("Operation cancelled")
				return nil
			default:
				return fmt.Errorf("operation failed: %s", op.Error)
			}
		}

		time.Sleep(watchInterval)
	}
}
