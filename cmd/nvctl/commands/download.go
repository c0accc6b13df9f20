package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/internal/cli/prompt"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var (
	downloadTarget   string
	downloadPassword string
	downloadPrompt   bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <share-id>",
	Short: "Reconstruct a shared folder from Usenet",
	Long: `Reconstruct a shared folder into a local directory.

The daemon resolves the share, derives the content key from your
credentials, and starts a background download run. Use 'nvctl op show'
or 'nvctl op watch' to follow progress.

Protected shares need the share password: pass it with --password or
use --prompt-password to enter it interactively. Private shares are
unlocked with your own keys; just being logged in is enough.

Examples:
  # Download a public share
  nvctl download mfne2qvbhtos673ggmzaoalu --target ./restore

  # Download a protected share, prompting for the password
  nvctl download mfne2qvbhtos673ggmzaoalu --target ./restore --prompt-password`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadTarget, "target", "t", "", "Target directory for the reconstructed folder (required)")
	downloadCmd.Flags().StringVar(&downloadPassword, "password", "", "Share password (protected shares)")
	downloadCmd.Flags().BoolVar(&downloadPrompt, "prompt-password", false, "Prompt for the share password")
	_ = downloadCmd.MarkFlagRequired("target")
}

func runDownload(cmd *cobra.Command, args []string) error {
	shareID := args[0]

	password := downloadPassword
	if downloadPrompt && password == "" {
		var err error
		password, err = prompt.Password("Share password")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	started, err := client.StartDownload(apiclient.DownloadRequest{
		ShareID:    shareID,
		TargetRoot: downloadTarget,
		Password:   password,
	})
	if err != nil {
		return fmt.Errorf("failed to start download: %w", err)
	}

	if err := cmdutil.PrintResourceWithSuccess(os.Stdout, started,
		fmt.Sprintf("Download started (operation %s)", started.OperationID)); err != nil {
		return err
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Follow progress with: nvctl op watch %s", started.OperationID))
	return nil
}
