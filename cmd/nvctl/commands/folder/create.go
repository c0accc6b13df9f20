package folder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/cmd/nvctl/cmdutil"
	"github.com/nntpvault/nntpvault/pkg/apiclient"
)

var (
	createName      string
	createNewsgroup string
)

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Register a local directory",
	Long: `Register a local directory as a vault folder.

The daemon generates fresh folder keys and starts tracking the
directory. Nothing is uploaded until you run 'nvctl folder index' and
'nvctl folder upload'.

The path must be visible from the daemon's filesystem.

Examples:
  # Register a directory under its base name
  nvctl folder create /data/photos

  # Register with an explicit name and newsgroup
  nvctl folder create /data/photos --name holidays --newsgroup alt.binaries.misc`,
	Args: cobra.ExactArgs(1),
	RunE: runFolderCreate,
}

func init() {
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "Folder name (default: directory base name)")
	createCmd.Flags().StringVar(&createNewsgroup, "newsgroup", "", "Newsgroup to post articles to (default: daemon's configured group)")
}

func runFolderCreate(cmd *cobra.Command, args []string) error {
	rootPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	name := createName
	if name == "" {
		name = filepath.Base(rootPath)
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	folder, err := client.CreateFolder(apiclient.CreateFolderRequest{
		Name:      name,
		RootPath:  rootPath,
		Newsgroup: createNewsgroup,
	})
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return cmdutil.PrintResourceWithSuccess(os.Stdout, folder,
		fmt.Sprintf("Folder '%s' created (ID %s)", folder.Name, folder.ID))
}
