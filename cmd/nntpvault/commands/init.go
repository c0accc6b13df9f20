package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample nntpvault configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/nntpvault/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  nntpvault init

  # Initialize with custom path
  nntpvault init --config /etc/nntpvault/config.yaml

  # Force overwrite existing config
  nntpvault init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Fill in your NNTP provider credentials under 'providers'")
	fmt.Println("  2. Start the daemon with: nntpvault start")
	fmt.Printf("  3. Or specify custom config: nntpvault start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A random JWT secret has been generated for the management API.")
	fmt.Println("  The config file contains provider passwords and is written 0600;")
	fmt.Println("  keep it private.")

	return nil
}
