// Package commands implements the CLI commands for nntpvault daemon
// management.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/nntpvault/nntpvault/cmd/nntpvault/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nntpvault",
	Short: "nntpvault - Encrypted folder vault over Usenet",
	Long: `nntpvault distributes folder hierarchies over Usenet as an encrypted,
content-addressed object store. Files are cut into fixed segments, sealed
with per-folder keys, and posted as unremarkable yEnc articles across one
or more NNTP providers. Shares let other vaults reconstruct a folder from
nothing but a share ID and the right credentials.

Use "nntpvault [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nntpvault/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
