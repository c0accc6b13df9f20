package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nntpvault/nntpvault/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the nntpvault configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  nntpvault config validate

  # Validate specific config file
  nntpvault config validate --config /etc/nntpvault/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if len(cfg.Providers) == 0 {
		warnings = append(warnings, "No NNTP providers configured - uploads and downloads will fail")
	}
	hasPosting := false
	for _, p := range cfg.Providers {
		if p.Posting {
			hasPosting = true
			break
		}
	}
	if len(cfg.Providers) > 0 && !hasPosting {
		warnings = append(warnings, "No posting provider configured - uploads will fail")
	}
	if cfg.API.IsEnabled() && cfg.API.JWTSecret == "" {
		warnings = append(warnings, "JWT secret not configured - API authentication will fail")
	}
	if cfg.Upload.AllowCustomSegmentSize {
		warnings = append(warnings, "Custom segment size enabled - both sides of every share must run the same value")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  Index backend:   %s\n", cfg.Index.Backend)
	fmt.Printf("  Spool backend:   %s\n", cfg.Spool.Backend)
	fmt.Printf("  Providers:       %d\n", len(cfg.Providers))
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Log.Level)

	return nil
}
