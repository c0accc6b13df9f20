package config

import (
	"fmt"
	"os"

	"github.com/nntpvault/nntpvault/pkg/crypto"
)

// InitConfig writes a commented default configuration file at the default
// location and returns its path. Fails when the file already exists
// unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at the given path.
// A fresh JWT secret is generated so the API works out of the box; the
// file is written 0600 because of it.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	}

	cfg := GetDefaultConfig()

	secret, err := crypto.RandomHex(32)
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	cfg.API.JWTSecret = secret

	// A placeholder provider so the file documents the shape. Posting
	// stays off until the operator fills in real credentials.
	cfg.Providers = []ProviderConfig{{
		Name:     "example",
		Host:     "news.example.com",
		Port:     563,
		TLS:      true,
		Username: "change-me",
		Password: "change-me",
		Posting:  false,
	}}
	for i := range cfg.Providers {
		applyProviderDefaults(&cfg.Providers[i])
	}

	return SaveConfig(cfg, path)
}
