package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// Validate checks the configuration for errors: struct tags first, then
// the cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := validateIndex(&cfg.Index); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := validateSpool(&cfg.Spool); err != nil {
		return fmt.Errorf("spool: %w", err)
	}
	if err := validateProviders(cfg.Providers); err != nil {
		return err
	}
	if err := validateUpload(&cfg.Upload); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

func validateIndex(cfg *IndexConfig) error {
	switch cfg.Backend {
	case "badger":
		return cfg.Badger.Validate()
	case "postgres":
		return cfg.Postgres.Validate()
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func validateSpool(cfg *SpoolConfig) error {
	switch cfg.Backend {
	case "fs":
		if cfg.Path == "" {
			return fmt.Errorf("fs backend requires a path")
		}
	case "s3":
		if cfg.S3.Bucket == "" {
			return fmt.Errorf("s3 backend requires a bucket")
		}
		if cfg.S3.Region == "" && cfg.S3.Endpoint == "" {
			return fmt.Errorf("s3 backend requires a region or an endpoint")
		}
	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}

func validateProviders(providers []ProviderConfig) error {
	seen := make(map[string]bool, len(providers))
	for i, p := range providers {
		if seen[p.Name] {
			return fmt.Errorf("provider #%d: duplicate name %q", i+1, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

func validateUpload(cfg *UploadConfig) error {
	if uint32(cfg.SegmentSize) != index.SegmentSize && !cfg.AllowCustomSegmentSize {
		return fmt.Errorf("segment_size must be %d bytes; set allow_custom_segment_size to override (producer and consumer must then agree)", index.SegmentSize)
	}
	return nil
}
