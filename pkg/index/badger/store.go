// Package badger implements the data-plane index on embedded BadgerDB.
//
// It is the default backend: a single-directory store with no external
// service to run, suitable for folders with millions of files. Records
// are JSON values under prefixed keys (see encoding.go for the key
// namespace design).
package badger

import (
	"fmt"
	"os"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// Config contains BadgerDB-specific configuration.
type Config struct {
	// Path is the database directory.
	// Default: $XDG_DATA_HOME/nntpvault/index
	Path string `mapstructure:"path"`

	// InMemory runs the store without touching disk. Used by tests.
	InMemory bool `mapstructure:"in_memory"`
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Path == "" && !c.InMemory {
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			homeDir, _ := os.UserHomeDir()
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		c.Path = filepath.Join(dataDir, "nntpvault", "index")
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("badger index requires a path")
	}
	return nil
}

// Store is the BadgerDB-backed index store.
type Store struct {
	db *badgerdb.DB
}

// New opens (creating if necessary) the index database.
func New(config Config) (*Store, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid index configuration: %w", err)
	}

	opts := badgerdb.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	}
	// Suppress badger's internal logger.
	opts = opts.WithLogger(nil)

	if !config.InMemory {
		if err := os.MkdirAll(config.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, index.NewIOError("failed to open index database", err)
	}

	return &Store{db: db}, nil
}
