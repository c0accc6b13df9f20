package spool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// FSConfig holds configuration for the filesystem spool.
type FSConfig struct {
	// BasePath is the root directory for staged envelopes.
	BasePath string

	// CreateDir creates the base directory if it doesn't exist.
	// Default: true
	CreateDir bool

	// DirMode is the permission mode for created directories.
	// Default: 0700 (envelopes are ciphertext, but subjects leak structure)
	DirMode os.FileMode

	// FileMode is the permission mode for created files.
	// Default: 0600
	FileMode os.FileMode
}

// DefaultFSConfig returns the default configuration.
func DefaultFSConfig(basePath string) FSConfig {
	return FSConfig{
		BasePath:  basePath,
		CreateDir: true,
		DirMode:   0700,
		FileMode:  0600,
	}
}

// FS is the filesystem-backed spool. Envelopes are laid out as
// <base>/<folder-id>/<ref[:2]>/<ref>.art so one folder's staging area can
// be listed and dropped without touching the others.
type FS struct {
	mu       sync.RWMutex
	basePath string
	fileMode os.FileMode
	closed   bool
}

// NewFS creates a filesystem spool with the given configuration.
func NewFS(cfg FSConfig) (*FS, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("base path is required")
	}

	if cfg.DirMode == 0 {
		cfg.DirMode = 0700
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0600
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.BasePath, cfg.DirMode); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(cfg.BasePath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("base path is not a directory")
	}

	return &FS{
		basePath: cfg.BasePath,
		fileMode: cfg.FileMode,
	}, nil
}

// NewFSWithPath creates a filesystem spool with default configuration.
func NewFSWithPath(basePath string) (*FS, error) {
	return NewFS(DefaultFSConfig(basePath))
}

// envelopePath returns the full filesystem path for one envelope.
func (s *FS) envelopePath(folderID, ref string) string {
	fanout := ref
	if len(fanout) > 2 {
		fanout = fanout[:2]
	}
	return filepath.Join(s.basePath, folderID, fanout, ref+".art")
}

// Put stages one envelope, overwriting any previous body under the same
// ref. The write goes through a temp file and rename so a crash never
// leaves a half-written envelope behind.
func (s *FS) Put(ctx context.Context, env *Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return err
	}

	data, err := env.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	path := s.envelopePath(env.FolderID, env.Ref())
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, s.fileMode); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return nil
}

// Get loads an envelope by ref.
func (s *FS) Get(ctx context.Context, folderID, ref string) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(s.envelopePath(folderID, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return DecodeEnvelope(data)
}

// Delete drops an envelope. Missing refs are ignored.
func (s *FS) Delete(ctx context.Context, folderID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	path := s.envelopePath(folderID, ref)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	s.cleanEmptyDirs(filepath.Dir(path))
	return nil
}

// cleanEmptyDirs removes empty directories up to the base path.
func (s *FS) cleanEmptyDirs(dir string) {
	for dir != s.basePath && strings.HasPrefix(dir, s.basePath) {
		if err := os.Remove(dir); err != nil {
			// Directory not empty or other error, stop
			break
		}
		dir = filepath.Dir(dir)
	}
}

// List returns every staged ref of one folder, sorted.
func (s *FS) List(ctx context.Context, folderID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	root := filepath.Join(s.basePath, folderID)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		// Skip half-written envelopes
		if strings.HasSuffix(path, ".tmp") {
			return nil
		}
		name := d.Name()
		refs = append(refs, strings.TrimSuffix(name, ".art"))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(refs)
	return refs, nil
}

// DeleteFolder drops everything staged for one folder.
func (s *FS) DeleteFolder(ctx context.Context, folderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	root := filepath.Join(s.basePath, folderID)
	if err := os.RemoveAll(root); err != nil {
		return err
	}
	return nil
}

// Healthcheck verifies the base path is present and writable.
func (s *FS) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if _, err := os.Stat(s.basePath); err != nil {
		return err
	}

	// A spool that cannot accept writes is down even if it stats fine.
	probe := filepath.Join(s.basePath, ".healthcheck.tmp")
	if err := os.WriteFile(probe, []byte("ok"), s.fileMode); err != nil {
		return fmt.Errorf("spool not writable: %w", err)
	}
	os.Remove(probe)

	return nil
}

// Close marks the spool as closed.
func (s *FS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// BasePath returns the base path of the spool (for testing).
func (s *FS) BasePath() string {
	return s.basePath
}

// Ensure FS implements Spool.
var _ Spool = (*FS)(nil)
