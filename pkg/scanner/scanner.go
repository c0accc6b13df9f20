// Package scanner builds content snapshots of local folder trees.
//
// A walk visits every regular file depth first, hashing content in
// fixed-size chunks, and emits records in byte order of the relative
// path. Diff merges a walk with the file list of a previously indexed
// version and classifies every path as added, modified, deleted or
// unchanged.
package scanner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
)

// DefaultChunkSize is the hashing read buffer when Config leaves it
// unset.
const DefaultChunkSize = 1 << 20 // 1 MiB

// Config tunes a Scanner.
type Config struct {
	// ChunkSize is the read buffer used while hashing, so no file is
	// ever held fully in memory.
	ChunkSize int
}

// ApplyDefaults sets default values for unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// ScannedFile is one regular file found under the root.
type ScannedFile struct {
	// RelPath is slash-separated and relative to the scan root.
	RelPath string
	// Size is the number of bytes hashed.
	Size uint64
	// SHA256 is the hex digest of the file content.
	SHA256  string
	ModTime time.Time
}

// ScanError reports a path that could not be scanned. The walk
// continues past it.
type ScanError struct {
	// Path is relative to the scan root.
	Path  string
	Cause error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Cause)
}

func (e *ScanError) Unwrap() error {
	return e.Cause
}

// WalkFunc receives each scanned file. Returning an error aborts the
// walk.
type WalkFunc func(*ScannedFile) error

// ErrorFunc receives per-path scan failures. Returning nil continues
// the walk past the path; returning an error aborts.
type ErrorFunc func(*ScanError) error

// Scanner walks one folder root.
type Scanner struct {
	root         string
	resolvedRoot string
	chunkSize    int
	log          *slog.Logger
}

// New validates the root and returns a scanner for it.
func New(root string, cfg Config) (*Scanner, error) {
	cfg.ApplyDefaults()

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	return &Scanner{
		root:         abs,
		resolvedRoot: resolved,
		chunkSize:    cfg.ChunkSize,
		log:          logger.With("component", "scanner"),
	}, nil
}

// Root returns the absolute scan root.
func (s *Scanner) Root() string {
	return s.root
}

// Walk streams every regular file under the root through fn in byte
// order of the relative path. Symlinks are followed only while they
// resolve inside the root; unreadable paths go to onErr and the walk
// continues. A nil onErr logs and continues.
func (s *Scanner) Walk(ctx context.Context, fn WalkFunc, onErr ErrorFunc) error {
	if fn == nil {
		return fmt.Errorf("walk callback is required")
	}
	if onErr == nil {
		onErr = func(scanErr *ScanError) error {
			s.log.Warn("skipping unreadable path", "path", scanErr.Path, "error", scanErr.Cause)
			return nil
		}
	}

	w := &walker{
		s:       s,
		fn:      fn,
		onErr:   onErr,
		buf:     make([]byte, s.chunkSize),
		onStack: make(map[string]bool),
	}
	return w.walkDir(ctx, s.root, "")
}

// within reports whether a resolved path sits under the resolved root.
func (s *Scanner) within(resolved string) bool {
	return resolved == s.resolvedRoot ||
		strings.HasPrefix(resolved, s.resolvedRoot+string(filepath.Separator))
}

// ============================================================================
// Walk Internals
// ============================================================================

type entryKind int

const (
	entrySkip entryKind = iota
	entryDir
	entryFile
	entryBroken
)

// walkEntry is one directory entry with its traversal decision already
// made, so sorting never repeats a symlink resolution.
type walkEntry struct {
	full    string
	relPath string
	key     string
	kind    entryKind
	// resolved is the symlink target for directories reached through a
	// link; it anchors the cycle guard.
	resolved string
	cause    error
}

// walker carries the per-run state of one Walk.
type walker struct {
	s     *Scanner
	fn    WalkFunc
	onErr ErrorFunc
	buf   []byte
	// onStack holds the resolved targets of symlinked directories on
	// the current recursion chain.
	onStack map[string]bool
}

func (w *walker) walkDir(ctx context.Context, dir, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return fmt.Errorf("failed to read scan root: %w", err)
		}
		return w.onErr(&ScanError{Path: rel, Cause: err})
	}

	entries := make([]walkEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, w.classify(dir, rel, de))
	}
	// Directories carry a trailing slash in their sort key so emitted
	// paths come out in byte order: "a.txt" sorts before "a/b".
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	for i := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		e := &entries[i]
		switch e.kind {
		case entryDir:
			if e.resolved != "" {
				if w.onStack[e.resolved] {
					w.s.log.Debug("skipping symlink cycle", "path", e.relPath)
					continue
				}
				w.onStack[e.resolved] = true
			}
			err := w.walkDir(ctx, e.full, e.relPath)
			if e.resolved != "" {
				delete(w.onStack, e.resolved)
			}
			if err != nil {
				return err
			}

		case entryFile:
			if err := w.scanFile(ctx, e.full, e.relPath); err != nil {
				return err
			}

		case entryBroken:
			if err := w.onErr(&ScanError{Path: e.relPath, Cause: e.cause}); err != nil {
				return err
			}
		}
	}

	return nil
}

// classify decides how one directory entry is traversed.
func (w *walker) classify(dir, rel string, de fs.DirEntry) walkEntry {
	name := de.Name()
	e := walkEntry{
		full:    filepath.Join(dir, name),
		relPath: name,
		key:     name,
	}
	if rel != "" {
		e.relPath = rel + "/" + name
	}

	switch {
	case de.IsDir():
		e.kind = entryDir
		e.key = name + "/"
	case de.Type()&fs.ModeSymlink != 0:
		w.classifyLink(&e, name)
	case de.Type().IsRegular():
		e.kind = entryFile
	default:
		w.s.log.Debug("skipping special file", "path", e.relPath)
	}

	return e
}

// classifyLink resolves a symlink entry. Links pointing outside the
// root are skipped; dangling links surface as scan errors.
func (w *walker) classifyLink(e *walkEntry, name string) {
	resolved, err := filepath.EvalSymlinks(e.full)
	if err != nil {
		e.kind = entryBroken
		e.cause = err
		return
	}
	if !w.s.within(resolved) {
		w.s.log.Debug("skipping symlink outside the root", "path", e.relPath, "target", resolved)
		return
	}

	info, err := os.Stat(resolved)
	if err != nil {
		e.kind = entryBroken
		e.cause = err
		return
	}

	switch {
	case info.IsDir():
		e.kind = entryDir
		e.key = name + "/"
		e.resolved = resolved
	case info.Mode().IsRegular():
		e.kind = entryFile
	default:
		w.s.log.Debug("skipping special file", "path", e.relPath)
	}
}

func (w *walker) scanFile(ctx context.Context, full, relPath string) error {
	file, err := w.hashFile(ctx, full, relPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return w.onErr(&ScanError{Path: relPath, Cause: err})
	}
	return w.fn(file)
}

// hashFile streams one file through SHA-256. Size is the byte count
// actually hashed, so the record stays consistent with its digest even
// when the file is being appended to.
func (w *walker) hashFile(ctx context.Context, full, relPath string) (*ScannedFile, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	digest := sha256.New()
	var size uint64
	for {
		n, err := f.Read(w.buf)
		if n > 0 {
			digest.Write(w.buf[:n])
			size += uint64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return &ScannedFile{
		RelPath: relPath,
		Size:    size,
		SHA256:  hex.EncodeToString(digest.Sum(nil)),
		ModTime: info.ModTime().UTC(),
	}, nil
}
