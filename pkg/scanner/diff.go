package scanner

import (
	"context"
	"errors"
	"fmt"
)

// ChangeType classifies one path in a diff.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeModified  ChangeType = "modified"
	ChangeDeleted   ChangeType = "deleted"
	ChangeUnchanged ChangeType = "unchanged"
)

// PriorFile is a file identity from the previously indexed version.
type PriorFile struct {
	// Path is slash-separated and relative to the folder root.
	Path   string
	SHA256 string
}

// PriorSource streams the prior version's file identities in ascending
// byte order of the path, the same order Walk emits.
type PriorSource func(ctx context.Context, fn func(PriorFile) error) error

// Change is one diff event. File is nil for deletions; PriorSHA256 is
// empty for additions.
type Change struct {
	Type        ChangeType
	Path        string
	File        *ScannedFile
	PriorSHA256 string
}

// DiffFunc receives each change event. Returning an error aborts the
// diff.
type DiffFunc func(*Change) error

// Diff walks the root and merges it with the prior version's file list,
// emitting one change per path. Both sides arrive in byte order of the
// path, so a single forward merge classifies everything: a prior path
// with no current counterpart is deleted, a current path with no prior
// counterpart is added, and a shared path compares digests. A nil prior
// reports the whole tree as added.
func (s *Scanner) Diff(ctx context.Context, prior PriorSource, fn DiffFunc, onErr ErrorFunc) error {
	if fn == nil {
		return fmt.Errorf("diff callback is required")
	}
	if prior == nil {
		return s.Walk(ctx, func(file *ScannedFile) error {
			return fn(&Change{Type: ChangeAdded, Path: file.RelPath, File: file})
		}, onErr)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The prior side streams through a channel so the source iterates
	// at its own pace while the walk drives the merge.
	priorCh := make(chan PriorFile, 64)
	priorErrCh := make(chan error, 1)
	go func() {
		defer close(priorCh)
		priorErrCh <- prior(ctx, func(pf PriorFile) error {
			select {
			case priorCh <- pf:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	m := &merger{fn: fn, priorCh: priorCh}
	walkErr := func() error {
		if err := m.advance(); err != nil {
			return err
		}
		if err := s.Walk(ctx, m.observe, onErr); err != nil {
			return err
		}
		return m.finish()
	}()

	// Unblock the prior source and collect its verdict.
	cancel()
	for range priorCh {
	}
	priorErr := <-priorErrCh

	if walkErr != nil {
		return walkErr
	}
	if priorErr != nil && !errors.Is(priorErr, context.Canceled) {
		return fmt.Errorf("prior version listing failed: %w", priorErr)
	}
	return nil
}

// merger holds the prior-side cursor of one diff.
type merger struct {
	fn      DiffFunc
	priorCh <-chan PriorFile

	pending     PriorFile
	havePending bool
	primed      bool
}

// advance moves the cursor to the next prior file, checking the order
// contract as it goes.
func (m *merger) advance() error {
	prev, hadPrev := m.pending.Path, m.primed
	m.pending, m.havePending = <-m.priorCh
	m.primed = true
	if m.havePending && hadPrev && m.pending.Path <= prev {
		return fmt.Errorf("prior version listing out of order: %q after %q", m.pending.Path, prev)
	}
	return nil
}

// observe merges one walked file against the prior cursor.
func (m *merger) observe(file *ScannedFile) error {
	// Everything the prior version had before this path is gone.
	for m.havePending && m.pending.Path < file.RelPath {
		if err := m.deleted(); err != nil {
			return err
		}
	}

	if m.havePending && m.pending.Path == file.RelPath {
		change := &Change{
			Type:        ChangeModified,
			Path:        file.RelPath,
			File:        file,
			PriorSHA256: m.pending.SHA256,
		}
		if m.pending.SHA256 == file.SHA256 {
			change.Type = ChangeUnchanged
		}
		if err := m.advance(); err != nil {
			return err
		}
		return m.fn(change)
	}

	return m.fn(&Change{Type: ChangeAdded, Path: file.RelPath, File: file})
}

// finish drains prior files past the last walked path as deletions.
func (m *merger) finish() error {
	for m.havePending {
		if err := m.deleted(); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) deleted() error {
	change := &Change{
		Type:        ChangeDeleted,
		Path:        m.pending.Path,
		PriorSHA256: m.pending.SHA256,
	}
	if err := m.advance(); err != nil {
		return err
	}
	return m.fn(change)
}
