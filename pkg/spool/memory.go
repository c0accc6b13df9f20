package spool

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory spool for tests and ephemeral runs. Everything
// staged here is lost on restart, so crash-resume guarantees only hold
// with a durable backend.
type Memory struct {
	mu      sync.RWMutex
	folders map[string]map[string][]byte
	closed  bool
}

// NewMemory creates an empty in-memory spool.
func NewMemory() *Memory {
	return &Memory{
		folders: make(map[string]map[string][]byte),
	}
}

// Put stages one envelope.
func (s *Memory) Put(ctx context.Context, env *Envelope) error {
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

	refs, ok := s.folders[env.FolderID]
	if !ok {
		refs = make(map[string][]byte)
		s.folders[env.FolderID] = refs
	}
	refs[env.Ref()] = data
	return nil
}

// Get loads an envelope by ref.
func (s *Memory) Get(ctx context.Context, folderID, ref string) (*Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	data, ok := s.folders[folderID][ref]
	if !ok {
		return nil, ErrNotFound
	}
	return DecodeEnvelope(data)
}

// Delete drops an envelope. Missing refs are ignored.
func (s *Memory) Delete(ctx context.Context, folderID, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if refs, ok := s.folders[folderID]; ok {
		delete(refs, ref)
		if len(refs) == 0 {
			delete(s.folders, folderID)
		}
	}
	return nil
}

// List returns every staged ref of one folder, sorted.
func (s *Memory) List(ctx context.Context, folderID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	refs := make([]string, 0, len(s.folders[folderID]))
	for ref := range s.folders[folderID] {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs, nil
}

// DeleteFolder drops everything staged for one folder.
func (s *Memory) DeleteFolder(ctx context.Context, folderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	delete(s.folders, folderID)
	return nil
}

// Healthcheck reports whether the spool is open.
func (s *Memory) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the spool as closed.
func (s *Memory) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.folders = nil
	return nil
}

// Ensure Memory implements Spool.
var _ Spool = (*Memory)(nil)
