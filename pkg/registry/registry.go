package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/spool"
	"github.com/nntpvault/nntpvault/pkg/store"
)

// Registry manages the named resources of a running daemon: NNTP provider
// pools plus the shared control-plane store, index store, and spool handles.
// It provides thread-safe registration and lookup of all daemon resources.
//
// Providers keep their registration order. Uploads post through the first
// provider registered with posting enabled; downloads walk all providers in
// registration order before a missing article burns a redundancy copy.
//
// Example usage:
//
//	reg := NewRegistry()
//	reg.RegisterProvider("eweka", ewekaPool, true)
//	reg.RegisterProvider("blocknews", blockPool, false)
//	reg.SetStore(db)
//	reg.SetIndex(ix)
//	reg.SetSpool(stage)
//
//	posting, _ := reg.PostingProvider()
//	fetch := reg.ProviderPools()
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider
	order     []string // registration order; download failover walks it
	store     store.Store
	index     index.Store
	spool     spool.Spool
	closed    bool
}

type provider struct {
	pool    *pool.Pool
	posting bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]*provider),
	}
}

// RegisterProvider adds a named provider pool to the registry. Posting marks
// the provider as usable for uploads; the first one registered with it wins.
// Returns an error if a provider with the same name already exists.
func (r *Registry) RegisterProvider(name string, p *pool.Pool, posting bool) error {
	if p == nil {
		return fmt.Errorf("cannot register nil provider pool")
	}
	if name == "" {
		return fmt.Errorf("cannot register provider with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	r.providers[name] = &provider{pool: p, posting: posting}
	r.order = append(r.order, name)
	return nil
}

// RemoveProvider removes a provider from the registry and closes its pool.
// Returns an error if the provider doesn't exist.
func (r *Registry) RemoveProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prov, exists := r.providers[name]
	if !exists {
		return fmt.Errorf("provider %q not found", name)
	}

	delete(r.providers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return prov.pool.Close()
}

// GetProvider retrieves a provider pool by name.
// Returns nil, error if the provider doesn't exist.
func (r *Registry) GetProvider(name string) (*pool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prov, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return prov.pool, nil
}

// PostingProvider retrieves the pool uploads post through: the first
// provider registered with posting enabled.
func (r *Registry) PostingProvider() (*pool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		if prov := r.providers[name]; prov.posting {
			return prov.pool, nil
		}
	}
	return nil, fmt.Errorf("no posting provider registered")
}

// ProviderPools returns all provider pools in registration order. Downloads
// try each in turn before falling back to another copy of a segment.
// The returned slice is a copy and safe to modify.
func (r *Registry) ProviderPools() []*pool.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pools := make([]*pool.Pool, 0, len(r.order))
	for _, name := range r.order {
		pools = append(pools, r.providers[name].pool)
	}
	return pools
}

// ListProviders returns all registered provider names in registration order.
// The returned slice is a copy and safe to modify.
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ListPostingProviders returns the names of all providers registered with
// posting enabled, in registration order.
// The returned slice is a copy and safe to modify.
func (r *Registry) ListPostingProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, name := range r.order {
		if r.providers[name].posting {
			names = append(names, name)
		}
	}
	return names
}

// CountProviders returns the number of registered providers.
func (r *Registry) CountProviders() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// ProviderExists checks if a provider with the given name is registered.
// This is useful for validating provider names taken from configuration.
func (r *Registry) ProviderExists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.providers[name]
	return exists
}

// SetStore sets the control-plane store holding folders, users, and
// publications. This should be called during daemon initialization.
func (r *Registry) SetStore(s store.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = s
}

// GetStore returns the control-plane store.
// Returns nil if no store has been configured.
func (r *Registry) GetStore() store.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store
}

// SetIndex sets the segment index store.
func (r *Registry) SetIndex(ix index.Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = ix
}

// GetIndex returns the segment index store.
// Returns nil if no index has been configured.
func (r *Registry) GetIndex() index.Store {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// SetSpool sets the staging spool.
func (r *Registry) SetSpool(s spool.Spool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spool = s
}

// GetSpool returns the staging spool.
// Returns nil if no spool has been configured.
func (r *Registry) GetSpool() spool.Spool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.spool
}

// Close shuts down every registered resource: provider pools first, then
// the spool, index, and store handles. Errors are collected rather than
// aborting the sequence. Close is idempotent.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for _, name := range r.order {
		if err := r.providers[name].pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close provider %q: %w", name, err))
		}
	}
	if r.spool != nil {
		if err := r.spool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close spool: %w", err))
		}
	}
	if r.index != nil {
		if err := r.index.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
