// Package coordinator sequences the end-to-end workflows: index a
// folder, post its staged copies, publish a share and reconstruct one on
// a consumer. It owns no policy of its own; it wires the scanner, the
// segment processor, the transfer engines and the publication manager
// together and tracks every long-running workflow as a cancellable
// operation.
//
// Workflow methods take the owner's unlocked identity per call. The
// coordinator holds no secret of its own; unlocked keys live in the
// shared key cache and vanish with the process.
package coordinator

import (
	"context"
	"errors"

	"github.com/nntpvault/nntpvault/pkg/download"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/publish"
	"github.com/nntpvault/nntpvault/pkg/scanner"
	"github.com/nntpvault/nntpvault/pkg/spool"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/upload"
)

var (
	// ErrNeverIndexed means the folder has no recorded version yet, so
	// there is nothing to post or publish.
	ErrNeverIndexed = errors.New("folder has never been indexed")

	// ErrFolderBusy means a writing workflow is already running on the
	// folder. Index and upload runs are serialized per folder; downloads
	// are not.
	ErrFolderBusy = errors.New("folder has an operation in flight")

	// ErrUnknownOperation means no operation carries the requested ID.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrOperationFinished means the operation already settled and can
	// no longer be cancelled.
	ErrOperationFinished = errors.New("operation already finished")
)

// Deps are the services a coordinator drives. All but the key cache are
// required.
type Deps struct {
	Store store.Store
	Index index.Store
	Spool spool.Spool

	// Posting is the provider pool upload runs go through.
	Posting *pool.Pool

	// Providers are the pools download runs draw from, in failover
	// order. Empty falls back to the posting provider.
	Providers []*pool.Pool

	// Keys caches unlocked folder keys and derived share keys between
	// calls. Nil builds a cache private to this coordinator.
	Keys *identity.KeyCache
}

// Config tunes the workflows.
type Config struct {
	// SegmentSize is the plaintext slice size used when cutting files.
	// Zero uses index.SegmentSize.
	SegmentSize uint32

	// Redundancy is the default copies sealed per slice for index runs
	// that do not choose their own.
	Redundancy uint8

	Scanner  scanner.Config
	Upload   upload.Config
	Download download.Config
}

// Coordinator drives the workflows over one set of stores and provider
// pools.
type Coordinator struct {
	store store.Store
	idx   index.Store
	stage spool.Spool
	post  *pool.Pool
	fetch []*pool.Pool
	keys  *identity.KeyCache
	pub   *publish.Manager
	cfg   Config

	ops *operations
}

// New wires a coordinator over the given dependencies.
func New(deps Deps, cfg Config) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, errors.New("control plane store is required")
	}
	if deps.Index == nil {
		return nil, errors.New("index store is required")
	}
	if deps.Spool == nil {
		return nil, errors.New("spool is required")
	}
	if deps.Posting == nil {
		return nil, errors.New("posting provider pool is required")
	}
	for _, p := range deps.Providers {
		if p == nil {
			return nil, errors.New("nil provider pool")
		}
	}

	pub, err := publish.NewManager(deps.Store, deps.Index)
	if err != nil {
		return nil, err
	}

	keys := deps.Keys
	if keys == nil {
		keys = identity.NewKeyCache()
	}
	fetch := deps.Providers
	if len(fetch) == 0 {
		fetch = []*pool.Pool{deps.Posting}
	}

	return &Coordinator{
		store: deps.Store,
		idx:   deps.Index,
		stage: deps.Spool,
		post:  deps.Posting,
		fetch: fetch,
		keys:  keys,
		pub:   pub,
		cfg:   cfg,
		ops:   newOperations(),
	}, nil
}

// Shutdown cancels every running operation, waits for their goroutines
// to settle and wipes the key cache.
func (c *Coordinator) Shutdown() {
	c.ops.cancelAll()
	c.ops.wait()
	c.keys.Clear()
}

// ownerID extracts the storage user ID from an unlocked identity.
func ownerID(owner *identity.UserKeys) (string, error) {
	if owner == nil || owner.User == nil {
		return "", errors.New("unlocked owner identity is required")
	}
	return owner.User.ID, nil
}

// folderKeys loads the folder, enforces ownership and returns its
// unlocked keys, paying the unwrap only on a cache miss. The folder
// record on the returned keys is always the freshly loaded row; the
// returned struct is the caller's own copy.
func (c *Coordinator) folderKeys(ctx context.Context, owner *identity.UserKeys, folderID string) (*identity.FolderKeys, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	folder, err := c.store.GetOwnedFolder(ctx, folderID, uid)
	if err != nil {
		return nil, err
	}

	if cached, ok := c.keys.Folder(folderID); ok {
		keys := *cached
		keys.Folder = folder
		return &keys, nil
	}

	keys, err := identity.UnlockFolderKeys(folder, owner)
	if err != nil {
		return nil, err
	}
	c.keys.PutFolder(keys)

	out := *keys
	out.Folder = folder
	return &out, nil
}
