package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/download"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/upload"
)

// Kind classifies a background operation.
type Kind string

const (
	KindIndex    Kind = "index"
	KindUpload   Kind = "upload"
	KindDownload Kind = "download"
)

// Status is the lifecycle stage of an operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Finished reports whether the status is terminal.
func (s Status) Finished() bool {
	return s != StatusRunning
}

// Operation is a point-in-time snapshot of one workflow run. At most one
// of the result fields is set, matching the kind, once the run settles.
type Operation struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	FolderID string `json:"folder_id,omitempty"`
	Version  uint32 `json:"version,omitempty"`
	ShareID  string `json:"share_id,omitempty"`
	Status   Status `json:"status"`

	// Done and Total count settled work units. A zero Total means the
	// run's extent is not known up front.
	Done  int64 `json:"done"`
	Total int64 `json:"total"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`

	Index    *IndexResult       `json:"index,omitempty"`
	Upload   *upload.Result     `json:"upload,omitempty"`
	Download *download.Manifest `json:"download,omitempty"`
}

// operation is the live registry entry behind one snapshot. The ID and
// contexts are immutable after creation; everything else is guarded by
// the mutex.
type operation struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	snap Operation
}

// progress records settled work. Shaped to slot in as an OnProgress
// callback.
func (o *operation) progress(done, total int64) {
	o.mu.Lock()
	o.snap.Done, o.snap.Total = done, total
	o.mu.Unlock()
}

// finish settles the operation. A run that errored after its own context
// was cancelled counts as cancelled, not failed.
func (o *operation) finish(err error, fill func(*Operation)) {
	now := time.Now().UTC()

	o.mu.Lock()
	o.snap.FinishedAt = &now
	switch {
	case err == nil:
		o.snap.Status = StatusSucceeded
	case o.ctx.Err() != nil:
		o.snap.Status = StatusCancelled
		o.snap.Error = err.Error()
	default:
		o.snap.Status = StatusFailed
		o.snap.Error = err.Error()
	}
	if fill != nil {
		fill(&o.snap)
	}
	kind, status := o.snap.Kind, o.snap.Status
	o.mu.Unlock()

	logger.Info("operation finished",
		logger.OperationID(o.id),
		logger.Operation(string(kind)),
		"status", string(status),
		logger.Err(err))
}

// snapshot returns a copy of the current state.
func (o *operation) snapshot() Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// operations tracks every workflow launched since the process started.
// Finished runs stay listed until shutdown so their results can be
// collected.
type operations struct {
	mu  sync.RWMutex
	ops map[string]*operation
	wg  sync.WaitGroup
}

func newOperations() *operations {
	return &operations{ops: make(map[string]*operation)}
}

// begin registers a running operation and reserves a goroutine slot for
// it. Index and upload runs are exclusive per folder; a second writer is
// refused. Downloads run freely alongside anything.
func (r *operations) begin(kind Kind, folderID, shareID string, version uint32) (*operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if kind != KindDownload {
		for _, o := range r.ops {
			s := o.snapshot()
			if s.Status == StatusRunning && s.FolderID == folderID && s.Kind != KindDownload {
				return nil, ErrFolderBusy
			}
		}
	}

	// The run outlives the request that launched it; cancellation comes
	// through CancelOperation or Shutdown, never the caller's deadline.
	ctx, cancel := context.WithCancel(context.Background())
	o := &operation{
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		snap: Operation{
			Kind:      kind,
			FolderID:  folderID,
			ShareID:   shareID,
			Version:   version,
			Status:    StatusRunning,
			StartedAt: time.Now().UTC(),
		},
	}
	o.snap.ID = o.id
	r.ops[o.id] = o
	r.wg.Add(1)
	return o, nil
}

func (r *operations) get(id string) (*operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.ops[id]
	return o, ok
}

// anyRunning reports whether any operation on the folder is still
// running, downloads included.
func (r *operations) anyRunning(folderID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.ops {
		s := o.snapshot()
		if s.Status == StatusRunning && s.FolderID == folderID {
			return true
		}
	}
	return false
}

// list returns snapshots of every operation, oldest first.
func (r *operations) list() []Operation {
	r.mu.RLock()
	out := make([]Operation, 0, len(r.ops))
	for _, o := range r.ops {
		out = append(out, o.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *operations) cancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.ops {
		o.cancel()
	}
}

func (r *operations) wait() {
	r.wg.Wait()
}

// StartIndex validates the request, then runs the index in the
// background and returns the operation ID to poll.
func (c *Coordinator) StartIndex(ctx context.Context, owner *identity.UserKeys, folderID string, opts IndexOptions) (string, error) {
	keys, err := c.folderKeys(ctx, owner, folderID)
	if err != nil {
		return "", err
	}

	op, err := c.ops.begin(KindIndex, folderID, "", keys.Folder.CurrentVersion+1)
	if err != nil {
		return "", err
	}
	opts.OnProgress = op.progress

	go func() {
		defer c.ops.wg.Done()
		res, err := c.indexFolder(op.ctx, keys, opts)
		op.finish(err, func(s *Operation) {
			s.Index = res
			if res != nil {
				s.Version = res.Version
			}
		})
	}()
	return op.id, nil
}

// StartUpload validates the request, then posts the folder's staged
// copies in the background and returns the operation ID to poll.
func (c *Coordinator) StartUpload(ctx context.Context, owner *identity.UserKeys, folderID string, opts UploadOptions) (string, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return "", err
	}
	folder, err := c.store.GetOwnedFolder(ctx, folderID, uid)
	if err != nil {
		return "", err
	}
	if folder.CurrentVersion == 0 {
		return "", ErrNeverIndexed
	}

	op, err := c.ops.begin(KindUpload, folderID, "", folder.CurrentVersion)
	if err != nil {
		return "", err
	}
	opts.OnProgress = op.progress

	go func() {
		defer c.ops.wg.Done()
		res, err := c.uploadFolder(op.ctx, folder, opts)
		op.finish(err, func(s *Operation) { s.Upload = res })
	}()
	return op.id, nil
}

// StartDownload resolves and unlocks the share synchronously, so bad
// credentials fail the request rather than the operation, then runs the
// import and reconstruction in the background.
func (c *Coordinator) StartDownload(ctx context.Context, req DownloadRequest) (string, error) {
	ix, err := c.openShare(ctx, req.ShareID, req.Credentials)
	if err != nil {
		return "", err
	}

	op, err := c.ops.begin(KindDownload, ix.FolderID, req.ShareID, ix.Version)
	if err != nil {
		return "", err
	}
	req.OnProgress = op.progress

	go func() {
		defer c.ops.wg.Done()
		m, err := c.downloadIndex(op.ctx, ix, req)
		op.finish(err, func(s *Operation) { s.Download = m })
	}()
	return op.id, nil
}

// Operation returns a snapshot of one operation.
func (c *Coordinator) Operation(id string) (Operation, error) {
	o, ok := c.ops.get(id)
	if !ok {
		return Operation{}, ErrUnknownOperation
	}
	return o.snapshot(), nil
}

// Operations returns snapshots of every operation since startup, oldest
// first.
func (c *Coordinator) Operations() []Operation {
	return c.ops.list()
}

// CancelOperation stops a running operation. Cancelling an upload also
// drains its queue: copies no worker holds yet move to cancelled, so a
// later run will not resurrect them. Cancelled downloads leave partial
// trees behind; rerunning the download completes them.
func (c *Coordinator) CancelOperation(ctx context.Context, id string) error {
	o, ok := c.ops.get(id)
	if !ok {
		return ErrUnknownOperation
	}

	s := o.snapshot()
	if s.Status.Finished() {
		return ErrOperationFinished
	}
	o.cancel()

	if s.Kind == KindUpload {
		drained, err := c.idx.CancelPending(ctx, s.FolderID, s.Version)
		if err != nil {
			return err
		}
		logger.Info("upload queue drained",
			logger.OperationID(id),
			logger.FolderID(s.FolderID),
			logger.KeyCount, drained)
	}

	logger.Info("operation cancelled",
		logger.OperationID(id),
		logger.Operation(string(s.Kind)))
	return nil
}
