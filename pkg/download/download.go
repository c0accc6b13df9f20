// Package download reconstructs folder versions from posted articles.
//
// The engine plans one retrieval task per file slice and per pack group,
// fans the tasks out to workers over the shared session pool, and writes
// plaintext into pre-allocated files at each slice's recorded offset, so
// arrival order never matters. A slice that fails on one redundancy copy
// fails over to the next; only when every copy is missing or corrupt does
// the file fail, and the remaining files of the run still complete. Each
// opened body is checked against its slice descriptor and each finished
// file against its recorded digest. The caller receives a manifest naming
// what completed and what did not.
//
// An engine may hold several provider pools. A copy is declared missing
// only after every provider reported 430 for it; articles propagate
// between peers at their own pace, so a miss on one host says nothing
// about the next.
package download

import (
	"errors"
	"time"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/pool"
)

// Defaults applied by Config.ApplyDefaults.
const (
	DefaultWorkers           = 4
	DefaultMaxAttempts       = 3
	DefaultInitialBackoff    = 500 * time.Millisecond
	DefaultMaxBackoff        = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// Modes for materialized files and their directories.
const (
	dirMode  = 0755
	fileMode = 0644
)

var (
	// ErrRunAborted means the context was cancelled before every file
	// settled. Partially written files are removed; the manifest names
	// them as failed.
	ErrRunAborted = errors.New("download run aborted")

	// ErrUnrecoverable means every redundancy copy of a slice was missing
	// or corrupt upstream.
	ErrUnrecoverable = errors.New("no redundancy copy could be retrieved")

	// ErrReconstruction means a fully reassembled file did not match the
	// digest recorded for it.
	ErrReconstruction = errors.New("reconstructed file does not match its recorded digest")
)

// Config tunes the engine.
type Config struct {
	// Workers is the number of concurrent retrieval workers per run.
	Workers int

	// MaxAttempts bounds transient fetch attempts per redundancy copy. A
	// definitive miss (430) moves to the next copy immediately.
	MaxAttempts uint8

	// InitialBackoff is the pause after the first transient failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the pause exponentially.
	BackoffMultiplier float64
}

// ApplyDefaults sets default values for unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
}

// backoff returns the pause before the given retry, counting from zero.
func (c Config) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 0; i < attempt; i++ {
		d *= c.BackoffMultiplier
	}
	if d > float64(c.MaxBackoff) {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// Job names one folder version to reconstruct and where it goes.
type Job struct {
	FolderID string
	Version  uint32

	// ContentKey decrypts the folder's segment bodies.
	ContentKey []byte

	// TargetRoot is the destination directory. Created if missing;
	// existing files at recorded paths are overwritten.
	TargetRoot string

	// OnProgress, when set, is called after every settled retrieval task
	// with the number settled so far and the run's total.
	OnProgress func(done, total int64)
}

func (j Job) validate() error {
	if j.FolderID == "" {
		return errors.New("folder ID is required")
	}
	if j.TargetRoot == "" {
		return errors.New("target root is required")
	}
	if len(j.ContentKey) != crypto.KeySize {
		return crypto.ErrInvalidKeySize
	}
	return nil
}

// FileFailure names one file the run could not produce.
type FileFailure struct {
	Path string
	Err  error
}

// Manifest tallies one run. Paths are folder-relative, sorted.
type Manifest struct {
	// Succeeded names every file written and verified.
	Succeeded []string

	// Failed names every file the run gave up on, with the first error
	// that sank it.
	Failed []FileFailure

	// BytesWritten is the total plaintext written to disk.
	BytesWritten int64
}

// Complete reports whether every file of the version was produced.
func (m *Manifest) Complete() bool {
	return len(m.Failed) == 0
}

// Engine reconstructs one folder version at a time. Construction is
// cheap; engines can be built per operation.
type Engine struct {
	idx   index.Store
	pools []*pool.Pool
	cfg   Config
}

// New creates a download engine over the given index and connection pool.
func New(idx index.Store, p *pool.Pool, cfg Config) (*Engine, error) {
	if p == nil {
		return nil, errors.New("connection pool is required")
	}
	return NewWithProviders(idx, []*pool.Pool{p}, cfg)
}

// NewWithProviders creates an engine drawing from several providers in
// failover order.
func NewWithProviders(idx index.Store, pools []*pool.Pool, cfg Config) (*Engine, error) {
	if idx == nil {
		return nil, errors.New("index store is required")
	}
	if len(pools) == 0 {
		return nil, errors.New("at least one connection pool is required")
	}
	for _, p := range pools {
		if p == nil {
			return nil, errors.New("nil connection pool")
		}
	}
	cfg.ApplyDefaults()

	return &Engine{idx: idx, pools: pools, cfg: cfg}, nil
}
