// Package upload posts spooled segment copies to an NNTP provider.
//
// The engine drives the segment state machine recorded in the index:
// runnable copies are marked queued, a worker marks a copy uploading
// under a freshly minted Message-ID, posts the staged envelope, and
// commits with posted or returns the copy to queued for another attempt.
// Posted copies never re-enter the pipeline, which keeps the committed
// Message-ID unique for the lifetime of the record.
//
// A run is resumable by construction. Everything the engine knows lives
// in the index and the spool, so calling Run again after a crash picks up
// exactly the copies that never reached posted: queued and pending copies
// are fed again, copies stranded in uploading are either verified
// upstream (when the provider supports STAT and verification is enabled)
// or requeued under a new Message-ID.
package upload

import (
	"errors"
	"time"
)

// Defaults applied by Config.ApplyDefaults.
const (
	DefaultWorkers           = 4
	DefaultQueueSize         = 1000
	DefaultMaxAttempts       = 4
	DefaultInitialBackoff    = 1 * time.Second
	DefaultMaxBackoff        = 60 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// ErrRunAborted means the context was cancelled before the run drained
// its queue. Unfinished copies stay queued in the index and a later run
// resumes them.
var ErrRunAborted = errors.New("upload run aborted")

// Config tunes the engine.
type Config struct {
	// Workers is the number of concurrent posting workers per run.
	Workers int

	// QueueSize bounds the in-flight task channel. A full channel blocks
	// the feeder, which is the engine's backpressure.
	QueueSize int

	// MaxAttempts is the posting attempts per copy within one run before
	// the copy is marked failed.
	MaxAttempts uint8

	// InitialBackoff is the pause after the first transient failure.
	InitialBackoff time.Duration

	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the pause exponentially.
	BackoffMultiplier float64

	// From overrides the article From header. Empty uses the transport
	// default; nothing in the header may identify the poster.
	From string

	// VerifyOnResume asks the provider (STAT) whether a copy stranded in
	// uploading actually arrived before requeueing it. Saves reposts at
	// the price of one round trip per stranded copy.
	VerifyOnResume bool
}

// ApplyDefaults sets default values for unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
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

// Job names one folder version to post and where it goes.
type Job struct {
	FolderID  string
	Version   uint32
	Newsgroup string

	// OnProgress, when set, is called after every settled copy with the
	// number settled so far and the total the run will touch.
	OnProgress func(done, total int64)
}

// Result tallies one run.
type Result struct {
	// Posted counts copies committed during this run.
	Posted int64

	// Recovered counts copies found upstream during resume verification
	// and committed without a repost.
	Recovered int64

	// Failed counts copies marked failed after exhausting attempts or
	// hitting a permanent rejection.
	Failed int64

	// Skipped counts copies that left the runnable states before a
	// worker reached them, usually through a cancel.
	Skipped int64

	// BytesPosted is the wire payload of all posted copies.
	BytesPosted int64
}

// Complete reports whether every copy the run touched ended posted.
func (r Result) Complete() bool {
	return r.Failed == 0 && r.Skipped == 0
}
