package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/nntp"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/spool"
)

// Engine posts one folder version at a time from the spool. Construction
// is cheap; all state lives in the index, so engines can be built per
// operation.
type Engine struct {
	idx   index.Store
	spool spool.Spool
	pool  *pool.Pool
	cfg   Config
}

// New creates an upload engine over the given index, spool and
// connection pool.
func New(idx index.Store, sp spool.Spool, p *pool.Pool, cfg Config) (*Engine, error) {
	if idx == nil {
		return nil, errors.New("index store is required")
	}
	if sp == nil {
		return nil, errors.New("spool is required")
	}
	if p == nil {
		return nil, errors.New("connection pool is required")
	}
	cfg.ApplyDefaults()

	return &Engine{idx: idx, spool: sp, pool: p, cfg: cfg}, nil
}

// runState carries the per-run counters shared by the workers.
type runState struct {
	job   Job
	total int64

	done      atomic.Int64
	posted    atomic.Int64
	recovered atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	bytes     atomic.Int64
}

// settle records one finished copy and fires the progress callback.
func (rs *runState) settle() {
	n := rs.done.Add(1)
	if rs.job.OnProgress != nil {
		rs.job.OnProgress(n, rs.total)
	}
}

func (rs *runState) result() *Result {
	return &Result{
		Posted:      rs.posted.Load(),
		Recovered:   rs.recovered.Load(),
		Failed:      rs.failed.Load(),
		Skipped:     rs.skipped.Load(),
		BytesPosted: rs.bytes.Load(),
	}
}

// Run posts every runnable copy of one folder version and blocks until
// the queue drains or ctx ends. Runnable means pending, queued, failed
// (this run retries them) or stranded in uploading from a previous run.
//
// On cancellation the run returns ErrRunAborted alongside the partial
// result; everything unfinished stays queued for the next run.
func (e *Engine) Run(ctx context.Context, job Job) (*Result, error) {
	if job.FolderID == "" {
		return nil, errors.New("folder ID is required")
	}
	if job.Newsgroup == "" {
		return nil, errors.New("newsgroup is required")
	}

	start := time.Now()
	rs := &runState{job: job}

	tasks, err := e.prepare(ctx, rs)
	if err != nil {
		return nil, err
	}
	rs.total = int64(len(tasks)) + rs.done.Load()
	if rs.job.OnProgress != nil && rs.done.Load() > 0 {
		rs.job.OnProgress(rs.done.Load(), rs.total)
	}

	logger.Info("upload run starting",
		logger.FolderID(job.FolderID),
		logger.KeyVersion, job.Version,
		logger.Newsgroup(job.Newsgroup),
		logger.KeyCount, len(tasks),
		logger.KeyWorkers, e.cfg.Workers)

	queue := make(chan string, e.cfg.QueueSize)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for segID := range queue {
				e.postCopy(ctx, rs, segID)
			}
		}()
	}

	aborted := false
feed:
	for _, segID := range tasks {
		select {
		case queue <- segID:
		case <-ctx.Done():
			aborted = true
			break feed
		}
	}
	close(queue)
	wg.Wait()

	result := rs.result()
	logger.Info("upload run finished",
		logger.FolderID(job.FolderID),
		logger.KeyVersion, job.Version,
		logger.KeyCount, result.Posted,
		logger.KeyBytesPosted, result.BytesPosted,
		logger.DurationMs(logger.Duration(start)))

	if aborted || ctx.Err() != nil {
		return result, ErrRunAborted
	}
	return result, nil
}

// Cancel drains every pending and queued copy of a folder version.
// Copies a worker already holds finish their current attempt.
func (e *Engine) Cancel(ctx context.Context, folderID string, version uint32) (int64, error) {
	return e.idx.CancelPending(ctx, folderID, version)
}

// prepare moves every runnable copy into queued and returns the task
// list. Copies stranded in uploading are resolved first, optionally
// against the provider.
func (e *Engine) prepare(ctx context.Context, rs *runState) ([]string, error) {
	var tasks []string

	// Copies a previous run died holding. Verified ones commit without a
	// repost; the rest go back to queued under a fresh Message-ID later.
	err := e.idx.ForEachSegmentInState(ctx, rs.job.FolderID, rs.job.Version, index.SegmentUploading,
		func(seg *index.Segment) error {
			if e.cfg.VerifyOnResume && seg.MessageID != "" && e.statUpstream(ctx, seg.MessageID) {
				if err := e.idx.MarkPosted(ctx, seg.ID, time.Now().UTC()); err != nil {
					return err
				}
				e.dropEnvelope(ctx, rs.job.FolderID, seg.ID)
				rs.recovered.Add(1)
				rs.done.Add(1)

				logger.Debug("stranded copy verified upstream",
					logger.SegmentID(seg.ID),
					logger.MessageID(seg.MessageID))
				return nil
			}
			if err := e.idx.MarkQueued(ctx, seg.ID); err != nil {
				return err
			}
			tasks = append(tasks, seg.ID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stranded copies: %w", err)
	}

	// Failed copies get a fresh budget each run.
	err = e.idx.ForEachSegmentInState(ctx, rs.job.FolderID, rs.job.Version, index.SegmentFailed,
		func(seg *index.Segment) error {
			if err := e.idx.MarkQueued(ctx, seg.ID); err != nil {
				return err
			}
			tasks = append(tasks, seg.ID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to requeue failed copies: %w", err)
	}

	err = e.idx.ForEachSegmentInState(ctx, rs.job.FolderID, rs.job.Version, index.SegmentQueued,
		func(seg *index.Segment) error {
			tasks = append(tasks, seg.ID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list queued copies: %w", err)
	}

	err = e.idx.ForEachSegmentInState(ctx, rs.job.FolderID, rs.job.Version, index.SegmentPending,
		func(seg *index.Segment) error {
			if err := e.idx.MarkQueued(ctx, seg.ID); err != nil {
				return err
			}
			tasks = append(tasks, seg.ID)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to queue pending copies: %w", err)
	}

	return tasks, nil
}

// statUpstream reports whether the provider has the article. Errors count
// as absent; the copy just gets reposted.
func (e *Engine) statUpstream(ctx context.Context, messageID string) bool {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return false
	}
	err = conn.Stat(ctx, messageID)
	conn.Release(nntp.IsProtocol(err))
	return err == nil
}

// postCopy runs the attempt loop for one copy.
func (e *Engine) postCopy(ctx context.Context, rs *runState, segID string) {
	seg, err := e.idx.GetSegment(ctx, segID)
	if err != nil || seg.State != index.SegmentQueued {
		// Cancelled or otherwise settled since the task list was built.
		rs.skipped.Add(1)
		rs.settle()
		return
	}

	env, err := e.spool.Get(ctx, seg.FolderID, segID)
	if err != nil {
		// Without the staged body there is nothing to post. Spool loss is
		// permanent for this copy; re-indexing rebuilds the envelope.
		logger.Error("spooled envelope missing",
			logger.SegmentID(segID),
			logger.FolderID(seg.FolderID),
			logger.Err(err))
		e.giveUp(ctx, rs, segID)
		return
	}

	attempts := 0
	for {
		if ctx.Err() != nil {
			// Copy stays queued; the next run resumes it.
			rs.skipped.Add(1)
			rs.settle()
			return
		}

		conn, err := e.pool.Acquire(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, pool.ErrClosed):
				rs.skipped.Add(1)
				rs.settle()
				return

			case errors.Is(err, pool.ErrExhausted):
				// Pool pressure is not a posting attempt. Back off and
				// try again.
				logger.Debug("no session available, backing off",
					logger.SegmentID(segID),
					logger.Err(err))
				if !e.sleep(ctx, e.cfg.backoff(0)) {
					rs.skipped.Add(1)
					rs.settle()
					return
				}
				continue

			default:
				// Dial-level failure: the provider is unreachable or
				// refusing us. Burns an attempt so a dead provider cannot
				// spin a worker forever.
				attempts++
				logger.Warn("session dial failed",
					logger.SegmentID(segID),
					logger.Attempt(attempts),
					logger.Err(err))
				if attempts >= int(e.cfg.MaxAttempts) {
					e.giveUp(ctx, rs, segID)
					return
				}
				if !e.sleep(ctx, e.cfg.backoff(attempts-1)) {
					rs.skipped.Add(1)
					rs.settle()
					return
				}
				continue
			}
		}

		messageID, err := obfuscate.MintMessageID()
		if err != nil {
			conn.Release(true)
			e.giveUp(ctx, rs, segID)
			return
		}

		if err := e.idx.MarkUploading(ctx, segID, messageID); err != nil {
			// Lost the race with a cancel.
			conn.Release(true)
			rs.skipped.Add(1)
			rs.settle()
			return
		}

		article := &nntp.Article{
			MessageID:  messageID,
			Subject:    env.UsenetSubject,
			From:       e.cfg.From,
			Newsgroups: []string{rs.job.Newsgroup},
			Body:       env.Body,
		}

		err = conn.Post(ctx, article)
		conn.Release(nntp.IsProtocol(err))
		attempts++

		if err == nil {
			if err := e.idx.MarkPosted(ctx, segID, time.Now().UTC()); err != nil {
				logger.Error("failed to commit posted copy",
					logger.SegmentID(segID),
					logger.MessageID(messageID),
					logger.Err(err))
				rs.failed.Add(1)
				rs.settle()
				return
			}
			e.dropEnvelope(ctx, seg.FolderID, segID)
			rs.posted.Add(1)
			rs.bytes.Add(int64(len(env.Body)))
			rs.settle()

			logger.Debug("copy posted",
				logger.SegmentID(segID),
				logger.MessageID(messageID),
				logger.Attempt(attempts))
			return
		}

		if nntp.IsPermanent(err) {
			logger.Warn("copy rejected permanently",
				logger.SegmentID(segID),
				logger.Attempt(attempts),
				logger.Err(err))
			e.markFailed(ctx, rs, segID)
			return
		}

		if attempts >= int(e.cfg.MaxAttempts) {
			logger.Warn("copy exhausted posting attempts",
				logger.SegmentID(segID),
				logger.Attempt(attempts),
				logger.Err(err))
			e.markFailed(ctx, rs, segID)
			return
		}

		// Transient: hand the copy back to queued and pause. The next
		// cycle mints a fresh Message-ID.
		if err := e.idx.MarkQueued(ctx, segID); err != nil {
			rs.skipped.Add(1)
			rs.settle()
			return
		}

		backoff := e.cfg.backoff(attempts - 1)
		logger.Debug("transient posting failure, backing off",
			logger.SegmentID(segID),
			logger.Attempt(attempts),
			logger.KeyBackoff, backoff.String(),
			logger.Err(err))
		if !e.sleep(ctx, backoff) {
			rs.skipped.Add(1)
			rs.settle()
			return
		}
	}
}

// giveUp walks a queued copy through uploading into failed so the state
// machine stays honest about the attempt.
func (e *Engine) giveUp(ctx context.Context, rs *runState, segID string) {
	messageID, err := obfuscate.MintMessageID()
	if err == nil {
		err = e.idx.MarkUploading(ctx, segID, messageID)
	}
	if err != nil {
		rs.skipped.Add(1)
		rs.settle()
		return
	}
	e.markFailed(ctx, rs, segID)
}

// markFailed records a terminal posting failure.
func (e *Engine) markFailed(ctx context.Context, rs *runState, segID string) {
	if err := e.idx.MarkFailed(ctx, segID); err != nil {
		logger.Error("failed to mark copy failed",
			logger.SegmentID(segID),
			logger.Err(err))
	}
	rs.failed.Add(1)
	rs.settle()
}

// dropEnvelope removes a committed copy from the spool. Best effort: a
// leftover envelope is swept later, never reposted.
func (e *Engine) dropEnvelope(ctx context.Context, folderID, segID string) {
	if err := e.spool.Delete(ctx, folderID, segID); err != nil {
		logger.Warn("failed to drop spooled envelope",
			logger.SegmentID(segID),
			logger.Err(err))
	}
}

// sleep pauses for d, returning false when ctx ends first.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

