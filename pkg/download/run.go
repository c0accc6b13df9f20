package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/nntp"
	"github.com/nntpvault/nntpvault/pkg/pool"
	"github.com/nntpvault/nntpvault/pkg/segment"
)

// Run reconstructs one folder version under the target root and blocks
// until every file settles or ctx ends. Files fail independently; the
// manifest names both outcomes.
//
// On cancellation the run returns ErrRunAborted alongside the partial
// manifest. Partially written files are removed, never left truncated on
// disk.
func (e *Engine) Run(ctx context.Context, job Job) (*Manifest, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(job.TargetRoot, dirMode); err != nil {
		return nil, fmt.Errorf("failed to create target root: %w", err)
	}

	start := time.Now()
	rs := &runState{job: job}

	tasks, err := e.plan(ctx, rs)
	if err != nil {
		return nil, err
	}
	rs.total = int64(len(tasks))

	logger.Info("download run starting",
		logger.FolderID(job.FolderID),
		logger.KeyVersion, job.Version,
		logger.Path(job.TargetRoot),
		logger.KeyCount, len(tasks),
		logger.KeyWorkers, e.cfg.Workers)

	queue := make(chan task)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				e.runTask(ctx, rs, t)
			}
		}()
	}

	aborted := false
feed:
	for _, t := range tasks {
		select {
		case queue <- t:
		case <-ctx.Done():
			aborted = true
			break feed
		}
	}
	close(queue)
	wg.Wait()

	e.sweep(rs)
	m := rs.manifest()

	logger.Info("download run finished",
		logger.FolderID(job.FolderID),
		logger.KeyVersion, job.Version,
		logger.KeyCount, len(m.Succeeded),
		logger.KeyBytesWritten, m.BytesWritten,
		logger.DurationMs(logger.Duration(start)))

	if aborted || ctx.Err() != nil {
		return m, ErrRunAborted
	}
	return m, nil
}

// sweep settles every file the workers left behind, which only happens
// on an aborted run: open sinks are closed and partial output removed.
func (e *Engine) sweep(rs *runState) {
	rs.mu.Lock()
	files := rs.files
	rs.mu.Unlock()

	for _, f := range files {
		if f.finalized.Load() {
			continue
		}
		e.failFile(rs, f, ErrRunAborted)
		f.finalized.Store(true)
		if f.sink != nil {
			_ = f.sink.Close()
			_ = os.Remove(f.tmp)
		}
	}
}

func (e *Engine) runTask(ctx context.Context, rs *runState, t task) {
	switch {
	case t.slice != nil:
		e.fetchSlice(ctx, rs, t.slice)
	case t.pack != nil:
		e.fetchPack(ctx, rs, t.pack)
	}
	rs.settle()
}

// fetchSlice retrieves one slice and writes it at its recorded offset.
// The last slice of a file to land finalizes it.
func (e *Engine) fetchSlice(ctx context.Context, rs *runState, st *sliceTask) {
	f := st.file

	switch {
	case f.failed.Load():
		// An earlier slice already sank the file.

	case ctx.Err() != nil:
		e.failFile(rs, f, ErrRunAborted)

	default:
		plain, used, err := e.fetchBody(ctx, rs.job.ContentKey, st.copies)
		switch {
		case err != nil && ctx.Err() != nil:
			e.failFile(rs, f, ErrRunAborted)
		case err != nil:
			e.failFile(rs, f, fmt.Errorf("slice %d: %w", st.copies[0].Index, err))
		default:
			if _, werr := f.sink.WriteAt(plain, int64(used.Offset)); werr != nil {
				e.failFile(rs, f, fmt.Errorf("slice %d: %w", used.Index, werr))
			} else {
				rs.bytes.Add(int64(len(plain)))
				e.observeVerified(ctx, used)
			}
		}
	}

	if f.remaining.Add(-1) == 0 {
		e.finalizeSliced(rs, f)
	}
}

// fetchPack retrieves one pack body and writes every member file whole.
func (e *Engine) fetchPack(ctx context.Context, rs *runState, pt *packTask) {
	if ctx.Err() != nil {
		return
	}

	body, used, err := e.fetchBody(ctx, rs.job.ContentKey, pt.copies)
	if err != nil {
		if ctx.Err() != nil {
			err = ErrRunAborted
		} else {
			err = fmt.Errorf("pack group: %w", err)
		}
		for _, m := range pt.members {
			e.failFile(rs, m.file, err)
		}
		return
	}
	e.observeVerified(ctx, used)

	for _, m := range pt.members {
		if m.file.failed.Load() {
			continue
		}
		data, err := segment.UnpackMember(body, m.entry)
		if err != nil {
			e.failFile(rs, m.file, err)
			continue
		}
		if err := e.writeWhole(rs, m.file, data); err != nil {
			e.failFile(rs, m.file, err)
		}
	}
}

// writeWhole materializes a file that arrives in one piece: pack members
// and empty files. The content digest is checked before anything says
// success.
func (e *Engine) writeWhole(rs *runState, f *fileState, data []byte) error {
	if got := crypto.SHA256Hex(data); got != f.rec.SHA256 {
		return fmt.Errorf("%w: got %s", ErrReconstruction, got)
	}

	if err := os.MkdirAll(filepath.Dir(f.abs), dirMode); err != nil {
		return err
	}
	if err := os.WriteFile(f.tmp, data, fileMode); err != nil {
		return err
	}
	if err := os.Rename(f.tmp, f.abs); err != nil {
		_ = os.Remove(f.tmp)
		return err
	}
	_ = os.Chtimes(f.abs, time.Now(), f.rec.ModTime)

	f.finalized.Store(true)
	rs.bytes.Add(int64(len(data)))
	rs.succeed(f.rec.Path)
	return nil
}

// finalizeSliced closes out a sliced file once its last slice landed:
// the whole output is re-hashed and must match the recorded digest.
func (e *Engine) finalizeSliced(rs *runState, f *fileState) {
	if f.finalized.Swap(true) {
		return
	}

	if f.failed.Load() {
		_ = f.sink.Close()
		_ = os.Remove(f.tmp)
		return
	}

	err := verifySink(f)
	_ = f.sink.Close()
	if err != nil {
		e.failFile(rs, f, err)
		_ = os.Remove(f.tmp)
		return
	}

	if err := os.Rename(f.tmp, f.abs); err != nil {
		e.failFile(rs, f, err)
		_ = os.Remove(f.tmp)
		return
	}
	_ = os.Chtimes(f.abs, time.Now(), f.rec.ModTime)
	rs.succeed(f.rec.Path)

	logger.Debug("file reconstructed",
		logger.RelPath(f.rec.Path),
		logger.Size(f.rec.Size))
}

func verifySink(f *fileState) error {
	if _, err := f.sink.Seek(0, io.SeekStart); err != nil {
		return err
	}
	sum, n, err := crypto.SHA256Reader(f.sink)
	if err != nil {
		return err
	}
	if uint64(n) != f.rec.Size {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrReconstruction, n, f.rec.Size)
	}
	if got := hex.EncodeToString(sum); got != f.rec.SHA256 {
		return fmt.Errorf("%w: got %s", ErrReconstruction, got)
	}
	return nil
}

// fetchBody walks a slice's redundancy copies in order and returns the
// first body that opens cleanly, with the copy that served it. Misses
// and corrupt bodies fail over; transient transport trouble on one copy
// also moves on, but keeps the copy off the unrecoverable list since it
// may still exist upstream.
func (e *Engine) fetchBody(ctx context.Context, key []byte, copies []*index.Segment) ([]byte, *index.Segment, error) {
	var lost []*index.Segment
	var lastErr error

	for _, c := range copies {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		sealed, err := e.fetchArticle(ctx, c.MessageID)
		if err != nil {
			if nntp.IsNotFound(err) {
				logger.Debug("copy missing upstream",
					logger.SegmentID(c.ID),
					logger.MessageID(c.MessageID))
				lost = append(lost, c)
			} else {
				lastErr = err
			}
			continue
		}

		plain, err := segment.Open(sealed, key, c.SHA256, c.Length)
		if err != nil {
			// The article exists but its body is useless. On an
			// append-only store it will never heal.
			logger.Warn("copy corrupt",
				logger.SegmentID(c.ID),
				logger.MessageID(c.MessageID),
				logger.Err(err))
			lost = append(lost, c)
			continue
		}

		return plain, c, nil
	}

	if lastErr != nil {
		// At least one copy failed on transport only; nothing definitive
		// is known about it, so no copy gets branded.
		return nil, nil, lastErr
	}

	for _, c := range lost {
		e.observeUnrecoverable(ctx, c)
	}
	return nil, nil, fmt.Errorf("%d copies tried: %w", len(copies), ErrUnrecoverable)
}

// fetchArticle tries each provider in order. A 430 moves to the next
// provider; only when every provider misses is the article declared
// missing. Transport trouble stays within the provider it hit.
func (e *Engine) fetchArticle(ctx context.Context, messageID string) ([]byte, error) {
	var miss error
	for _, p := range e.pools {
		body, err := e.fetchFromProvider(ctx, p, messageID)
		if err == nil {
			return body, nil
		}
		if !nntp.IsNotFound(err) {
			return nil, err
		}
		miss = err
	}
	return nil, miss
}

// fetchFromProvider retrieves one article body from one provider with
// transient retries. A 430 is definitive and returns immediately.
func (e *Engine) fetchFromProvider(ctx context.Context, pl *pool.Pool, messageID string) ([]byte, error) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		conn, err := pl.Acquire(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil, errors.Is(err, pool.ErrClosed):
				return nil, err

			case errors.Is(err, pool.ErrExhausted):
				if !e.sleep(ctx, e.cfg.backoff(0)) {
					return nil, ctx.Err()
				}
				continue

			default:
				attempts++
				logger.Warn("session dial failed",
					logger.MessageID(messageID),
					logger.Attempt(attempts),
					logger.Err(err))
				if attempts >= int(e.cfg.MaxAttempts) {
					return nil, err
				}
				if !e.sleep(ctx, e.cfg.backoff(attempts-1)) {
					return nil, ctx.Err()
				}
				continue
			}
		}

		article, err := conn.Article(ctx, messageID)
		conn.Release(nntp.IsProtocol(err))

		if err == nil {
			return article.Body, nil
		}
		if nntp.IsNotFound(err) {
			return nil, err
		}

		attempts++
		if attempts >= int(e.cfg.MaxAttempts) {
			return nil, err
		}

		backoff := e.cfg.backoff(attempts - 1)
		logger.Debug("transient fetch failure, backing off",
			logger.MessageID(messageID),
			logger.Attempt(attempts),
			logger.KeyBackoff, backoff.String(),
			logger.Err(err))
		if !e.sleep(ctx, backoff) {
			return nil, ctx.Err()
		}
	}
}

// observeVerified records a successful retrieval of a posted copy.
func (e *Engine) observeVerified(ctx context.Context, c *index.Segment) {
	if c.State != index.SegmentPosted {
		return
	}
	if err := e.idx.MarkVerified(ctx, c.ID); err != nil && !index.IsStateConflict(err) {
		logger.Warn("failed to record verification",
			logger.SegmentID(c.ID),
			logger.Err(err))
	}
}

// observeUnrecoverable records a definitive upstream loss.
func (e *Engine) observeUnrecoverable(ctx context.Context, c *index.Segment) {
	if c.State != index.SegmentPosted {
		return
	}
	if err := e.idx.MarkUnrecoverable(ctx, c.ID); err != nil && !index.IsStateConflict(err) {
		logger.Warn("failed to record upstream loss",
			logger.SegmentID(c.ID),
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
