package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/index"
)

// fileState tracks one target file across its retrieval tasks. All
// output lands at tmp first and renames to abs only after the digest
// verifies, so a failed run never clobbers an existing file.
type fileState struct {
	rec *index.File
	abs string
	tmp string

	// sink is the pre-allocated output of a sliced file. Pack members
	// and empty files are written whole and never hold one.
	sink *os.File

	remaining atomic.Int32
	failed    atomic.Bool
	finalized atomic.Bool
}

// sliceTask retrieves one slice of a sliced file. Copies are in
// redundancy order; the first one that opens cleanly wins.
type sliceTask struct {
	file   *fileState
	copies []*index.Segment
}

// packTask retrieves one pack group body and writes every member file
// still current at the requested version.
type packTask struct {
	group   *index.PackGroup
	copies  []*index.Segment
	members []packMember
}

type packMember struct {
	file  *fileState
	entry index.PackMember
}

// task is one unit of worker work: exactly one of slice or pack is set.
type task struct {
	slice *sliceTask
	pack  *packTask
}

// runState carries the per-run accounting shared by the workers.
type runState struct {
	job   Job
	total int64

	done  atomic.Int64
	bytes atomic.Int64

	mu        sync.Mutex
	files     []*fileState
	succeeded []string
	failed    []FileFailure
}

// settle records one finished task and fires the progress callback.
func (rs *runState) settle() {
	n := rs.done.Add(1)
	if rs.job.OnProgress != nil {
		rs.job.OnProgress(n, rs.total)
	}
}

func (rs *runState) succeed(path string) {
	rs.mu.Lock()
	rs.succeeded = append(rs.succeeded, path)
	rs.mu.Unlock()
}

func (rs *runState) recordFailure(path string, err error) {
	rs.mu.Lock()
	rs.failed = append(rs.failed, FileFailure{Path: path, Err: err})
	rs.mu.Unlock()
}

func (rs *runState) manifest() *Manifest {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	m := &Manifest{
		Succeeded:    append([]string(nil), rs.succeeded...),
		Failed:       append([]FileFailure(nil), rs.failed...),
		BytesWritten: rs.bytes.Load(),
	}
	sort.Strings(m.Succeeded)
	sort.Slice(m.Failed, func(i, j int) bool { return m.Failed[i].Path < m.Failed[j].Path })
	return m
}

// failFile sinks a file exactly once; later errors on the same file are
// dropped.
func (e *Engine) failFile(rs *runState, f *fileState, err error) {
	if !f.failed.CompareAndSwap(false, true) {
		return
	}
	rs.recordFailure(f.rec.Path, err)
	logger.Warn("file failed",
		logger.RelPath(f.rec.Path),
		logger.FolderID(f.rec.FolderID),
		logger.Err(err))
}

// plan streams the version's file listing into per-file state and builds
// the retrieval task list. Files that can be settled without the network
// (empty files, files with no retrievable copies, paths that escape the
// target root) settle here.
func (e *Engine) plan(ctx context.Context, rs *runState) ([]task, error) {
	var states []*fileState
	byID := make(map[string]*fileState)

	err := e.idx.ForEachFile(ctx, rs.job.FolderID, rs.job.Version, func(f *index.File) error {
		rec := *f
		fs := &fileState{rec: &rec}
		states = append(states, fs)
		byID[rec.ID] = fs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var tasks []task
	packFiles := make(map[string][]*fileState)

	for _, fs := range states {
		rec := fs.rec

		// Index records validate paths as clean and relative, but a clean
		// relative path may still start with "..". Never write above the
		// target root.
		if rec.Path == ".." || strings.HasPrefix(rec.Path, "../") {
			e.failFile(rs, fs, fmt.Errorf("path %q escapes the target root", rec.Path))
			continue
		}
		fs.abs = filepath.Join(rs.job.TargetRoot, filepath.FromSlash(rec.Path))
		fs.tmp = fs.abs + ".partial"

		switch {
		case rec.Size == 0:
			if err := e.writeWhole(rs, fs, nil); err != nil {
				e.failFile(rs, fs, err)
			}

		case rec.PackGroupID != "":
			packFiles[rec.PackGroupID] = append(packFiles[rec.PackGroupID], fs)

		default:
			ts, err := e.planSliced(ctx, fs)
			if err != nil {
				e.failFile(rs, fs, err)
				continue
			}
			tasks = append(tasks, ts...)
		}
	}

	groupIDs := make([]string, 0, len(packFiles))
	for id := range packFiles {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	for _, gid := range groupIDs {
		members := packFiles[gid]
		pt, err := e.planPack(ctx, rs.job.FolderID, gid, byID)
		if err != nil {
			for _, fs := range members {
				e.failFile(rs, fs, err)
			}
			continue
		}
		tasks = append(tasks, task{pack: pt})
	}

	rs.mu.Lock()
	rs.files = states
	rs.mu.Unlock()
	return tasks, nil
}

// planSliced opens and pre-allocates the sink of one sliced file and
// builds one task per slice. The sink stays open until the last slice
// lands; WriteAt keeps out-of-order arrivals cheap.
func (e *Engine) planSliced(ctx context.Context, fs *fileState) ([]task, error) {
	rec := fs.rec

	slices := make(map[uint32][]*index.Segment)
	err := e.idx.ForEachParentSegment(ctx, rec.FolderID, rec.Version, rec.ID, func(s *index.Segment) error {
		if !fetchable(s) {
			return nil
		}
		c := *s
		slices[c.Index] = append(slices[c.Index], &c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	var covered uint64
	for i := uint32(0); i < uint32(len(slices)); i++ {
		copies, ok := slices[i]
		if !ok {
			return nil, fmt.Errorf("slice %d has no retrievable copy: %w", i, ErrUnrecoverable)
		}
		covered += uint64(copies[0].Length)
	}
	if covered != rec.Size {
		return nil, fmt.Errorf("retrievable slices cover %d of %d bytes: %w", covered, rec.Size, ErrUnrecoverable)
	}

	if err := os.MkdirAll(filepath.Dir(fs.abs), dirMode); err != nil {
		return nil, err
	}
	sink, err := os.OpenFile(fs.tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return nil, err
	}
	if err := sink.Truncate(int64(rec.Size)); err != nil {
		_ = sink.Close()
		_ = os.Remove(fs.tmp)
		return nil, err
	}
	fs.sink = sink
	fs.remaining.Store(int32(len(slices)))

	tasks := make([]task, 0, len(slices))
	for i := uint32(0); i < uint32(len(slices)); i++ {
		tasks = append(tasks, task{slice: &sliceTask{file: fs, copies: slices[i]}})
	}
	return tasks, nil
}

// planPack loads one pack group and matches its member table against the
// files current at this version. Members whose paths were re-recorded at
// a later version belong to another group and are skipped.
func (e *Engine) planPack(ctx context.Context, folderID, groupID string, byID map[string]*fileState) (*packTask, error) {
	group, err := e.idx.GetPackGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pack group: %w", err)
	}

	var copies []*index.Segment
	err = e.idx.ForEachParentSegment(ctx, folderID, group.Version, group.ID, func(s *index.Segment) error {
		if !fetchable(s) {
			return nil
		}
		c := *s
		copies = append(copies, &c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pack segments: %w", err)
	}
	if len(copies) == 0 {
		return nil, fmt.Errorf("pack group has no retrievable copy: %w", ErrUnrecoverable)
	}

	pt := &packTask{group: group, copies: copies}
	for _, m := range group.Members {
		if fs, ok := byID[m.FileID]; ok {
			pt.members = append(pt.members, packMember{file: fs, entry: m})
		}
	}
	return pt, nil
}

// fetchable reports whether a copy has a committed article to fetch.
func fetchable(s *index.Segment) bool {
	if s.MessageID == "" {
		return false
	}
	return s.State == index.SegmentPosted || s.State == index.SegmentVerified
}
