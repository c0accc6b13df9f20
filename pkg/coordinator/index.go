package coordinator

import (
	"context"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/scanner"
	"github.com/nntpvault/nntpvault/pkg/segment"
)

// IndexOptions tunes one index run.
type IndexOptions struct {
	// Redundancy is the copies sealed per slice for this run. Zero uses
	// the coordinator default.
	Redundancy uint8

	// OnProgress, when set, is called after every classified path with
	// the number seen so far. The walk's extent is unknown up front, so
	// the total reported is always zero.
	OnProgress func(done, total int64)
}

// IndexResult tallies one index run.
type IndexResult struct {
	FolderID string `json:"folder_id"`

	// Version is the version this run recorded, or the standing one
	// when nothing changed.
	Version uint32 `json:"version"`

	// Changed reports whether a new version was recorded.
	Changed bool `json:"changed"`

	Added     int `json:"added"`
	Modified  int `json:"modified"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`

	// Segments counts the sealed copies staged for upload; Bytes is the
	// plaintext read from disk.
	Segments   int    `json:"segments"`
	PackGroups int    `json:"pack_groups"`
	Bytes      uint64 `json:"bytes"`

	// ScanErrors names paths skipped as unreadable. They are absent
	// from the recorded version.
	ScanErrors []string `json:"scan_errors,omitempty"`
}

// IndexFolder scans the folder, cuts and seals what changed against the
// current version and records the next one. An unchanged tree records
// nothing. A folder's very first index always records a version, even an
// empty one, so the folder can be published.
func (c *Coordinator) IndexFolder(ctx context.Context, owner *identity.UserKeys, folderID string, opts IndexOptions) (*IndexResult, error) {
	keys, err := c.folderKeys(ctx, owner, folderID)
	if err != nil {
		return nil, err
	}
	return c.indexFolder(ctx, keys, opts)
}

// indexFolder runs with keys already unlocked; the Start wrapper lands
// here after its synchronous validation.
func (c *Coordinator) indexFolder(ctx context.Context, keys *identity.FolderKeys, opts IndexOptions) (*IndexResult, error) {
	folder := keys.Folder
	start := time.Now()

	// The version base is re-read here; validation may predate another
	// writer's commit.
	fresh, err := c.store.GetFolder(ctx, folder.ID)
	if err != nil {
		return nil, err
	}
	base := fresh.CurrentVersion
	version := base + 1

	sc, err := scanner.New(folder.RootPath, c.cfg.Scanner)
	if err != nil {
		return nil, err
	}

	red := opts.Redundancy
	if red == 0 {
		red = c.cfg.Redundancy
	}
	proc, err := segment.NewProcessor(keys, c.stage, folder.RootPath, version, segment.Config{
		SegmentSize: c.cfg.SegmentSize,
		Redundancy:  red,
	})
	if err != nil {
		return nil, err
	}

	fail := func(err error) error {
		logger.Warn("index run aborted; staged copies of the unrecorded version stay spooled",
			logger.FolderID(folder.ID),
			logger.KeyVersion, version,
			logger.Err(err))
		return err
	}

	res := &IndexResult{FolderID: folder.ID, Version: base}
	var seen int64

	err = sc.Diff(ctx, c.priorVersion(folder.ID, base), func(change *scanner.Change) error {
		switch change.Type {
		case scanner.ChangeAdded:
			res.Added++
			if err := proc.AddFile(ctx, change.File); err != nil {
				return err
			}
		case scanner.ChangeModified:
			res.Modified++
			if err := proc.AddFile(ctx, change.File); err != nil {
				return err
			}
		case scanner.ChangeDeleted:
			res.Deleted++
			if err := proc.AddTombstone(change.Path); err != nil {
				return err
			}
		case scanner.ChangeUnchanged:
			res.Unchanged++
		}
		seen++
		if opts.OnProgress != nil {
			opts.OnProgress(seen, 0)
		}
		return nil
	}, func(scanErr *scanner.ScanError) error {
		res.ScanErrors = append(res.ScanErrors, scanErr.Error())
		logger.Warn("path skipped during index",
			logger.FolderID(folder.ID),
			logger.RelPath(scanErr.Path),
			logger.Err(scanErr.Unwrap()))
		return nil
	})
	if err != nil {
		return nil, fail(err)
	}

	batch, err := proc.Finish(ctx)
	if err != nil {
		return nil, fail(err)
	}

	if batch.Empty() && base > 0 {
		logger.Info("folder unchanged",
			logger.FolderID(folder.ID),
			logger.KeyVersion, base,
			logger.Count(res.Unchanged))
		return res, nil
	}

	// A first index of an empty tree records version 1 with no batch;
	// publishing needs a version to stand on.
	if !batch.Empty() {
		if err := c.idx.AddBatch(ctx, batch); err != nil {
			return nil, fail(err)
		}
	}
	if err := c.store.AdvanceFolderVersion(ctx, folder.ID, version); err != nil {
		return nil, fail(err)
	}

	stats := proc.Stats()
	res.Version = version
	res.Changed = true
	res.Segments = stats.Segments
	res.PackGroups = stats.PackGroups
	res.Bytes = stats.Bytes

	logger.Info("folder indexed",
		logger.FolderID(folder.ID),
		logger.KeyVersion, version,
		"added", res.Added,
		"modified", res.Modified,
		"deleted", res.Deleted,
		"segments", res.Segments,
		logger.DurationMs(logger.Duration(start)))
	return res, nil
}

// priorVersion streams the committed file identities of the current
// version in ascending path order, or nil before the first index.
func (c *Coordinator) priorVersion(folderID string, version uint32) scanner.PriorSource {
	if version == 0 {
		return nil
	}
	return func(ctx context.Context, fn func(scanner.PriorFile) error) error {
		return c.idx.ForEachFile(ctx, folderID, version, func(f *index.File) error {
			return fn(scanner.PriorFile{Path: f.Path, SHA256: f.SHA256})
		})
	}
}
