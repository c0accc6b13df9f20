// Package segment turns scanned files into fixed-size sealed article
// bodies and back.
//
// Files at or above the segment size are sliced into consecutive
// segments; smaller files accumulate into pack groups so no article body
// ever exceeds the segment size. Every slice is hashed, then each
// redundancy copy is sealed independently under the folder content key
// and staged in the spool. The processor emits one index batch per run
// describing everything it cut.
//
// Wire identity is minted here too: each copy gets a deterministic
// internal subject derived from the folder signing key and a random
// usenet subject that goes on the wire. Message-IDs are minted later,
// per posting attempt.
package segment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/bufpool"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
	"github.com/nntpvault/nntpvault/pkg/scanner"
	"github.com/nntpvault/nntpvault/pkg/spool"
)

// ErrFinished means the processor already emitted its batch and cannot
// accept more files.
var ErrFinished = errors.New("segment processor already finished")

// FileChangedError reports a file whose content changed between the scan
// and the segmenting read. The run aborts so the index never describes
// bytes that were not actually sealed.
type FileChangedError struct {
	Path string
}

func (e *FileChangedError) Error() string {
	return fmt.Sprintf("file %s changed since scan", e.Path)
}

// Config tunes a Processor.
type Config struct {
	// SegmentSize is the plaintext size of a full segment. Tests shrink
	// it; production leaves it at index.SegmentSize.
	SegmentSize uint32

	// Redundancy is the requested copies per slice. Levels 0 and 1 both
	// mean a single copy.
	Redundancy uint8
}

// ApplyDefaults sets default values for unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.SegmentSize == 0 {
		c.SegmentSize = index.SegmentSize
	}
}

// Copies returns the number of copies planned per slice.
func (c Config) Copies() int {
	if c.Redundancy < 1 {
		return 1
	}
	return int(c.Redundancy)
}

// Stats counts what one processor run produced.
type Stats struct {
	Files      int    // content-bearing file records
	Tombstones int    // deletion records
	PackGroups int    // flushed pack groups
	Segments   int    // segment copies staged in the spool
	Bytes      uint64 // plaintext bytes read
}

// Processor cuts one folder version into sealed segments. It is not safe
// for concurrent use; files must arrive in ascending byte order of their
// path so pack members stay in lexicographic order.
type Processor struct {
	keys    *identity.FolderKeys
	spool   spool.Spool
	root    string
	version uint32
	cfg     Config

	batch    index.Batch
	pack     packBuffer
	ordinal  uint32 // folder-version ordinal feeding subject derivation, one per copy
	stats    Stats
	finished bool
}

// NewProcessor creates a processor for one version of one folder rooted
// at the given path.
func NewProcessor(keys *identity.FolderKeys, sp spool.Spool, root string, version uint32, cfg Config) (*Processor, error) {
	if keys == nil {
		return nil, errors.New("folder keys are required")
	}
	if sp == nil {
		return nil, errors.New("spool is required")
	}
	if root == "" {
		return nil, errors.New("root path is required")
	}
	cfg.ApplyDefaults()
	if cfg.SegmentSize > index.SegmentSize {
		return nil, fmt.Errorf("segment size %d exceeds maximum %d", cfg.SegmentSize, index.SegmentSize)
	}

	return &Processor{
		keys:    keys,
		spool:   sp,
		root:    root,
		version: version,
		cfg:     cfg,
	}, nil
}

// AddFile ingests one scanned file: records its metadata, cuts and seals
// its content and stages every copy in the spool. Files at or above the
// segment size are sliced; smaller files join the pack buffer. A file
// whose bytes no longer match the scan fails with FileChangedError.
func (p *Processor) AddFile(ctx context.Context, file *scanner.ScannedFile) error {
	if p.finished {
		return ErrFinished
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := &index.File{
		ID:       uuid.New().String(),
		FolderID: p.keys.Folder.ID,
		Version:  p.version,
		Path:     file.RelPath,
		Size:     file.Size,
		SHA256:   file.SHA256,
		MimeType: mime.TypeByExtension(path.Ext(file.RelPath)),
		ModTime:  file.ModTime,
	}

	switch {
	case file.Size == 0:
		// Nothing to seal: empty files reconstruct from metadata alone.
		p.batch.Files = append(p.batch.Files, rec)
		p.stats.Files++
		return nil
	case file.Size >= uint64(p.cfg.SegmentSize):
		if err := p.sliceFile(ctx, rec); err != nil {
			return err
		}
	default:
		if err := p.packFile(ctx, rec); err != nil {
			return err
		}
	}

	p.batch.Files = append(p.batch.Files, rec)
	p.stats.Files++
	p.stats.Bytes += file.Size
	return nil
}

// AddTombstone records that a previously indexed path disappeared at
// this version.
func (p *Processor) AddTombstone(relPath string) error {
	if p.finished {
		return ErrFinished
	}

	p.batch.Files = append(p.batch.Files, &index.File{
		ID:       uuid.New().String(),
		FolderID: p.keys.Folder.ID,
		Version:  p.version,
		Path:     relPath,
		Deleted:  true,
		ModTime:  time.Now().UTC(),
	})
	p.stats.Tombstones++
	return nil
}

// Finish flushes the pack buffer and returns the accumulated batch. The
// processor accepts no more files afterwards.
func (p *Processor) Finish(ctx context.Context) (*index.Batch, error) {
	if p.finished {
		return nil, ErrFinished
	}
	if err := p.flushPack(ctx); err != nil {
		return nil, err
	}
	p.finished = true

	logger.Debug("segmenting finished",
		logger.FolderID(p.keys.Folder.ID),
		logger.KeyVersion, p.version,
		logger.KeyCount, p.stats.Segments,
		logger.Size(p.stats.Bytes))

	return &p.batch, nil
}

// Stats returns what the processor produced so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// sliceFile reads the file once, cutting full segments as it goes and
// verifying the whole-file digest at the end.
func (p *Processor) sliceFile(ctx context.Context, rec *index.File) error {
	full := filepath.Join(p.root, filepath.FromSlash(rec.Path))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileChangedError{Path: rec.Path}
		}
		return fmt.Errorf("failed to open %s: %w", rec.Path, err)
	}
	defer f.Close()

	whole := sha256.New()
	buf := bufpool.GetUint32(p.cfg.SegmentSize)
	defer bufpool.Put(buf)

	var segIndex uint32
	var total uint64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := io.ReadFull(f, buf)
		if n > 0 {
			sliceData := buf[:n]
			whole.Write(sliceData)
			offset := uint64(segIndex) * uint64(p.cfg.SegmentSize)
			if err := p.emitCopies(ctx, index.ParentFile, rec.ID, segIndex, offset, sliceData); err != nil {
				return err
			}
			segIndex++
			total += uint64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", rec.Path, err)
		}
	}

	if total != rec.Size || hex.EncodeToString(whole.Sum(nil)) != rec.SHA256 {
		return &FileChangedError{Path: rec.Path}
	}
	return nil
}

// packFile loads a small file whole and appends it to the pack buffer,
// flushing first when the file would overflow the segment size.
func (p *Processor) packFile(ctx context.Context, rec *index.File) error {
	full := filepath.Join(p.root, filepath.FromSlash(rec.Path))
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return &FileChangedError{Path: rec.Path}
		}
		return fmt.Errorf("failed to read %s: %w", rec.Path, err)
	}

	if uint64(len(data)) != rec.Size || crypto.SHA256Hex(data) != rec.SHA256 {
		return &FileChangedError{Path: rec.Path}
	}

	if p.pack.len()+uint32(len(data)) > p.cfg.SegmentSize {
		if err := p.flushPack(ctx); err != nil {
			return err
		}
	}

	if p.pack.empty() {
		p.pack.groupID = uuid.New().String()
	}

	rec.PackGroupID = p.pack.groupID
	p.pack.append(rec.ID, data)
	return nil
}

// emitCopies hashes one plaintext slice and stages every redundancy copy
// of it, each sealed independently so wire bytes differ between copies.
func (p *Processor) emitCopies(ctx context.Context, kind index.ParentKind, parentID string, segIndex uint32, offset uint64, plaintext []byte) error {
	sliceSHA := crypto.SHA256Hex(plaintext)

	for copyIdx := 0; copyIdx < p.cfg.Copies(); copyIdx++ {
		internal := p.keys.Subject(p.version, p.ordinal)
		p.ordinal++

		usenet, err := obfuscate.NewUsenetSubject()
		if err != nil {
			return fmt.Errorf("failed to mint usenet subject: %w", err)
		}

		sealed, err := crypto.Encrypt(plaintext, p.keys.ContentKey)
		if err != nil {
			return fmt.Errorf("failed to seal segment: %w", err)
		}

		seg := &index.Segment{
			ID:              uuid.New().String(),
			FolderID:        p.keys.Folder.ID,
			Version:         p.version,
			ParentKind:      kind,
			ParentID:        parentID,
			Index:           segIndex,
			Redundancy:      uint8(copyIdx),
			Offset:          offset,
			Length:          uint32(len(plaintext)),
			SHA256:          sliceSHA,
			InternalSubject: internal,
			UsenetSubject:   usenet,
			State:           index.SegmentPending,
		}

		env := &spool.Envelope{
			FolderID:      seg.FolderID,
			Version:       seg.Version,
			SegmentID:     seg.ID,
			UsenetSubject: seg.UsenetSubject,
			Redundancy:    uint32(copyIdx),
			PlainSHA256:   sliceSHA,
			PlainLength:   seg.Length,
			Body:          sealed,
		}
		if err := p.spool.Put(ctx, env); err != nil {
			return fmt.Errorf("failed to spool segment %s: %w", seg.ID, err)
		}

		p.batch.Segments = append(p.batch.Segments, seg)
		p.stats.Segments++
	}
	return nil
}

// flushPack seals the pack buffer as one segment body and resets it.
func (p *Processor) flushPack(ctx context.Context) error {
	if p.pack.empty() {
		return nil
	}

	group := &index.PackGroup{
		ID:        p.pack.groupID,
		FolderID:  p.keys.Folder.ID,
		Version:   p.version,
		TotalSize: p.pack.len(),
		Members:   p.pack.members,
	}
	p.batch.PackGroups = append(p.batch.PackGroups, group)
	p.stats.PackGroups++

	if err := p.emitCopies(ctx, index.ParentPack, group.ID, 0, 0, p.pack.buf); err != nil {
		return err
	}

	p.pack.reset()
	return nil
}
