package index

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nntpvault/nntpvault/pkg/obfuscate"
)

// SegmentSize is the fixed plaintext size of a full segment in bytes.
// Only the final segment of a file and packed segments may be shorter.
const SegmentSize = 768_000

// ============================================================================
// Segment States
// ============================================================================

// SegmentState tracks one segment copy through the posting pipeline.
type SegmentState string

const (
	// SegmentPending is the initial state assigned at indexing time.
	SegmentPending SegmentState = "pending"

	// SegmentQueued means the copy is sitting in the upload queue.
	SegmentQueued SegmentState = "queued"

	// SegmentUploading means a worker holds the copy and has minted a
	// Message-ID for it.
	SegmentUploading SegmentState = "uploading"

	// SegmentPosted means the article was accepted by the upstream.
	// The committed Message-ID never changes after this point.
	SegmentPosted SegmentState = "posted"

	// SegmentFailed means posting gave up after exhausting retries.
	SegmentFailed SegmentState = "failed"

	// SegmentCancelled means the copy was drained from the queue before
	// a worker picked it up.
	SegmentCancelled SegmentState = "cancelled"

	// SegmentVerified is an observation made at download time: the
	// posted article was retrieved and its plaintext hash matched.
	SegmentVerified SegmentState = "verified"

	// SegmentUnrecoverable is an observation made at download time:
	// every redundancy copy of the segment was missing upstream.
	SegmentUnrecoverable SegmentState = "unrecoverable"
)

// transitions lists the legal state moves for a segment copy.
var transitions = map[SegmentState][]SegmentState{
	SegmentPending:       {SegmentQueued, SegmentCancelled},
	SegmentQueued:        {SegmentUploading, SegmentCancelled},
	SegmentUploading:     {SegmentPosted, SegmentQueued, SegmentFailed},
	SegmentFailed:        {SegmentQueued},
	SegmentPosted:        {SegmentVerified, SegmentUnrecoverable},
	SegmentCancelled:     {},
	SegmentVerified:      {},
	SegmentUnrecoverable: {},
}

// Valid reports whether s is a known segment state.
func (s SegmentState) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether a segment copy may move from one state
// to another.
func CanTransition(from, to SegmentState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every state from which a copy may legally
// reach the given state. Backends use it to express guarded updates.
func TransitionSources(to SegmentState) []SegmentState {
	var sources []SegmentState
	for from, targets := range transitions {
		for _, next := range targets {
			if next == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// ============================================================================
// Records
// ============================================================================

// File is one version of one file within a folder. Records are
// write-once and sparse: a path gets a new record only at the versions
// where its content changed, and prior records stay untouched. A
// record with Deleted set is a tombstone marking the version the path
// disappeared at.
type File struct {
	ID          string    `json:"id"`
	FolderID    string    `json:"folder_id"`
	Version     uint32    `json:"version"`
	Path        string    `json:"path"` // slash-separated, relative to the folder root
	Size        uint64    `json:"size"`
	SHA256      string    `json:"sha256"` // hex digest of the plaintext
	MimeType    string    `json:"mime_type,omitempty"`
	ModTime     time.Time `json:"mod_time"`
	PackGroupID string    `json:"pack_group_id,omitempty"` // set when the file travels inside a packed segment
	Deleted     bool      `json:"deleted,omitempty"`       // tombstone: the path was removed at this version
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks the file record for structural problems.
func (f *File) Validate() error {
	if f.ID == "" {
		return NewInvalidArgumentError("file ID is required")
	}
	if !validHexID(f.FolderID) {
		return NewInvalidArgumentError("folder ID must be 64 hex characters")
	}
	if f.Path == "" || strings.HasPrefix(f.Path, "/") || f.Path != path.Clean(f.Path) {
		return NewInvalidArgumentError(fmt.Sprintf("file path %q must be clean and relative", f.Path))
	}
	if f.Deleted {
		if f.Size != 0 || f.SHA256 != "" || f.PackGroupID != "" {
			return NewInvalidArgumentError("a tombstone carries no content")
		}
		return nil
	}
	if !validHexDigest(f.SHA256) {
		return NewInvalidArgumentError("file sha256 must be 64 hex characters")
	}
	if f.PackGroupID != "" && f.Size >= SegmentSize {
		return NewInvalidArgumentError("only files smaller than a segment can be packed")
	}
	return nil
}

// ParentKind distinguishes the two owners a segment can have.
type ParentKind string

const (
	// ParentFile means the segment is a slice of a single file.
	ParentFile ParentKind = "file"

	// ParentPack means the segment is the flushed body of a pack group.
	ParentPack ParentKind = "pack"
)

// Segment is one redundancy copy of one slice of a parent. The
// (ParentID, Index, Redundancy) triple is unique and maps to at most
// one posted Message-ID for the lifetime of the record.
type Segment struct {
	ID              string       `json:"id"`
	FolderID        string       `json:"folder_id"`
	Version         uint32       `json:"version"`
	ParentKind      ParentKind   `json:"parent_kind"`
	ParentID        string       `json:"parent_id"`
	Index           uint32       `json:"segment_index"` // ordinal within the parent
	Redundancy      uint8        `json:"redundancy"`    // copy number, 0 is the primary
	Offset          uint64       `json:"offset"`        // plaintext range start within the parent
	Length          uint32       `json:"length"`        // plaintext range length
	SHA256          string       `json:"sha256"`        // hex digest of the plaintext slice
	InternalSubject string       `json:"internal_subject"`
	UsenetSubject   string       `json:"usenet_subject"`
	MessageID       string       `json:"message_id,omitempty"`
	State           SegmentState `json:"state"`
	Attempts        uint8        `json:"attempts"`
	PostedAt        *time.Time   `json:"posted_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Validate checks the segment record for structural problems.
func (s *Segment) Validate() error {
	if s.ID == "" {
		return NewInvalidArgumentError("segment ID is required")
	}
	if !validHexID(s.FolderID) {
		return NewInvalidArgumentError("folder ID must be 64 hex characters")
	}
	if s.ParentKind != ParentFile && s.ParentKind != ParentPack {
		return NewInvalidArgumentError(fmt.Sprintf("unknown parent kind %q", s.ParentKind))
	}
	if s.ParentID == "" {
		return NewInvalidArgumentError("segment parent ID is required")
	}
	if s.Length == 0 || s.Length > SegmentSize {
		return NewInvalidArgumentError(fmt.Sprintf("segment length %d outside (0, %d]", s.Length, SegmentSize))
	}
	if !validHexDigest(s.SHA256) {
		return NewInvalidArgumentError("segment sha256 must be 64 hex characters")
	}
	if !validHexDigest(s.InternalSubject) {
		return NewInvalidArgumentError("internal subject must be 64 hex characters")
	}
	if !obfuscate.ValidUsenetSubject(s.UsenetSubject) {
		return NewInvalidArgumentError("usenet subject must be 20 base32 characters")
	}
	if !s.State.Valid() {
		return NewInvalidArgumentError(fmt.Sprintf("unknown segment state %q", s.State))
	}
	return nil
}

// PackMember records where one small file sits inside a packed segment.
type PackMember struct {
	FileID string `json:"file_id"`
	Offset uint32 `json:"offset"`
	Length uint32 `json:"length"`
}

// PackGroup bundles multiple small files into a single segment body.
// Total packed plaintext never exceeds the segment size.
type PackGroup struct {
	ID        string       `json:"id"`
	FolderID  string       `json:"folder_id"`
	Version   uint32       `json:"version"`
	TotalSize uint32       `json:"total_size"`
	Members   []PackMember `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks the pack group record for structural problems.
func (g *PackGroup) Validate() error {
	if g.ID == "" {
		return NewInvalidArgumentError("pack group ID is required")
	}
	if !validHexID(g.FolderID) {
		return NewInvalidArgumentError("folder ID must be 64 hex characters")
	}
	if len(g.Members) == 0 {
		return NewInvalidArgumentError("pack group has no members")
	}
	if g.TotalSize == 0 || g.TotalSize > SegmentSize {
		return NewInvalidArgumentError(fmt.Sprintf("pack group size %d outside (0, %d]", g.TotalSize, SegmentSize))
	}
	var sum uint64
	for _, m := range g.Members {
		if m.FileID == "" {
			return NewInvalidArgumentError("pack member file ID is required")
		}
		sum += uint64(m.Length)
	}
	if sum != uint64(g.TotalSize) {
		return NewInvalidArgumentError(fmt.Sprintf("pack member lengths sum to %d, group says %d", sum, g.TotalSize))
	}
	return nil
}

// Batch groups files and pack groups with the segments cut from them.
// A batch must be self-contained: every segment's parent is either a
// file or a pack group carried in the same batch.
type Batch struct {
	Files      []*File
	PackGroups []*PackGroup
	Segments   []*Segment
}

// Validate checks every record plus the parent linkage.
func (b *Batch) Validate() error {
	parents := make(map[string]struct{}, len(b.Files)+len(b.PackGroups))
	for _, f := range b.Files {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.Deleted {
			continue // tombstones own no segments
		}
		parents[f.ID] = struct{}{}
	}
	for _, g := range b.PackGroups {
		if err := g.Validate(); err != nil {
			return err
		}
		parents[g.ID] = struct{}{}
	}
	for _, s := range b.Segments {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, ok := parents[s.ParentID]; !ok {
			return NewInvalidArgumentError(fmt.Sprintf("segment %s references parent %s outside the batch", s.ID, s.ParentID))
		}
	}
	return nil
}

// Empty reports whether the batch carries no records at all.
func (b *Batch) Empty() bool {
	return len(b.Files) == 0 && len(b.PackGroups) == 0 && len(b.Segments) == 0
}

// Normalize stamps missing creation times and defaults fresh segments
// to pending. Backends call it before validation.
func (b *Batch) Normalize(now time.Time) {
	for _, f := range b.Files {
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
	}
	for _, g := range b.PackGroups {
		if g.CreatedAt.IsZero() {
			g.CreatedAt = now
		}
	}
	for _, s := range b.Segments {
		if s.State == "" {
			s.State = SegmentPending
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
	}
}

// SegmentCounts is a per-state tally used for progress reporting.
type SegmentCounts struct {
	Pending       int64 `json:"pending"`
	Queued        int64 `json:"queued"`
	Uploading     int64 `json:"uploading"`
	Posted        int64 `json:"posted"`
	Failed        int64 `json:"failed"`
	Cancelled     int64 `json:"cancelled"`
	Verified      int64 `json:"verified"`
	Unrecoverable int64 `json:"unrecoverable"`
}

// Add increments the tally for the given state.
func (c *SegmentCounts) Add(state SegmentState, n int64) {
	switch state {
	case SegmentPending:
		c.Pending += n
	case SegmentQueued:
		c.Queued += n
	case SegmentUploading:
		c.Uploading += n
	case SegmentPosted:
		c.Posted += n
	case SegmentFailed:
		c.Failed += n
	case SegmentCancelled:
		c.Cancelled += n
	case SegmentVerified:
		c.Verified += n
	case SegmentUnrecoverable:
		c.Unrecoverable += n
	}
}

// Total returns the number of copies across all states.
func (c SegmentCounts) Total() int64 {
	return c.Pending + c.Queued + c.Uploading + c.Posted +
		c.Failed + c.Cancelled + c.Verified + c.Unrecoverable
}

// Settled returns the number of copies that left the posting pipeline,
// counting posted, failed and cancelled plus the download observations.
func (c SegmentCounts) Settled() int64 {
	return c.Posted + c.Failed + c.Cancelled + c.Verified + c.Unrecoverable
}

func validHexID(s string) bool {
	return validHexDigest(s)
}

func validHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
