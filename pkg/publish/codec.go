package publish

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// IndexFormat is the wire format revision of the publication index.
const IndexFormat = 1

// Index is the plaintext payload of a publication: everything a consumer
// needs to reconstruct one folder version, and nothing that links back
// to the owner. It exists in cleartext only inside an unlocked client;
// at rest it travels AES-GCM sealed under the share key.
//
// The folder content key rides inside: the share key's whole job is
// gating access to this structure.
type Index struct {
	Format     uint32
	FolderID   string
	Version    uint32
	Newsgroup  string
	ContentKey []byte
	Files      []IndexFile
	Packs      []IndexPack
}

// IndexFile is one reconstructable file: the winning record of its path
// at the published version, plus the committed copies of every slice.
// Packed and empty files carry no copies of their own.
type IndexFile struct {
	ID          string
	Version     uint32
	Path        string
	Size        uint64
	SHA256      string
	MimeType    string
	ModTimeUnix int64
	PackGroupID string
	Segments    []IndexSegment
}

// IndexPack is one packed segment body shared by several small files.
// The member table is carried verbatim; consumers match it against the
// files current at the published version.
type IndexPack struct {
	ID        string
	Version   uint32
	TotalSize uint32
	Members   []IndexMember
	Segments  []IndexSegment
}

// IndexMember locates one small file inside a packed body.
type IndexMember struct {
	FileID string
	Offset uint32
	Length uint32
}

// IndexSegment is one committed redundancy copy: where its plaintext
// sits within the parent and the Message-ID it is fetched by.
type IndexSegment struct {
	ID              string
	Index           uint32
	Redundancy      uint32
	Offset          uint64
	Length          uint32
	SHA256          string
	InternalSubject string
	UsenetSubject   string
	MessageID       string
}

// Encode serializes the index to its XDR wire form.
func (ix *Index) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, ix); err != nil {
		return nil, fmt.Errorf("failed to encode publication index: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeIndex parses a decrypted publication index.
func DecodeIndex(data []byte) (*Index, error) {
	var ix Index
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &ix); err != nil {
		return nil, fmt.Errorf("failed to decode publication index: %w", err)
	}
	if ix.Format != IndexFormat {
		return nil, fmt.Errorf("unsupported publication index format %d", ix.Format)
	}
	return &ix, nil
}

// Batch converts the index into a self-contained batch of already-posted
// records, ready for a fresh peer's local index. Records keep their
// original identities and versions, so importing on a peer that already
// holds them collides instead of duplicating.
func (ix *Index) Batch() *index.Batch {
	b := &index.Batch{}

	for _, f := range ix.Files {
		b.Files = append(b.Files, &index.File{
			ID:          f.ID,
			FolderID:    ix.FolderID,
			Version:     f.Version,
			Path:        f.Path,
			Size:        f.Size,
			SHA256:      f.SHA256,
			MimeType:    f.MimeType,
			ModTime:     time.Unix(f.ModTimeUnix, 0).UTC(),
			PackGroupID: f.PackGroupID,
		})
		for _, s := range f.Segments {
			b.Segments = append(b.Segments, segmentRecord(ix.FolderID, f.Version, index.ParentFile, f.ID, s))
		}
	}

	for _, p := range ix.Packs {
		group := &index.PackGroup{
			ID:        p.ID,
			FolderID:  ix.FolderID,
			Version:   p.Version,
			TotalSize: p.TotalSize,
		}
		for _, m := range p.Members {
			group.Members = append(group.Members, index.PackMember{
				FileID: m.FileID,
				Offset: m.Offset,
				Length: m.Length,
			})
		}
		b.PackGroups = append(b.PackGroups, group)

		for _, s := range p.Segments {
			b.Segments = append(b.Segments, segmentRecord(ix.FolderID, p.Version, index.ParentPack, p.ID, s))
		}
	}

	return b
}

func segmentRecord(folderID string, version uint32, kind index.ParentKind, parentID string, s IndexSegment) *index.Segment {
	return &index.Segment{
		ID:              s.ID,
		FolderID:        folderID,
		Version:         version,
		ParentKind:      kind,
		ParentID:        parentID,
		Index:           s.Index,
		Redundancy:      uint8(s.Redundancy),
		Offset:          s.Offset,
		Length:          s.Length,
		SHA256:          s.SHA256,
		InternalSubject: s.InternalSubject,
		UsenetSubject:   s.UsenetSubject,
		MessageID:       s.MessageID,
		State:           index.SegmentPosted,
	}
}

func wireSegment(s *index.Segment) IndexSegment {
	return IndexSegment{
		ID:              s.ID,
		Index:           s.Index,
		Redundancy:      uint32(s.Redundancy),
		Offset:          s.Offset,
		Length:          s.Length,
		SHA256:          s.SHA256,
		InternalSubject: s.InternalSubject,
		UsenetSubject:   s.UsenetSubject,
		MessageID:       s.MessageID,
	}
}
