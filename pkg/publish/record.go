package publish

import (
	"bytes"
	"fmt"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// RecordFormat is the wire format revision of a transported share record.
const RecordFormat = 1

// shareRecord is the portable form of a publication row. A share ID
// minted on one peer resolves nowhere else until the row behind it
// travels out-of-band; this is that envelope. It carries the sealed
// index and the access-gate material exactly as stored, and nothing
// that names the owner.
type shareRecord struct {
	Format         uint32
	ShareID        string
	FolderID       string
	FolderVersion  uint32
	AccessLevel    string
	EncryptedIndex []byte
	KDFSalt        []byte
	ScryptN        int32
	ScryptR        int32
	ScryptP        int32
	CreatedAtUnix  int64
	ExpiresAtUnix  int64
	Grants         []shareGrant
	Commitments    []string
}

// shareGrant is one authorized user of a private share, named only by
// public keys.
type shareGrant struct {
	SigningPublicKey string
	BoxPublicKey     string
	WrappedShareKey  []byte
}

// EncodeRecord serializes a publication for out-of-band transport to
// another peer.
func EncodeRecord(pub *models.Publication) ([]byte, error) {
	if err := pub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid publication record: %w", err)
	}

	rec := shareRecord{
		Format:         RecordFormat,
		ShareID:        pub.ShareID,
		FolderID:       pub.FolderID,
		FolderVersion:  pub.FolderVersion,
		AccessLevel:    pub.AccessLevel,
		EncryptedIndex: pub.EncryptedIndex,
		KDFSalt:        pub.KDFSalt,
		ScryptN:        int32(pub.ScryptN),
		ScryptR:        int32(pub.ScryptR),
		ScryptP:        int32(pub.ScryptP),
		CreatedAtUnix:  pub.CreatedAt.Unix(),
	}
	if pub.ExpiresAt != nil {
		rec.ExpiresAtUnix = pub.ExpiresAt.Unix()
	}
	for _, g := range pub.AuthorizedUsers {
		rec.Grants = append(rec.Grants, shareGrant{
			SigningPublicKey: g.SigningPublicKey,
			BoxPublicKey:     g.BoxPublicKey,
			WrappedShareKey:  g.WrappedShareKey,
		})
	}
	for _, cm := range pub.Commitments {
		rec.Commitments = append(rec.Commitments, cm.Digest)
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, &rec); err != nil {
		return nil, fmt.Errorf("failed to encode share record: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses a transported share record back into a publication
// row ready for a local control plane.
func DecodeRecord(data []byte) (*models.Publication, error) {
	var rec shareRecord
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode share record: %w", err)
	}
	if rec.Format != RecordFormat {
		return nil, fmt.Errorf("unsupported share record format %d", rec.Format)
	}

	pub := &models.Publication{
		ShareID:        rec.ShareID,
		FolderID:       rec.FolderID,
		FolderVersion:  rec.FolderVersion,
		AccessLevel:    rec.AccessLevel,
		EncryptedIndex: rec.EncryptedIndex,
		KDFSalt:        rec.KDFSalt,
		ScryptN:        int(rec.ScryptN),
		ScryptR:        int(rec.ScryptR),
		ScryptP:        int(rec.ScryptP),
		CreatedAt:      time.Unix(rec.CreatedAtUnix, 0).UTC(),
	}
	if rec.ExpiresAtUnix != 0 {
		t := time.Unix(rec.ExpiresAtUnix, 0).UTC()
		pub.ExpiresAt = &t
	}
	for _, g := range rec.Grants {
		pub.AuthorizedUsers = append(pub.AuthorizedUsers, models.AuthorizedUser{
			ShareID:          rec.ShareID,
			SigningPublicKey: g.SigningPublicKey,
			BoxPublicKey:     g.BoxPublicKey,
			WrappedShareKey:  g.WrappedShareKey,
		})
	}
	for _, d := range rec.Commitments {
		pub.Commitments = append(pub.Commitments, models.Commitment{
			ShareID: rec.ShareID,
			Digest:  d,
		})
	}

	if err := pub.Validate(); err != nil {
		return nil, fmt.Errorf("invalid share record: %w", err)
	}
	return pub, nil
}
