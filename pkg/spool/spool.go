// Package spool stages fully built articles between segmenting and
// posting.
//
// The segment processor seals each redundancy copy and parks it here as an
// envelope: an XDR header carrying the copy's identity plus the sealed
// body. The upload engine posts from the spool and deletes an envelope
// once its post is committed, so after a crash the spool still holds
// everything that never reached the upstream. The spool only ever holds
// ciphertext.
//
// Backends: a filesystem store (default) and an S3 store (pkg/spool/s3).
package spool

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

var (
	// ErrNotFound means no envelope is spooled under the requested ref.
	ErrNotFound = errors.New("envelope not found")

	// ErrClosed means the spool has been shut down.
	ErrClosed = errors.New("spool closed")
)

// Envelope is one staged article: the identity of a segment copy plus its
// sealed body. The body layout is nonce || ciphertext || tag, exactly what
// goes on the wire after transport encoding.
//
// Field types stick to XDR-native widths; Redundancy is a uint32 on disk
// even though the index bounds it to a byte.
type Envelope struct {
	FolderID      string
	Version       uint32
	SegmentID     string
	UsenetSubject string
	Redundancy    uint32
	PlainSHA256   string
	PlainLength   uint32
	Body          []byte
}

// Ref returns the spool handle of the envelope.
func (e *Envelope) Ref() string {
	return e.SegmentID
}

// Validate checks the envelope for structural problems before spooling.
func (e *Envelope) Validate() error {
	switch {
	case e.FolderID == "":
		return fmt.Errorf("envelope missing folder ID")
	case e.SegmentID == "":
		return fmt.Errorf("envelope missing segment ID")
	case e.UsenetSubject == "":
		return fmt.Errorf("envelope missing usenet subject")
	case e.PlainSHA256 == "":
		return fmt.Errorf("envelope missing plaintext hash")
	case len(e.Body) == 0:
		return fmt.Errorf("envelope has empty body")
	}
	return nil
}

// Encode serializes the envelope to its on-disk form.
func (e *Envelope) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, e); err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope parses an on-disk envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &e, nil
}

// Spool is the staging contract both backends implement.
//
// Refs are segment IDs and are scoped per folder; one envelope per
// segment copy. Implementations are safe for concurrent use.
type Spool interface {
	// Put stages one envelope. Re-putting the same ref overwrites, so a
	// re-run of the segment processor never strands stale bodies.
	Put(ctx context.Context, env *Envelope) error

	// Get loads an envelope by ref.
	// Fails with ErrNotFound when nothing is staged under it.
	Get(ctx context.Context, folderID, ref string) (*Envelope, error)

	// Delete drops an envelope. Deleting a missing ref is not an error;
	// the upload engine may race a sweep.
	Delete(ctx context.Context, folderID, ref string) error

	// List returns every staged ref of one folder, sorted.
	List(ctx context.Context, folderID string) ([]string, error)

	// DeleteFolder drops everything staged for one folder.
	DeleteFolder(ctx context.Context, folderID string) error

	// Healthcheck verifies the backend is reachable and writable.
	Healthcheck(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
