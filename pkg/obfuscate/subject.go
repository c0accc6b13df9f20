package obfuscate

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// noPadB32 renders raw bytes in the uppercase RFC 4648 alphabet.
var noPadB32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// InternalSubject derives the owner-side identifier for a segment:
//
//	sha256(folder_id || version || segment_index || folder_priv_key) → 64 hex
//
// folder_id contributes its 64 hex characters as ASCII; version and
// segment_index contribute 4 bytes big-endian each; the folder private key
// contributes its raw bytes. The result never crosses the wire.
func InternalSubject(folderID string, version uint32, segmentIndex uint32, folderPriv []byte) string {
	h := sha256.New()
	h.Write([]byte(folderID))

	var ord [4]byte
	binary.BigEndian.PutUint32(ord[:], version)
	h.Write(ord[:])
	binary.BigEndian.PutUint32(ord[:], segmentIndex)
	h.Write(ord[:])

	h.Write(folderPriv)
	return hex.EncodeToString(h.Sum(nil))
}

// NewUsenetSubject mints a fresh wire subject: base32 of 12 random bytes,
// truncated to 20 characters. It carries no information about the payload.
func NewUsenetSubject() (string, error) {
	buf := make([]byte, subjectEntropy)
	if _, err := randRead(buf); err != nil {
		return "", fmt.Errorf("failed to mint subject: %w", err)
	}

	subject := noPadB32.EncodeToString(buf)
	if len(subject) < SubjectLength {
		return "", fmt.Errorf("subject encoding too short: %d", len(subject))
	}
	return subject[:SubjectLength], nil
}

// ValidUsenetSubject reports whether s has the shape of a minted subject.
func ValidUsenetSubject(s string) bool {
	if len(s) != SubjectLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !inAlphabet(base32Alphabet, s[i]) {
			return false
		}
	}
	return true
}

func inAlphabet(alphabet string, c byte) bool {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return true
		}
	}
	return false
}
