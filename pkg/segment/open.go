package segment

import (
	"errors"
	"fmt"

	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/index"
)

// ErrCorrupt means a fetched segment body failed authentication or did
// not match the descriptor it was fetched for. The caller should fall
// back to another redundancy copy.
var ErrCorrupt = errors.New("segment body corrupt")

// Open unseals one fetched segment body and verifies it against its
// descriptor. Any mismatch, a failed GCM open, a wrong length or a wrong
// digest, reports ErrCorrupt: a tampered body and a truncated one get the
// same treatment.
func Open(sealed, contentKey []byte, wantSHA256 string, wantLength uint32) ([]byte, error) {
	plaintext, err := crypto.Decrypt(sealed, contentKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint32(len(plaintext)) != wantLength {
		return nil, fmt.Errorf("%w: length %d, descriptor says %d", ErrCorrupt, len(plaintext), wantLength)
	}
	if crypto.SHA256Hex(plaintext) != wantSHA256 {
		return nil, fmt.Errorf("%w: digest mismatch", ErrCorrupt)
	}
	return plaintext, nil
}

// UnpackMember extracts one member's bytes from an opened pack body.
func UnpackMember(body []byte, m index.PackMember) ([]byte, error) {
	end := uint64(m.Offset) + uint64(m.Length)
	if end > uint64(len(body)) {
		return nil, fmt.Errorf("%w: member %s spans [%d, %d) in a %d byte pack",
			ErrCorrupt, m.FileID, m.Offset, end, len(body))
	}
	return body[m.Offset:end], nil
}
