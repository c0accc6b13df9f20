package obfuscate

import (
	"fmt"
)

// MintShareID mints an opaque share handle: base32 of 15 random bytes,
// exactly 24 uppercase characters, no prefix, no delimiter. The handle is
// independent of folder contents, owner and segment locations; type and
// policy live only inside the publication record.
func MintShareID() (string, error) {
	buf := make([]byte, shareIDEntropy)
	if _, err := randRead(buf); err != nil {
		return "", fmt.Errorf("failed to mint share id: %w", err)
	}

	id := noPadB32.EncodeToString(buf)
	if len(id) != ShareIDLength {
		return "", fmt.Errorf("share id encoding has unexpected length: %d", len(id))
	}
	return id, nil
}

// ValidShareID reports whether s has the wire shape of a share handle:
// 24 characters from the uppercase base32 alphabet (A-Z, 2-7).
func ValidShareID(s string) bool {
	if len(s) != ShareIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !inAlphabet(base32Alphabet, s[i]) {
			return false
		}
	}
	return true
}
