package obfuscate

import (
	"fmt"
	"strings"
)

// MintMessageID mints a fresh article Message-ID:
//
//	<16 random lowercase alphanumerics@ngPost.com>
//
// 80 bits of entropy plus server-side uniqueness make collisions a
// non-concern. Minting happens at post time, once per posted copy.
func MintMessageID() (string, error) {
	local, err := randomString(messageIDAlphabet, MessageIDLocalLength)
	if err != nil {
		return "", fmt.Errorf("failed to mint message id: %w", err)
	}
	return "<" + local + "@" + MessageIDDomain + ">", nil
}

// ValidMessageID reports whether s is a Message-ID this system could have
// minted: angle brackets, a 16-char lowercase alphanumeric local part, and
// the blending domain.
func ValidMessageID(s string) bool {
	if !strings.HasPrefix(s, "<") || !strings.HasSuffix(s, ">") {
		return false
	}
	body := s[1 : len(s)-1]

	local, domain, ok := strings.Cut(body, "@")
	if !ok || domain != MessageIDDomain {
		return false
	}
	if len(local) != MessageIDLocalLength {
		return false
	}
	for i := 0; i < len(local); i++ {
		if !inAlphabet(messageIDAlphabet, local[i]) {
			return false
		}
	}
	return true
}
