// Package obfuscate derives the identifiers that cross the NNTP wire.
//
// Wire-visible identifiers (usenet subjects, Message-IDs, share IDs) are
// uniform random draws with no keyed relationship to folder contents. The
// only linkage between a posted article and a folder lives in the owner's
// index, through the deterministic internal subject.
package obfuscate

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// SubjectLength is the wire subject length in characters.
	SubjectLength = 20

	// subjectEntropy is the number of random bytes behind a wire subject.
	subjectEntropy = 12

	// ShareIDLength is the share handle length in characters.
	ShareIDLength = 24

	// shareIDEntropy is the number of random bytes behind a share ID
	// (15 bytes = 120 bits = 24 base32 characters, no padding).
	shareIDEntropy = 15

	// MessageIDLocalLength is the random local part length of a Message-ID.
	MessageIDLocalLength = 16

	// MessageIDDomain blends minted IDs with common Usenet posting tools.
	MessageIDDomain = "ngPost.com"
)

// base32Alphabet is RFC 4648 without padding: A-Z then 2-7.
const base32Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

// messageIDAlphabet is the lowercase alphanumeric set for Message-ID locals.
const messageIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randRead fills buf from crypto/rand.
func randRead(buf []byte) (int, error) {
	return io.ReadFull(rand.Reader, buf)
}

// randomString draws n characters uniformly from alphabet using crypto/rand.
// Rejection sampling keeps the draw unbiased for alphabets that do not
// divide 256.
func randomString(alphabet string, n int) (string, error) {
	max := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n)

	for len(out) < n {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if max != 0 && b >= max {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
