package nntp

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArticle() *Article {
	return &Article{
		MessageID:  "<a1b2c3d4e5f6a7b8@ngPost.com>",
		Subject:    "MRFE3BX25XTF5CH6FPPX",
		Newsgroups: []string{"alt.binaries.test"},
		Date:       time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Body:       []byte("ciphertext"),
	}
}

func TestArticleValidate(t *testing.T) {
	t.Run("valid article passes", func(t *testing.T) {
		assert.NoError(t, testArticle().Validate())
	})

	t.Run("missing message id", func(t *testing.T) {
		a := testArticle()
		a.MessageID = ""
		assert.Error(t, a.Validate())
	})

	t.Run("missing subject", func(t *testing.T) {
		a := testArticle()
		a.Subject = ""
		assert.Error(t, a.Validate())
	})

	t.Run("missing newsgroups", func(t *testing.T) {
		a := testArticle()
		a.Newsgroups = nil
		assert.Error(t, a.Validate())
	})

	t.Run("empty body", func(t *testing.T) {
		a := testArticle()
		a.Body = nil
		assert.Error(t, a.Validate())
	})
}

func TestHeaderBlockRendering(t *testing.T) {
	block := testArticle().headerBlock()

	assert.Contains(t, block, "From: poster <poster@ngPost.com>\r\n")
	assert.Contains(t, block, "Newsgroups: alt.binaries.test\r\n")
	assert.Contains(t, block, "Subject: MRFE3BX25XTF5CH6FPPX\r\n")
	assert.Contains(t, block, "Message-ID: <a1b2c3d4e5f6a7b8@ngPost.com>\r\n")
	assert.Contains(t, block, "Date: Sat, 14 Mar 2026 09:26:53 +0000\r\n")
	assert.Contains(t, block, "Content-Type: application/octet-stream\r\n")
}

func TestHeaderBlockCarriesNoIdentifyingHeaders(t *testing.T) {
	// The header block must never leak folder, user or content identity.
	// Exactly the six standard headers, nothing else.
	block := testArticle().headerBlock()

	var keys []string
	for _, line := range strings.Split(strings.TrimSuffix(block, "\r\n"), "\r\n") {
		key, _, ok := strings.Cut(line, ":")
		require.True(t, ok, "malformed header line %q", line)
		keys = append(keys, key)
	}

	assert.Equal(t, []string{"From", "Newsgroups", "Subject", "Message-ID", "Date", "Content-Type"}, keys)
	for _, key := range keys {
		assert.False(t, strings.HasPrefix(key, "X-"), "unexpected extension header %s", key)
	}
}

func TestHeaderBlockJoinsMultipleGroups(t *testing.T) {
	a := testArticle()
	a.Newsgroups = []string{"alt.binaries.test", "alt.binaries.misc"}
	assert.Contains(t, a.headerBlock(), "Newsgroups: alt.binaries.test,alt.binaries.misc\r\n")
}

func TestParseHeaderBlock(t *testing.T) {
	header := parseHeaderBlock([]string{
		"From: poster <poster@ngPost.com>",
		"subject: ABCDEF",
		"MESSAGE-ID: <deadbeef@ngPost.com>",
		"X-Long: starts here",
		"\tand continues here",
	})

	assert.Equal(t, "poster <poster@ngPost.com>", header["From"])
	assert.Equal(t, "ABCDEF", header["Subject"])
	assert.Equal(t, "<deadbeef@ngPost.com>", header["Message-ID"])
	assert.Equal(t, "starts here and continues here", header["X-Long"])
}

func TestSplitLines(t *testing.T) {
	lines := splitLines([]byte("a\r\nb\nc"))
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	assert.Empty(t, splitLines(nil))
}
