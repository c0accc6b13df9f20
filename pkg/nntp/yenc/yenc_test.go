package yenc

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	sizes := []int{1, 2, 127, 128, 129, 1000, 768000}
	for _, size := range sizes {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			data := make([]byte, size)
			_, _ = rng.Read(data)

			encoded := Encode("a1b2c3d4e5f6a7b8c9d0", data)
			name, decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, "a1b2c3d4e5f6a7b8c9d0", name)
			assert.True(t, bytes.Equal(data, decoded))
		})
	}
}

func TestEncodeAllByteValues(t *testing.T) {
	// Every byte value must survive, including the ones the armor exists
	// to protect: NUL, CR, LF, '=', '.', TAB, SPACE.
	data := make([]byte, 0, 256*3)
	for round := 0; round < 3; round++ {
		for b := 0; b < 256; b++ {
			data = append(data, byte(b))
		}
	}

	encoded := Encode("payload", data)
	_, decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, decoded))
}

func TestEncodedLinesStayClean(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i * 31)
	}

	encoded := Encode("x", data)
	lines := splitLines(encoded)

	for i, line := range lines {
		if strings.HasPrefix(line, "=ybegin") || strings.HasPrefix(line, "=yend") {
			continue
		}
		assert.LessOrEqual(t, len(line), LineLength+1, "line %d too long", i)
		assert.False(t, strings.HasPrefix(line, "."), "line %d starts with dot", i)
		for _, c := range []byte(line) {
			assert.NotEqual(t, byte(0x00), c)
			assert.NotEqual(t, byte(0x0A), c)
			assert.NotEqual(t, byte(0x0D), c)
		}
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	_, _, err := Decode(nil)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeMissingFraming(t *testing.T) {
	_, _, err := Decode([]byte("not a yenc body at all\r\n"))
	assert.ErrorIs(t, err, ErrCorrupt)

	// Header but no trailer.
	encoded := Encode("x", []byte("hello world"))
	truncated := bytes.Split(encoded, []byte("=yend"))[0]
	_, _, err = Decode(truncated)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeCorruptBody(t *testing.T) {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i)
	}
	encoded := Encode("x", data)

	// Flip one payload byte between header and trailer. Avoid bytes that
	// would break line structure.
	idx := bytes.IndexByte(encoded, '\n') + 10
	for encoded[idx] == '=' || encoded[idx] == '\r' || encoded[idx] == '\n' {
		idx++
	}
	encoded[idx] ^= 0x01

	_, _, err := Decode(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeSizeMismatch(t *testing.T) {
	encoded := Encode("x", []byte("hello"))
	tampered := bytes.Replace(encoded, []byte("=ybegin line=128 size=5"), []byte("=ybegin line=128 size=6"), 1)
	_, _, err := Decode(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeDanglingEscape(t *testing.T) {
	encoded := []byte("=ybegin line=128 size=1 name=x\r\n=\r\n=yend size=1\r\n")
	_, _, err := Decode(encoded)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestNameWithSpaces(t *testing.T) {
	data := []byte("body")
	encoded := Encode("name with spaces.bin", data)
	name, decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "name with spaces.bin", name)
	assert.Equal(t, data, decoded)
}

func TestParseAttrs(t *testing.T) {
	attrs := parseAttrs("line=128 size=768000 name=a b c")
	assert.Equal(t, "128", attrs["line"])
	assert.Equal(t, "768000", attrs["size"])
	assert.Equal(t, "a b c", attrs["name"])

	attrs = parseAttrs(" size=5 crc32=00aabbcc")
	assert.Equal(t, "5", attrs["size"])
	assert.Equal(t, "00aabbcc", attrs["crc32"])
}

func TestEncodeOverheadStaysSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]byte, 768000)
	_, _ = rng.Read(data)

	encoded := Encode("x", data)

	// Random data escapes ~1.5% of bytes; with line breaks the armor
	// should stay well under 5% overhead.
	overhead := float64(len(encoded)-len(data)) / float64(len(data))
	assert.Less(t, overhead, 0.05)
}
