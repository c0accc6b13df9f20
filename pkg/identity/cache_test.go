package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

func testFolderKeys(t *testing.T, name string) *FolderKeys {
	t.Helper()

	owner, err := NewUserKeys("alice", "correct horse", models.RoleUser)
	require.NoError(t, err)
	keys, err := NewFolderKeys(owner, name, "/data/"+name, "alt.binaries.test")
	require.NoError(t, err)
	return keys
}

func TestKeyCache_FolderRoundTrip(t *testing.T) {
	c := NewKeyCache()

	_, ok := c.Folder("missing")
	assert.False(t, ok)

	keys := testFolderKeys(t, "photos")
	c.PutFolder(keys)

	got, ok := c.Folder(keys.Folder.ID)
	require.True(t, ok)
	assert.Same(t, keys, got)
}

func TestKeyCache_PutFolderIgnoresNil(t *testing.T) {
	c := NewKeyCache()

	c.PutFolder(nil)
	c.PutFolder(&FolderKeys{})

	assert.Empty(t, c.folders)
}

func TestKeyCache_ShareKeyCopies(t *testing.T) {
	c := NewKeyCache()

	key := []byte{1, 2, 3, 4}
	c.PutShareKey("MRFE3BX25XTF5CH6FPP2PXDL", key)

	// Mutating the caller's slice must not reach the cache.
	key[0] = 99
	got, ok := c.ShareKey("MRFE3BX25XTF5CH6FPP2PXDL")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)

	// Nor must mutating the returned copy.
	got[1] = 99
	again, _ := c.ShareKey("MRFE3BX25XTF5CH6FPP2PXDL")
	assert.Equal(t, []byte{1, 2, 3, 4}, again)
}

func TestKeyCache_Invalidate(t *testing.T) {
	c := NewKeyCache()

	keys := testFolderKeys(t, "photos")
	c.PutFolder(keys)
	c.PutShareKey("MRFE3BX25XTF5CH6FPP2PXDL", []byte{1})

	c.InvalidateFolder(keys.Folder.ID)
	_, ok := c.Folder(keys.Folder.ID)
	assert.False(t, ok)

	c.InvalidateShare("MRFE3BX25XTF5CH6FPP2PXDL")
	_, ok = c.ShareKey("MRFE3BX25XTF5CH6FPP2PXDL")
	assert.False(t, ok)
}

func TestKeyCache_Clear(t *testing.T) {
	c := NewKeyCache()

	c.PutFolder(testFolderKeys(t, "photos"))
	c.PutShareKey("MRFE3BX25XTF5CH6FPP2PXDL", []byte{1})

	c.Clear()
	assert.Empty(t, c.folders)
	assert.Empty(t, c.shares)
}
