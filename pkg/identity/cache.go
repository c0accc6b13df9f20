package identity

import "sync"

// KeyCache holds unwrapped folder keys and derived share keys for the
// lifetime of a process, so repeated operations on a folder pay the KDF
// and unwrap cost once. Entries are dropped on folder deletion, share
// revocation, or shutdown. Nothing here is ever persisted.
type KeyCache struct {
	mu      sync.RWMutex
	folders map[string]*FolderKeys
	shares  map[string][]byte
}

// NewKeyCache creates an empty key cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{
		folders: make(map[string]*FolderKeys),
		shares:  make(map[string][]byte),
	}
}

// Folder returns the cached unwrapped keys of a folder.
func (c *KeyCache) Folder(folderID string) (*FolderKeys, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, ok := c.folders[folderID]
	return keys, ok
}

// PutFolder caches a folder's unwrapped keys, replacing any prior entry.
func (c *KeyCache) PutFolder(keys *FolderKeys) {
	if keys == nil || keys.Folder == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders[keys.Folder.ID] = keys
}

// ShareKey returns the cached symmetric key of a share. The returned
// slice is a copy.
func (c *KeyCache) ShareKey(shareID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.shares[shareID]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(key))
	copy(out, key)
	return out, true
}

// PutShareKey caches a derived share key, replacing any prior entry.
func (c *KeyCache) PutShareKey(shareID string, key []byte) {
	if shareID == "" || len(key) == 0 {
		return
	}
	cp := make([]byte, len(key))
	copy(cp, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.shares[shareID] = cp
}

// InvalidateFolder drops a folder's cached keys.
func (c *KeyCache) InvalidateFolder(folderID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.folders, folderID)
}

// InvalidateShare drops a share's cached key.
func (c *KeyCache) InvalidateShare(shareID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.shares, shareID)
}

// Clear drops every cached key.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders = make(map[string]*FolderKeys)
	c.shares = make(map[string][]byte)
}
