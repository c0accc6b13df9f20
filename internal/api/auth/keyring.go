package auth

import (
	"sync"

	"github.com/nntpvault/nntpvault/pkg/identity"
)

// Keyring holds the unlocked identities behind live API sessions, keyed
// by user ID.
//
// Unlocked keys exist only here and only for the life of the process. A
// valid JWT whose user is missing from the keyring means the daemon
// restarted since login; the client must log in again to re-derive the
// storage key from the secret.
type Keyring struct {
	mu    sync.RWMutex
	users map[string]*identity.UserKeys
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{users: make(map[string]*identity.UserKeys)}
}

// Put stores the unlocked identity, replacing any previous entry for the
// same user.
func (k *Keyring) Put(keys *identity.UserKeys) {
	if keys == nil || keys.User == nil {
		return
	}
	k.mu.Lock()
	k.users[keys.User.ID] = keys
	k.mu.Unlock()
}

// Get returns the unlocked identity for a user ID, if present.
func (k *Keyring) Get(userID string) (*identity.UserKeys, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	keys, ok := k.users[userID]
	return keys, ok
}

// Drop removes one user's unlocked identity. Called on logout.
func (k *Keyring) Drop(userID string) {
	k.mu.Lock()
	delete(k.users, userID)
	k.mu.Unlock()
}

// Clear removes every unlocked identity. Called at daemon shutdown.
func (k *Keyring) Clear() {
	k.mu.Lock()
	k.users = make(map[string]*identity.UserKeys)
	k.mu.Unlock()
}
