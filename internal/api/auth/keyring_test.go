package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

func TestKeyring(t *testing.T) {
	ring := NewKeyring()

	keys, err := identity.NewUserKeys("alice", "correct horse battery staple", models.RoleUser)
	require.NoError(t, err)

	_, ok := ring.Get(keys.User.ID)
	assert.False(t, ok)

	ring.Put(keys)
	got, ok := ring.Get(keys.User.ID)
	require.True(t, ok)
	assert.Same(t, keys, got)

	ring.Drop(keys.User.ID)
	_, ok = ring.Get(keys.User.ID)
	assert.False(t, ok)
}

func TestKeyring_Clear(t *testing.T) {
	ring := NewKeyring()

	a, err := identity.NewUserKeys("a", "secret-a", models.RoleUser)
	require.NoError(t, err)
	b, err := identity.NewUserKeys("b", "secret-b", models.RoleAdmin)
	require.NoError(t, err)

	ring.Put(a)
	ring.Put(b)
	ring.Clear()

	_, ok := ring.Get(a.User.ID)
	assert.False(t, ok)
	_, ok = ring.Get(b.User.ID)
	assert.False(t, ok)
}

func TestKeyring_PutNil(t *testing.T) {
	ring := NewKeyring()
	ring.Put(nil)
	ring.Put(&identity.UserKeys{})
}
