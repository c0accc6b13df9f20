package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st)
}

func TestServiceUserLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	keys, err := svc.CreateUser(ctx, "alice", testSecret, models.RoleAdmin)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if !keys.User.IsAdmin() {
		t.Error("expected admin role to be recorded")
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, "alice", testSecret, models.RoleUser)
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("unlock round trip", func(t *testing.T) {
		unlocked, err := svc.Unlock(ctx, "alice", testSecret)
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		if unlocked.User.ID != keys.User.ID {
			t.Errorf("expected user %s, got %s", keys.User.ID, unlocked.User.ID)
		}
	})

	t.Run("unlock with wrong secret", func(t *testing.T) {
		_, err := svc.Unlock(ctx, "alice", "not the secret")
		if !errors.Is(err, ErrWrongSecret) {
			t.Errorf("expected ErrWrongSecret, got %v", err)
		}
	})

	t.Run("unlock unknown user", func(t *testing.T) {
		_, err := svc.Unlock(ctx, "nobody", testSecret)
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestServiceFolderLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	owner, err := svc.CreateUser(ctx, "alice", testSecret, models.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	stranger, err := svc.CreateUser(ctx, "bob", testSecret, models.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	keys, err := svc.CreateFolder(ctx, owner, "photos", "/data/photos", "alt.binaries.misc")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	folderID := keys.Folder.ID

	t.Run("unlock serves from cache", func(t *testing.T) {
		first, err := svc.UnlockFolder(ctx, owner, folderID)
		if err != nil {
			t.Fatalf("UnlockFolder() error = %v", err)
		}
		second, err := svc.UnlockFolder(ctx, owner, folderID)
		if err != nil {
			t.Fatalf("UnlockFolder() error = %v", err)
		}
		if first != second {
			t.Error("expected the cached keys on the second unlock")
		}
	})

	t.Run("cache does not bypass ownership", func(t *testing.T) {
		_, err := svc.UnlockFolder(ctx, stranger, folderID)
		if !errors.Is(err, models.ErrFolderNotOwned) {
			t.Errorf("expected ErrFolderNotOwned, got %v", err)
		}
	})

	t.Run("forget forces a fresh unwrap", func(t *testing.T) {
		cached, _ := svc.UnlockFolder(ctx, owner, folderID)
		svc.Forget(folderID)
		fresh, err := svc.UnlockFolder(ctx, owner, folderID)
		if err != nil {
			t.Fatalf("UnlockFolder() after Forget error = %v", err)
		}
		if cached == fresh {
			t.Error("expected a fresh unwrap after Forget")
		}
		if string(cached.ContentKey) != string(fresh.ContentKey) {
			t.Error("expected the same content key from a fresh unwrap")
		}
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		err := svc.DeleteFolder(ctx, stranger, folderID)
		if !errors.Is(err, models.ErrFolderNotOwned) {
			t.Errorf("expected ErrFolderNotOwned, got %v", err)
		}
	})

	t.Run("delete drops keys and record", func(t *testing.T) {
		if err := svc.DeleteFolder(ctx, owner, folderID); err != nil {
			t.Fatalf("DeleteFolder() error = %v", err)
		}
		_, err := svc.UnlockFolder(ctx, owner, folderID)
		if !errors.Is(err, models.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound after delete, got %v", err)
		}
	})

	t.Run("reset empties the cache", func(t *testing.T) {
		other, err := svc.CreateFolder(ctx, owner, "docs", "/data/docs", "alt.binaries.misc")
		if err != nil {
			t.Fatalf("CreateFolder() error = %v", err)
		}
		svc.Reset()
		fresh, err := svc.UnlockFolder(ctx, owner, other.Folder.ID)
		if err != nil {
			t.Fatalf("UnlockFolder() after Reset error = %v", err)
		}
		if fresh == other {
			t.Error("expected Reset to drop the cached keys")
		}
	})
}
