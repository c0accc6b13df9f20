package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// testUser builds a valid user record. n keeps IDs and keys distinct across
// fixtures within one test database.
func testUser(n int, username string) *models.User {
	return &models.User{
		ID:                fmt.Sprintf("%064x", n),
		Username:          username,
		PasswordHash:      "irrelevant",
		SigningPublicKey:  fmt.Sprintf("%064x", n+0x1000),
		WrappedSigningKey: []byte("wrapped-signing-key"),
		BoxPublicKey:      fmt.Sprintf("%064x", n+0x2000),
		WrappedBoxKey:     []byte("wrapped-box-key"),
		KeySalt:           []byte("0123456789abcdef"),
		Role:              string(models.RoleUser),
	}
}

func testFolder(n int, ownerID string) *models.Folder {
	return &models.Folder{
		ID:                fmt.Sprintf("%064x", n),
		OwnerID:           ownerID,
		Name:              "photos",
		RootPath:          "/data/photos",
		Newsgroup:         "alt.binaries.misc",
		SigningPublicKey:  fmt.Sprintf("%064x", n+0x3000),
		WrappedSigningKey: []byte("wrapped-folder-key"),
		WrappedContentKey: []byte("wrapped-content-key"),
	}
}

func testPublication(shareID, folderID string, level models.AccessLevel) *models.Publication {
	pub := &models.Publication{
		ShareID:        shareID,
		FolderID:       folderID,
		FolderVersion:  1,
		AccessLevel:    string(level),
		EncryptedIndex: []byte("sealed-index-blob"),
	}
	if level == models.AccessProtected {
		pub.KDFSalt = []byte("fedcba9876543210")
		pub.ScryptN = 16384
		pub.ScryptR = 8
		pub.ScryptP = 1
	}
	return pub
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
		if config.SQLite.Path == "" {
			t.Error("expected a default sqlite path")
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		_, err := New(&Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("postgres config requires host", func(t *testing.T) {
		_, err := New(&Config{Type: DatabaseTypePostgres})
		if err == nil {
			t.Error("expected error for postgres config without host")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		store := createTestStore(t)

		if err := store.Healthcheck(context.Background()); err != nil {
			t.Errorf("healthcheck failed: %v", err)
		}
	})
}

func TestUserOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		if err := store.CreateUser(ctx, testUser(1, "alice")); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
	})

	t.Run("duplicate username fails", func(t *testing.T) {
		err := store.CreateUser(ctx, testUser(2, "alice"))
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("invalid user is rejected", func(t *testing.T) {
		user := testUser(3, "shortid")
		user.ID = "abc"
		if err := store.CreateUser(ctx, user); err == nil {
			t.Error("expected error for short user ID")
		}
	})

	t.Run("get user", func(t *testing.T) {
		user, err := store.GetUser(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected username 'alice', got %q", user.Username)
		}
		if !user.Enabled {
			t.Error("expected new user to be enabled")
		}
	})

	t.Run("get user by ID", func(t *testing.T) {
		user, err := store.GetUserByID(ctx, fmt.Sprintf("%064x", 1))
		if err != nil {
			t.Fatalf("failed to get user by ID: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected 'alice', got %q", user.Username)
		}
	})

	t.Run("get user by public key", func(t *testing.T) {
		user, err := store.GetUserByPublicKey(ctx, fmt.Sprintf("%064x", 1+0x1000))
		if err != nil {
			t.Fatalf("failed to get user by public key: %v", err)
		}
		if user.Username != "alice" {
			t.Errorf("expected 'alice', got %q", user.Username)
		}
	})

	t.Run("get user not found", func(t *testing.T) {
		_, err := store.GetUser(ctx, "nonexistent")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("list users", func(t *testing.T) {
		if err := store.CreateUser(ctx, testUser(4, "bob")); err != nil {
			t.Fatalf("failed to create second user: %v", err)
		}
		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 2 {
			t.Errorf("expected 2 users, got %d", len(users))
		}
	})

	t.Run("update last login", func(t *testing.T) {
		stamp := time.Now().Add(-time.Hour).Truncate(time.Second)
		if err := store.UpdateLastLogin(ctx, "alice", stamp); err != nil {
			t.Fatalf("failed to update last login: %v", err)
		}
		user, _ := store.GetUser(ctx, "alice")
		if user.LastLogin == nil {
			t.Fatal("expected last login to be set")
		}
	})

	t.Run("update last login unknown user", func(t *testing.T) {
		err := store.UpdateLastLogin(ctx, "nonexistent", time.Now())
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("delete user removes sessions", func(t *testing.T) {
		session := &models.Session{
			UserID:    fmt.Sprintf("%064x", 4),
			TokenHash: "bob-token-hash",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		if err := store.DeleteUser(ctx, "bob"); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := store.GetUser(ctx, "bob"); !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound after delete, got %v", err)
		}
		if _, err := store.GetSessionByTokenHash(ctx, "bob-token-hash"); !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected sessions to be deleted with the user, got %v", err)
		}
	})

	t.Run("delete unknown user", func(t *testing.T) {
		err := store.DeleteUser(ctx, "nonexistent")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestValidateCredentials(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	hash, err := models.HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := testUser(1, "carol")
	user.PasswordHash = hash
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		got, err := store.ValidateCredentials(ctx, "carol", "correct horse battery")
		if err != nil {
			t.Fatalf("expected valid credentials, got %v", err)
		}
		if got.Username != "carol" {
			t.Errorf("expected 'carol', got %q", got.Username)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := store.ValidateCredentials(ctx, "carol", "wrong")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown user looks like wrong password", func(t *testing.T) {
		_, err := store.ValidateCredentials(ctx, "nonexistent", "anything")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("password change", func(t *testing.T) {
		newHash, err := models.HashPassword("new passphrase")
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		if err := store.UpdatePassword(ctx, "carol", newHash); err != nil {
			t.Fatalf("failed to update password: %v", err)
		}

		if _, err := store.ValidateCredentials(ctx, "carol", "correct horse battery"); !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected old password to be rejected, got %v", err)
		}
		if _, err := store.ValidateCredentials(ctx, "carol", "new passphrase"); err != nil {
			t.Errorf("expected new password to be accepted, got %v", err)
		}
	})

	t.Run("disabled user", func(t *testing.T) {
		if err := store.SetUserEnabled(ctx, "carol", false); err != nil {
			t.Fatalf("failed to disable user: %v", err)
		}
		_, err := store.ValidateCredentials(ctx, "carol", "new passphrase")
		if !errors.Is(err, models.ErrUserDisabled) {
			t.Errorf("expected ErrUserDisabled, got %v", err)
		}

		if err := store.SetUserEnabled(ctx, "carol", true); err != nil {
			t.Fatalf("failed to re-enable user: %v", err)
		}
		if _, err := store.ValidateCredentials(ctx, "carol", "new passphrase"); err != nil {
			t.Errorf("expected re-enabled user to validate, got %v", err)
		}
	})
}

func TestFolderOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	owner := testUser(1, "alice")
	if err := store.CreateUser(ctx, owner); err != nil {
		t.Fatalf("failed to create owner: %v", err)
	}

	t.Run("create folder", func(t *testing.T) {
		if err := store.CreateFolder(ctx, testFolder(10, owner.ID)); err != nil {
			t.Fatalf("failed to create folder: %v", err)
		}
	})

	t.Run("duplicate folder ID fails", func(t *testing.T) {
		err := store.CreateFolder(ctx, testFolder(10, owner.ID))
		if !errors.Is(err, models.ErrDuplicateFolder) {
			t.Errorf("expected ErrDuplicateFolder, got %v", err)
		}
	})

	t.Run("get folder", func(t *testing.T) {
		folder, err := store.GetFolder(ctx, fmt.Sprintf("%064x", 10))
		if err != nil {
			t.Fatalf("failed to get folder: %v", err)
		}
		if folder.CurrentVersion != 0 {
			t.Errorf("expected version 0 on a fresh folder, got %d", folder.CurrentVersion)
		}
		if folder.IndexedAt != nil {
			t.Error("expected no index timestamp on a fresh folder")
		}
	})

	t.Run("ownership is enforced", func(t *testing.T) {
		if _, err := store.GetOwnedFolder(ctx, fmt.Sprintf("%064x", 10), owner.ID); err != nil {
			t.Errorf("expected owner to pass the ownership check, got %v", err)
		}

		stranger := fmt.Sprintf("%064x", 999)
		_, err := store.GetOwnedFolder(ctx, fmt.Sprintf("%064x", 10), stranger)
		if !errors.Is(err, models.ErrFolderNotOwned) {
			t.Errorf("expected ErrFolderNotOwned, got %v", err)
		}
	})

	t.Run("list folders by owner", func(t *testing.T) {
		if err := store.CreateFolder(ctx, testFolder(11, owner.ID)); err != nil {
			t.Fatalf("failed to create second folder: %v", err)
		}
		folders, err := store.ListFolders(ctx, owner.ID)
		if err != nil {
			t.Fatalf("failed to list folders: %v", err)
		}
		if len(folders) != 2 {
			t.Errorf("expected 2 folders, got %d", len(folders))
		}

		other, err := store.ListFolders(ctx, fmt.Sprintf("%064x", 999))
		if err != nil {
			t.Fatalf("failed to list folders for stranger: %v", err)
		}
		if len(other) != 0 {
			t.Errorf("expected no folders for stranger, got %d", len(other))
		}
	})

	t.Run("advance version", func(t *testing.T) {
		id := fmt.Sprintf("%064x", 10)
		if err := store.AdvanceFolderVersion(ctx, id, 1); err != nil {
			t.Fatalf("failed to advance version: %v", err)
		}

		folder, _ := store.GetFolder(ctx, id)
		if folder.CurrentVersion != 1 {
			t.Errorf("expected version 1, got %d", folder.CurrentVersion)
		}
		if folder.IndexedAt == nil {
			t.Error("expected index timestamp after version advance")
		}
	})

	t.Run("version never rewinds", func(t *testing.T) {
		id := fmt.Sprintf("%064x", 10)
		if err := store.AdvanceFolderVersion(ctx, id, 1); !errors.Is(err, models.ErrStaleVersion) {
			t.Errorf("expected ErrStaleVersion for same version, got %v", err)
		}
		if err := store.AdvanceFolderVersion(ctx, id, 0); !errors.Is(err, models.ErrStaleVersion) {
			t.Errorf("expected ErrStaleVersion for lower version, got %v", err)
		}
	})

	t.Run("advance unknown folder", func(t *testing.T) {
		err := store.AdvanceFolderVersion(ctx, fmt.Sprintf("%064x", 404), 1)
		if !errors.Is(err, models.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound, got %v", err)
		}
	})

	t.Run("delete folder", func(t *testing.T) {
		id := fmt.Sprintf("%064x", 11)
		if err := store.DeleteFolder(ctx, id); err != nil {
			t.Fatalf("failed to delete folder: %v", err)
		}
		if _, err := store.GetFolder(ctx, id); !errors.Is(err, models.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound after delete, got %v", err)
		}
		if err := store.DeleteFolder(ctx, id); !errors.Is(err, models.ErrFolderNotFound) {
			t.Errorf("expected ErrFolderNotFound on double delete, got %v", err)
		}
	})
}

func TestPublicationOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	folderID := fmt.Sprintf("%064x", 10)
	if err := store.CreateFolder(ctx, testFolder(10, fmt.Sprintf("%064x", 1))); err != nil {
		t.Fatalf("failed to create folder: %v", err)
	}

	const (
		publicShare  = "AAAABBBBCCCCDDDDEEEEFFFF"
		privateShare = "GGGGHHHHIIIIJJJJKKKKLLLL"
	)

	t.Run("create public publication", func(t *testing.T) {
		err := store.CreatePublication(ctx, testPublication(publicShare, folderID, models.AccessPublic), nil, nil)
		if err != nil {
			t.Fatalf("failed to create publication: %v", err)
		}
	})

	t.Run("duplicate share ID fails", func(t *testing.T) {
		err := store.CreatePublication(ctx, testPublication(publicShare, folderID, models.AccessPublic), nil, nil)
		if !errors.Is(err, models.ErrDuplicatePublication) {
			t.Errorf("expected ErrDuplicatePublication, got %v", err)
		}
	})

	t.Run("share ID length is enforced", func(t *testing.T) {
		pub := testPublication(publicShare, folderID, models.AccessPublic)
		pub.ShareID = "TOOSHORT"
		if err := store.CreatePublication(ctx, pub, nil, nil); err == nil {
			t.Error("expected error for short share ID")
		}
	})

	t.Run("protected share requires salt", func(t *testing.T) {
		pub := testPublication("MMMMNNNNOOOOPPPPQQQQRRRR", folderID, models.AccessProtected)
		pub.KDFSalt = nil
		if err := store.CreatePublication(ctx, pub, nil, nil); err == nil {
			t.Error("expected error for protected share without salt")
		}
	})

	t.Run("private publication writes grants atomically", func(t *testing.T) {
		authorized := []models.AuthorizedUser{
			{
				SigningPublicKey: fmt.Sprintf("%064x", 0x1001),
				BoxPublicKey:     fmt.Sprintf("%064x", 0x2001),
				WrappedShareKey:  []byte("wrapped-for-alice"),
			},
			{
				SigningPublicKey: fmt.Sprintf("%064x", 0x1004),
				BoxPublicKey:     fmt.Sprintf("%064x", 0x2004),
				WrappedShareKey:  []byte("wrapped-for-bob"),
			},
		}
		commitments := []models.Commitment{
			{Digest: fmt.Sprintf("%064x", 0x5001)},
			{Digest: fmt.Sprintf("%064x", 0x5004)},
		}

		err := store.CreatePublication(ctx, testPublication(privateShare, folderID, models.AccessPrivate), authorized, commitments)
		if err != nil {
			t.Fatalf("failed to create private publication: %v", err)
		}

		pub, err := store.GetPublication(ctx, privateShare)
		if err != nil {
			t.Fatalf("failed to get publication: %v", err)
		}
		if len(pub.AuthorizedUsers) != 2 {
			t.Errorf("expected 2 authorized users, got %d", len(pub.AuthorizedUsers))
		}
		if len(pub.Commitments) != 2 {
			t.Errorf("expected 2 commitments, got %d", len(pub.Commitments))
		}
		for _, au := range pub.AuthorizedUsers {
			if au.ShareID != privateShare {
				t.Errorf("expected grant bound to %s, got %s", privateShare, au.ShareID)
			}
		}
	})

	t.Run("unknown share ID", func(t *testing.T) {
		_, err := store.GetPublication(ctx, "XXXXXXXXXXXXXXXXXXXXXXXX")
		if !errors.Is(err, models.ErrUnknownShareID) {
			t.Errorf("expected ErrUnknownShareID, got %v", err)
		}
	})

	t.Run("list publications by folder", func(t *testing.T) {
		pubs, err := store.ListPublications(ctx, folderID)
		if err != nil {
			t.Fatalf("failed to list publications: %v", err)
		}
		if len(pubs) != 2 {
			t.Errorf("expected 2 publications, got %d", len(pubs))
		}
	})

	t.Run("revoke sets expiry", func(t *testing.T) {
		now := time.Now()
		if err := store.RevokePublication(ctx, publicShare, now); err != nil {
			t.Fatalf("failed to revoke publication: %v", err)
		}

		pub, err := store.GetPublication(ctx, publicShare)
		if err != nil {
			t.Fatalf("failed to get revoked publication: %v", err)
		}
		if !pub.Expired(now.Add(time.Second)) {
			t.Error("expected publication to report expired after revocation")
		}
		if pub.Expired(now.Add(-time.Hour)) {
			t.Error("expected publication to have been live before revocation")
		}
	})

	t.Run("revoke unknown share", func(t *testing.T) {
		err := store.RevokePublication(ctx, "XXXXXXXXXXXXXXXXXXXXXXXX", time.Now())
		if !errors.Is(err, models.ErrUnknownShareID) {
			t.Errorf("expected ErrUnknownShareID, got %v", err)
		}
	})

	t.Run("add authorized user", func(t *testing.T) {
		grant := models.AuthorizedUser{
			SigningPublicKey: fmt.Sprintf("%064x", 0x1007),
			BoxPublicKey:     fmt.Sprintf("%064x", 0x2007),
			WrappedShareKey:  []byte("wrapped-for-carol"),
		}
		commitment := models.Commitment{Digest: fmt.Sprintf("%064x", 0x5007)}

		if err := store.AddAuthorizedUser(ctx, privateShare, grant, commitment); err != nil {
			t.Fatalf("failed to add authorized user: %v", err)
		}

		pub, _ := store.GetPublication(ctx, privateShare)
		if len(pub.AuthorizedUsers) != 3 {
			t.Errorf("expected 3 authorized users, got %d", len(pub.AuthorizedUsers))
		}
		if len(pub.Commitments) != 3 {
			t.Errorf("expected 3 commitments, got %d", len(pub.Commitments))
		}
	})

	t.Run("add authorized user to unknown share", func(t *testing.T) {
		err := store.AddAuthorizedUser(ctx, "XXXXXXXXXXXXXXXXXXXXXXXX", models.AuthorizedUser{
			SigningPublicKey: fmt.Sprintf("%064x", 0x1008),
			BoxPublicKey:     fmt.Sprintf("%064x", 0x2008),
			WrappedShareKey:  []byte("wrapped"),
		}, models.Commitment{Digest: fmt.Sprintf("%064x", 0x5008)})
		if !errors.Is(err, models.ErrUnknownShareID) {
			t.Errorf("expected ErrUnknownShareID, got %v", err)
		}
	})
}

func TestSessionOperations(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	userID := fmt.Sprintf("%064x", 1)
	if err := store.CreateUser(ctx, testUser(1, "alice")); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	t.Run("create generates an ID", func(t *testing.T) {
		session := &models.Session{
			UserID:    userID,
			TokenHash: "hash-one",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := store.CreateSession(ctx, session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if len(session.ID) != 36 {
			t.Errorf("expected a UUID session ID, got %q", session.ID)
		}
	})

	t.Run("lookup by token hash", func(t *testing.T) {
		session, err := store.GetSessionByTokenHash(ctx, "hash-one")
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if session.UserID != userID {
			t.Errorf("expected user %s, got %s", userID, session.UserID)
		}
		if !session.Active(time.Now()) {
			t.Error("expected fresh session to be active")
		}
	})

	t.Run("unknown token hash", func(t *testing.T) {
		_, err := store.GetSessionByTokenHash(ctx, "no-such-hash")
		if !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("revoke session", func(t *testing.T) {
		session, _ := store.GetSessionByTokenHash(ctx, "hash-one")
		if err := store.RevokeSession(ctx, session.ID, time.Now()); err != nil {
			t.Fatalf("failed to revoke session: %v", err)
		}

		revoked, _ := store.GetSessionByTokenHash(ctx, "hash-one")
		if revoked.Active(time.Now()) {
			t.Error("expected revoked session to be inactive")
		}
	})

	t.Run("revoke unknown session", func(t *testing.T) {
		err := store.RevokeSession(ctx, "00000000-0000-0000-0000-000000000000", time.Now())
		if !errors.Is(err, models.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("revoke all user sessions", func(t *testing.T) {
		for _, hash := range []string{"hash-two", "hash-three"} {
			session := &models.Session{
				UserID:    userID,
				TokenHash: hash,
				ExpiresAt: time.Now().Add(time.Hour),
			}
			if err := store.CreateSession(ctx, session); err != nil {
				t.Fatalf("failed to create session: %v", err)
			}
		}

		if err := store.RevokeUserSessions(ctx, userID, time.Now()); err != nil {
			t.Fatalf("failed to revoke user sessions: %v", err)
		}

		sessions, err := store.ListSessions(ctx, userID)
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		for _, s := range sessions {
			if s.Active(time.Now()) {
				t.Errorf("expected session %s to be revoked", s.ID)
			}
		}
	})

	t.Run("delete expired and revoked sessions", func(t *testing.T) {
		live := &models.Session{
			UserID:    userID,
			TokenHash: "hash-live",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		if err := store.CreateSession(ctx, live); err != nil {
			t.Fatalf("failed to create live session: %v", err)
		}
		expired := &models.Session{
			UserID:    userID,
			TokenHash: "hash-expired",
			ExpiresAt: time.Now().Add(-time.Hour),
		}
		if err := store.CreateSession(ctx, expired); err != nil {
			t.Fatalf("failed to create expired session: %v", err)
		}

		// Everything so far except the live session is revoked or expired.
		deleted, err := store.DeleteExpiredSessions(ctx, time.Now())
		if err != nil {
			t.Fatalf("failed to delete expired sessions: %v", err)
		}
		if deleted != 4 {
			t.Errorf("expected 4 sessions deleted, got %d", deleted)
		}

		sessions, _ := store.ListSessions(ctx, userID)
		if len(sessions) != 1 {
			t.Fatalf("expected 1 surviving session, got %d", len(sessions))
		}
		if sessions[0].TokenHash != "hash-live" {
			t.Errorf("expected the live session to survive, got %q", sessions[0].TokenHash)
		}
	})
}
