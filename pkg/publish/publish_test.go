package publish

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/index/badger"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
	"github.com/nntpvault/nntpvault/pkg/scanner"
	"github.com/nntpvault/nntpvault/pkg/segment"
	"github.com/nntpvault/nntpvault/pkg/spool"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

const (
	testNewsgroup   = "alt.binaries.test"
	testSegmentSize = 1024
)

var testModTime = time.Date(2026, 5, 2, 11, 30, 0, 0, time.UTC)

// testFiles is a tree exercising every record shape: a sliced file, two
// packed small files and an empty one.
func testFiles() map[string][]byte {
	big := make([]byte, 2560)
	for i := range big {
		big[i] = byte(i * 7)
	}
	return map[string][]byte{
		"big.bin":           big,
		"photos/summer.jpg": make([]byte, 300),
		"photos/winter.jpg": make([]byte, 200),
		"notes/empty.txt":   {},
	}
}

// harness wires an in-memory relational store and index around a
// manager. Folders are seeded through the real segmenting pipeline so
// the index carries exactly what an upload leaves behind.
type harness struct {
	db    store.Store
	idx   index.Store
	stage spool.Spool
	mgr   *Manager
	owner *identity.UserKeys
	keys  *identity.FolderKeys
	batch *index.Batch
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	stage := spool.NewMemory()
	t.Cleanup(func() { _ = stage.Close() })

	mgr, err := NewManager(db, idx)
	require.NoError(t, err)

	return &harness{db: db, idx: idx, stage: stage, mgr: mgr}
}

// newUser mints a keyed user and registers it with the store.
func (h *harness) newUser(t *testing.T, name string) *identity.UserKeys {
	t.Helper()

	uk, err := identity.NewUserKeys(name, name+" secret", models.RoleUser)
	require.NoError(t, err)
	require.NoError(t, h.db.CreateUser(context.Background(), uk.User))
	return uk
}

// ingest runs the segmenting pipeline over the given files and commits
// the batch at version 1. Copies are staged but not yet posted.
func (h *harness) ingest(t *testing.T, files map[string][]byte) {
	t.Helper()
	ctx := context.Background()

	srcRoot := t.TempDir()
	h.owner = h.newUser(t, "alice")
	keys, err := identity.NewFolderKeys(h.owner, "photos", srcRoot, testNewsgroup)
	require.NoError(t, err)
	h.keys = keys

	proc, err := segment.NewProcessor(keys, h.stage, srcRoot, 1, segment.Config{
		SegmentSize: testSegmentSize,
		Redundancy:  1,
	})
	require.NoError(t, err)

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		full := filepath.Join(srcRoot, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, files[rel], 0o644))

		require.NoError(t, proc.AddFile(ctx, &scanner.ScannedFile{
			RelPath: rel,
			Size:    uint64(len(files[rel])),
			SHA256:  crypto.SHA256Hex(files[rel]),
			ModTime: testModTime,
		}))
	}

	batch, err := proc.Finish(ctx)
	require.NoError(t, err)
	require.NoError(t, h.idx.AddBatch(ctx, batch))
	h.batch = batch
}

// post walks one copy through the posting lifecycle under a fresh
// Message-ID. Publication only reads the index; no wire transfer runs.
func (h *harness) post(t *testing.T, seg *index.Segment) {
	t.Helper()
	ctx := context.Background()

	mid, err := obfuscate.MintMessageID()
	require.NoError(t, err)
	require.NoError(t, h.idx.MarkQueued(ctx, seg.ID))
	require.NoError(t, h.idx.MarkUploading(ctx, seg.ID, mid))
	require.NoError(t, h.idx.MarkPosted(ctx, seg.ID, time.Now().UTC()))
}

// seed ingests the files and posts every copy.
func (h *harness) seed(t *testing.T) {
	t.Helper()
	h.ingest(t, testFiles())
	for _, seg := range h.batch.Segments {
		h.post(t, seg)
	}
}

func (h *harness) ownerCreds() access.Credentials {
	return access.Credentials{User: h.owner}
}

// openIndex resolves the share and decrypts its index with the given
// credentials, exactly as a consumer would.
func (h *harness) openIndex(t *testing.T, shareID string, creds access.Credentials) *Index {
	t.Helper()

	pub, err := h.mgr.Resolve(context.Background(), shareID)
	require.NoError(t, err)
	plain, err := access.Open(pub, creds)
	require.NoError(t, err)
	ix, err := DecodeIndex(plain)
	require.NoError(t, err)
	return ix
}

func TestNewManager_RequiresStores(t *testing.T) {
	h := newHarness(t)

	_, err := NewManager(nil, h.idx)
	assert.Error(t, err)
	_, err = NewManager(h.db, nil)
	assert.Error(t, err)
}

func TestPublish_ValidatesOptions(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	_, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: "secret"})
	assert.Error(t, err)

	_, err = h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessProtected})
	assert.ErrorIs(t, err, access.ErrPasswordRequired)

	_, err = h.mgr.Publish(ctx, h.keys, 1, Options{
		Level:             models.AccessPublic,
		AuthorizedUserIDs: []string{h.owner.User.ID},
	})
	assert.Error(t, err)
}

func TestPublish_PublicShare(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessPublic})
	require.NoError(t, err)
	assert.True(t, obfuscate.ValidShareID(shareID))

	pub, err := h.mgr.Resolve(ctx, shareID)
	require.NoError(t, err)
	assert.Equal(t, h.keys.Folder.ID, pub.FolderID)
	assert.Equal(t, uint32(1), pub.FolderVersion)
	assert.Equal(t, string(models.AccessPublic), pub.AccessLevel)
	assert.Empty(t, pub.KDFSalt)
	assert.Empty(t, pub.AuthorizedUsers)

	ix := h.openIndex(t, shareID, access.Credentials{})
	assert.Equal(t, uint32(IndexFormat), ix.Format)
	assert.Equal(t, h.keys.Folder.ID, ix.FolderID)
	assert.Equal(t, uint32(1), ix.Version)
	assert.Equal(t, testNewsgroup, ix.Newsgroup)
	assert.Equal(t, h.keys.ContentKey, ix.ContentKey)

	paths := make([]string, len(ix.Files))
	for i, f := range ix.Files {
		paths[i] = f.Path
	}
	assert.Equal(t, []string{"big.bin", "notes/empty.txt", "photos/summer.jpg", "photos/winter.jpg"}, paths)

	byPath := make(map[string]IndexFile, len(ix.Files))
	for _, f := range ix.Files {
		byPath[f.Path] = f
	}
	assert.Len(t, byPath["big.bin"].Segments, 3)
	for _, s := range byPath["big.bin"].Segments {
		assert.NotEmpty(t, s.MessageID)
		assert.NotEmpty(t, s.UsenetSubject)
	}
	assert.Empty(t, byPath["notes/empty.txt"].Segments)
	assert.Empty(t, byPath["notes/empty.txt"].PackGroupID)

	require.Len(t, ix.Packs, 1)
	pack := ix.Packs[0]
	assert.Equal(t, byPath["photos/summer.jpg"].PackGroupID, pack.ID)
	assert.Equal(t, byPath["photos/winter.jpg"].PackGroupID, pack.ID)
	assert.Empty(t, byPath["photos/summer.jpg"].Segments)
	assert.Equal(t, uint32(500), pack.TotalSize)
	assert.Len(t, pack.Members, 2)
	require.NotEmpty(t, pack.Segments)
	assert.NotEmpty(t, pack.Segments[0].MessageID)
}

func TestPublish_ProtectedShare(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{
		Level:    models.AccessProtected,
		Password: "hunter2",
	})
	require.NoError(t, err)

	pub, err := h.mgr.Resolve(ctx, shareID)
	require.NoError(t, err)
	assert.Len(t, pub.KDFSalt, crypto.SaltSize)
	assert.Equal(t, crypto.DefaultScryptN, pub.ScryptN)

	ix := h.openIndex(t, shareID, access.Credentials{Password: "hunter2"})
	assert.Equal(t, h.keys.ContentKey, ix.ContentKey)

	_, err = access.Open(pub, access.Credentials{Password: "wrong"})
	assert.ErrorIs(t, err, access.ErrAuthFailure)
}

func TestPublish_PrivateShare(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	bob := h.newUser(t, "bob")

	// Duplicates and the implicit owner collapse to one grant each.
	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{
		Level:             models.AccessPrivate,
		AuthorizedUserIDs: []string{bob.User.ID, bob.User.ID, h.owner.User.ID},
	})
	require.NoError(t, err)

	pub, err := h.mgr.Resolve(ctx, shareID)
	require.NoError(t, err)
	assert.Len(t, pub.AuthorizedUsers, 2)
	assert.Len(t, pub.Commitments, 2)
	assert.True(t, access.HoldsCommitment(pub, h.owner.User.ID))
	assert.True(t, access.HoldsCommitment(pub, bob.User.ID))

	ownerIx := h.openIndex(t, shareID, h.ownerCreds())
	bobIx := h.openIndex(t, shareID, access.Credentials{User: bob})
	assert.Equal(t, ownerIx.ContentKey, bobIx.ContentKey)

	mallory, err := identity.NewUserKeys("mallory", "mallory secret", models.RoleUser)
	require.NoError(t, err)
	_, err = access.Open(pub, access.Credentials{User: mallory})
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
	assert.False(t, access.HoldsCommitment(pub, mallory.User.ID))
}

func TestPublish_UnknownAuthorizedUser(t *testing.T) {
	h := newHarness(t)
	h.seed(t)

	ghost := "00000000000000000000000000000000ffffffffffffffffffffffffffffffff"
	_, err := h.mgr.Publish(context.Background(), h.keys, 1, Options{
		Level:             models.AccessPrivate,
		AuthorizedUserIDs: []string{ghost},
	})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestPublish_IncompleteVersionFails(t *testing.T) {
	t.Run("nothing posted", func(t *testing.T) {
		h := newHarness(t)
		h.ingest(t, testFiles())

		_, err := h.mgr.Publish(context.Background(), h.keys, 1, Options{Level: models.AccessPublic})
		assert.ErrorIs(t, err, ErrVersionIncomplete)

		pubs, err := h.db.ListPublications(context.Background(), h.keys.Folder.ID)
		require.NoError(t, err)
		assert.Empty(t, pubs)
	})

	t.Run("one slice missing", func(t *testing.T) {
		h := newHarness(t)
		h.ingest(t, testFiles())
		for _, seg := range h.batch.Segments {
			if seg.ParentKind == index.ParentFile && seg.Index == 1 {
				continue
			}
			h.post(t, seg)
		}

		_, err := h.mgr.Publish(context.Background(), h.keys, 1, Options{Level: models.AccessPublic})
		assert.ErrorIs(t, err, ErrVersionIncomplete)
	})

	t.Run("pack group unposted", func(t *testing.T) {
		h := newHarness(t)
		h.ingest(t, testFiles())
		for _, seg := range h.batch.Segments {
			if seg.ParentKind == index.ParentPack {
				continue
			}
			h.post(t, seg)
		}

		_, err := h.mgr.Publish(context.Background(), h.keys, 1, Options{Level: models.AccessPublic})
		assert.ErrorIs(t, err, ErrVersionIncomplete)
	})
}

func TestResolve_UnknownShare(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.mgr.Resolve(ctx, "not-a-share-id")
	assert.ErrorIs(t, err, models.ErrUnknownShareID)

	absent, err := obfuscate.MintShareID()
	require.NoError(t, err)
	_, err = h.mgr.Resolve(ctx, absent)
	assert.ErrorIs(t, err, models.ErrUnknownShareID)
}

func TestPublish_ExpiryHonored(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{
		Level:     models.AccessPublic,
		ExpiresAt: &past,
	})
	require.NoError(t, err)

	_, err = h.mgr.Resolve(ctx, shareID)
	assert.ErrorIs(t, err, models.ErrPublicationExpired)

	future := time.Now().Add(time.Hour)
	shareID, err = h.mgr.Publish(ctx, h.keys, 1, Options{
		Level:     models.AccessPublic,
		ExpiresAt: &future,
	})
	require.NoError(t, err)

	_, err = h.mgr.Resolve(ctx, shareID)
	assert.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessPublic})
	require.NoError(t, err)

	require.NoError(t, h.mgr.Revoke(ctx, shareID))
	_, err = h.mgr.Resolve(ctx, shareID)
	assert.ErrorIs(t, err, models.ErrPublicationExpired)

	assert.ErrorIs(t, h.mgr.Revoke(ctx, "bogus"), models.ErrUnknownShareID)

	absent, err := obfuscate.MintShareID()
	require.NoError(t, err)
	assert.ErrorIs(t, h.mgr.Revoke(ctx, absent), models.ErrUnknownShareID)
}

func TestAuthorize_ExtendsPrivateShare(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessPrivate})
	require.NoError(t, err)

	bob := h.newUser(t, "bob")

	// Bob cannot grant himself in.
	err = h.mgr.Authorize(ctx, shareID, access.Credentials{User: bob}, bob.User.ID)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	require.NoError(t, h.mgr.Authorize(ctx, shareID, h.ownerCreds(), bob.User.ID))

	pub, err := h.mgr.Resolve(ctx, shareID)
	require.NoError(t, err)
	assert.Len(t, pub.AuthorizedUsers, 2)
	assert.True(t, access.HoldsCommitment(pub, bob.User.ID))

	ix := h.openIndex(t, shareID, access.Credentials{User: bob})
	assert.Equal(t, h.keys.ContentKey, ix.ContentKey)
}

func TestAuthorize_RejectsNonPrivateShare(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessPublic})
	require.NoError(t, err)

	bob := h.newUser(t, "bob")
	err = h.mgr.Authorize(ctx, shareID, access.Credentials{}, bob.User.ID)
	assert.ErrorIs(t, err, ErrNotPrivate)
}

func TestDecodeIndex_RejectsUnknownFormat(t *testing.T) {
	ix := &Index{Format: IndexFormat + 1, FolderID: "x"}
	data, err := ix.Encode()
	require.NoError(t, err)

	_, err = DecodeIndex(data)
	assert.ErrorContains(t, err, "format")

	_, err = DecodeIndex([]byte{0x01})
	assert.Error(t, err)
}

// TestIndexBatch_ImportsOnFreshPeer walks the consumer side: decode the
// shared index on a peer with an empty local index, import it and check
// the folder version is reconstructable from local records alone.
func TestIndexBatch_ImportsOnFreshPeer(t *testing.T) {
	h := newHarness(t)
	h.seed(t)
	ctx := context.Background()

	shareID, err := h.mgr.Publish(ctx, h.keys, 1, Options{Level: models.AccessPublic})
	require.NoError(t, err)
	ix := h.openIndex(t, shareID, access.Credentials{})

	peer, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = peer.Close() })

	require.NoError(t, peer.AddBatch(ctx, ix.Batch()))

	var paths []string
	byPath := make(map[string]*index.File)
	err = peer.ForEachFile(ctx, ix.FolderID, ix.Version, func(f *index.File) error {
		cp := *f
		paths = append(paths, f.Path)
		byPath[f.Path] = &cp
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"big.bin", "notes/empty.txt", "photos/summer.jpg", "photos/winter.jpg"}, paths)

	// Slices land posted with their Message-IDs intact.
	big := byPath["big.bin"]
	var copies []*index.Segment
	err = peer.ForEachParentSegment(ctx, ix.FolderID, big.Version, big.ID, func(s *index.Segment) error {
		cp := *s
		copies = append(copies, &cp)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, copies, 3)
	for _, s := range copies {
		assert.Equal(t, index.SegmentPosted, s.State)
		assert.NotEmpty(t, s.MessageID)
	}

	group, err := peer.GetPackGroup(ctx, byPath["photos/summer.jpg"].PackGroupID)
	require.NoError(t, err)
	assert.Len(t, group.Members, 2)

	// Importing on a peer that already holds the records collides
	// instead of duplicating.
	err = h.idx.AddBatch(ctx, ix.Batch())
	assert.True(t, index.IsAlreadyExists(err))
}
