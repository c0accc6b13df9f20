// Package publish issues and resolves shares. A publication freezes one
// folder version into a self-contained encrypted index, keyed by an
// unguessable share ID, and persists it alongside the access rows the
// level calls for. Resolution hands back the stored record; unlocking
// it is the access package's business, so the manager never holds a
// consumer's credentials.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
	"github.com/nntpvault/nntpvault/pkg/store"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

var (
	// ErrVersionIncomplete means the folder version has files without a
	// retrievable posted copy and cannot be shared yet.
	ErrVersionIncomplete = errors.New("folder version is not fully posted")

	// ErrNotPrivate means an authorization change was requested on a
	// share whose level has no user list.
	ErrNotPrivate = errors.New("publication is not a private share")
)

// Options control how a folder version is shared.
type Options struct {
	// Level selects the access model of the share.
	Level models.AccessLevel

	// Password protects the share when Level is AccessProtected.
	Password string

	// AuthorizedUserIDs lists the users granted access when Level is
	// AccessPrivate. The folder owner is always included.
	AuthorizedUserIDs []string

	// ExpiresAt bounds the share's lifetime. Nil never expires.
	ExpiresAt *time.Time
}

func (o *Options) validate() error {
	if !o.Level.IsValid() {
		return fmt.Errorf("invalid access level %q", o.Level)
	}
	if o.Level == models.AccessProtected && o.Password == "" {
		return access.ErrPasswordRequired
	}
	if o.Level != models.AccessPrivate && len(o.AuthorizedUserIDs) > 0 {
		return fmt.Errorf("authorized users are only valid for private shares")
	}
	return nil
}

// Manager publishes folder versions and resolves share IDs.
type Manager struct {
	store store.Store
	idx   index.Store
}

// NewManager builds a publication manager on the given stores.
func NewManager(st store.Store, idx index.Store) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if idx == nil {
		return nil, fmt.Errorf("index store is required")
	}
	return &Manager{store: st, idx: idx}, nil
}

// Publish freezes the given folder version into a new share and returns
// its share ID. The version must be fully posted: every file either
// carries a retrievable copy of each slice or belongs to a pack group
// that does, otherwise ErrVersionIncomplete.
func (m *Manager) Publish(ctx context.Context, keys *identity.FolderKeys, version uint32, opts Options) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}

	ix, err := m.Snapshot(ctx, keys, version)
	if err != nil {
		return "", err
	}
	plain, err := ix.Encode()
	if err != nil {
		return "", err
	}

	// The share ID is minted before key derivation because public share
	// keys are derived from it.
	shareID, err := obfuscate.MintShareID()
	if err != nil {
		return "", err
	}

	pub := &models.Publication{
		ShareID:       shareID,
		FolderID:      keys.Folder.ID,
		FolderVersion: version,
		AccessLevel:   string(opts.Level),
		ExpiresAt:     opts.ExpiresAt,
	}

	var (
		key         []byte
		authorized  []models.AuthorizedUser
		commitments []models.Commitment
	)
	switch opts.Level {
	case models.AccessPublic:
		key = access.PublicKey(shareID, keys.Folder.ID)

	case models.AccessProtected:
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return "", err
		}
		params := crypto.DefaultScryptParams()
		key, err = access.ProtectedKey(opts.Password, salt, params)
		if err != nil {
			return "", err
		}
		pub.KDFSalt = salt
		pub.ScryptN = params.N
		pub.ScryptR = params.R
		pub.ScryptP = params.P

	case models.AccessPrivate:
		key, err = crypto.GenerateKey()
		if err != nil {
			return "", err
		}
		authorized, commitments, err = m.grants(ctx, key, shareID, keys.Folder.OwnerID, opts.AuthorizedUserIDs)
		if err != nil {
			return "", err
		}
	}

	pub.EncryptedIndex, err = crypto.Encrypt(plain, key)
	if err != nil {
		return "", err
	}

	if err := m.store.CreatePublication(ctx, pub, authorized, commitments); err != nil {
		return "", err
	}

	logger.Info("publication issued",
		logger.ShareID(shareID),
		logger.FolderID(keys.Folder.ID),
		logger.KeyVersion, version,
		"level", string(opts.Level),
	)
	return shareID, nil
}

// grants wraps the share key for the owner and every authorized user.
func (m *Manager) grants(ctx context.Context, key []byte, shareID, ownerID string, userIDs []string) ([]models.AuthorizedUser, []models.Commitment, error) {
	ids := append([]string{ownerID}, userIDs...)
	seen := make(map[string]bool, len(ids))

	var authorized []models.AuthorizedUser
	var commitments []models.Commitment
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		user, err := m.store.GetUserByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("authorized user %s: %w", id, err)
		}
		row, com, err := access.Grant(key, shareID, user)
		if err != nil {
			return nil, nil, fmt.Errorf("authorized user %s: %w", id, err)
		}
		authorized = append(authorized, row)
		commitments = append(commitments, com)
	}
	return authorized, commitments, nil
}

// Snapshot assembles the plaintext index of one folder version. It
// fails with ErrVersionIncomplete when any file lacks a retrievable
// posted copy, so a share never points at an unreconstructable version.
func (m *Manager) Snapshot(ctx context.Context, keys *identity.FolderKeys, version uint32) (*Index, error) {
	ix := &Index{
		Format:     IndexFormat,
		FolderID:   keys.Folder.ID,
		Version:    version,
		Newsgroup:  keys.Folder.Newsgroup,
		ContentKey: keys.ContentKey,
	}

	var files []*index.File
	err := m.idx.ForEachFile(ctx, keys.Folder.ID, version, func(f *index.File) error {
		rec := *f
		files = append(files, &rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var packOrder []string
	seenPack := make(map[string]bool)

	for _, f := range files {
		wf := IndexFile{
			ID:          f.ID,
			Version:     f.Version,
			Path:        f.Path,
			Size:        f.Size,
			SHA256:      f.SHA256,
			MimeType:    f.MimeType,
			ModTimeUnix: f.ModTime.Unix(),
			PackGroupID: f.PackGroupID,
		}
		switch {
		case f.Size == 0:
			// Empty files reconstruct from the record alone.
		case f.PackGroupID != "":
			if !seenPack[f.PackGroupID] {
				seenPack[f.PackGroupID] = true
				packOrder = append(packOrder, f.PackGroupID)
			}
		default:
			copies, err := m.fileCopies(ctx, f)
			if err != nil {
				return nil, err
			}
			wf.Segments = copies
		}
		ix.Files = append(ix.Files, wf)
	}

	for _, gid := range packOrder {
		wp, err := m.packCopies(ctx, keys.Folder.ID, gid)
		if err != nil {
			return nil, err
		}
		ix.Packs = append(ix.Packs, *wp)
	}
	return ix, nil
}

// fileCopies collects the retrievable copies of a sliced file and
// verifies they still cover every byte.
func (m *Manager) fileCopies(ctx context.Context, f *index.File) ([]IndexSegment, error) {
	var out []IndexSegment
	covered := make(map[uint32]uint64)

	err := m.idx.ForEachParentSegment(ctx, f.FolderID, f.Version, f.ID, func(s *index.Segment) error {
		if !fetchable(s) {
			return nil
		}
		out = append(out, wireSegment(s))
		covered[s.Index] = uint64(s.Length)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var total uint64
	for i := uint32(0); ; i++ {
		n, ok := covered[i]
		if !ok {
			break
		}
		total += n
	}
	if total != f.Size {
		return nil, fmt.Errorf("%s: posted copies cover %d of %d bytes: %w", f.Path, total, f.Size, ErrVersionIncomplete)
	}
	return out, nil
}

// packCopies collects one pack group's member table and retrievable
// copies.
func (m *Manager) packCopies(ctx context.Context, folderID, groupID string) (*IndexPack, error) {
	g, err := m.idx.GetPackGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	wp := &IndexPack{
		ID:        g.ID,
		Version:   g.Version,
		TotalSize: g.TotalSize,
	}
	for _, mem := range g.Members {
		wp.Members = append(wp.Members, IndexMember{
			FileID: mem.FileID,
			Offset: mem.Offset,
			Length: mem.Length,
		})
	}

	err = m.idx.ForEachParentSegment(ctx, folderID, g.Version, g.ID, func(s *index.Segment) error {
		if fetchable(s) {
			wp.Segments = append(wp.Segments, wireSegment(s))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(wp.Segments) == 0 {
		return nil, fmt.Errorf("pack group %s has no posted copy: %w", groupID, ErrVersionIncomplete)
	}
	return wp, nil
}

// fetchable reports whether a copy is committed to a Message-ID a
// consumer could fetch.
func fetchable(s *index.Segment) bool {
	return s.MessageID != "" && (s.State == index.SegmentPosted || s.State == index.SegmentVerified)
}

// Resolve returns the stored publication for a share ID. Expired or
// revoked shares fail with models.ErrPublicationExpired; unknown or
// malformed IDs fail with models.ErrUnknownShareID. The caller decrypts
// the index with keys of its own deriving.
func (m *Manager) Resolve(ctx context.Context, shareID string) (*models.Publication, error) {
	if !obfuscate.ValidShareID(shareID) {
		return nil, models.ErrUnknownShareID
	}
	pub, err := m.store.GetPublication(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if pub.Expired(time.Now()) {
		return nil, models.ErrPublicationExpired
	}
	return pub, nil
}

// Revoke expires a share immediately. Already-expired shares revoke
// without error; the articles behind the share stay up, only the
// resolution path dies.
func (m *Manager) Revoke(ctx context.Context, shareID string) error {
	if !obfuscate.ValidShareID(shareID) {
		return models.ErrUnknownShareID
	}
	if err := m.store.RevokePublication(ctx, shareID, time.Now().UTC()); err != nil {
		return err
	}
	logger.Info("publication revoked", logger.ShareID(shareID))
	return nil
}

// Authorize grants one more user access to an existing private share.
// The caller proves membership by unlocking the share key with its own
// credentials; the manager re-wraps that key for the new user.
func (m *Manager) Authorize(ctx context.Context, shareID string, creds access.Credentials, userID string) error {
	pub, err := m.Resolve(ctx, shareID)
	if err != nil {
		return err
	}
	if models.AccessLevel(pub.AccessLevel) != models.AccessPrivate {
		return ErrNotPrivate
	}

	key, err := access.Unlock(pub, creds)
	if err != nil {
		return err
	}
	user, err := m.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	row, com, err := access.Grant(key, shareID, user)
	if err != nil {
		return err
	}
	if err := m.store.AddAuthorizedUser(ctx, shareID, row, com); err != nil {
		return err
	}

	logger.Info("share access granted", logger.ShareID(shareID), "user_id", userID)
	return nil
}
