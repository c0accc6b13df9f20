package coordinator

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/crypto"
	"github.com/nntpvault/nntpvault/pkg/download"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/publish"
	"github.com/nntpvault/nntpvault/pkg/store/models"
	"github.com/nntpvault/nntpvault/pkg/upload"
)

// UploadOptions tunes one upload run.
type UploadOptions struct {
	// OnProgress, when set, receives settled copies against the run
	// total.
	OnProgress func(done, total int64)
}

// UploadFolder posts every runnable staged copy of the folder's current
// version. The run is resumable: copies already posted are skipped,
// copies stranded mid-post by a crash are verified upstream before any
// repost.
func (c *Coordinator) UploadFolder(ctx context.Context, owner *identity.UserKeys, folderID string, opts UploadOptions) (*upload.Result, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	folder, err := c.store.GetOwnedFolder(ctx, folderID, uid)
	if err != nil {
		return nil, err
	}
	if folder.CurrentVersion == 0 {
		return nil, ErrNeverIndexed
	}
	return c.uploadFolder(ctx, folder, opts)
}

func (c *Coordinator) uploadFolder(ctx context.Context, folder *models.Folder, opts UploadOptions) (*upload.Result, error) {
	eng, err := upload.New(c.idx, c.stage, c.post, c.cfg.Upload)
	if err != nil {
		return nil, err
	}
	return eng.Run(ctx, upload.Job{
		FolderID:   folder.ID,
		Version:    folder.CurrentVersion,
		Newsgroup:  folder.Newsgroup,
		OnProgress: opts.OnProgress,
	})
}

// DownloadRequest names one share to materialize.
type DownloadRequest struct {
	ShareID    string
	TargetRoot string

	// Credentials unlock the share: a password for protected shares, an
	// unlocked user for private ones. Public shares need neither.
	Credentials access.Credentials

	// OnProgress receives settled slices against the plan total.
	OnProgress func(done, total int64)
}

// DownloadShare resolves the share, unlocks its index, imports whatever
// records this peer is missing and reconstructs the published version
// under the target root. Credential failures surface before any article
// is fetched.
func (c *Coordinator) DownloadShare(ctx context.Context, req DownloadRequest) (*download.Manifest, error) {
	ix, err := c.openShare(ctx, req.ShareID, req.Credentials)
	if err != nil {
		return nil, err
	}
	return c.downloadIndex(ctx, ix, req)
}

// openShare resolves a share and decrypts its publication index.
func (c *Coordinator) openShare(ctx context.Context, shareID string, creds access.Credentials) (*publish.Index, error) {
	pub, err := c.pub.Resolve(ctx, shareID)
	if err != nil {
		return nil, err
	}
	plain, err := c.openIndex(pub, creds)
	if err != nil {
		return nil, err
	}
	return publish.DecodeIndex(plain)
}

// openIndex returns the decrypted index blob, trying the cached share
// key before putting the credentials through the access gate. A consumer
// pays the unlock cost once per share per process.
func (c *Coordinator) openIndex(pub *models.Publication, creds access.Credentials) ([]byte, error) {
	if key, ok := c.keys.ShareKey(pub.ShareID); ok {
		if plain, err := crypto.Decrypt(pub.EncryptedIndex, key); err == nil {
			return plain, nil
		}
		// The blob changed under the cached key. Go back through the
		// gate.
		c.keys.InvalidateShare(pub.ShareID)
	}

	key, err := access.Unlock(pub, creds)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.Decrypt(pub.EncryptedIndex, key)
	if err != nil {
		if errors.Is(err, crypto.ErrIntegrity) {
			return nil, access.ErrAuthFailure
		}
		return nil, err
	}
	c.keys.PutShareKey(pub.ShareID, key)
	return plain, nil
}

// downloadIndex lands the share's records locally and runs the fetch.
func (c *Coordinator) downloadIndex(ctx context.Context, ix *publish.Index, req DownloadRequest) (*download.Manifest, error) {
	if err := c.importIndex(ctx, ix); err != nil {
		return nil, err
	}

	eng, err := download.NewWithProviders(c.idx, c.fetch, c.cfg.Download)
	if err != nil {
		return nil, err
	}
	m, err := eng.Run(ctx, download.Job{
		FolderID:   ix.FolderID,
		Version:    ix.Version,
		ContentKey: ix.ContentKey,
		TargetRoot: req.TargetRoot,
		OnProgress: req.OnProgress,
	})
	if m != nil {
		logger.Info("share download finished",
			logger.ShareID(req.ShareID),
			logger.FolderID(ix.FolderID),
			logger.KeyVersion, ix.Version,
			"succeeded", len(m.Succeeded),
			"failed", len(m.Failed),
			logger.KeyBytesWritten, m.BytesWritten)
	}
	return m, err
}

// importIndex lands a share's records in the local index. Records this
// peer already holds, from a prior import of this share or an older one
// of the same folder, collide; the import then retries with just the
// unseen remainder. Every import ends by tombstoning paths the share no
// longer lists, so the local view at the share's version matches the
// share exactly.
func (c *Coordinator) importIndex(ctx context.Context, ix *publish.Index) error {
	batch := ix.Batch()
	if !batch.Empty() {
		err := c.idx.AddBatch(ctx, batch)
		if index.IsAlreadyExists(err) {
			err = c.importDelta(ctx, batch)
		}
		if err != nil {
			return err
		}
	}
	return c.reconcile(ctx, ix)
}

// importDelta strips a share batch down to the records this peer has
// never seen and lands those. Copies of an already-imported parent are
// dropped rather than re-validated: at least one copy per slice arrived
// with the first import, so dropping costs resilience, not correctness.
func (c *Coordinator) importDelta(ctx context.Context, batch *index.Batch) error {
	delta := &index.Batch{}
	fresh := make(map[string]struct{})

	for _, f := range batch.Files {
		switch _, err := c.idx.GetFile(ctx, f.ID); {
		case index.IsNotFound(err):
			delta.Files = append(delta.Files, f)
			fresh[f.ID] = struct{}{}
		case err != nil:
			return err
		}
	}
	for _, g := range batch.PackGroups {
		switch _, err := c.idx.GetPackGroup(ctx, g.ID); {
		case index.IsNotFound(err):
			delta.PackGroups = append(delta.PackGroups, g)
			fresh[g.ID] = struct{}{}
		case err != nil:
			return err
		}
	}

	var dropped int
	for _, s := range batch.Segments {
		if _, ok := fresh[s.ParentID]; ok {
			delta.Segments = append(delta.Segments, s)
			continue
		}
		switch _, err := c.idx.GetSegment(ctx, s.ID); {
		case index.IsNotFound(err):
			dropped++
		case err != nil:
			return err
		}
	}
	if dropped > 0 {
		logger.Debug("dropped share copies of already-imported parents",
			logger.Count(dropped))
	}

	if delta.Empty() {
		return nil
	}
	return c.idx.AddBatch(ctx, delta)
}

// reconcile tombstones every path whose committed record predates the
// share's version but no longer appears in the share. Without this, a
// peer that imported an older share of the same folder would resurrect
// files the owner has since deleted.
func (c *Coordinator) reconcile(ctx context.Context, ix *publish.Index) error {
	live := make(map[string]struct{}, len(ix.Files))
	for i := range ix.Files {
		live[ix.Files[i].Path] = struct{}{}
	}

	var tombs []*index.File
	err := c.idx.ForEachFile(ctx, ix.FolderID, ix.Version, func(f *index.File) error {
		if _, ok := live[f.Path]; !ok {
			tombs = append(tombs, &index.File{
				ID:       uuid.New().String(),
				FolderID: ix.FolderID,
				Version:  ix.Version,
				Path:     f.Path,
				Deleted:  true,
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(tombs) == 0 {
		return nil
	}

	logger.Debug("tombstoned paths absent from the share",
		logger.FolderID(ix.FolderID),
		logger.KeyVersion, ix.Version,
		logger.Count(len(tombs)))
	return c.idx.AddBatch(ctx, &index.Batch{Files: tombs})
}
