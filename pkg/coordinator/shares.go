package coordinator

import (
	"context"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/access"
	"github.com/nntpvault/nntpvault/pkg/identity"
	"github.com/nntpvault/nntpvault/pkg/publish"
	"github.com/nntpvault/nntpvault/pkg/store/models"
)

// PublishFolder issues a share over the folder's current version and
// returns the share ID. The snapshot only includes slices with at least
// one posted copy; an incompletely uploaded version refuses to publish.
func (c *Coordinator) PublishFolder(ctx context.Context, owner *identity.UserKeys, folderID string, opts publish.Options) (string, error) {
	keys, err := c.folderKeys(ctx, owner, folderID)
	if err != nil {
		return "", err
	}
	if keys.Folder.CurrentVersion == 0 {
		return "", ErrNeverIndexed
	}
	return c.pub.Publish(ctx, keys, keys.Folder.CurrentVersion, opts)
}

// ResolveShare returns the publication behind a live share ID. The
// encrypted index stays sealed; resolution needs no credentials.
func (c *Coordinator) ResolveShare(ctx context.Context, shareID string) (*models.Publication, error) {
	return c.pub.Resolve(ctx, shareID)
}

// ListShares returns the folder's publications, oldest first. Owner
// only.
func (c *Coordinator) ListShares(ctx context.Context, owner *identity.UserKeys, folderID string) ([]*models.Publication, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.GetOwnedFolder(ctx, folderID, uid); err != nil {
		return nil, err
	}
	return c.store.ListPublications(ctx, folderID)
}

// RevokeShare expires a share now. Only the owner of the folder behind
// the share may revoke it. Consumers that already resolved the share
// keep whatever they fetched; revocation only stops new resolutions.
func (c *Coordinator) RevokeShare(ctx context.Context, owner *identity.UserKeys, shareID string) error {
	uid, err := ownerID(owner)
	if err != nil {
		return err
	}
	pub, err := c.store.GetPublication(ctx, shareID)
	if err != nil {
		return err
	}
	if _, err := c.store.GetOwnedFolder(ctx, pub.FolderID, uid); err != nil {
		return err
	}

	if err := c.pub.Revoke(ctx, shareID); err != nil {
		return err
	}
	c.keys.InvalidateShare(shareID)
	return nil
}

// AuthorizeShare extends a private share to one more registered user.
// The caller must be able to unlock the share, in practice its owner.
func (c *Coordinator) AuthorizeShare(ctx context.Context, owner *identity.UserKeys, shareID, userID string) error {
	return c.pub.Authorize(ctx, shareID, access.Credentials{User: owner}, userID)
}

// ExportShare packs a share's publication record for out-of-band
// transport. A peer that was handed only the share ID has nothing to
// resolve it against; the exported record is what travels alongside.
// Owner only; the index inside stays sealed.
func (c *Coordinator) ExportShare(ctx context.Context, owner *identity.UserKeys, shareID string) ([]byte, error) {
	uid, err := ownerID(owner)
	if err != nil {
		return nil, err
	}
	pub, err := c.store.GetPublication(ctx, shareID)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.GetOwnedFolder(ctx, pub.FolderID, uid); err != nil {
		return nil, err
	}
	return publish.EncodeRecord(pub)
}

// ImportShare stores a record exported on another peer, after which the
// share resolves and downloads locally like any other.
func (c *Coordinator) ImportShare(ctx context.Context, record []byte) (*models.Publication, error) {
	pub, err := publish.DecodeRecord(record)
	if err != nil {
		return nil, err
	}

	// CreatePublication inserts the association rows itself; leaving
	// them on the struct would write them twice.
	grants, commitments := pub.AuthorizedUsers, pub.Commitments
	pub.AuthorizedUsers, pub.Commitments = nil, nil

	if err := c.store.CreatePublication(ctx, pub, grants, commitments); err != nil {
		return nil, err
	}

	logger.Info("share record imported",
		logger.ShareID(pub.ShareID),
		logger.FolderID(pub.FolderID),
		logger.KeyVersion, pub.FolderVersion)
	return pub, nil
}
