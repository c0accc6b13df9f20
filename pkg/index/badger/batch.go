package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// AddBatch persists files and pack groups together with their segments.
//
// Badger caps the size of a single transaction, so oversized batches are
// committed in chunks. Writes are ordered segments, then pack groups,
// then file records, which keeps the store consistent across an
// interrupted flush: unreferenced segment rows can survive a crash, but
// a file record never appears before every segment it owns.
func (s *Store) AddBatch(ctx context.Context, batch *index.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch == nil || batch.Empty() {
		return nil
	}

	batch.Normalize(time.Now().UTC())
	if err := batch.Validate(); err != nil {
		return err
	}

	txn := s.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	// set retries once in a fresh transaction when the current one is
	// full, committing what accumulated so far.
	set := func(key, value []byte) error {
		err := txn.Set(key, value)
		if err != badgerdb.ErrTxnTooBig {
			return err
		}
		if err := txn.Commit(); err != nil {
			return err
		}
		txn = s.db.NewTransaction(true)
		return txn.Set(key, value)
	}

	exists := func(key []byte) (bool, error) {
		_, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	written := 0
	for _, segment := range batch.Segments {
		written++
		if written%100 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		if ok, err := exists(keySegmentID(segment.ID)); err != nil {
			return index.NewIOError("failed to check segment", err)
		} else if ok {
			return index.NewAlreadyExistsError(segment.ID, "segment")
		}
		primary := keySegment(segment.FolderID, segment.Version, segment.ParentID, segment.Index, segment.Redundancy)
		if ok, err := exists(primary); err != nil {
			return index.NewIOError("failed to check segment copy", err)
		} else if ok {
			return index.NewAlreadyExistsError(segment.ID, "segment copy")
		}

		value, err := encodeSegment(segment)
		if err != nil {
			return index.NewInvalidArgumentError(err.Error())
		}
		if err := set(primary, value); err != nil {
			return index.NewIOError("failed to write segment", err)
		}
		if err := set(keySegmentID(segment.ID), primary); err != nil {
			return index.NewIOError("failed to write segment pointer", err)
		}
		if segment.MessageID != "" {
			if err := set(keyMessageID(segment.MessageID), primary); err != nil {
				return index.NewIOError("failed to write message-id pointer", err)
			}
		}
	}

	for _, group := range batch.PackGroups {
		if ok, err := exists(keyPackGroupID(group.ID)); err != nil {
			return index.NewIOError("failed to check pack group", err)
		} else if ok {
			return index.NewAlreadyExistsError(group.ID, "pack group")
		}

		primary := keyPackGroup(group.FolderID, group.Version, group.ID)
		value, err := encodePackGroup(group)
		if err != nil {
			return index.NewInvalidArgumentError(err.Error())
		}
		if err := set(primary, value); err != nil {
			return index.NewIOError("failed to write pack group", err)
		}
		if err := set(keyPackGroupID(group.ID), primary); err != nil {
			return index.NewIOError("failed to write pack group pointer", err)
		}
	}

	for _, file := range batch.Files {
		if ok, err := exists(keyFileID(file.ID)); err != nil {
			return index.NewIOError("failed to check file", err)
		} else if ok {
			return index.NewAlreadyExistsError(file.ID, "file")
		}
		primary := keyFile(file.FolderID, file.Path, file.Version)
		if ok, err := exists(primary); err != nil {
			return index.NewIOError("failed to check file path", err)
		} else if ok {
			return index.NewAlreadyExistsError(file.Path, "file version")
		}

		value, err := encodeFileRecord(file)
		if err != nil {
			return index.NewInvalidArgumentError(err.Error())
		}
		if err := set(primary, value); err != nil {
			return index.NewIOError("failed to write file", err)
		}
		if err := set(keyFileID(file.ID), primary); err != nil {
			return index.NewIOError("failed to write file pointer", err)
		}
	}

	if err := txn.Commit(); err != nil {
		return index.NewIOError("failed to commit batch", err)
	}
	return nil
}
