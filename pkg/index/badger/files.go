package badger

import (
	"context"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// ============================================================================
// File Operations
// ============================================================================

// GetFile returns a file record by ID.
func (s *Store) GetFile(ctx context.Context, id string) (*index.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var file *index.File
	err := s.db.View(func(txn *badgerdb.Txn) error {
		record, _, err := getByPointer(txn, keyFileID(id), id, "file")
		if err != nil {
			return err
		}
		file, err = decodeFileRecord(record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// GetFileByPath returns the record of a path as of a folder version.
// Versions of one path sit under adjacent keys in ascending order, so
// the scan keeps the last record at or below the requested version.
func (s *Store) GetFileByPath(ctx context.Context, folderID string, version uint32, filePath string) (*index.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := keyFilePathPrefix(folderID, filePath)
	var file *index.File
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var candidate *index.File
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				candidate, decErr = decodeFileRecord(val)
				return decErr
			})
			if err != nil {
				return index.NewIOError("failed to read file record", err)
			}
			if candidate.Version > version {
				break
			}
			file = candidate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if file == nil || file.Deleted {
		return nil, index.NewNotFoundError(filePath, "file")
	}
	return file, nil
}

// ForEachFile visits the files of a folder as of a version. Keys group
// by path with versions ascending inside each path, so one forward scan
// finds the newest record per path; tombstoned paths are skipped.
func (s *Store) ForEachFile(ctx context.Context, folderID string, version uint32, fn func(*index.File) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := keyFilePrefix(folderID)
	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var (
			currentPath string
			havePath    bool
			winner      *index.File
		)
		emit := func() error {
			if winner == nil || winner.Deleted {
				return nil
			}
			return fn(winner)
		}

		visited := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			visited++
			if visited%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var file *index.File
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				file, decErr = decodeFileRecord(val)
				return decErr
			})
			if err != nil {
				return index.NewIOError("failed to read file record", err)
			}

			if !havePath || file.Path != currentPath {
				if err := emit(); err != nil {
					return err
				}
				currentPath, havePath, winner = file.Path, true, nil
			}
			if file.Version <= version {
				winner = file
			}
		}
		return emit()
	})
}

// ============================================================================
// Pack Group Operations
// ============================================================================

// GetPackGroup returns a pack group record by ID.
func (s *Store) GetPackGroup(ctx context.Context, id string) (*index.PackGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var group *index.PackGroup
	err := s.db.View(func(txn *badgerdb.Txn) error {
		record, _, err := getByPointer(txn, keyPackGroupID(id), id, "pack group")
		if err != nil {
			return err
		}
		group, err = decodePackGroup(record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// ForEachPackGroup visits every pack group of a folder version.
func (s *Store) ForEachPackGroup(ctx context.Context, folderID string, version uint32, fn func(*index.PackGroup) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prefix := keyPackGroupPrefix(folderID, version)
	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		visited := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			visited++
			if visited%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			var group *index.PackGroup
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				group, decErr = decodePackGroup(val)
				return decErr
			})
			if err != nil {
				return index.NewIOError("failed to read pack group", err)
			}
			if err := fn(group); err != nil {
				return err
			}
		}
		return nil
	})
}
