package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
)

// cancelChunk bounds how many segment rewrites share one transaction.
const cancelChunk = 1000

// ============================================================================
// Segment Lookups
// ============================================================================

// GetSegment returns a segment record by ID.
func (s *Store) GetSegment(ctx context.Context, id string) (*index.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segment *index.Segment
	err := s.db.View(func(txn *badgerdb.Txn) error {
		record, _, err := getByPointer(txn, keySegmentID(id), id, "segment")
		if err != nil {
			return err
		}
		segment, err = decodeSegment(record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return segment, nil
}

// GetSegmentByMessageID returns the segment a Message-ID was committed for.
func (s *Store) GetSegmentByMessageID(ctx context.Context, messageID string) (*index.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var segment *index.Segment
	err := s.db.View(func(txn *badgerdb.Txn) error {
		record, _, err := getByPointer(txn, keyMessageID(messageID), messageID, "segment")
		if err != nil {
			return err
		}
		segment, err = decodeSegment(record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return segment, nil
}

// ForEachSegment visits every segment copy of a folder version. Key
// order under the segment prefix is (parent, index, redundancy) order.
func (s *Store) ForEachSegment(ctx context.Context, folderID string, version uint32, fn func(*index.Segment) error) error {
	return s.scanSegments(ctx, folderID, version, fn)
}

// ForEachSegmentInState visits the copies of a folder version that
// currently sit in the given state.
func (s *Store) ForEachSegmentInState(ctx context.Context, folderID string, version uint32, state index.SegmentState, fn func(*index.Segment) error) error {
	return s.scanSegments(ctx, folderID, version, func(segment *index.Segment) error {
		if segment.State != state {
			return nil
		}
		return fn(segment)
	})
}

// ForEachParentSegment visits every copy of every slice of one parent.
// Parent keys sit contiguously inside the version prefix, so this is a
// narrower range scan in the same (index, redundancy) order.
func (s *Store) ForEachParentSegment(ctx context.Context, folderID string, version uint32, parentID string, fn func(*index.Segment) error) error {
	return s.scanSegmentPrefix(ctx, keySegmentParentPrefix(folderID, version, parentID), fn)
}

// scanSegments runs a single range scan over a folder version's copies.
func (s *Store) scanSegments(ctx context.Context, folderID string, version uint32, fn func(*index.Segment) error) error {
	return s.scanSegmentPrefix(ctx, keySegmentPrefix(folderID, version), fn)
}

// scanSegmentPrefix streams every segment record under one key prefix.
func (s *Store) scanSegmentPrefix(ctx context.Context, prefix []byte, fn func(*index.Segment) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

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

			var segment *index.Segment
			err := it.Item().Value(func(val []byte) error {
				var decErr error
				segment, decErr = decodeSegment(val)
				return decErr
			})
			if err != nil {
				return index.NewIOError("failed to read segment", err)
			}
			if err := fn(segment); err != nil {
				return err
			}
		}
		return nil
	})
}

// ============================================================================
// Segment State Transitions
// ============================================================================

// transition applies a guarded state move to one segment copy. mutate
// runs before the move with the current record loaded and may veto it.
func (s *Store) transition(ctx context.Context, segmentID string, to index.SegmentState, mutate func(*index.Segment) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		record, primary, err := getByPointer(txn, keySegmentID(segmentID), segmentID, "segment")
		if err != nil {
			return err
		}
		segment, err := decodeSegment(record)
		if err != nil {
			return index.NewIOError("failed to read segment", err)
		}

		if !index.CanTransition(segment.State, to) {
			return index.NewStateConflictError(segmentID, segment.State, to)
		}

		previousMessageID := segment.MessageID
		if mutate != nil {
			if err := mutate(segment); err != nil {
				return err
			}
		}
		segment.State = to

		if segment.MessageID != previousMessageID {
			if previousMessageID != "" {
				if err := txn.Delete(keyMessageID(previousMessageID)); err != nil {
					return index.NewIOError("failed to drop message-id pointer", err)
				}
			}
			if segment.MessageID != "" {
				if err := txn.Set(keyMessageID(segment.MessageID), primary); err != nil {
					return index.NewIOError("failed to write message-id pointer", err)
				}
			}
		}

		value, err := encodeSegment(segment)
		if err != nil {
			return index.NewIOError("failed to encode segment", err)
		}
		if err := txn.Set(primary, value); err != nil {
			return index.NewIOError("failed to write segment", err)
		}
		return nil
	})
}

// MarkQueued moves a copy into the upload queue. A return from
// uploading counts as a spent attempt.
func (s *Store) MarkQueued(ctx context.Context, segmentID string) error {
	return s.transition(ctx, segmentID, index.SegmentQueued, func(segment *index.Segment) error {
		if segment.State == index.SegmentUploading {
			segment.Attempts++
		}
		return nil
	})
}

// MarkUploading hands a copy to a worker and records the Message-ID
// minted for this attempt. A stale Message-ID from an earlier attempt
// is dropped from the lookup index.
func (s *Store) MarkUploading(ctx context.Context, segmentID, messageID string) error {
	if !obfuscate.ValidMessageID(messageID) {
		return index.NewInvalidArgumentError("malformed Message-ID")
	}
	return s.transition(ctx, segmentID, index.SegmentUploading, func(segment *index.Segment) error {
		segment.MessageID = messageID
		return nil
	})
}

// MarkPosted commits the post under the Message-ID recorded by
// MarkUploading.
func (s *Store) MarkPosted(ctx context.Context, segmentID string, postedAt time.Time) error {
	return s.transition(ctx, segmentID, index.SegmentPosted, func(segment *index.Segment) error {
		if segment.MessageID == "" {
			return &index.StoreError{
				Code:    index.ErrStateConflict,
				Message: "cannot commit a post without a Message-ID",
				ID:      segmentID,
			}
		}
		at := postedAt.UTC()
		segment.PostedAt = &at
		return nil
	})
}

// MarkFailed records a permanent posting failure.
func (s *Store) MarkFailed(ctx context.Context, segmentID string) error {
	return s.transition(ctx, segmentID, index.SegmentFailed, func(segment *index.Segment) error {
		segment.Attempts++
		return nil
	})
}

// MarkVerified records a successful download-time retrieval.
func (s *Store) MarkVerified(ctx context.Context, segmentID string) error {
	return s.transition(ctx, segmentID, index.SegmentVerified, nil)
}

// MarkUnrecoverable records that every upstream copy was missing.
func (s *Store) MarkUnrecoverable(ctx context.Context, segmentID string) error {
	return s.transition(ctx, segmentID, index.SegmentUnrecoverable, nil)
}

// CancelPending moves every pending and queued copy of a folder version
// to cancelled. Copies are collected in a snapshot scan and rewritten
// in bounded transactions, re-checking state under the write in case a
// worker claimed one meanwhile.
func (s *Store) CancelPending(ctx context.Context, folderID string, version uint32) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefix := keySegmentPrefix(folderID, version)

	var keys [][]byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
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

			item := it.Item()
			var waiting bool
			err := item.Value(func(val []byte) error {
				segment, err := decodeSegment(val)
				if err != nil {
					return err
				}
				waiting = segment.State == index.SegmentPending || segment.State == index.SegmentQueued
				return nil
			})
			if err != nil {
				return index.NewIOError("failed to read segment", err)
			}
			if waiting {
				keys = append(keys, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	var cancelled int64
	for start := 0; start < len(keys); start += cancelChunk {
		end := min(start+cancelChunk, len(keys))

		var chunk int64
		err := s.db.Update(func(txn *badgerdb.Txn) error {
			for _, key := range keys[start:end] {
				record, err := getRecord(txn, key, string(key), "segment")
				if index.IsNotFound(err) {
					continue
				}
				if err != nil {
					return err
				}
				segment, err := decodeSegment(record)
				if err != nil {
					return index.NewIOError("failed to read segment", err)
				}
				if segment.State != index.SegmentPending && segment.State != index.SegmentQueued {
					continue
				}
				segment.State = index.SegmentCancelled
				value, err := encodeSegment(segment)
				if err != nil {
					return index.NewIOError("failed to encode segment", err)
				}
				if err := txn.Set(key, value); err != nil {
					return index.NewIOError("failed to write segment", err)
				}
				chunk++
			}
			return nil
		})
		if err != nil {
			return cancelled, err
		}
		cancelled += chunk
	}
	return cancelled, nil
}

// CountSegments tallies the copies of a folder version by state.
func (s *Store) CountSegments(ctx context.Context, folderID string, version uint32) (index.SegmentCounts, error) {
	var counts index.SegmentCounts
	err := s.scanSegments(ctx, folderID, version, func(segment *index.Segment) error {
		counts.Add(segment.State, 1)
		return nil
	})
	if err != nil {
		return index.SegmentCounts{}, err
	}
	return counts, nil
}

// ============================================================================
// Folder Cleanup
// ============================================================================

// DeleteFolder removes every file, pack group and segment record of a
// folder across all versions, along with their lookup pointers. The
// scan streams into a write batch, so memory stays flat no matter how
// large the folder grew.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	err := s.db.View(func(txn *badgerdb.Txn) error {
		if err := queueDeletes(ctx, txn, wb, keyFolderScanPrefix(prefixFile, folderID), func(val []byte) ([][]byte, error) {
			file, err := decodeFileRecord(val)
			if err != nil {
				return nil, err
			}
			return [][]byte{keyFileID(file.ID)}, nil
		}); err != nil {
			return err
		}

		if err := queueDeletes(ctx, txn, wb, keyFolderScanPrefix(prefixPackGroup, folderID), func(val []byte) ([][]byte, error) {
			group, err := decodePackGroup(val)
			if err != nil {
				return nil, err
			}
			return [][]byte{keyPackGroupID(group.ID)}, nil
		}); err != nil {
			return err
		}

		return queueDeletes(ctx, txn, wb, keyFolderScanPrefix(prefixSegment, folderID), func(val []byte) ([][]byte, error) {
			segment, err := decodeSegment(val)
			if err != nil {
				return nil, err
			}
			pointers := [][]byte{keySegmentID(segment.ID)}
			if segment.MessageID != "" {
				pointers = append(pointers, keyMessageID(segment.MessageID))
			}
			return pointers, nil
		})
	})
	if err != nil {
		return err
	}

	if err := wb.Flush(); err != nil {
		return index.NewIOError("failed to delete folder records", err)
	}
	return nil
}

// queueDeletes scans one namespace prefix and queues the primary key
// plus the pointer keys derived from each record.
func queueDeletes(ctx context.Context, txn *badgerdb.Txn, wb *badgerdb.WriteBatch, prefix []byte, pointers func([]byte) ([][]byte, error)) error {
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

		item := it.Item()
		var derived [][]byte
		err := item.Value(func(val []byte) error {
			var ptrErr error
			derived, ptrErr = pointers(val)
			return ptrErr
		})
		if err != nil {
			return index.NewIOError("failed to read record", err)
		}

		for _, pointer := range derived {
			if err := wb.Delete(pointer); err != nil {
				return index.NewIOError("failed to queue pointer delete", err)
			}
		}
		if err := wb.Delete(item.KeyCopy(nil)); err != nil {
			return index.NewIOError("failed to queue record delete", err)
		}
	}
	return nil
}
