// Package index defines the data-plane index store: the record of every
// file, segment and pack group a folder version produced, and the state
// each segment copy is in on its way to the backing store.
//
// The control-plane store (pkg/store) holds users, folders, publications
// and sessions. This package holds the bulk tables, which can reach
// millions of rows for large folders, so every listing operation streams
// through a callback instead of materializing slices.
//
// Two backends implement the contract: an embedded BadgerDB store
// (pkg/index/badger) and a PostgreSQL store (pkg/index/postgres).
package index

import (
	"context"
	"time"
)

// Store is the contract both index backends implement.
//
// Iteration callbacks run once per record; returning an error stops the
// scan and propagates the error to the caller. Backends hold O(1) state
// per scan regardless of folder size.
type Store interface {
	// ========================================================================
	// BATCH INGESTION
	// ========================================================================

	// AddBatch persists files and pack groups together with the
	// segments cut from them. The batch must be self-contained: every
	// segment's parent travels in the same call. Duplicate identities
	// fail with ErrAlreadyExists.
	AddBatch(ctx context.Context, batch *Batch) error

	// ========================================================================
	// FILE OPERATIONS
	// ========================================================================

	// GetFile returns a file record by ID.
	// Fails with ErrNotFound when no such record exists.
	GetFile(ctx context.Context, id string) (*File, error)

	// GetFileByPath returns the record of a path as of a folder
	// version: the newest record at or below it. Fails with ErrNotFound
	// when the path never existed at that version or its newest record
	// is a deletion marker.
	GetFileByPath(ctx context.Context, folderID string, version uint32, filePath string) (*File, error)

	// ForEachFile visits the files of a folder as of a version, in
	// ascending path order. Records are sparse: a path is recorded only
	// at the versions where its content changed, so for each path the
	// newest record at or below the requested version wins. Paths whose
	// winning record is a deletion marker are skipped.
	ForEachFile(ctx context.Context, folderID string, version uint32, fn func(*File) error) error

	// ========================================================================
	// PACK GROUP OPERATIONS
	// ========================================================================

	// GetPackGroup returns a pack group record by ID.
	// Fails with ErrNotFound when no such record exists.
	GetPackGroup(ctx context.Context, id string) (*PackGroup, error)

	// ForEachPackGroup visits every pack group of a folder version.
	ForEachPackGroup(ctx context.Context, folderID string, version uint32, fn func(*PackGroup) error) error

	// ========================================================================
	// SEGMENT OPERATIONS
	// ========================================================================

	// GetSegment returns a segment record by ID.
	// Fails with ErrNotFound when no such record exists.
	GetSegment(ctx context.Context, id string) (*Segment, error)

	// GetSegmentByMessageID returns the segment a Message-ID was
	// committed for. Fails with ErrNotFound when no copy carries it.
	GetSegmentByMessageID(ctx context.Context, messageID string) (*Segment, error)

	// ForEachSegment visits every segment copy of a folder version,
	// grouped by parent and ordered by (index, redundancy) within it.
	ForEachSegment(ctx context.Context, folderID string, version uint32, fn func(*Segment) error) error

	// ForEachSegmentInState visits the copies of a folder version that
	// currently sit in the given state, in the same order as
	// ForEachSegment.
	ForEachSegmentInState(ctx context.Context, folderID string, version uint32, state SegmentState, fn func(*Segment) error) error

	// ForEachParentSegment visits every copy of every slice of one
	// parent, ordered by (index, redundancy). The version is the one the
	// parent was recorded at; its segments always share it.
	ForEachParentSegment(ctx context.Context, folderID string, version uint32, parentID string, fn func(*Segment) error) error

	// ========================================================================
	// SEGMENT STATE TRANSITIONS
	//
	// Every transition is guarded by the legal state machine; a move the
	// machine does not allow fails with ErrStateConflict and leaves the
	// record untouched.
	// ========================================================================

	// MarkQueued moves a copy into the upload queue. Legal from
	// pending, failed (retry) and uploading (returned after a transient
	// post failure); a return from uploading counts as a spent attempt.
	MarkQueued(ctx context.Context, segmentID string) error

	// MarkUploading hands a copy to a worker and records the Message-ID
	// minted for this attempt. Legal from queued only; a copy that is
	// already posted can never re-enter uploading, which keeps the
	// committed Message-ID unique.
	MarkUploading(ctx context.Context, segmentID, messageID string) error

	// MarkPosted commits the post. Legal from uploading only, and only
	// when a Message-ID was recorded for the attempt.
	MarkPosted(ctx context.Context, segmentID string, postedAt time.Time) error

	// MarkFailed records a permanent posting failure and increments the
	// attempt counter. Legal from uploading only.
	MarkFailed(ctx context.Context, segmentID string) error

	// MarkVerified records a successful download-time retrieval of a
	// posted copy. Legal from posted only.
	MarkVerified(ctx context.Context, segmentID string) error

	// MarkUnrecoverable records that every upstream copy of a posted
	// segment was missing at download time. Legal from posted only.
	MarkUnrecoverable(ctx context.Context, segmentID string) error

	// CancelPending moves every pending and queued copy of a folder
	// version to cancelled and returns how many copies it drained.
	// Copies a worker already holds are left to finish.
	CancelPending(ctx context.Context, folderID string, version uint32) (int64, error)

	// CountSegments tallies the copies of a folder version by state.
	CountSegments(ctx context.Context, folderID string, version uint32) (SegmentCounts, error)

	// ========================================================================
	// FOLDER CLEANUP
	// ========================================================================

	// DeleteFolder removes every file, pack group and segment record of
	// a folder across all versions. Posted articles stay reachable
	// upstream; only the local index forgets them.
	DeleteFolder(ctx context.Context, folderID string) error

	// ========================================================================
	// HEALTH & LIFECYCLE
	// ========================================================================

	// Healthcheck verifies the backend is reachable and writable.
	Healthcheck(ctx context.Context) error

	// Close releases the backend.
	Close() error
}
