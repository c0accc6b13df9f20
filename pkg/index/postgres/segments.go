package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/index"
	"github.com/nntpvault/nntpvault/pkg/obfuscate"
)

// GetSegment retrieves a segment copy by its ID.
func (s *Store) GetSegment(ctx context.Context, id string) (*index.Segment, error) {
	query := `
		SELECT ` + segmentColumnsSQL + `
		FROM segments
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	segment, err := rowToSegment(row)
	if err != nil {
		return nil, mapPgError(err, "GetSegment", id)
	}

	return segment, nil
}

// GetSegmentByMessageID retrieves the segment copy that committed the
// given Message-ID.
func (s *Store) GetSegmentByMessageID(ctx context.Context, messageID string) (*index.Segment, error) {
	// The empty string is the column default for unposted copies, never
	// a committed Message-ID.
	query := `
		SELECT ` + segmentColumnsSQL + `
		FROM segments
		WHERE message_id = $1 AND message_id <> ''
	`

	row := s.pool.QueryRow(ctx, query, messageID)
	segment, err := rowToSegment(row)
	if err != nil {
		return nil, mapPgError(err, "GetSegmentByMessageID", messageID)
	}

	return segment, nil
}

// ForEachSegment streams every segment copy of a folder version through
// fn, grouped by parent and ordered by (index, redundancy).
func (s *Store) ForEachSegment(ctx context.Context, folderID string, version uint32, fn func(*index.Segment) error) error {
	query := `
		SELECT ` + segmentColumnsSQL + `
		FROM segments
		WHERE folder_id = $1 AND version = $2
		ORDER BY parent_id, segment_index, redundancy
	`

	return s.forEachSegmentQuery(ctx, query, fn, folderID, int64(version))
}

// ForEachSegmentInState streams the copies of a folder version that sit
// in the given state.
func (s *Store) ForEachSegmentInState(ctx context.Context, folderID string, version uint32, state index.SegmentState, fn func(*index.Segment) error) error {
	query := `
		SELECT ` + segmentColumnsSQL + `
		FROM segments
		WHERE folder_id = $1 AND version = $2 AND state = $3
		ORDER BY parent_id, segment_index, redundancy
	`

	return s.forEachSegmentQuery(ctx, query, fn, folderID, int64(version), string(state))
}

// ForEachParentSegment streams every copy of every slice of one parent,
// ordered by (index, redundancy).
func (s *Store) ForEachParentSegment(ctx context.Context, folderID string, version uint32, parentID string, fn func(*index.Segment) error) error {
	query := `
		SELECT ` + segmentColumnsSQL + `
		FROM segments
		WHERE folder_id = $1 AND version = $2 AND parent_id = $3
		ORDER BY segment_index, redundancy
	`

	return s.forEachSegmentQuery(ctx, query, fn, folderID, int64(version), parentID)
}

// forEachSegmentQuery runs a segment SELECT and streams the rows
// through fn. Returning an error from fn stops the scan.
func (s *Store) forEachSegmentQuery(ctx context.Context, query string, fn func(*index.Segment) error, args ...any) error {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return mapPgError(err, "ForEachSegment", "")
	}
	defer rows.Close()

	for rows.Next() {
		segment, err := rowToSegment(rows)
		if err != nil {
			return mapPgError(err, "ForEachSegment", "")
		}
		if err := fn(segment); err != nil {
			return err
		}
	}

	return mapPgError(rows.Err(), "ForEachSegment", "")
}

// ============================================================================
// State Transitions
// ============================================================================

// transition runs a guarded UPDATE whose WHERE clause admits only the
// legal source states. Zero affected rows means the segment is either
// missing or in the wrong state; a follow-up read tells which.
func (s *Store) transition(ctx context.Context, segmentID string, to index.SegmentState, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err, "transition", segmentID)
	}
	if tag.RowsAffected() == 0 {
		return s.explainTransitionFailure(ctx, segmentID, to)
	}
	return nil
}

// explainTransitionFailure distinguishes a missing segment from an
// illegal transition after a guarded UPDATE matched nothing.
func (s *Store) explainTransitionFailure(ctx context.Context, segmentID string, to index.SegmentState) error {
	var (
		state     string
		messageID string
	)

	err := s.pool.QueryRow(ctx, `SELECT state, message_id FROM segments WHERE id = $1`, segmentID).Scan(&state, &messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return index.NewNotFoundError(segmentID, "segment")
	}
	if err != nil {
		return mapPgError(err, "transition", segmentID)
	}

	from := index.SegmentState(state)
	if to == index.SegmentPosted && from == index.SegmentUploading && messageID == "" {
		return &index.StoreError{
			Code:    index.ErrStateConflict,
			Message: "cannot commit a post without a Message-ID",
			ID:      segmentID,
		}
	}

	return index.NewStateConflictError(segmentID, from, to)
}

// stateList converts transition sources into a text array parameter.
func stateList(states []index.SegmentState) []string {
	out := make([]string, len(states))
	for i, state := range states {
		out[i] = string(state)
	}
	return out
}

// MarkQueued moves a copy into the upload queue. A return from
// uploading counts as a spent attempt.
func (s *Store) MarkQueued(ctx context.Context, segmentID string) error {
	query := `
		UPDATE segments
		SET state = 'queued',
		    attempts = attempts + CASE WHEN state = 'uploading' THEN 1 ELSE 0 END
		WHERE id = $1 AND state = ANY($2)
	`

	return s.transition(ctx, segmentID, index.SegmentQueued, query,
		segmentID, stateList(index.TransitionSources(index.SegmentQueued)))
}

// MarkUploading hands a copy to a worker and records the Message-ID
// minted for this attempt. A stale Message-ID from an earlier attempt
// is overwritten in place.
func (s *Store) MarkUploading(ctx context.Context, segmentID, messageID string) error {
	if !obfuscate.ValidMessageID(messageID) {
		return index.NewInvalidArgumentError("malformed Message-ID")
	}

	query := `
		UPDATE segments
		SET state = 'uploading', message_id = $2
		WHERE id = $1 AND state = ANY($3)
	`

	return s.transition(ctx, segmentID, index.SegmentUploading, query,
		segmentID, messageID, stateList(index.TransitionSources(index.SegmentUploading)))
}

// MarkPosted commits the post under the Message-ID recorded by
// MarkUploading.
func (s *Store) MarkPosted(ctx context.Context, segmentID string, postedAt time.Time) error {
	query := `
		UPDATE segments
		SET state = 'posted', posted_at = $2
		WHERE id = $1 AND state = ANY($3) AND message_id <> ''
	`

	return s.transition(ctx, segmentID, index.SegmentPosted, query,
		segmentID, postedAt.UTC(), stateList(index.TransitionSources(index.SegmentPosted)))
}

// MarkFailed records a permanent posting failure.
func (s *Store) MarkFailed(ctx context.Context, segmentID string) error {
	query := `
		UPDATE segments
		SET state = 'failed', attempts = attempts + 1
		WHERE id = $1 AND state = ANY($2)
	`

	return s.transition(ctx, segmentID, index.SegmentFailed, query,
		segmentID, stateList(index.TransitionSources(index.SegmentFailed)))
}

// MarkVerified records a successful download-time retrieval.
func (s *Store) MarkVerified(ctx context.Context, segmentID string) error {
	query := `
		UPDATE segments
		SET state = 'verified'
		WHERE id = $1 AND state = ANY($2)
	`

	return s.transition(ctx, segmentID, index.SegmentVerified, query,
		segmentID, stateList(index.TransitionSources(index.SegmentVerified)))
}

// MarkUnrecoverable records that every upstream copy was missing.
func (s *Store) MarkUnrecoverable(ctx context.Context, segmentID string) error {
	query := `
		UPDATE segments
		SET state = 'unrecoverable'
		WHERE id = $1 AND state = ANY($2)
	`

	return s.transition(ctx, segmentID, index.SegmentUnrecoverable, query,
		segmentID, stateList(index.TransitionSources(index.SegmentUnrecoverable)))
}

// CancelPending moves every pending and queued copy of a folder version
// to cancelled in one statement. Copies a worker already claimed stay
// untouched.
func (s *Store) CancelPending(ctx context.Context, folderID string, version uint32) (int64, error) {
	query := `
		UPDATE segments
		SET state = 'cancelled'
		WHERE folder_id = $1 AND version = $2 AND state IN ('pending', 'queued')
	`

	tag, err := s.pool.Exec(ctx, query, folderID, int64(version))
	if err != nil {
		return 0, mapPgError(err, "CancelPending", folderID)
	}

	return tag.RowsAffected(), nil
}

// CountSegments tallies the copies of a folder version by state.
func (s *Store) CountSegments(ctx context.Context, folderID string, version uint32) (index.SegmentCounts, error) {
	query := `
		SELECT state, COUNT(*)
		FROM segments
		WHERE folder_id = $1 AND version = $2
		GROUP BY state
	`

	var counts index.SegmentCounts

	rows, err := s.pool.Query(ctx, query, folderID, int64(version))
	if err != nil {
		return counts, mapPgError(err, "CountSegments", folderID)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return counts, mapPgError(err, "CountSegments", folderID)
		}
		counts.Add(index.SegmentState(state), n)
	}

	return counts, mapPgError(rows.Err(), "CountSegments", folderID)
}

// DeleteFolder removes every record of a folder across all versions in
// one transaction.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "DeleteFolder", folderID)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deletes := []string{
		`DELETE FROM segments WHERE folder_id = $1`,
		`DELETE FROM pack_groups WHERE folder_id = $1`,
		`DELETE FROM files WHERE folder_id = $1`,
	}
	var removed int64
	for _, query := range deletes {
		tag, err := tx.Exec(ctx, query, folderID)
		if err != nil {
			return mapPgError(err, "DeleteFolder", folderID)
		}
		removed += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "DeleteFolder", folderID)
	}

	s.log.InfoContext(ctx, "folder index deleted", logger.FolderID(folderID), "rows", removed)
	return nil
}
