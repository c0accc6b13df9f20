package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nntpvault/nntpvault/pkg/index"
)

const insertFileSQL = `
	INSERT INTO files (
		id, folder_id, version, path, size, sha256,
		mime_type, mod_time, pack_group_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const insertPackGroupSQL = `
	INSERT INTO pack_groups (
		id, folder_id, version, total_size, members, created_at
	) VALUES ($1, $2, $3, $4, $5::jsonb, $6)
`

// segmentColumns matches the COPY column order in AddBatch.
var segmentColumns = []string{
	"id", "folder_id", "version", "parent_kind", "parent_id",
	"segment_index", "redundancy", "byte_offset", "length", "sha256",
	"internal_subject", "usenet_subject", "message_id", "state",
	"attempts", "posted_at", "created_at",
}

// AddBatch inserts one folder version snapshot in a single
// transaction, so a file record and the segments cut from it land
// together or not at all. Files and pack groups go through plain
// inserts; segments, the bulk of every snapshot, stream through COPY.
func (s *Store) AddBatch(ctx context.Context, batch *index.Batch) error {
	if batch == nil || batch.Empty() {
		return nil
	}

	batch.Normalize(time.Now().UTC())
	if err := batch.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapPgError(err, "begin batch", "")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, file := range batch.Files {
		_, err := tx.Exec(ctx, insertFileSQL,
			file.ID,
			file.FolderID,
			int64(file.Version),
			file.Path,
			int64(file.Size),
			file.SHA256,
			file.MimeType,
			file.ModTime,
			file.PackGroupID,
			file.CreatedAt,
		)
		if err != nil {
			return mapPgError(err, "insert file", file.ID)
		}
	}

	for _, group := range batch.PackGroups {
		members, err := json.Marshal(group.Members)
		if err != nil {
			return index.NewIOError(fmt.Sprintf("failed to encode pack group %s members", group.ID), err)
		}
		_, err = tx.Exec(ctx, insertPackGroupSQL,
			group.ID,
			group.FolderID,
			int64(group.Version),
			int64(group.TotalSize),
			string(members),
			group.CreatedAt,
		)
		if err != nil {
			return mapPgError(err, "insert pack group", group.ID)
		}
	}

	if len(batch.Segments) > 0 {
		rows := make([][]any, len(batch.Segments))
		for i, seg := range batch.Segments {
			rows[i] = []any{
				seg.ID,
				seg.FolderID,
				int64(seg.Version),
				string(seg.ParentKind),
				seg.ParentID,
				int64(seg.Index),
				int16(seg.Redundancy),
				int64(seg.Offset),
				int32(seg.Length),
				seg.SHA256,
				seg.InternalSubject,
				seg.UsenetSubject,
				seg.MessageID,
				string(seg.State),
				int16(seg.Attempts),
				seg.PostedAt,
				seg.CreatedAt,
			}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"segments"}, segmentColumns, pgx.CopyFromRows(rows)); err != nil {
			return mapPgError(err, "copy segments", "")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err, "commit batch", "")
	}

	return nil
}
