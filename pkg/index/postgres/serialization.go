package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// Column lists shared between the SELECT queries and the scan helpers
// below. Order matters: Scan binds positionally.

const fileColumnsSQL = `id, folder_id, version, path, size, sha256,
			mime_type, mod_time, pack_group_id, created_at`

const packGroupColumnsSQL = `id, folder_id, version, total_size, members, created_at`

var segmentColumnsSQL = strings.Join(segmentColumns, ", ")

// rowToFile scans one files row. Integer columns come back as the
// signed SQL types and are widened into the record's unsigned fields.
func rowToFile(row pgx.Row) (*index.File, error) {
	var (
		file    index.File
		version int64
		size    int64
	)

	err := row.Scan(
		&file.ID,
		&file.FolderID,
		&version,
		&file.Path,
		&size,
		&file.SHA256,
		&file.MimeType,
		&file.ModTime,
		&file.PackGroupID,
		&file.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	file.Version = uint32(version)
	file.Size = uint64(size)

	return &file, nil
}

// rowToPackGroup scans one pack_groups row, decoding the members list
// from its JSONB column.
func rowToPackGroup(row pgx.Row) (*index.PackGroup, error) {
	var (
		group     index.PackGroup
		version   int64
		totalSize int64
		members   []byte
	)

	err := row.Scan(
		&group.ID,
		&group.FolderID,
		&version,
		&totalSize,
		&members,
		&group.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(members, &group.Members); err != nil {
		return nil, fmt.Errorf("failed to decode pack group members: %w", err)
	}

	group.Version = uint32(version)
	group.TotalSize = uint32(totalSize)

	return &group, nil
}

// rowToSegment scans one segments row.
func rowToSegment(row pgx.Row) (*index.Segment, error) {
	var (
		segment    index.Segment
		version    int64
		parentKind string
		segIndex   int64
		redundancy int16
		offset     int64
		length     int32
		state      string
		attempts   int16
		postedAt   *time.Time
	)

	err := row.Scan(
		&segment.ID,
		&segment.FolderID,
		&version,
		&parentKind,
		&segment.ParentID,
		&segIndex,
		&redundancy,
		&offset,
		&length,
		&segment.SHA256,
		&segment.InternalSubject,
		&segment.UsenetSubject,
		&segment.MessageID,
		&state,
		&attempts,
		&postedAt,
		&segment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	segment.Version = uint32(version)
	segment.ParentKind = index.ParentKind(parentKind)
	segment.Index = uint32(segIndex)
	segment.Redundancy = uint8(redundancy)
	segment.Offset = uint64(offset)
	segment.Length = uint32(length)
	segment.State = index.SegmentState(state)
	segment.Attempts = uint8(attempts)
	segment.PostedAt = postedAt

	return &segment, nil
}
