package postgres

import (
	"context"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// GetFile retrieves a file record by its ID.
func (s *Store) GetFile(ctx context.Context, id string) (*index.File, error) {
	query := `
		SELECT ` + fileColumnsSQL + `
		FROM files
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	file, err := rowToFile(row)
	if err != nil {
		return nil, mapPgError(err, "GetFile", id)
	}

	return file, nil
}

// GetFileByPath retrieves the record of a path as of a folder version:
// the newest record at or below it. A tombstone reports NotFound.
func (s *Store) GetFileByPath(ctx context.Context, folderID string, version uint32, filePath string) (*index.File, error) {
	query := `
		SELECT ` + fileColumnsSQL + `
		FROM files
		WHERE folder_id = $1 AND path = $2 AND version <= $3
		ORDER BY version DESC
		LIMIT 1
	`

	row := s.pool.QueryRow(ctx, query, folderID, filePath, int64(version))
	file, err := rowToFile(row)
	if err != nil {
		return nil, mapPgError(err, "GetFileByPath", filePath)
	}
	if file.Deleted {
		return nil, index.NewNotFoundError(filePath, "file")
	}

	return file, nil
}

// ForEachFile streams the files of a folder as of a version through fn
// in ascending path order. File records are sparse, so each path
// resolves to its newest record at or below the version; tombstoned
// paths are skipped. Returning an error from fn stops the scan.
func (s *Store) ForEachFile(ctx context.Context, folderID string, version uint32, fn func(*index.File) error) error {
	// COLLATE "C" gives byte order regardless of the database locale,
	// matching the order the embedded backend iterates in.
	query := `
		SELECT ` + fileColumnsSQL + `
		FROM files f
		WHERE f.folder_id = $1 AND f.version <= $2 AND NOT f.deleted
		  AND NOT EXISTS (
			SELECT 1 FROM files newer
			WHERE newer.folder_id = f.folder_id AND newer.path = f.path
			  AND newer.version > f.version AND newer.version <= $2
		  )
		ORDER BY f.path COLLATE "C"
	`

	rows, err := s.pool.Query(ctx, query, folderID, int64(version))
	if err != nil {
		return mapPgError(err, "ForEachFile", folderID)
	}
	defer rows.Close()

	for rows.Next() {
		file, err := rowToFile(rows)
		if err != nil {
			return mapPgError(err, "ForEachFile", folderID)
		}
		if err := fn(file); err != nil {
			return err
		}
	}

	return mapPgError(rows.Err(), "ForEachFile", folderID)
}

// GetPackGroup retrieves a pack group by its ID.
func (s *Store) GetPackGroup(ctx context.Context, id string) (*index.PackGroup, error) {
	query := `
		SELECT ` + packGroupColumnsSQL + `
		FROM pack_groups
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	group, err := rowToPackGroup(row)
	if err != nil {
		return nil, mapPgError(err, "GetPackGroup", id)
	}

	return group, nil
}

// ForEachPackGroup streams every pack group of a folder version
// through fn.
func (s *Store) ForEachPackGroup(ctx context.Context, folderID string, version uint32, fn func(*index.PackGroup) error) error {
	query := `
		SELECT ` + packGroupColumnsSQL + `
		FROM pack_groups
		WHERE folder_id = $1 AND version = $2
		ORDER BY id
	`

	rows, err := s.pool.Query(ctx, query, folderID, int64(version))
	if err != nil {
		return mapPgError(err, "ForEachPackGroup", folderID)
	}
	defer rows.Close()

	for rows.Next() {
		group, err := rowToPackGroup(rows)
		if err != nil {
			return mapPgError(err, "ForEachPackGroup", folderID)
		}
		if err := fn(group); err != nil {
			return err
		}
	}

	return mapPgError(rows.Err(), "ForEachPackGroup", folderID)
}
