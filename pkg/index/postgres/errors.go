package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nntpvault/nntpvault/pkg/index"
)

// mapPgError maps PostgreSQL errors to index store errors.
func mapPgError(err error, operation, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &index.StoreError{
			Code:    index.ErrNotFound,
			Message: fmt.Sprintf("%s: not found", operation),
			ID:      id,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgErrorCode(pgErr, operation, id)
	}

	return &index.StoreError{
		Code:    index.ErrIO,
		Message: fmt.Sprintf("%s: %v", operation, err),
		ID:      id,
	}
}

// mapPgErrorCode maps PostgreSQL error codes to index store errors.
func mapPgErrorCode(pgErr *pgconn.PgError, operation, id string) error {
	// PostgreSQL error codes: https://www.postgresql.org/docs/current/errcodes-appendix.html
	switch pgErr.Code {
	// 23505: unique_violation
	case "23505":
		return mapUniqueViolation(pgErr, id)

	// 23503: foreign_key_violation
	case "23503":
		return &index.StoreError{
			Code:    index.ErrNotFound,
			Message: fmt.Sprintf("%s: referenced record not found", operation),
			ID:      id,
		}

	// 23502: not_null_violation, 23514: check_constraint_violation
	case "23502", "23514":
		return &index.StoreError{
			Code:    index.ErrInvalidArgument,
			Message: fmt.Sprintf("%s: invalid value", operation),
			ID:      id,
		}

	// 40001: serialization_failure, 40P01: deadlock_detected
	case "40001", "40P01":
		return &index.StoreError{
			Code:    index.ErrIO,
			Message: fmt.Sprintf("%s: transaction conflict, retry", operation),
			ID:      id,
		}

	// 57014: query_canceled (statement_timeout)
	case "57014":
		return &index.StoreError{
			Code:    index.ErrIO,
			Message: fmt.Sprintf("%s: operation canceled", operation),
			ID:      id,
		}

	// 08000-08006: connection errors
	case "08000", "08003", "08006":
		return &index.StoreError{
			Code:    index.ErrIO,
			Message: fmt.Sprintf("%s: database connection error", operation),
			ID:      id,
		}

	default:
		return &index.StoreError{
			Code:    index.ErrIO,
			Message: fmt.Sprintf("%s: database error [%s] %s", operation, pgErr.Code, pgErr.Message),
			ID:      id,
		}
	}
}

// mapUniqueViolation names the colliding record from the constraint
// that fired, so callers see the same record types the embedded
// backend reports.
func mapUniqueViolation(pgErr *pgconn.PgError, id string) error {
	switch pgErr.ConstraintName {
	case "files_pkey":
		return index.NewAlreadyExistsError(id, "file")
	case "files_folder_version_path_key":
		return index.NewAlreadyExistsError(id, "file version")
	case "pack_groups_pkey":
		return index.NewAlreadyExistsError(id, "pack group")
	case "segments_pkey":
		return index.NewAlreadyExistsError(id, "segment")
	case "segments_copy_key":
		return index.NewAlreadyExistsError(id, "segment copy")
	case "idx_segments_message_id":
		return index.NewAlreadyExistsError(id, "message id")
	}
	return index.NewAlreadyExistsError(id, "record")
}
