package index

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of index store error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound ErrorCode = iota + 1

	// ErrAlreadyExists indicates a record with the same identity is
	// already present.
	ErrAlreadyExists

	// ErrInvalidArgument indicates a malformed record or parameter.
	ErrInvalidArgument

	// ErrStateConflict indicates an illegal segment state transition,
	// including an attempt to commit a second Message-ID for a copy
	// that is already posted.
	ErrStateConflict

	// ErrIO indicates a backend read or write failure.
	ErrIO
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrStateConflict:
		return "StateConflict"
	case ErrIO:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// StoreError represents an index store error with an error code and,
// where applicable, the identifier of the record involved.
type StoreError struct {
	Code    ErrorCode
	Message string
	ID      string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id: %s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFoundError creates a NotFound error for the given record type.
func NewNotFoundError(id, recordType string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", recordType),
		ID:      id,
	}
}

// NewAlreadyExistsError creates an AlreadyExists error for the given
// record type.
func NewAlreadyExistsError(id, recordType string) *StoreError {
	return &StoreError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("%s already exists", recordType),
		ID:      id,
	}
}

// NewInvalidArgumentError creates an InvalidArgument error.
func NewInvalidArgumentError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidArgument,
		Message: message,
	}
}

// NewStateConflictError creates a StateConflict error describing the
// rejected transition.
func NewStateConflictError(id string, from, to SegmentState) *StoreError {
	return &StoreError{
		Code:    ErrStateConflict,
		Message: fmt.Sprintf("segment cannot move from %s to %s", from, to),
		ID:      id,
	}
}

// NewIOError creates an IOError wrapping a backend failure message.
func NewIOError(message string, cause error) *StoreError {
	if cause != nil {
		message = fmt.Sprintf("%s: %v", message, cause)
	}
	return &StoreError{
		Code:    ErrIO,
		Message: message,
	}
}

// ============================================================================
// Predicates
// ============================================================================

// IsNotFound reports whether err is a StoreError with code ErrNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, ErrNotFound)
}

// IsAlreadyExists reports whether err is a StoreError with code
// ErrAlreadyExists.
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrAlreadyExists)
}

// IsStateConflict reports whether err is a StoreError with code
// ErrStateConflict.
func IsStateConflict(err error) bool {
	return hasCode(err, ErrStateConflict)
}

func hasCode(err error, code ErrorCode) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Code == code
}
