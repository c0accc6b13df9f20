package nntp

import (
	"errors"
	"fmt"
)

// ErrorKind buckets protocol failures into the categories the retry logic
// branches on.
type ErrorKind int

const (
	// KindTransient covers failures worth retrying: timeouts, dropped
	// connections, 4xx-class responses.
	KindTransient ErrorKind = iota + 1

	// KindPermanent covers failures that will not heal on retry: rejected
	// articles, 5xx-class responses, protocol violations.
	KindPermanent

	// KindAuth covers credential problems.
	KindAuth
)

// String returns a human-readable kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a typed protocol failure carrying the upstream response code.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("nntp: %s (%d %s)", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("nntp: %s (%s)", e.Kind, e.Message)
}

// Sentinel errors callers branch on.
var (
	// ErrArticleNotFound means the server has no article with the
	// requested Message-ID (430). Retrieval fails over to the next
	// redundancy copy rather than retrying.
	ErrArticleNotFound = errors.New("no such article")

	// ErrPostingNotAllowed means the server refuses posts on this
	// connection (440).
	ErrPostingNotAllowed = errors.New("posting not allowed")

	// ErrAuthRejected means credentials were refused (481/482).
	ErrAuthRejected = errors.New("authentication rejected")
)

// newError builds a typed error for an upstream response code.
func newError(code int, message string) error {
	switch code {
	case 430, 423, 420:
		return fmt.Errorf("%w (%d %s)", ErrArticleNotFound, code, message)
	case 440:
		return fmt.Errorf("%w (%d %s)", ErrPostingNotAllowed, code, message)
	case 480, 381:
		return &Error{Kind: KindAuth, Code: code, Message: message}
	case 481, 482:
		return fmt.Errorf("%w (%d %s)", ErrAuthRejected, code, message)
	}

	switch {
	case code >= 400 && code < 500:
		// Command was understood but could not be performed now.
		return &Error{Kind: KindTransient, Code: code, Message: message}
	case code >= 500:
		return &Error{Kind: KindPermanent, Code: code, Message: message}
	default:
		return &Error{Kind: KindPermanent, Code: code, Message: message}
	}
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind == KindTransient
	}
	return false
}

// IsPermanent reports whether err is hopeless to retry.
func IsPermanent(err error) bool {
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Kind == KindPermanent
	}
	return errors.Is(err, ErrPostingNotAllowed) || errors.Is(err, ErrAuthRejected)
}

// IsAuth reports whether err is a credential problem.
func IsAuth(err error) bool {
	var ne *Error
	if errors.As(err, &ne) && ne.Kind == KindAuth {
		return true
	}
	return errors.Is(err, ErrAuthRejected)
}

// IsNotFound reports whether err means the article does not exist upstream.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrArticleNotFound)
}

// IsProtocol reports whether err is a protocol-level failure: the server
// answered and the conversation is intact. The pool keeps a session that
// produced one; anything else broke the transport and the session must be
// closed.
func IsProtocol(err error) bool {
	if err == nil {
		return true
	}
	var ne *Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, ErrArticleNotFound) ||
		errors.Is(err, ErrPostingNotAllowed) ||
		errors.Is(err, ErrAuthRejected)
}
