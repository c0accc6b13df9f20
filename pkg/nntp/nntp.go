// Package nntp speaks the news transfer protocol to an upstream provider.
//
// The rest of the pipeline consumes the Session interface and never touches
// sockets, TLS or the yEnc transport encoding; those live in the Client
// implementation. Bodies on the Session contract are the logical article
// bytes, already encrypted by the caller.
package nntp

import (
	"context"
)

// Header is a minimal view of article headers.
type Header map[string]string

// Session is one logical NNTP conversation. Implementations are not safe
// for concurrent use; the connection pool hands a session to one worker at
// a time.
type Session interface {
	// SelectGroup makes name the current group.
	SelectGroup(ctx context.Context, name string) error

	// Post submits the article. The Message-ID header must be set by the
	// caller; providers reject duplicates of an already-seen Message-ID.
	Post(ctx context.Context, a *Article) error

	// Article fetches a full article by Message-ID (angle brackets
	// included). Returns ErrArticleNotFound when the server has no copy.
	Article(ctx context.Context, messageID string) (*Article, error)

	// Head fetches only the headers of an article by Message-ID.
	Head(ctx context.Context, messageID string) (Header, error)

	// Stat checks existence of an article by Message-ID without
	// transferring it.
	Stat(ctx context.Context, messageID string) error

	// Ping probes liveness of the session.
	Ping(ctx context.Context) error

	// Quit ends the conversation and closes the transport.
	Quit() error
}
