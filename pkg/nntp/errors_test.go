package nntp

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		transient bool
		permanent bool
		auth      bool
		notFound  bool
	}{
		{name: "430 no such article", code: 430, notFound: true},
		{name: "423 no article with that number", code: 423, notFound: true},
		{name: "420 current article invalid", code: 420, notFound: true},
		{name: "440 posting not allowed", code: 440, permanent: true},
		{name: "441 posting failed", code: 441, transient: true},
		{name: "480 auth required", code: 480, auth: true},
		{name: "481 auth rejected", code: 481, permanent: true, auth: true},
		{name: "482 auth out of sequence", code: 482, permanent: true, auth: true},
		{name: "400 service discontinued", code: 400, transient: true},
		{name: "403 internal fault", code: 403, transient: true},
		{name: "500 unknown command", code: 500, permanent: true},
		{name: "502 permission denied", code: 502, permanent: true},
		{name: "503 feature not supported", code: 503, permanent: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newError(tt.code, "response text")
			assert.Equal(t, tt.transient, IsTransient(err), "IsTransient")
			assert.Equal(t, tt.permanent, IsPermanent(err), "IsPermanent")
			assert.Equal(t, tt.auth, IsAuth(err), "IsAuth")
			assert.Equal(t, tt.notFound, IsNotFound(err), "IsNotFound")
		})
	}
}

func TestNotFoundIsNeverRetried(t *testing.T) {
	err := newError(430, "no such article")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
}

func TestErrorStringIncludesCode(t *testing.T) {
	err := &Error{Kind: KindTransient, Code: 441, Message: "posting failed"}
	assert.Contains(t, err.Error(), "441")
	assert.Contains(t, err.Error(), "transient")

	noCode := &Error{Kind: KindPermanent, Message: "write: broken pipe"}
	assert.Contains(t, noCode.Error(), "permanent")
}

func TestHelpersSeeThroughWrapping(t *testing.T) {
	inner := newError(441, "posting failed")
	wrapped := fmt.Errorf("post segment 3: %w", inner)
	assert.True(t, IsTransient(wrapped))

	notFound := fmt.Errorf("fetch copy 1: %w", newError(430, "gone"))
	assert.True(t, IsNotFound(notFound))
	assert.True(t, errors.Is(notFound, ErrArticleNotFound))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "permanent", KindPermanent.String())
	assert.Equal(t, "auth", KindAuth.String())
	assert.Equal(t, "unknown", ErrorKind(0).String())
}

func TestIsProtocol(t *testing.T) {
	// Server answered: the session survives.
	assert.True(t, IsProtocol(nil))
	assert.True(t, IsProtocol(newError(441, "posting failed")))
	assert.True(t, IsProtocol(newError(502, "no permission")))
	assert.True(t, IsProtocol(fmt.Errorf("post: %w", ErrPostingNotAllowed)))
	assert.True(t, IsProtocol(ErrArticleNotFound))
	assert.True(t, IsProtocol(ErrAuthRejected))

	// Transport broke: the session must be closed.
	assert.False(t, IsProtocol(io.EOF))
	assert.False(t, IsProtocol(errors.New("connection reset by peer")))
}
