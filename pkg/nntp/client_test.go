package nntp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/nntp/nntptest"
)

func dialTest(t *testing.T, srv *nntptest.Server, username, password string) *Client {
	t.Helper()
	client, err := Dial(context.Background(), ClientConfig{
		Host:        srv.Host(),
		Port:        srv.Port(),
		Username:    username,
		Password:    password,
		DialTimeout: 5 * time.Second,
		IOTimeout:   5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Quit() })
	return client
}

func binaryBody(n int) []byte {
	body := make([]byte, n)
	for i := range body {
		body[i] = byte(i * 13)
	}
	return body
}

func TestDialAndPing(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	client := dialTest(t, srv, "", "")
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPostAndFetchRoundTrip(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	client := dialTest(t, srv, "", "")
	ctx := context.Background()

	body := binaryBody(4096)
	posted := &Article{
		MessageID:  "<a1b2c3d4e5f6a7b8@ngPost.com>",
		Subject:    "MRFE3BX25XTF5CH6FPPX",
		Newsgroups: []string{"alt.binaries.test"},
		Body:       body,
	}
	require.NoError(t, client.Post(ctx, posted))

	stored, ok := srv.Body(posted.MessageID)
	require.True(t, ok)
	assert.Equal(t, body, stored)

	fetched, err := client.Article(ctx, posted.MessageID)
	require.NoError(t, err)
	assert.Equal(t, posted.MessageID, fetched.MessageID)
	assert.Equal(t, posted.Subject, fetched.Subject)
	assert.Equal(t, []string{"alt.binaries.test"}, fetched.Newsgroups)
	assert.Equal(t, body, fetched.Body)
}

func TestPostValidatesArticle(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	client := dialTest(t, srv, "", "")
	err := client.Post(context.Background(), &Article{
		Subject:    "MRFE3BX25XTF5CH6FPPX",
		Newsgroups: []string{"alt.binaries.test"},
		Body:       []byte("x"),
	})
	require.Error(t, err)
	assert.Equal(t, 0, srv.PostCount())
}

func TestAuthSuccess(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.RequireAuth("alice", "s3cret")

	client := dialTest(t, srv, "alice", "s3cret")
	assert.NoError(t, client.SelectGroup(context.Background(), "alt.binaries.test"))
}

func TestAuthRejected(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.RequireAuth("alice", "s3cret")

	_, err := Dial(context.Background(), ClientConfig{
		Host:     srv.Host(),
		Port:     srv.Port(),
		Username: "alice",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, IsAuth(err))
	assert.True(t, IsPermanent(err))
}

func TestUnauthenticatedCommandsNeedAuth(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.RequireAuth("alice", "s3cret")

	// No credentials configured, server demands them per command.
	client := dialTest(t, srv, "", "")
	err := client.Stat(context.Background(), "<whatever@ngPost.com>")
	require.Error(t, err)
	assert.True(t, IsAuth(err))
}

func TestReadOnlyServerRefusesPost(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.SetReadOnly(true)

	client := dialTest(t, srv, "", "")
	err := client.Post(context.Background(), &Article{
		MessageID:  "<a1b2c3d4e5f6a7b8@ngPost.com>",
		Subject:    "MRFE3BX25XTF5CH6FPPX",
		Newsgroups: []string{"alt.binaries.test"},
		Body:       []byte("x"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPostingNotAllowed)
	assert.True(t, IsPermanent(err))
}

func TestFailedPostIsTransient(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.FailPosts(1)

	client := dialTest(t, srv, "", "")
	ctx := context.Background()

	article := &Article{
		MessageID:  "<a1b2c3d4e5f6a7b8@ngPost.com>",
		Subject:    "MRFE3BX25XTF5CH6FPPX",
		Newsgroups: []string{"alt.binaries.test"},
		Body:       binaryBody(512),
	}

	err := client.Post(ctx, article)
	require.Error(t, err)
	assert.True(t, IsTransient(err))

	// Same session recovers on retry.
	require.NoError(t, client.Post(ctx, article))
	assert.Equal(t, 1, srv.PostCount())
}

func TestStatHeadAndNotFound(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()
	srv.Put("<feedface00000000@ngPost.com>", "ABCDEFGHIJKLMNOPQRST", binaryBody(100))

	client := dialTest(t, srv, "", "")
	ctx := context.Background()

	require.NoError(t, client.Stat(ctx, "<feedface00000000@ngPost.com>"))

	header, err := client.Head(ctx, "<feedface00000000@ngPost.com>")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNOPQRST", header["Subject"])
	assert.Equal(t, "<feedface00000000@ngPost.com>", header["Message-ID"])

	srv.Drop("<feedface00000000@ngPost.com>")

	err = client.Stat(ctx, "<feedface00000000@ngPost.com>")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = client.Article(ctx, "<feedface00000000@ngPost.com>")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestQuitClosesSession(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	client, err := Dial(context.Background(), ClientConfig{Host: srv.Host(), Port: srv.Port()})
	require.NoError(t, err)
	assert.NoError(t, client.Quit())
}

func TestContextCancellationStopsCommands(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	client := dialTest(t, srv, "", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := client.Ping(ctx)
	require.Error(t, err)
}
