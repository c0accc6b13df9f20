package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nntpvault/nntpvault/pkg/nntp"
	"github.com/nntpvault/nntpvault/pkg/nntp/nntptest"
)

// stubSession is a scripted Session for pool behavior tests.
type stubSession struct {
	mu      sync.Mutex
	pingErr error
	pings   int
	quits   int
}

func (s *stubSession) SelectGroup(context.Context, string) error { return nil }
func (s *stubSession) Post(context.Context, *nntp.Article) error { return nil }
func (s *stubSession) Article(context.Context, string) (*nntp.Article, error) {
	return &nntp.Article{}, nil
}
func (s *stubSession) Head(context.Context, string) (nntp.Header, error) { return nntp.Header{}, nil }
func (s *stubSession) Stat(context.Context, string) error                { return nil }

func (s *stubSession) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return s.pingErr
}

func (s *stubSession) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quits++
	return nil
}

func (s *stubSession) setPingErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

// stubDialer hands out fresh stub sessions and records them in order.
type stubDialer struct {
	mu       sync.Mutex
	sessions []*stubSession
	dialErr  error
}

func (d *stubDialer) dial(context.Context) (nntp.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	s := &stubSession{}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *stubDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

func (d *stubDialer) session(i int) *stubSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[i]
}

func newTestPool(t *testing.T, cfg Config, dialer *stubDialer) *Pool {
	t.Helper()
	if cfg.MinIdle == 0 {
		cfg.MinIdle = -1 // keep dial counts deterministic
	}
	cfg.noSweeper = true
	p, err := New(cfg, dialer.dial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAcquireReusesIdleSession(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", ProbeInterval: time.Hour}, dialer)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release(true)

	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release(true)

	assert.Equal(t, 1, dialer.count(), "second acquire should reuse the idle session")

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
	assert.Equal(t, uint64(1), stats.Dials)
}

func TestMaxOpenBoundsConcurrentSessions(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", MaxOpen: 2, AcquireTimeout: 100 * time.Millisecond}, dialer)
	ctx := context.Background()

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	second, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = p.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, uint64(1), p.Stats().Waits)

	// Capacity frees as soon as one lease is returned.
	first.Release(true)
	third, err := p.Acquire(ctx)
	require.NoError(t, err)

	second.Release(true)
	third.Release(true)
	assert.Equal(t, 2, dialer.count())
}

func TestReleaseBrokenClosesSession(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary"}, dialer)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release(false)

	assert.Equal(t, 1, dialer.session(0).quits)
	assert.Equal(t, 0, p.Stats().Idle)

	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release(true)
	assert.Equal(t, 2, dialer.count(), "broken session must not be handed out again")
}

func TestReleaseIsIdempotent(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary"}, dialer)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(true)
	conn.Release(true)
	conn.Release(false)

	stats := p.Stats()
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 0, stats.InUse)
}

func TestStaleIdleSessionIsProbed(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", ProbeInterval: time.Nanosecond}, dialer)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	conn.Release(true)

	// Healthy probe: the same session comes back.
	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dialer.count())
	assert.GreaterOrEqual(t, dialer.session(0).pings, 1)
	conn.Release(true)

	// Dead probe: the session is discarded and a fresh one dialed.
	dialer.session(0).setPingErr(errors.New("connection reset"))
	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.count())
	assert.Equal(t, 1, dialer.session(0).quits)
	conn.Release(true)
}

func TestLifetimeExpiryEvictsSession(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", MaxLifetime: time.Nanosecond, ProbeInterval: time.Hour}, dialer)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	conn.Release(true)

	// Release already noticed the expired lifetime and closed it.
	assert.Equal(t, 1, dialer.session(0).quits)

	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.count())
	conn.Release(true)
}

func TestSweepReapsExpiredIdle(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", IdleTimeout: time.Nanosecond, ProbeInterval: time.Hour}, dialer)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(true)
	require.Equal(t, 1, p.Stats().Idle)

	time.Sleep(time.Millisecond)
	p.sweep(time.Now())

	assert.Equal(t, 0, p.Stats().Idle)
	assert.Equal(t, 1, dialer.session(0).quits)
}

func TestWarmFillsIdleFloor(t *testing.T) {
	dialer := &stubDialer{}
	cfg := Config{Name: "primary", MinIdle: 2, ProbeInterval: time.Hour}
	cfg.noSweeper = true
	p, err := New(cfg, dialer.dial)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Eventually(t, func() bool {
		return p.Stats().Idle == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseRejectsAcquire(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary"}, dialer)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, p.Close())

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	// Late release of an in-flight lease closes the session.
	conn.Release(true)
	assert.Equal(t, 1, dialer.session(0).quits)
}

func TestDialFailurePropagates(t *testing.T) {
	authErr := &nntp.Error{Kind: nntp.KindAuth, Code: 481, Message: "authentication failed"}
	dialer := &stubDialer{dialErr: authErr}
	p := newTestPool(t, Config{Name: "primary", MaxOpen: 1}, dialer)

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, nntp.IsAuth(err))

	// The failed dial must hand its capacity back.
	dialer.mu.Lock()
	dialer.dialErr = nil
	dialer.mu.Unlock()

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	conn.Release(true)
}

func TestParentCancellationWinsOverTimeout(t *testing.T) {
	dialer := &stubDialer{}
	p := newTestPool(t, Config{Name: "primary", MaxOpen: 1, AcquireTimeout: time.Hour}, dialer)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer conn.Release(true)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolAgainstRealSessions(t *testing.T) {
	srv := nntptest.NewServer()
	defer srv.Close()

	var dials atomic.Int32
	dial := func(ctx context.Context) (nntp.Session, error) {
		dials.Add(1)
		return nntp.Dial(ctx, nntp.ClientConfig{Host: srv.Host(), Port: srv.Port()})
	}

	cfg := Config{Name: "primary", MinIdle: -1, MaxOpen: 4, ProbeInterval: time.Hour}
	cfg.noSweeper = true
	p, err := New(cfg, dial)
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	conn, err := p.Acquire(ctx)
	require.NoError(t, err)

	article := &nntp.Article{
		MessageID:  "<pool0test00000001@ngPost.com>",
		Subject:    "ABCDEFGHIJKLMNOPQRST",
		Newsgroups: []string{"alt.binaries.test"},
		Body:       []byte{1, 2, 3, 4},
	}
	require.NoError(t, conn.Post(ctx, article))
	conn.Release(true)

	conn, err = p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Stat(ctx, article.MessageID))
	conn.Release(true)

	assert.Equal(t, int32(1), dials.Load())
	assert.Equal(t, 1, srv.PostCount())
}
