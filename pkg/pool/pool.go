// Package pool manages long-lived NNTP sessions shared by upload and
// download workers.
//
// Sessions are created lazily up to a cap, parked idle between uses and
// reaped when stale. Unhealthy sessions are closed instead of being handed
// out again; the caller sees a fresh one on retry.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nntpvault/nntpvault/internal/logger"
	"github.com/nntpvault/nntpvault/pkg/nntp"
)

// Defaults for Config fields left at zero.
const (
	DefaultMinIdle        = 1
	DefaultMaxOpen        = 60
	DefaultIdleTimeout    = 5 * time.Minute
	DefaultMaxLifetime    = time.Hour
	DefaultAcquireTimeout = 5 * time.Second
	DefaultProbeInterval  = 30 * time.Second

	sweepInterval = 30 * time.Second
	probeTimeout  = 5 * time.Second
)

var (
	// ErrExhausted means no session became available within the
	// acquisition timeout. Callers treat it as transient.
	ErrExhausted = errors.New("pool exhausted")

	// ErrClosed means the pool has been shut down.
	ErrClosed = errors.New("pool closed")
)

// DialFunc opens one authenticated session.
type DialFunc func(ctx context.Context) (nntp.Session, error)

// Config tunes one provider's pool.
type Config struct {
	// Name identifies the provider in logs and metrics.
	Name string

	// MinIdle is the idle floor kept warm in the background. Negative
	// disables warming.
	MinIdle int

	MaxOpen        int
	IdleTimeout    time.Duration
	MaxLifetime    time.Duration
	AcquireTimeout time.Duration

	// ProbeInterval bounds how stale an idle session may be before it is
	// pinged on acquisition.
	ProbeInterval time.Duration

	noSweeper bool // tests
}

func (cfg Config) withDefaults() Config {
	if cfg.MinIdle == 0 {
		cfg.MinIdle = DefaultMinIdle
	}
	if cfg.MinIdle < 0 {
		cfg.MinIdle = 0
	}
	if cfg.MaxOpen == 0 {
		cfg.MaxOpen = DefaultMaxOpen
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.MaxLifetime == 0 {
		cfg.MaxLifetime = DefaultMaxLifetime
	}
	if cfg.AcquireTimeout == 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	return cfg
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Open   int
	Idle   int
	InUse  int
	Dials  uint64
	Closes uint64
	Waits  uint64
}

type pooledSession struct {
	session   nntp.Session
	createdAt time.Time
	lastUsed  time.Time
}

// Pool is a bounded set of sessions for one provider.
type Pool struct {
	cfg  Config
	dial DialFunc

	// sem holds one token per in-use session and caps total sockets.
	sem  chan struct{}
	done chan struct{}

	mu     sync.Mutex
	idle   []*pooledSession
	inUse  int
	closed bool

	dials  atomic.Uint64
	closes atomic.Uint64
	waits  atomic.Uint64

	sweeperDone chan struct{}
}

// New builds a pool and warms it to MinIdle in the background.
func New(cfg Config, dial DialFunc) (*Pool, error) {
	if dial == nil {
		return nil, errors.New("pool: nil dial func")
	}
	cfg = cfg.withDefaults()
	if cfg.MinIdle > cfg.MaxOpen {
		return nil, fmt.Errorf("pool: min idle %d exceeds max open %d", cfg.MinIdle, cfg.MaxOpen)
	}

	p := &Pool{
		cfg:         cfg,
		dial:        dial,
		sem:         make(chan struct{}, cfg.MaxOpen),
		done:        make(chan struct{}),
		sweeperDone: make(chan struct{}),
	}

	go p.warm(cfg.MinIdle)
	if cfg.noSweeper {
		close(p.sweeperDone)
	} else {
		go p.sweeper()
	}
	return p, nil
}

// Name returns the provider name the pool was configured with.
func (p *Pool) Name() string {
	return p.cfg.Name
}

// Conn is one leased session. Callers use it as the session and hand it
// back with Release exactly once.
type Conn struct {
	nntp.Session

	pool     *Pool
	pooled   *pooledSession
	released atomic.Bool
}

// Release returns the session to the pool, or closes it when ok is false.
func (c *Conn) Release(ok bool) {
	if c == nil || !c.released.CompareAndSwap(false, true) {
		return
	}
	c.pool.release(c.pooled, ok)
}

// Acquire leases a session, dialing a new one when no healthy idle session
// exists and the cap allows. Blocks up to the acquisition timeout.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	select {
	case p.sem <- struct{}{}:
	case <-p.done:
		return nil, ErrClosed
	case <-acquireCtx.Done():
		p.waits.Add(1)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: no session for %q within %s", ErrExhausted, p.cfg.Name, p.cfg.AcquireTimeout)
	}

	// Token held from here on. It travels with the leased session and is
	// surrendered in release.
	for {
		ps := p.popIdle()
		if ps == nil {
			break
		}
		if p.expired(ps, time.Now()) {
			p.closeSession(ps, "expired")
			continue
		}
		if p.needsProbe(ps) {
			probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
			err := ps.session.Ping(probeCtx)
			probeCancel()
			if err != nil {
				p.closeSession(ps, "probe failed")
				continue
			}
		}
		p.markInUse(1)
		return &Conn{Session: ps.session, pool: p, pooled: ps}, nil
	}

	ps, err := p.dialSession(acquireCtx)
	if err != nil {
		<-p.sem
		return nil, err
	}
	p.markInUse(1)
	return &Conn{Session: ps.session, pool: p, pooled: ps}, nil
}

// Stats returns current occupancy counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	inUse := p.inUse
	p.mu.Unlock()
	return Stats{
		Open:   idle + inUse,
		Idle:   idle,
		InUse:  inUse,
		Dials:  p.dials.Load(),
		Closes: p.closes.Load(),
		Waits:  p.waits.Load(),
	}
}

// Close shuts the pool down and closes every idle session. In-flight
// sessions are closed as they are released.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.done)
	<-p.sweeperDone

	for _, ps := range idle {
		p.closeSession(ps, "pool closed")
	}
	return nil
}

func (p *Pool) release(ps *pooledSession, ok bool) {
	p.markInUse(-1)

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if !ok || closed || p.expired(ps, time.Now()) {
		reason := "released broken"
		if closed {
			reason = "pool closed"
		}
		p.closeSession(ps, reason)
	} else {
		ps.lastUsed = time.Now()
		p.mu.Lock()
		p.idle = append(p.idle, ps)
		p.mu.Unlock()
	}

	<-p.sem
}

func (p *Pool) popIdle() *pooledSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.idle)
	if n == 0 {
		return nil
	}
	ps := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return ps
}

func (p *Pool) markInUse(delta int) {
	p.mu.Lock()
	p.inUse += delta
	p.mu.Unlock()
}

func (p *Pool) expired(ps *pooledSession, now time.Time) bool {
	if p.cfg.MaxLifetime > 0 && now.Sub(ps.createdAt) > p.cfg.MaxLifetime {
		return true
	}
	if p.cfg.IdleTimeout > 0 && !ps.lastUsed.IsZero() && now.Sub(ps.lastUsed) > p.cfg.IdleTimeout {
		return true
	}
	return false
}

func (p *Pool) needsProbe(ps *pooledSession) bool {
	if ps.lastUsed.IsZero() {
		return false
	}
	return time.Since(ps.lastUsed) >= p.cfg.ProbeInterval
}

func (p *Pool) dialSession(ctx context.Context) (*pooledSession, error) {
	session, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial provider %q: %w", p.cfg.Name, err)
	}
	p.dials.Add(1)
	logger.Debug("session opened", logger.KeyProvider, p.cfg.Name)
	return &pooledSession{session: session, createdAt: time.Now()}, nil
}

func (p *Pool) closeSession(ps *pooledSession, reason string) {
	_ = ps.session.Quit()
	p.closes.Add(1)
	logger.Debug("session closed", logger.KeyProvider, p.cfg.Name, "reason", reason)
}

// warm pre-dials sessions until MinIdle are parked.
func (p *Pool) warm(target int) {
	for i := 0; i < target; i++ {
		p.mu.Lock()
		stop := p.closed || len(p.idle)+p.inUse >= p.cfg.MaxOpen || len(p.idle) >= target
		p.mu.Unlock()
		if stop {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
		ps, err := p.dialSession(ctx)
		cancel()
		if err != nil {
			logger.Debug("warmup dial failed", logger.KeyProvider, p.cfg.Name, logger.Err(err))
			return
		}
		ps.lastUsed = time.Now()

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.closeSession(ps, "pool closed")
			return
		}
		p.idle = append(p.idle, ps)
		p.mu.Unlock()
	}
}

// sweeper reaps expired idle sessions and keeps the idle floor warm.
func (p *Pool) sweeper() {
	defer close(p.sweeperDone)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.sweep(time.Now())
		}
	}
}

func (p *Pool) sweep(now time.Time) {
	var expired []*pooledSession

	p.mu.Lock()
	kept := p.idle[:0]
	for _, ps := range p.idle {
		if p.expired(ps, now) {
			expired = append(expired, ps)
		} else {
			kept = append(kept, ps)
		}
	}
	p.idle = kept
	missing := p.cfg.MinIdle - (len(p.idle) + p.inUse)
	p.mu.Unlock()

	for _, ps := range expired {
		p.closeSession(ps, "swept")
	}
	if missing > 0 {
		go p.warm(p.cfg.MinIdle)
	}
}
