package browserbase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// Release retry defaults.
const (
	ReleaseInitialInterval = 100 * time.Millisecond
	ReleaseMaxInterval     = 2 * time.Second
	ReleaseMaxRetries      = 3
)

// API is the subset of Client the pool depends on.
type API interface {
	CreateSession(ctx context.Context, creds credentials.Credentials) (*BrowserSession, error)
	ReleaseSession(ctx context.Context, creds credentials.Credentials, id string) error
}

// entry guards the remote browser of one gateway session.
// mu is held across API calls so concurrent Acquire calls create at most one browser.
type entry struct {
	mu       sync.Mutex
	session  *BrowserSession
	released bool
}

// Pool tracks the remote browser owned by each gateway session, keyed by
// session id. Sessions never share a browser, even when their credentials
// match. It implements outbound.BackendReleaser.
type Pool struct {
	api    API
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	newBackOff func() backoff.BackOff
}

// PoolOption is a functional option for configuring Pool.
type PoolOption func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.logger = logger
	}
}

// WithReleaseBackOff replaces the retry policy used by Release.
func WithReleaseBackOff(fn func() backoff.BackOff) PoolOption {
	return func(p *Pool) {
		p.newBackOff = fn
	}
}

// NewPool creates an empty pool backed by api.
func NewPool(api API, opts ...PoolOption) *Pool {
	p := &Pool{
		api:        api,
		logger:     slog.Default(),
		entries:    make(map[string]*entry),
		newBackOff: defaultReleaseBackOff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func defaultReleaseBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(ReleaseInitialInterval),
		backoff.WithMaxInterval(ReleaseMaxInterval),
		backoff.WithRandomizationFactor(0.5),
	)
	return backoff.WithMaxRetries(b, ReleaseMaxRetries)
}

func (p *Pool) entryFor(sessionID string, create bool) *entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sessionID]
	if !ok && create {
		e = &entry{}
		p.entries[sessionID] = e
	}
	return e
}

// forget drops e from the table unless it has already been replaced.
func (p *Pool) forget(sessionID string, e *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.entries[sessionID] == e {
		delete(p.entries, sessionID)
	}
}

// Acquire returns the remote browser of the session, creating one with creds
// if needed. The bool reports whether a new browser was created.
func (p *Pool) Acquire(ctx context.Context, sessionID string, creds credentials.Credentials) (*BrowserSession, bool, error) {
	for {
		e := p.entryFor(sessionID, true)

		e.mu.Lock()
		if e.released {
			// Lost a race with Release; start over on a fresh entry.
			e.mu.Unlock()
			p.forget(sessionID, e)
			continue
		}
		if e.session != nil {
			bs := e.session
			e.mu.Unlock()
			return bs, false, nil
		}

		bs, err := p.api.CreateSession(ctx, creds)
		if err != nil {
			e.mu.Unlock()
			return nil, false, err
		}
		e.session = bs
		e.mu.Unlock()

		p.logger.Info("browser session created",
			"session_id", sessionID, "browser_session_id", bs.ID, "creds", creds)
		return bs, true, nil
	}
}

// Get returns the remote browser of the session without creating one.
func (p *Pool) Get(sessionID string) (*BrowserSession, bool) {
	e := p.entryFor(sessionID, false)
	if e == nil {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.session != nil
}

// Release stops the remote browser of the session and forgets the session.
// It returns nil when there is nothing to release or when the API no longer
// knows the browser. Transient API failures are retried with exponential backoff.
func (p *Pool) Release(ctx context.Context, sessionID string, creds credentials.Credentials) error {
	e := p.entryFor(sessionID, false)
	if e == nil {
		return nil
	}

	e.mu.Lock()
	bs := e.session
	e.session = nil
	e.released = true
	e.mu.Unlock()
	p.forget(sessionID, e)

	if bs == nil {
		return nil
	}

	op := func() error {
		err := p.api.ReleaseSession(ctx, creds, bs.ID)
		if err == nil || errors.Is(err, ErrNotFound) {
			return nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		p.logger.Warn("browser session release failed, retrying",
			"session_id", sessionID, "browser_session_id", bs.ID, "error", err, "retry_in", next)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(p.newBackOff(), ctx), notify); err != nil {
		return err
	}

	p.logger.Info("browser session released", "session_id", sessionID, "browser_session_id", bs.ID)
	return nil
}

// Size returns the number of live remote browsers.
func (p *Pool) Size() int {
	p.mu.Lock()
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.mu.Unlock()

	n := 0
	for _, e := range entries {
		e.mu.Lock()
		if e.session != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Compile-time interface verification.
var _ outbound.BackendReleaser = (*Pool)(nil)
