package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/ctxkey"
	"github.com/Sentinel-Gate/sessiongate/internal/domain/session"
	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// TeardownReason labels why a session was torn down.
type TeardownReason string

const (
	// ReasonClose means the stream ended normally.
	ReasonClose TeardownReason = "close"
	// ReasonError means the stream failed.
	ReasonError TeardownReason = "error"
	// ReasonDisconnect means the client went away.
	ReasonDisconnect TeardownReason = "disconnect"
	// ReasonShutdown means the gateway is stopping.
	ReasonShutdown TeardownReason = "shutdown"
	// ReasonHandshake means the stream never completed its handshake.
	ReasonHandshake TeardownReason = "handshake_failed"
)

// Teardown step names, used in logs and the step failure metric.
const (
	StepBackendRelease = "backend_release"
	StepRegistryRemove = "registry_remove"
	StepArtifacts      = "artifacts_cleanup"
	StepHandleClose    = "handle_close"
)

// DefaultReleaseTimeout bounds the backend release step.
const DefaultReleaseTimeout = 15 * time.Second

// LifecycleObserver receives session lifecycle events. The HTTP metrics
// implement it; a nil observer is allowed.
type LifecycleObserver interface {
	SessionOpened()
	SessionClosed(reason string)
	TeardownStepFailed(step string)
}

// SessionLifecycle owns registration and the exactly-once teardown of sessions.
type SessionLifecycle struct {
	registry  *session.Registry
	backend   outbound.BackendReleaser
	artifacts outbound.ArtifactStore
	observer  LifecycleObserver
	logger    *slog.Logger

	releaseTimeout time.Duration
}

// LifecycleOption is a functional option for configuring SessionLifecycle.
type LifecycleOption func(*SessionLifecycle)

// WithBackend sets the backend whose per-session resources are released on teardown.
func WithBackend(b outbound.BackendReleaser) LifecycleOption {
	return func(l *SessionLifecycle) {
		l.backend = b
	}
}

// WithArtifacts sets the store whose per-session artifacts are deleted on teardown.
func WithArtifacts(a outbound.ArtifactStore) LifecycleOption {
	return func(l *SessionLifecycle) {
		l.artifacts = a
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o LifecycleObserver) LifecycleOption {
	return func(l *SessionLifecycle) {
		l.observer = o
	}
}

// WithReleaseTimeout bounds the backend release step.
func WithReleaseTimeout(d time.Duration) LifecycleOption {
	return func(l *SessionLifecycle) {
		if d > 0 {
			l.releaseTimeout = d
		}
	}
}

// NewSessionLifecycle creates a lifecycle over registry.
func NewSessionLifecycle(registry *session.Registry, logger *slog.Logger, opts ...LifecycleOption) *SessionLifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	l := &SessionLifecycle{
		registry:       registry,
		logger:         logger,
		releaseTimeout: DefaultReleaseTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Registry returns the registry the lifecycle manages.
func (l *SessionLifecycle) Registry() *session.Registry {
	return l.registry
}

// Open registers sess so that posted messages can reach it.
func (l *SessionLifecycle) Open(sess *session.Session) error {
	if err := l.registry.Register(sess); err != nil {
		return err
	}
	if l.observer != nil {
		l.observer.SessionOpened()
	}
	l.logger.Info("session opened", "session_id", sess.ID, "creds", sess.Credentials)
	return nil
}

// Teardown releases everything sess owns. Only the first call for a session
// runs; later calls return false immediately. Every step runs even when an
// earlier one fails, and failures are logged, never returned.
func (l *SessionLifecycle) Teardown(ctx context.Context, sess *session.Session, reason TeardownReason) bool {
	if sess == nil || !sess.BeginClose() {
		return false
	}

	// The triggering request may already be gone.
	ctx = context.WithoutCancel(ctx)
	logger := l.loggerFor(ctx).With("session_id", sess.ID, "reason", string(reason))
	start := time.Now()

	l.step(logger, StepBackendRelease, func() error {
		if l.backend == nil {
			return nil
		}
		rctx, cancel := context.WithTimeout(ctx, l.releaseTimeout)
		defer cancel()
		return l.backend.Release(rctx, sess.ID, sess.Credentials)
	})

	l.step(logger, StepRegistryRemove, func() error {
		l.registry.Remove(sess.ID)
		return nil
	})

	l.step(logger, StepArtifacts, func() error {
		if l.artifacts == nil {
			return nil
		}
		return l.artifacts.Cleanup(ctx, sess.ID)
	})

	l.step(logger, StepHandleClose, func() error {
		if sess.Handle == nil {
			return nil
		}
		return sess.Handle.Close()
	})

	sess.MarkClosed()
	if l.observer != nil {
		l.observer.SessionClosed(string(reason))
	}

	logger.Info("session closed", "age", sess.Age().Round(time.Millisecond), "teardown", time.Since(start))
	return true
}

// loggerFor prefers the request logger carried by ctx, which holds the
// request id of the stream that owned the session.
func (l *SessionLifecycle) loggerFor(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return l.logger
}

// step runs one teardown step, containing both errors and panics.
func (l *SessionLifecycle) step(logger *slog.Logger, name string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}

	logger.Error("teardown step failed", "step", name, "error", err)
	if l.observer != nil {
		l.observer.TeardownStepFailed(name)
	}
}

// Shutdown tears down every registered session concurrently and waits for
// all of them, or for ctx to be done.
func (l *SessionLifecycle) Shutdown(ctx context.Context) error {
	sessions := l.registry.Snapshot()
	if len(sessions) == 0 {
		return nil
	}
	l.logger.Info("tearing down sessions", "count", len(sessions))

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *session.Session) {
			defer wg.Done()
			l.Teardown(ctx, s, ReasonShutdown)
		}(sess)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("session teardown did not finish"), ctx.Err())
	}
}
