// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// DefaultCleanupInterval is how often expired artifacts are swept.
const DefaultCleanupInterval = 1 * time.Minute

type artifact struct {
	data      []byte
	expiresAt time.Time // zero = no expiration
}

func (a artifact) expired(now time.Time) bool {
	return !a.expiresAt.IsZero() && now.After(a.expiresAt)
}

// MemoryArtifactStore implements outbound.ArtifactStore with a nested map
// (session id -> name -> artifact). Thread-safe for concurrent access.
// A background goroutine removes expired artifacts periodically.
type MemoryArtifactStore struct {
	artifacts       map[string]map[string]artifact
	mu              sync.RWMutex
	ttl             time.Duration
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
	logger          *slog.Logger
}

// StoreOption is a functional option for configuring MemoryArtifactStore.
type StoreOption func(*MemoryArtifactStore)

// WithLogger sets the logger used by the sweep goroutine.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *MemoryArtifactStore) {
		s.logger = logger
	}
}

// NewArtifactStore creates a store whose artifacts expire after ttl (0 = never).
func NewArtifactStore(ttl time.Duration, opts ...StoreOption) *MemoryArtifactStore {
	return NewArtifactStoreWithConfig(ttl, DefaultCleanupInterval, opts...)
}

// NewArtifactStoreWithConfig creates a store with a custom sweep interval.
func NewArtifactStoreWithConfig(ttl, cleanupInterval time.Duration, opts ...StoreOption) *MemoryArtifactStore {
	s := &MemoryArtifactStore{
		artifacts:       make(map[string]map[string]artifact),
		ttl:             ttl,
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCleanup starts the background sweep goroutine.
// Call Stop() to stop it gracefully.
func (s *MemoryArtifactStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep removes expired artifacts and empty session buckets.
func (s *MemoryArtifactStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for sessionID, bucket := range s.artifacts {
		for name, a := range bucket {
			if a.expired(now) {
				delete(bucket, name)
				cleaned++
			}
		}
		if len(bucket) == 0 {
			delete(s.artifacts, sessionID)
		}
	}

	if cleaned > 0 {
		s.logger.Debug("cleaned expired artifacts", "count", cleaned)
	}
}

// Stop stops the sweep goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *MemoryArtifactStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// Put stores a copy of data under name for the session.
func (s *MemoryArtifactStore) Put(ctx context.Context, sessionID, name string, data []byte) error {
	a := artifact{data: append([]byte(nil), data...)}
	if s.ttl > 0 {
		a.expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.artifacts[sessionID]
	if !ok {
		bucket = make(map[string]artifact)
		s.artifacts[sessionID] = bucket
	}
	bucket[name] = a
	return nil
}

// Get returns a copy of the named artifact.
// Expired artifacts are reported missing; the sweep deletes them.
func (s *MemoryArtifactStore) Get(ctx context.Context, sessionID, name string) ([]byte, error) {
	s.mu.RLock()
	a, ok := s.artifacts[sessionID][name]
	s.mu.RUnlock()

	if !ok || a.expired(time.Now()) {
		return nil, outbound.ErrArtifactNotFound
	}
	return append([]byte(nil), a.data...), nil
}

// List returns the live artifact names of the session, sorted.
func (s *MemoryArtifactStore) List(ctx context.Context, sessionID string) ([]string, error) {
	now := time.Now()

	s.mu.RLock()
	names := make([]string, 0, len(s.artifacts[sessionID]))
	for name, a := range s.artifacts[sessionID] {
		if !a.expired(now) {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	sort.Strings(names)
	return names, nil
}

// Cleanup drops every artifact of the session.
func (s *MemoryArtifactStore) Cleanup(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.artifacts, sessionID)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryArtifactStore) Ping(ctx context.Context) error {
	return nil
}

// Close stops the sweep goroutine.
func (s *MemoryArtifactStore) Close() error {
	s.Stop()
	return nil
}

// Size returns the number of sessions holding at least one artifact.
func (s *MemoryArtifactStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artifacts)
}

// Compile-time interface verification.
var _ outbound.ArtifactStore = (*MemoryArtifactStore)(nil)
