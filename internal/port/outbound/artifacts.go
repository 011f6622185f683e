package outbound

import (
	"context"
	"errors"
)

// ErrArtifactNotFound is returned when a named artifact does not exist for a session.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore buffers per-session output (debug URLs, remote logs, notes)
// keyed by session id. Implementations: memory (default), Redis.
type ArtifactStore interface {
	// Put stores data under name for the session, replacing any previous value.
	Put(ctx context.Context, sessionID, name string, data []byte) error

	// Get returns the named artifact.
	// Returns ErrArtifactNotFound if it doesn't exist or has expired.
	Get(ctx context.Context, sessionID, name string) ([]byte, error)

	// List returns the artifact names stored for the session, sorted.
	List(ctx context.Context, sessionID string) ([]string, error)

	// Cleanup removes every artifact of the session. Idempotent.
	Cleanup(ctx context.Context, sessionID string) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}
