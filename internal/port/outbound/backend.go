// Package outbound defines the outbound port interfaces the session
// lifecycle depends on.
package outbound

import (
	"context"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/credentials"
)

// BackendReleaser releases the remote browser resource owned by one session.
// Release must succeed (return nil) when no resource exists.
type BackendReleaser interface {
	Release(ctx context.Context, sessionID string, creds credentials.Credentials) error
}
