// Package redis provides a Redis-backed outbound.ArtifactStore so buffered
// session artifacts survive gateway restarts and can be inspected externally.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sentinel-Gate/sessiongate/internal/port/outbound"
)

// DefaultKeyPrefix is used when Config.KeyPrefix is empty.
const DefaultKeyPrefix = "sessiongate:artifacts:"

// Config contains configuration options for the Redis artifact store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is prepended to all keys. Default: DefaultKeyPrefix.
	KeyPrefix string

	// TTL expires artifacts after the given duration (0 = never).
	TTL time.Duration
}

// ArtifactStore implements outbound.ArtifactStore using Redis strings.
// Keys are <prefix>session:<session id>:<name>.
type ArtifactStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// storedItem is the JSON structure stored under each key.
type storedItem struct {
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArtifactStore creates a Redis-backed artifact store.
func NewArtifactStore(cfg Config) (*ArtifactStore, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	return &ArtifactStore{
		client:    cfg.Client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

// Put stores data under name for the session.
func (s *ArtifactStore) Put(ctx context.Context, sessionID, name string, data []byte) error {
	payload, err := json.Marshal(storedItem{Data: data, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	key := s.key(sessionID, name)
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Get returns the named artifact or outbound.ErrArtifactNotFound.
func (s *ArtifactStore) Get(ctx context.Context, sessionID, name string) ([]byte, error) {
	key := s.key(sessionID, name)
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, outbound.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var item storedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact %s: %w", key, err)
	}
	return item.Data, nil
}

// List returns the artifact names of the session, sorted.
func (s *ArtifactStore) List(ctx context.Context, sessionID string) ([]string, error) {
	prefix := s.sessionPrefix(sessionID)
	keys, err := s.scanKeys(ctx, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifacts: %w", err)
	}

	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// Cleanup deletes every artifact of the session. Idempotent.
func (s *ArtifactStore) Cleanup(ctx context.Context, sessionID string) error {
	keys, err := s.scanKeys(ctx, s.sessionPrefix(sessionID)+"*")
	if err != nil {
		return fmt.Errorf("failed to scan artifacts: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return nil
}

// Ping checks connectivity to Redis.
func (s *ArtifactStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *ArtifactStore) Close() error {
	return s.client.Close()
}

func (s *ArtifactStore) sessionPrefix(sessionID string) string {
	return s.keyPrefix + "session:" + sessionID + ":"
}

func (s *ArtifactStore) key(sessionID, name string) string {
	return s.sessionPrefix(sessionID) + name
}

// scanKeys uses SCAN to find all keys matching a pattern.
func (s *ArtifactStore) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// Compile-time interface check.
var _ outbound.ArtifactStore = (*ArtifactStore)(nil)
