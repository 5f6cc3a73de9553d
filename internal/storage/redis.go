package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"veridia/pkg/session"
	"veridia/pkg/turn"
)

// RedisStore persists sessions to Redis, one JSON document per slot.
// The key carries the schema version, so a save written under an older
// schema is never even read.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed session store.
func NewRedisStore(addr string, logger *slog.Logger) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	return &RedisStore{
		client: rdb,
		logger: logger,
	}
}

func sessionKey(slot string) string {
	return fmt.Sprintf("adventure:v%d:%s", session.SchemaVersion, slot)
}

func (r *RedisStore) SaveSession(ctx context.Context, slot string, s *session.Session) error {
	s.Version = session.SchemaVersion
	data, err := json.Marshal(s)
	if err != nil {
		r.logger.Error("Failed to marshal session", "slot", slot, "error", err)
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(slot), string(data), 0).Err(); err != nil {
		r.logger.Error("Failed to save session", "slot", slot, "error", err)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (r *RedisStore) LoadSession(ctx context.Context, slot string) (*session.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(slot)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		r.logger.Error("Failed to load session", "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return decodeSession([]byte(data))
}

func (r *RedisStore) DeleteSession(ctx context.Context, slot string) error {
	if err := r.client.Del(ctx, sessionKey(slot)).Err(); err != nil {
		r.logger.Error("Failed to delete session", "slot", slot, "error", err)
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

// WaitForConnection waits for Redis to become available during startup.
func (r *RedisStore) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// decodeSession parses a save document, distinguishing corruption from
// absence. A version mismatch inside a same-version key means the
// document was tampered with or truncated; that is corruption.
func decodeSession(data []byte) (*session.Session, error) {
	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	if s.Version != session.SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrCorrupt, s.Version, session.SchemaVersion)
	}
	if s.Map == nil {
		s.Map = make(map[string]turn.Location)
	}
	if s.Log == nil {
		s.Log = make([]session.StoryLogEntry, 0)
	}
	return &s, nil
}
