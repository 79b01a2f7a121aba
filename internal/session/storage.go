package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound indicates that nothing is persisted for the session.
var ErrNotFound = errors.New("session: no persisted identity")

// Storage is the durable slot holding one serialized identity.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
}

// RedisStorage keeps the identity of one browser session under a single key.
type RedisStorage struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisStorage returns storage for the given browser session id.
func NewRedisStorage(client redis.Cmdable, sessionID string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, key: IdentityKey(sessionID), ttl: ttl}
}

// IdentityKey is the Redis key holding a session's identity.
func IdentityKey(sessionID string) string {
	return "console:session:" + sessionID + ":identity"
}

// Load returns the persisted identity document or ErrNotFound.
func (s *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Save replaces the persisted identity document.
func (s *RedisStorage) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// Clear removes the persisted identity. Clearing an empty slot is not an error.
func (s *RedisStorage) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
