// internal/session/store.go
package session

import (
	"context"
	"errors"
	"sync"

	"pagegen-pipeline/internal/common/database"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by a Store when no session exists for a client key.
var ErrNotFound = errors.New("session not found")

// Store persists the client-key to session-id mapping. Sessions have no
// server-side expiry; teardown is the client's concern.
type Store interface {
	Get(ctx context.Context, clientKey string) (string, error)
	Set(ctx context.Context, clientKey, sessionID string) error
}

const keyPrefix = "session:"

// RedisStore is the production Store backed by Redis.
type RedisStore struct {
	client *database.RedisClient
}

func NewRedisStore(client *database.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, clientKey string) (string, error) {
	val, err := s.client.Get(ctx, keyPrefix+clientKey)
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, clientKey, sessionID string) error {
	// 0 expiration: stable for the lifetime of the generation attempt.
	return s.client.Set(ctx, keyPrefix+clientKey, sessionID, 0)
}

// MemoryStore keeps sessions in process memory. Used in tests and as the
// degradation target when Redis is unreachable.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, clientKey string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.sessions[clientKey]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *MemoryStore) Set(_ context.Context, clientKey, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[clientKey] = sessionID
	return nil
}
