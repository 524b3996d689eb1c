package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
	"github.com/redis/go-redis/v9"
)

// Store keeps session states by session id
type Store interface {
	Get(ctx context.Context, id string) (State, bool, error)
	Set(ctx context.Context, id string, st State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Cleanup(ctx context.Context) error
}

// MemoryStore keeps sessions in process memory with per-entry expiration
type MemoryStore struct {
	cache cache.Cache[string, State]
}

// NewMemoryStore makes a memory store, ttl is the default expiration and maxKeys limits
// the number of live sessions (0 for unlimited)
func NewMemoryStore(ttl time.Duration, maxKeys int) *MemoryStore {
	c := cache.NewCache[string, State]().WithTTL(ttl)
	if maxKeys > 0 {
		c = c.WithMaxKeys(maxKeys)
	}
	return &MemoryStore{cache: c}
}

// Get returns a live session
func (m *MemoryStore) Get(_ context.Context, id string) (State, bool, error) {
	st, ok := m.cache.Get(id)
	if !ok {
		return Anonymous, false, nil
	}
	return st, true, nil
}

// Set stores a session, ttl 0 uses the store default
func (m *MemoryStore) Set(_ context.Context, id string, st State, ttl time.Duration) error {
	m.cache.Set(id, st, ttl)
	return nil
}

// Delete removes a session, unknown ids are ignored
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Invalidate(id)
	return nil
}

// Cleanup drops expired sessions
func (m *MemoryStore) Cleanup(_ context.Context) error {
	m.cache.DeleteExpired()
	return nil
}

// Len returns the number of stored sessions, including expired but not yet cleaned ones
func (m *MemoryStore) Len() int { return m.cache.Len() }

// RedisStore keeps sessions as JSON values with redis-side expiration,
// so several instances can share admin sessions
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore makes a redis-backed session store
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jobboard"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(id string) string { return r.prefix + ":session:" + id }

// Get returns a live session
func (r *RedisStore) Get(ctx context.Context, id string) (State, bool, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Anonymous, false, nil
	}
	if err != nil {
		return Anonymous, false, fmt.Errorf("failed to get session: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return Anonymous, false, fmt.Errorf("failed to parse session: %w", err)
	}
	return st, true, nil
}

// Set stores a session with expiration ttl
func (r *RedisStore) Set(ctx context.Context, id string, st State, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Cleanup is a no-op, redis expires keys by itself
func (r *RedisStore) Cleanup(context.Context) error { return nil }

// Close closes the redis client
func (r *RedisStore) Close() error { return r.client.Close() }
