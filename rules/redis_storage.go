package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps the collection blob under a single Redis string key
type RedisStorage struct {
	client redis.Cmdable
	key    string
}

// NewRedisStorage creates a Redis-backed Storage for a collection key
func NewRedisStorage(client redis.Cmdable, key string) *RedisStorage {
	if key == "" {
		key = DefaultStorageKey
	}
	return &RedisStorage{
		client: client,
		key:    key,
	}
}

// NewRedisClient returns a connected client, failing fast if the server does not answer PING
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	return client, nil
}

// Read returns the blob, or nil when the key has never been written
func (s *RedisStorage) Read(ctx context.Context) ([]byte, error) {
	blob, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rule collection: %w", err)
	}
	return blob, nil
}

// Write stores the blob without expiry
func (s *RedisStorage) Write(ctx context.Context, blob []byte) error {
	if err := s.client.Set(ctx, s.key, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write rule collection: %w", err)
	}
	return nil
}
