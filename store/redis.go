package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements SessionStore using Redis.
// Each owner's data lives in a single hash, so an owner's keys expire
// together through Redis's native TTL.
type RedisStore struct {
	client     *redis.Client
	prefix     string
	expiration time.Duration
}

// RedisConfig contains configuration options for Redis.
type RedisConfig struct {
	// Addr is the Redis server address (e.g., "localhost:6379")
	Addr string

	// Password is the Redis password (empty for no auth)
	Password string

	// DB is the Redis database number (0-15)
	DB int

	// KeyPrefix is prepended to every owner hash key and typically ends
	// with a colon (default: "tablenav:session:").
	KeyPrefix string

	// Expiration is how long an owner hash lives after its last write.
	// Zero means owner data never expires.
	Expiration time.Duration
}

// NewRedisStore creates a new Redis session store from a Redis client, an owner
// key prefix and an expiration (zero for none).
func NewRedisStore(client *redis.Client, keyPrefix string, expiration time.Duration) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     keyPrefix,
		expiration: expiration,
	}
}

// NewRedisFromConfig creates a new Redis session store and verifies the connection.
func NewRedisFromConfig(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to connect: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tablenav:session:"
	}

	return NewRedisStore(client, prefix, cfg.Expiration), nil
}

func (s *RedisStore) ownerKey(ownerID string) string {
	return s.prefix + ownerID
}

// Get returns the value for key, or nil if missing.
func (s *RedisStore) Get(ctx context.Context, ownerID, key string) ([]byte, error) {
	value, err := s.client.HGet(ctx, s.ownerKey(ownerID), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: failed to get key: %w", err)
	}
	return value, nil
}

// Set stores value under key and refreshes the owner's expiration.
func (s *RedisStore) Set(ctx context.Context, ownerID, key string, value []byte) error {
	ownerKey := s.ownerKey(ownerID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, ownerKey, key, value)
	if s.expiration > 0 {
		pipe.Expire(ctx, ownerKey, s.expiration)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to set key: %w", err)
	}
	return nil
}

// Delete removes key for the owner.
func (s *RedisStore) Delete(ctx context.Context, ownerID, key string) error {
	if err := s.client.HDel(ctx, s.ownerKey(ownerID), key).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete key: %w", err)
	}
	return nil
}

// Keys returns the owner's keys starting with prefix.
// Owner hashes are small, so fields are filtered client side rather than
// with an HSCAN glob that would need escaping.
func (s *RedisStore) Keys(ctx context.Context, ownerID, prefix string) ([]string, error) {
	fields, err := s.client.HKeys(ctx, s.ownerKey(ownerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list keys: %w", err)
	}

	var keys []string
	for _, field := range fields {
		if strings.HasPrefix(field, prefix) {
			keys = append(keys, field)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
