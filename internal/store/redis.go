package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rainrelay/internal/constants"
	"rainrelay/internal/models"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "rainrelay:"

// RedisStore shares state between several relay processes. Entries expire through
// Redis TTLs rather than Prune.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL. A zero ttl keeps entries forever.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func firedKey(key models.EventKey) string {
	return redisKeyPrefix + "fired:" + key.String()
}

func relayKey(ref models.SourceMessageRef) string {
	return redisKeyPrefix + "relay:" + ref.String()
}

func (s *RedisStore) TryMarkFired(ctx context.Context, key models.EventKey) (bool, error) {
	ok, err := s.client.SetNX(ctx, firedKey(key), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event fired: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) HasFired(ctx context.Context, key models.EventKey) (bool, error) {
	n, err := s.client.Exists(ctx, firedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to query fired event: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) SaveRelay(ctx context.Context, mapping models.RelayMapping) (bool, error) {
	data, err := json.Marshal(mapping.Destination)
	if err != nil {
		return false, fmt.Errorf("failed to encode relay mapping: %w", err)
	}
	ok, err := s.client.SetNX(ctx, relayKey(mapping.Source), data, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to save relay mapping: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) LookupRelay(ctx context.Context, ref models.SourceMessageRef) (*models.DestinationRef, error) {
	data, err := s.client.Get(ctx, relayKey(ref)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get relay mapping: %w", err)
	}

	var dest models.DestinationRef
	if err := json.Unmarshal(data, &dest); err != nil {
		return nil, fmt.Errorf("failed to decode relay mapping: %w", err)
	}
	return &dest, nil
}

// Prune is a no-op; keys carry their own TTL.
func (s *RedisStore) Prune(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Stats(ctx context.Context) (models.StoreStats, error) {
	stats := models.StoreStats{Backend: s.Backend()}

	var err error
	if stats.FiredEvents, err = s.countKeys(ctx, redisKeyPrefix+"fired:*"); err != nil {
		return stats, err
	}
	if stats.RelayMappings, err = s.countKeys(ctx, redisKeyPrefix+"relay:*"); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *RedisStore) countKeys(ctx context.Context, pattern string) (int64, error) {
	var n int64
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", pattern, err)
	}
	return n, nil
}

func (s *RedisStore) Backend() string {
	return constants.StoreBackendRedis
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
