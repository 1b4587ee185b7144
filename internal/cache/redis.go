package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisDedupeStore keeps fingerprints in Redis so deduplication survives
// restarts and is shared when several workers send from the same persona.
type RedisDedupeStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisDedupeStore(ctx context.Context, cfg RedisConfig) (*RedisDedupeStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "outreach:sent:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 90 * 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisDedupeStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.TTL,
	}, nil
}

func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}

func (s *RedisDedupeStore) Seen(ctx context.Context, hash string) (bool, error) {
	count, err := s.client.Exists(ctx, s.keyPrefix+hash).Result()
	if err != nil {
		return false, fmt.Errorf("check sent hash: %w", err)
	}
	return count > 0, nil
}

func (s *RedisDedupeStore) Record(ctx context.Context, hash string) error {
	if err := s.client.Set(ctx, s.keyPrefix+hash, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("record sent hash: %w", err)
	}
	return nil
}
