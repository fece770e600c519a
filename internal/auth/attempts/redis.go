package attempts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a redis-backed attempt store. Records carry a TTL so stale
// usernames age out without an explicit purge.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "auth:attempt:"
	}
	ttl := cfg.Redis.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &redisStore{client: client, prefix: prefix, ttl: ttl}, nil
}

func (s *redisStore) key(username string) string {
	return s.prefix + username
}

func (s *redisStore) Get(ctx context.Context, username string) (Attempt, error) {
	raw, err := s.client.Get(ctx, s.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Attempt{Username: username}, nil
		}
		return Attempt{}, fmt.Errorf("get attempt record: %w", err)
	}

	var record Attempt
	if err := json.Unmarshal(raw, &record); err != nil {
		return Attempt{}, fmt.Errorf("decode attempt record: %w", err)
	}
	record.Username = username
	return record, nil
}

func (s *redisStore) RegisterFailure(ctx context.Context, username string, threshold int, lockFor time.Duration, now time.Time) (*time.Time, error) {
	record, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	if record.Locked(now) {
		until := *record.LockedUntil
		return &until, nil
	}

	record.Failures++
	record.LockedUntil = nil
	record.UpdatedAt = now.UTC()

	var lock *time.Time
	if record.Failures >= threshold {
		until := now.UTC().Add(lockFor)
		record.LockedUntil = &until
		record.Failures = 0
		lock = &until
	}

	if err := s.put(ctx, record); err != nil {
		return nil, err
	}
	return lock, nil
}

func (s *redisStore) Reset(ctx context.Context, username string) error {
	if err := s.client.Del(ctx, s.key(username)).Err(); err != nil {
		return fmt.Errorf("reset attempt record: %w", err)
	}
	return nil
}

// Purge is a no-op for redis; record TTLs handle retention.
func (s *redisStore) Purge(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	return 0, nil
}

func (s *redisStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *redisStore) put(ctx context.Context, record Attempt) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode attempt record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(record.Username), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store attempt record: %w", err)
	}
	return nil
}
