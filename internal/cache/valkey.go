package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	TTL      time.Duration
}

// ValkeyClient caches rendered schedule pages as raw JSON so the list
// endpoint can serve hot traffic without touching Postgres.
type ValkeyClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	slog.Info("Connected to Valkey", "addr", cfg.Addr)

	return &ValkeyClient{client: rdb, ttl: cfg.TTL}, nil
}

func versionKey(orgID uuid.UUID) string {
	return fmt.Sprintf("schedule:%s:version", orgID)
}

// ScheduleKey builds the cache key for one schedule page. The key embeds
// the org's version counter, so bumping the version orphans every cached
// page at once instead of scanning for keys to delete.
func (v *ValkeyClient) ScheduleKey(ctx context.Context, orgID uuid.UUID, date, query string, page, pageSize int) (string, error) {
	version, err := v.client.Get(ctx, versionKey(orgID)).Result()
	if err == redis.Nil {
		version = "0"
	} else if err != nil {
		return "", fmt.Errorf("cache version lookup: %w", err)
	}
	return fmt.Sprintf("schedule:%s:v%s:%s:%s:%d:%d", orgID, version, date, query, page, pageSize), nil
}

// GetSchedule returns the cached JSON page, or ok=false on a miss.
func (v *ValkeyClient) GetSchedule(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := v.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}
	return raw, true, nil
}

func (v *ValkeyClient) SetSchedule(ctx context.Context, key string, payload []byte) error {
	if err := v.client.Set(ctx, key, payload, v.ttl).Err(); err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Invalidate bumps the org's schedule version after any write that
// changes availability. Old pages expire via their TTL.
func (v *ValkeyClient) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	if err := v.client.Incr(ctx, versionKey(orgID)).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
