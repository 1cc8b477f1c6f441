package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"funnelboard/internal/analytics"
	"funnelboard/internal/config"
)

const snapshotKey = "funnelboard:snapshot:latest"

// SnapshotCache keeps the last good snapshot in Redis so a restarted service
// can serve data before its first fetch cycle completes.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache backed by the configured Redis instance.
func NewSnapshotCache(cfg config.RedisConfig) *SnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Database,
		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	})

	return &SnapshotCache{
		client: client,
		ttl:    time.Duration(cfg.SnapshotTTL) * time.Second,
	}
}

// Set stores the snapshot under a fixed key.
func (c *SnapshotCache) Set(ctx context.Context, snapshot *analytics.MetricsSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	return nil
}

// Get retrieves the cached snapshot; redis.Nil is returned on a miss.
func (c *SnapshotCache) Get(ctx context.Context) (*analytics.MetricsSnapshot, error) {
	data, err := c.client.Get(ctx, snapshotKey).Result()
	if err != nil {
		return nil, err
	}

	var snapshot analytics.MetricsSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached snapshot: %w", err)
	}
	return &snapshot, nil
}

// Close releases the underlying Redis connection.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
