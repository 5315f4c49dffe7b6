package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pricefeed/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	snapshotKey = "pricefeed:snapshot"
	snapshotTTL = 24 * time.Hour
)

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SnapshotStore mirrors the last good price snapshot into Redis so a restarted
// process has something to fall back on before its first successful fetch.
type SnapshotStore struct {
	redis  RedisClient
	tracer trace.Tracer
}

func NewSnapshotStore(client RedisClient, tracer trace.Tracer) *SnapshotStore {
	return &SnapshotStore{redis: client, tracer: tracer}
}

func (s *SnapshotStore) Save(ctx context.Context, entry *domain.CacheEntry) error {
	ctx, span := s.tracer.Start(ctx, "snapshot-store.save")
	defer span.End()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.redis.Set(ctx, snapshotKey, data, snapshotTTL).Err()
}

// Load returns the mirrored snapshot, or nil when none is stored.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.CacheEntry, error) {
	ctx, span := s.tracer.Start(ctx, "snapshot-store.load")
	defer span.End()

	data, err := s.redis.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if len(entry.Data) == 0 {
		return nil, nil
	}
	return &entry, nil
}
