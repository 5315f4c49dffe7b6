package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

var Client *redis.Client

var (
	newRedisClient = func(opts *redis.Options) *redis.Client {
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return client.Ping(ctx).Err()
	}
	parseRedisURL = redis.ParseURL
)

// InitRedis connects the package client to addr, which may be host:port or a
// redis:// URL. On failure Client stays nil and the service runs without the
// snapshot mirror.
func InitRedis(ctx context.Context, addr string) error {
	if addr == "" {
		addr = "localhost:6379"
	}

	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := parseRedisURL(addr)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := newRedisClient(opts)
	if err := pingRedis(ctx, client); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect to redis: %w", err)
	}
	Client = client
	slog.Info("connected to redis", slog.String("addr", opts.Addr))
	return nil
}
