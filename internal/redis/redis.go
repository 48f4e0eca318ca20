package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mall/internal/config"
	"mall/pkg/log"
)

const keyPrefix = "mall"

// New creates a client from config and verifies the connection
func New(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	})

	if err := Health(context.Background(), client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}

	log.WithFields(log.Fields{"addr": cfg.GetAddr(), "db": cfg.DB}).Info("Redis connected successfully")
	return client, nil
}

// Health pings redis
func Health(ctx context.Context, client redis.UniversalClient) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return client.Ping(ctx).Err()
}

// Key joins key parts under the service prefix, e.g. Key("lock", "sweep") = "mall:lock:sweep"
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
