package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/redis/go-redis/v9"

	"mall/internal/config"
	"mall/internal/monitor"
	"mall/pkg/breaker"
	"mall/pkg/log"
)

// Loader produces the value for a missed key
type Loader func(ctx context.Context) (interface{}, error)

// Store cache-aside store: a bigcache L1 in front of a redis L2. Either layer may be
// disabled. Callers own invalidation through Delete; the store never decides freshness.
type Store struct {
	local   *bigcache.BigCache
	redis   redis.Cmdable
	prefix  string
	ttl     time.Duration
	breaker *breaker.CircuitBreaker
	metrics *monitor.MetricsCollector
}

// New builds a store from config; client may be nil when redis is off
func New(cfg config.CacheConfig, client redis.Cmdable, metrics *monitor.MetricsCollector) (*Store, error) {
	s := &Store{
		prefix:  cfg.Redis.KeyPrefix,
		ttl:     cfg.Redis.DefaultTTL,
		metrics: metrics,
	}

	if cfg.Local.Enabled {
		bc := bigcache.DefaultConfig(cfg.Local.TTL)
		if cfg.Local.Shards > 0 {
			bc.Shards = cfg.Local.Shards
		}
		if cfg.Local.CleanupInterval > 0 {
			bc.CleanWindow = cfg.Local.CleanupInterval
		}
		bc.HardMaxCacheSize = cfg.Local.MaxSizeMB
		bc.Verbose = false
		local, err := bigcache.New(context.Background(), bc)
		if err != nil {
			return nil, fmt.Errorf("failed to create local cache: %w", err)
		}
		s.local = local
	}

	if cfg.Redis.Enabled && client != nil {
		s.redis = client
		s.breaker = breaker.New("cache-redis", breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, redis.Nil)
			},
			OnStateChange: func(name string, from, to breaker.State) {
				log.WithFields(log.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Cache breaker state changed")
			},
		})
	}
	return s, nil
}

// GetOrLoad decodes the cached value for key into dst, calling load on a miss and
// writing the result back to every enabled layer
func (s *Store) GetOrLoad(ctx context.Context, key string, dst interface{}, load Loader) error {
	if raw, ok := s.getLocal(key); ok {
		if err := json.Unmarshal(raw, dst); err == nil {
			return nil
		}
	}
	if raw, ok := s.getRedis(ctx, key); ok {
		if err := json.Unmarshal(raw, dst); err == nil {
			s.setLocal(key, raw)
			return nil
		}
	}

	value, err := load(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	s.setLocal(key, raw)
	s.setRedis(ctx, key, raw)
	return nil
}

// Delete drops keys from both layers. Other instances' local layers expire on their TTL.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if s.local != nil {
			if err := s.local.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
				return err
			}
		}
	}
	if s.redis == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, s.prefix+key)
	}
	return s.breaker.Do(func() error {
		return s.redis.Del(ctx, full...).Err()
	})
}

// Close releases the local layer
func (s *Store) Close() error {
	if s.local == nil {
		return nil
	}
	return s.local.Close()
}

func (s *Store) getLocal(key string) ([]byte, bool) {
	if s.local == nil {
		return nil, false
	}
	raw, err := s.local.Get(key)
	if err != nil {
		s.metrics.RecordCache("local", "miss")
		return nil, false
	}
	s.metrics.RecordCache("local", "hit")
	return raw, true
}

func (s *Store) setLocal(key string, raw []byte) {
	if s.local == nil {
		return
	}
	if err := s.local.Set(key, raw); err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Debug("Local cache set failed")
	}
}

func (s *Store) getRedis(ctx context.Context, key string) ([]byte, bool) {
	if s.redis == nil {
		return nil, false
	}
	var raw []byte
	err := s.breaker.Do(func() error {
		var err error
		raw, err = s.redis.Get(ctx, s.prefix+key).Bytes()
		return err
	})
	switch {
	case err == nil:
		s.metrics.RecordCache("redis", "hit")
		return raw, true
	case errors.Is(err, redis.Nil):
		s.metrics.RecordCache("redis", "miss")
	default:
		s.metrics.RecordCache("redis", "error")
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Redis cache read failed")
	}
	return nil, false
}

func (s *Store) setRedis(ctx context.Context, key string, raw []byte) {
	if s.redis == nil {
		return
	}
	err := s.breaker.Do(func() error {
		return s.redis.Set(ctx, s.prefix+key, raw, s.ttl).Err()
	})
	if err != nil {
		log.WithFields(log.Fields{"key": key, "error": err.Error()}).Warn("Redis cache write failed")
	}
}
