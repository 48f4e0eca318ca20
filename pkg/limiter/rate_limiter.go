package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter decides whether one more request under key is allowed
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, ttl_ms)
	return 1
end
return 0
`)

// SlidingWindowLimiter shared limiter backed by a redis sorted set per key
type SlidingWindowLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter
func NewSlidingWindowLimiter(client redis.Cmdable, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

// Allow checks if the request is allowed
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		now,
		now-l.window.Milliseconds(),
		l.limit,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// TokenBucketLimiter in-process token bucket per key
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	buckets  map[string]*bucket
	idleTTL  time.Duration
	lastScan time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTokenBucketLimiter creates a keyed token bucket limiter; idle keys are evicted after idleTTL
func NewTokenBucketLimiter(r rate.Limit, burst int, idleTTL time.Duration) *TokenBucketLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &TokenBucketLimiter{
		limit:    r,
		burst:    burst,
		buckets:  make(map[string]*bucket),
		idleTTL:  idleTTL,
		lastScan: time.Now(),
	}
}

// Allow checks if the request is allowed
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastScan) > l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastScan = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// Len returns the number of tracked keys
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
