package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired the key is held by another owner
	ErrNotAcquired = errors.New("lock: not acquired")
	// ErrNotHeld the caller no longer owns the key
	ErrNotHeld = errors.New("lock: not held")
)

var (
	unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLock single-key lease owned by a random token
type RedisLock struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a lock on key with a fresh owner token
func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Key returns the redis key of the lock
func (l *RedisLock) Key() string { return l.key }

// Lock acquires the lock once
func (l *RedisLock) Lock(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	return nil
}

// TryLock retries Lock up to attempts times, waiting delay between tries
func (l *RedisLock) TryLock(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		err := l.Lock(ctx)
		if !errors.Is(err, ErrNotAcquired) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return ErrNotAcquired
}

// Unlock releases the lock if this owner still holds it
func (l *RedisLock) Unlock(ctx context.Context) error {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend resets the ttl if this owner still holds the lock
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsHeld reports whether this owner holds the lock
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	v, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == l.token, nil
}
