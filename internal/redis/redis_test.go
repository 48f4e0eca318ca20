package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mall/internal/config"
)

func TestNew(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.RedisConfig{Host: mr.Host(), DialTimeout: time.Second, ReadTimeout: time.Second}
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	cfg.Port = port

	client, err := New(cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, Health(context.Background(), client))
}

func TestNewUnreachable(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 100 * time.Millisecond, MaxRetries: -1}
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestHealthNilClient(t *testing.T) {
	assert.Error(t, Health(context.Background(), nil))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "mall:lock:sweep", Key("lock", "sweep"))
	assert.Equal(t, "mall:cache:slots", Key("cache", "slots"))
}
