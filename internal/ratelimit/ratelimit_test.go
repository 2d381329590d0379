package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory(t *testing.T, cfg Config) (*Memory, *time.Time) {
	t.Helper()
	m := NewMemory(cfg)
	t.Cleanup(func() { _ = m.Close() })
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, &now
}

func TestMemory_AllowsBurstThenRejects(t *testing.T) {
	m, _ := newTestMemory(t, Config{RequestsPerMinute: 60, BurstSize: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := m.Allow(ctx, "user:u1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
	}

	res, err := m.Allow(ctx, "user:u1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Second, res.RetryAfter)
}

func TestMemory_RefillsOverTime(t *testing.T) {
	m, now := newTestMemory(t, Config{RequestsPerMinute: 60, BurstSize: 1})
	ctx := context.Background()

	res, _ := m.Allow(ctx, "k")
	require.True(t, res.Allowed)
	res, _ = m.Allow(ctx, "k")
	require.False(t, res.Allowed)

	*now = now.Add(time.Second)
	res, _ = m.Allow(ctx, "k")
	assert.True(t, res.Allowed)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	m, _ := newTestMemory(t, Config{RequestsPerMinute: 10, BurstSize: 1})
	ctx := context.Background()

	res, _ := m.Allow(ctx, "user:a")
	assert.True(t, res.Allowed)
	res, _ = m.Allow(ctx, "user:b")
	assert.True(t, res.Allowed)
	res, _ = m.Allow(ctx, "user:a")
	assert.False(t, res.Allowed)
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	m := NewMemory(DefaultConfig())
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestNewRedis_UsesBurst(t *testing.T) {
	r := NewRedis(nil, Config{RequestsPerMinute: 30, BurstSize: 7})
	assert.Equal(t, 30, r.limit.Rate)
	assert.Equal(t, 7, r.limit.Burst)
	assert.Equal(t, time.Minute, r.limit.Period)
}
