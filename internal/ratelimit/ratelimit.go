// Package ratelimit throttles request submission per client. Redis backs the
// limiter when REDIS_URL is configured so limits hold across replicas;
// otherwise an in-process token bucket is used.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 30,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Close() error
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// Memory is a token bucket per key. Idle keys are evicted after ten minutes.
type Memory struct {
	cfg     Config
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
	stopCh  chan struct{}
	once    sync.Once
}

func NewMemory(cfg Config) *Memory {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}
	m := &Memory{
		cfg:     cfg,
		now:     time.Now,
		buckets: map[string]*bucket{},
		stopCh:  make(chan struct{}),
	}
	go m.cleanup()
	return m
}

func (m *Memory) cleanup() {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, b := range m.buckets {
				if now.Sub(b.lastUpdate) > 10*time.Minute {
					delete(m.buckets, key)
				}
			}
			m.mu.Unlock()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	perSecond := float64(m.cfg.RequestsPerMinute) / 60.0
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(m.cfg.BurstSize), lastUpdate: now}
		m.buckets[key] = b
	} else {
		elapsed := now.Sub(b.lastUpdate).Seconds()
		b.tokens = minFloat(float64(m.cfg.BurstSize), b.tokens+elapsed*perSecond)
		b.lastUpdate = now
	}

	res := Result{Limit: m.cfg.RequestsPerMinute}
	if b.tokens >= 1 {
		b.tokens--
		res.Allowed = true
		res.Remaining = int(b.tokens)
		return res, nil
	}
	missing := 1 - b.tokens
	res.RetryAfter = time.Duration(missing / perSecond * float64(time.Second))
	return res, nil
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	return nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Redis uses the GCRA implementation from redis_rate.
type Redis struct {
	client  *redis.Client
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

func NewRedis(client *redis.Client, cfg Config) *Redis {
	limit := redis_rate.PerMinute(cfg.RequestsPerMinute)
	if cfg.BurstSize > 0 {
		limit.Burst = cfg.BurstSize
	}
	return &Redis{
		client:  client,
		limiter: redis_rate.NewLimiter(client),
		limit:   limit,
		prefix:  "geekshub:ratelimit:",
	}
}

// NewRedisFromURL parses url and checks the connection before returning.
func NewRedisFromURL(ctx context.Context, url string, cfg Config) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client, cfg), nil
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	res, err := r.limiter.Allow(ctx, r.prefix+key, r.limit)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:    res.Allowed > 0,
		Limit:      r.limit.Rate,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
