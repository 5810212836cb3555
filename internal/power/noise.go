package power

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"smart-stay/internal/config"
)

// Bucket is the last report seen from one source.
type Bucket struct {
	State      bool      `json:"state"`
	ObservedAt time.Time `json:"observed_at"`
}

// BucketStore keeps one bucket per reporting source.
type BucketStore interface {
	Get(ctx context.Context, source string) (Bucket, bool, error)
	Put(ctx context.Context, source string, bucket Bucket) error
}

type MemoryBuckets struct {
	mu      sync.Mutex
	buckets map[string]Bucket
}

func NewMemoryBuckets() *MemoryBuckets {
	return &MemoryBuckets{buckets: make(map[string]Bucket)}
}

func (m *MemoryBuckets) Get(ctx context.Context, source string) (Bucket, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[source]
	return b, ok, nil
}

func (m *MemoryBuckets) Put(ctx context.Context, source string, bucket Bucket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[source] = bucket
	return nil
}

// RedisBuckets shares buckets between replicas. Keys expire after the noise window.
type RedisBuckets struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisBuckets(client redis.Cmdable, ttl time.Duration) *RedisBuckets {
	return &RedisBuckets{client: client, prefix: "smartstay:noise:", ttl: ttl}
}

func (r *RedisBuckets) Get(ctx context.Context, source string) (Bucket, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+source).Bytes()
	if errors.Is(err, redis.Nil) {
		return Bucket{}, false, nil
	}
	if err != nil {
		return Bucket{}, false, err
	}
	var b Bucket
	if err := json.Unmarshal(data, &b); err != nil {
		return Bucket{}, false, fmt.Errorf("corrupt noise bucket for %s: %w", source, err)
	}
	return b, true, nil
}

func (r *RedisBuckets) Put(ctx context.Context, source string, bucket Bucket) error {
	data, err := json.Marshal(bucket)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+source, data, r.ttl).Err()
}

// NewBucketStore builds the configured bucket store. The returned close function
// releases the Redis connection, if any.
func NewBucketStore(cfg config.PowerConfig, redisCfg config.RedisConfig) (BucketStore, func() error) {
	if cfg.NoiseStore != "redis" {
		return NewMemoryBuckets(), func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	ttl := cfg.NoiseWindow
	if ttl < time.Second {
		ttl = time.Second
	}
	return NewRedisBuckets(client, ttl), client.Close
}

// NoiseFilter flags repeated identical reports from one source inside a time window.
type NoiseFilter struct {
	store  BucketStore
	window time.Duration
	logger *slog.Logger
}

func NewNoiseFilter(store BucketStore, window time.Duration) *NoiseFilter {
	return &NoiseFilter{
		store:  store,
		window: window,
		logger: slog.With("component", "noise"),
	}
}

// IsDuplicate reports whether source already reported state less than the window ago.
// It never updates the bucket. Store errors count as "not a duplicate".
func (f *NoiseFilter) IsDuplicate(ctx context.Context, source string, state bool, now time.Time) bool {
	if f.window <= 0 {
		return false
	}
	b, ok, err := f.store.Get(ctx, source)
	if err != nil {
		f.logger.Warn("Noise bucket lookup failed", "source", source, "error", err)
		return false
	}
	return ok && b.State == state && now.Sub(b.ObservedAt) < f.window
}

// Observe overwrites the bucket for source.
func (f *NoiseFilter) Observe(ctx context.Context, source string, state bool, now time.Time) {
	if err := f.store.Put(ctx, source, Bucket{State: state, ObservedAt: now}); err != nil {
		f.logger.Warn("Noise bucket update failed", "source", source, "error", err)
	}
}
