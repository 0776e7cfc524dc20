package cache_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/appcache/pkg/cache"
)

// testClock is a manually advanced time source.
type testClock struct {
	now time.Time
	mu  sync.Mutex
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestManager returns a manager on a simulated clock with the sweep disabled.
func newTestManager(t *testing.T, opts ...cache.Option) (*cache.Manager, *testClock) {
	t.Helper()

	clock := newTestClock()
	opts = append([]cache.Option{cache.WithSweepInterval(0), cache.WithClock(clock.Now)}, opts...)

	m, err := cache.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m, clock
}

// lockedBuffer is a log sink safe for concurrent writers.
type lockedBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Contains(s string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(b.buf.String(), s)
}

var products = cache.Namespace{
	Name:   "products",
	Prefix: "products",
	TTL:    900 * time.Second,
	Tags:   []string{"products", "catalog"},
}

type product struct {
	Title string `json:"title"`
}

// --- Manager: Set / Get ---

func TestManager_Get(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrNotFound for missing key", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)

		_, err := m.Get(context.Background(), products, "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("returns stored value", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "sku-1", product{Title: "X"}))

		v, err := m.Get(ctx, products, "sku-1")
		require.NoError(t, err)
		require.Equal(t, product{Title: "X"}, v)
	})

	t.Run("nil payload is a hit, not a miss", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "empty", nil))

		v, err := m.Get(ctx, products, "empty")
		require.NoError(t, err)
		require.Nil(t, v)
		require.Equal(t, int64(1), m.Stats().Hits)
	})

	t.Run("entry at exactly its TTL is still live", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "edge", "v"))
		clock.Advance(products.TTL)

		_, err := m.Get(ctx, products, "edge")
		require.NoError(t, err)
	})

	t.Run("expired entry is removed without a sweep", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "old", "v"))
		clock.Advance(products.TTL + time.Second)

		_, err := m.Get(ctx, products, "old")
		require.ErrorIs(t, err, cache.ErrNotFound)

		stats := m.Stats()
		require.Equal(t, 0, stats.TotalKeys)
		require.Empty(t, stats.Tags)
		require.Equal(t, int64(1), stats.Expired)
	})

	t.Run("freshness window shorter than TTL hides entry", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()
		metrics := cache.Namespace{
			Name:            "performance-metrics",
			Prefix:          "perf",
			TTL:             5 * time.Minute,
			FreshnessWindow: time.Minute,
		}

		require.NoError(t, m.Set(ctx, metrics, "cpu", 0.75))

		clock.Advance(30 * time.Second)
		_, err := m.Get(ctx, metrics, "cpu")
		require.NoError(t, err)

		clock.Advance(31 * time.Second)
		_, err = m.Get(ctx, metrics, "cpu")
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Equal(t, 0, m.Stats().TotalKeys)
	})

	t.Run("returns ErrClosed after Close", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.NoError(t, m.Close())

		_, err := m.Get(context.Background(), products, "key")
		require.ErrorIs(t, err, cache.ErrClosed)
	})
}

func TestManager_Inspect(t *testing.T) {
	t.Parallel()

	t.Run("reports per-entry hits", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()
		created := clock.Now()
		require.NoError(t, m.Set(ctx, products, "sku-1", "lamp"))

		info, ok := m.Inspect(ctx, products, "sku-1")
		require.True(t, ok)
		require.Zero(t, info.Hits)

		_, err := m.Get(ctx, products, "sku-1")
		require.NoError(t, err)
		_, err = m.Get(ctx, products, "sku-1")
		require.NoError(t, err)
		_, _ = m.Get(ctx, products, "sku-2")

		info, ok = m.Inspect(ctx, products, "sku-1")
		require.True(t, ok)
		require.Equal(t, int64(2), info.Hits)
		require.Equal(t, "products:sku-1", info.Key)
		require.Equal(t, products.TTL, info.TTL)
		require.Equal(t, []string{"products", "catalog"}, info.Tags)
		require.True(t, created.Equal(info.CreatedAt))
		require.Positive(t, info.Size)

		stats := m.Stats()
		require.Equal(t, int64(2), stats.Hits)
		require.Equal(t, int64(1), stats.Misses)
	})

	t.Run("overwrite starts a new hit count", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "sku-1", "lamp"))
		_, _ = m.Get(ctx, products, "sku-1")

		require.NoError(t, m.Set(ctx, products, "sku-1", "desk"))

		info, ok := m.Inspect(ctx, products, "sku-1")
		require.True(t, ok)
		require.Zero(t, info.Hits)
	})

	t.Run("absent, expired and closed entries are not reported", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		_, ok := m.Inspect(ctx, products, "missing")
		require.False(t, ok)

		require.NoError(t, m.Set(ctx, products, "old", "v"))
		clock.Advance(products.TTL + time.Second)
		_, ok = m.Inspect(ctx, products, "old")
		require.False(t, ok)
		require.Zero(t, m.Stats().Misses)

		require.NoError(t, m.Close())
		_, ok = m.Inspect(ctx, products, "old")
		require.False(t, ok)
	})
}

func TestManager_Set(t *testing.T) {
	t.Parallel()

	t.Run("TTL override replaces namespace default", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "short", "v", cache.WithTTL(10*time.Second)))
		clock.Advance(11 * time.Second)

		_, err := m.Get(ctx, products, "short")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("non-positive TTL override keeps namespace default", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "key", "v", cache.WithTTL(0)))
		clock.Advance(10 * time.Minute)

		_, err := m.Get(ctx, products, "key")
		require.NoError(t, err)
	})

	t.Run("overwrites existing key", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "key", 1))
		require.NoError(t, m.Set(ctx, products, "key", 2))

		v, err := m.Get(ctx, products, "key")
		require.NoError(t, err)
		require.Equal(t, 2, v)
		require.Equal(t, 1, m.Stats().TotalKeys)
	})

	t.Run("overwrite with different tags moves key between tags", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "key", "v1", cache.WithTags("old")))
		require.NoError(t, m.Set(ctx, products, "key", "v2", cache.WithTags("new")))

		require.Equal(t, []string{"new"}, m.Stats().Tags)
		require.Equal(t, 0, m.InvalidateByTag(ctx, "old"))

		v, err := m.Get(ctx, products, "key")
		require.NoError(t, err)
		require.Equal(t, "v2", v)

		require.Equal(t, 1, m.InvalidateByTag(ctx, "new"))
	})

	t.Run("rejects invalid namespace", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)

		err := m.Set(context.Background(), cache.Namespace{Name: "bad", TTL: time.Minute}, "key", "v")
		require.ErrorIs(t, err, cache.ErrInvalidNamespace)

		err = m.Set(context.Background(), cache.Namespace{Name: "bad", Prefix: "bad"}, "key", "v")
		require.ErrorIs(t, err, cache.ErrInvalidNamespace)
	})

	t.Run("returns ErrClosed after Close", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.NoError(t, m.Close())

		err := m.Set(context.Background(), products, "key", "v")
		require.ErrorIs(t, err, cache.ErrClosed)
	})
}

// --- Manager: Accounting ---

func TestManager_Stats(t *testing.T) {
	t.Parallel()

	t.Run("counts hits and misses exactly", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "sku-123", product{Title: "X"}))

		v, err := m.Get(ctx, products, "sku-123")
		require.NoError(t, err)
		require.Equal(t, product{Title: "X"}, v)

		stats := m.Stats()
		require.Equal(t, int64(1), stats.Hits)
		require.Equal(t, int64(0), stats.Misses)

		clock.Advance(901 * time.Second)

		_, err = m.Get(ctx, products, "sku-123")
		require.ErrorIs(t, err, cache.ErrNotFound)

		stats = m.Stats()
		require.Equal(t, int64(1), stats.Hits)
		require.Equal(t, int64(1), stats.Misses)
		require.InDelta(t, 0.5, stats.HitRate, 1e-9)
	})

	t.Run("hit rate is zero without lookups", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.Zero(t, m.Stats().HitRate)
	})

	t.Run("reports keys, tags and memory", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "a", "payload"))
		require.NoError(t, m.Set(ctx, products, "b", []byte("payload")))

		stats := m.Stats()
		require.Equal(t, 2, stats.TotalKeys)
		require.Equal(t, []string{"catalog", "products"}, stats.Tags)
		require.Positive(t, stats.MemoryUsage)

		m.InvalidateByTag(ctx, "products")
		require.Zero(t, m.Stats().MemoryUsage)
	})

	t.Run("concurrent lookups lose no updates", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "hot", "v"))

		var wg sync.WaitGroup
		for range 50 {
			wg.Go(func() {
				for range 20 {
					_, _ = m.Get(ctx, products, "hot")
					_, _ = m.Get(ctx, products, "cold")
				}
			})
		}
		wg.Wait()

		stats := m.Stats()
		require.Equal(t, int64(1000), stats.Hits)
		require.Equal(t, int64(1000), stats.Misses)
	})
}

// --- Manager: Tags ---

func TestManager_InvalidateByTag(t *testing.T) {
	t.Parallel()

	t.Run("removes every key with the tag", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "a", "pA", cache.WithTags("catalog")))
		require.NoError(t, m.Set(ctx, products, "b", "pB", cache.WithTags("catalog")))

		require.Equal(t, 2, m.InvalidateByTag(ctx, "catalog"))

		_, err := m.Get(ctx, products, "a")
		require.ErrorIs(t, err, cache.ErrNotFound)
		_, err = m.Get(ctx, products, "b")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("leaves other keys untouched", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "tagged", "v", cache.WithTags("catalog")))
		require.NoError(t, m.Set(ctx, products, "other", "v", cache.WithTags("users")))
		require.NoError(t, m.Set(ctx, products, "untagged", "v", cache.WithTags()))

		m.InvalidateByTag(ctx, "catalog")

		_, err := m.Get(ctx, products, "other")
		require.NoError(t, err)
		_, err = m.Get(ctx, products, "untagged")
		require.NoError(t, err)
		require.Equal(t, []string{"users"}, m.Stats().Tags)
	})

	t.Run("removes keys from their other tags too", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "a", "v"))

		require.Equal(t, 1, m.InvalidateByTag(ctx, "catalog"))
		require.Empty(t, m.Stats().Tags)
		require.Equal(t, 0, m.InvalidateByTag(ctx, "products"))
	})

	t.Run("unknown tag is a no-op", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.Equal(t, 0, m.InvalidateByTag(context.Background(), "nope"))
	})
}

func TestManager_Delete(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, products, "key", "v"))
	require.True(t, m.Delete(ctx, products, "key"))
	require.False(t, m.Delete(ctx, products, "key"))

	_, err := m.Get(ctx, products, "key")
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.Empty(t, m.Stats().Tags)
}

// --- Manager: MGet ---

func TestManager_MGet(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		opts []cache.Option
	}{
		{name: "sequential"},
		{name: "parallel", opts: []cache.Option{cache.WithParallelMGet(4)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, clock := newTestManager(t, tc.opts...)
			ctx := context.Background()

			require.NoError(t, m.Set(ctx, products, "a", "A"))
			require.NoError(t, m.Set(ctx, products, "c", "C", cache.WithTTL(time.Second)))
			require.NoError(t, m.Set(ctx, products, "d", "D"))
			clock.Advance(2 * time.Second)

			results := m.MGet(ctx, products, []string{"a", "b", "c", "d", "a"})
			require.Len(t, results, 5)

			require.Equal(t, cache.Result{ID: "a", Value: "A", Found: true}, results[0])
			require.Equal(t, cache.Result{ID: "b"}, results[1])
			require.Equal(t, cache.Result{ID: "c"}, results[2])
			require.Equal(t, cache.Result{ID: "d", Value: "D", Found: true}, results[3])
			require.Equal(t, cache.Result{ID: "a", Value: "A", Found: true}, results[4])

			stats := m.Stats()
			require.Equal(t, int64(3), stats.Hits)
			require.Equal(t, int64(2), stats.Misses)
		})
	}

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.Empty(t, m.MGet(context.Background(), products, nil))
	})
}

// --- Manager: GetOrFetch ---

func TestManager_GetOrFetch(t *testing.T) {
	t.Parallel()

	t.Run("calls fetch once on miss and caches result", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()

		var calls atomic.Int64
		fetch := func(context.Context) (any, error) {
			calls.Add(1)
			return product{Title: "C"}, nil
		}

		v, err := m.GetOrFetch(ctx, products, "c", fetch)
		require.NoError(t, err)
		require.Equal(t, product{Title: "C"}, v)

		v, err = m.GetOrFetch(ctx, products, "c", fetch)
		require.NoError(t, err)
		require.Equal(t, product{Title: "C"}, v)
		require.Equal(t, int64(1), calls.Load())

		cached, err := m.Get(ctx, products, "c")
		require.NoError(t, err)
		require.Equal(t, product{Title: "C"}, cached)
	})

	t.Run("returns fetch error unchanged and caches nothing", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		fetchErr := errors.New("database unavailable")

		_, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			return nil, fetchErr
		})
		require.Equal(t, fetchErr, err)

		_, err = m.Get(ctx, products, "c")
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Equal(t, 0, m.Stats().TotalKeys)
	})

	t.Run("fetch options override TTL and tags", func(t *testing.T) {
		t.Parallel()

		m, clock := newTestManager(t)
		ctx := context.Background()

		_, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			return "v", nil
		}, cache.WithFetchTTL(time.Second), cache.WithFetchTags("flash-sale"))
		require.NoError(t, err)
		require.Equal(t, []string{"flash-sale"}, m.Stats().Tags)

		clock.Advance(2 * time.Second)
		_, err = m.Get(ctx, products, "c")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("background refresh returns cached value and replaces it later", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "c", "stale"))

		release := make(chan struct{})
		v, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			<-release
			return "fresh", nil
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)
		require.Equal(t, "stale", v)

		close(release)
		require.Eventually(t, func() bool {
			v, err := m.Get(ctx, products, "c")
			return err == nil && v == "fresh"
		}, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			return m.Stats().Refreshes == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("background refresh outlives caller context", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		require.NoError(t, m.Set(context.Background(), products, "c", "stale"))

		ctx, cancel := context.WithCancel(context.Background())
		_, err := m.GetOrFetch(ctx, products, "c", func(ctx context.Context) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return "fresh", ctx.Err()
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)
		cancel()

		require.Eventually(t, func() bool {
			v, err := m.Get(context.Background(), products, "c")
			return err == nil && v == "fresh"
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("failed background refresh keeps existing entry", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "c", "stale"))

		v, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			return nil, errors.New("upstream down")
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)
		require.Equal(t, "stale", v)

		require.Eventually(t, func() bool {
			return m.Stats().RefreshFailures == 1
		}, time.Second, 5*time.Millisecond)

		v, err = m.Get(ctx, products, "c")
		require.NoError(t, err)
		require.Equal(t, "stale", v)
	})

	t.Run("panicking background refresh is contained", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "c", "stale"))

		_, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			panic("boom")
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return m.Stats().RefreshFailures == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("refresh result is dropped after invalidation", func(t *testing.T) {
		t.Parallel()

		var logs lockedBuffer
		log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		m, _ := newTestManager(t, cache.WithLogger(log))
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "c", "v1"))

		started := make(chan struct{})
		release := make(chan struct{})
		_, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			close(started)
			<-release
			return "v1-refetched", nil
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)

		<-started
		require.Equal(t, 1, m.InvalidateByTag(ctx, "catalog"))
		close(release)

		require.Eventually(t, func() bool {
			return logs.Contains("cache refresh discarded")
		}, time.Second, 5*time.Millisecond)

		_, err = m.Get(ctx, products, "c")
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Zero(t, m.Stats().Refreshes)
	})

	t.Run("refresh result does not overwrite a newer write", func(t *testing.T) {
		t.Parallel()

		var logs lockedBuffer
		log := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
		m, _ := newTestManager(t, cache.WithLogger(log))
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "c", "v1"))

		started := make(chan struct{})
		release := make(chan struct{})
		_, err := m.GetOrFetch(ctx, products, "c", func(context.Context) (any, error) {
			close(started)
			<-release
			return "v1-refetched", nil
		}, cache.WithBackgroundRefresh())
		require.NoError(t, err)

		<-started
		require.NoError(t, m.Set(ctx, products, "c", "v2"))
		close(release)

		require.Eventually(t, func() bool {
			return logs.Contains("cache refresh discarded")
		}, time.Second, 5*time.Millisecond)

		v, err := m.Get(ctx, products, "c")
		require.NoError(t, err)
		require.Equal(t, "v2", v)
	})

	t.Run("coalesces concurrent misses when enabled", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t, cache.WithFetchCoalescing())
		ctx := context.Background()

		var calls atomic.Int64
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				v, err := m.GetOrFetch(ctx, products, "dedup", func(context.Context) (any, error) {
					calls.Add(1)
					time.Sleep(20 * time.Millisecond)
					return 42, nil
				})
				require.NoError(t, err)
				require.Equal(t, 42, v)
			})
		}
		wg.Wait()

		require.LessOrEqual(t, calls.Load(), int64(2))
	})

	t.Run("rejects invalid namespace before fetching", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)

		_, err := m.GetOrFetch(context.Background(), cache.Namespace{Name: "bad"}, "c", func(context.Context) (any, error) {
			t.Fatal("fetch should not be called")
			return nil, nil
		})
		require.ErrorIs(t, err, cache.ErrInvalidNamespace)
	})
}

// --- Manager: Lifecycle ---

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, products, "a", "v"))
	_, _ = m.Get(ctx, products, "a")
	_, _ = m.Get(ctx, products, "b")

	require.NoError(t, m.Clear(ctx))

	stats := m.Stats()
	require.Equal(t, 0, stats.TotalKeys)
	require.Zero(t, stats.Hits)
	require.Zero(t, stats.Misses)
	require.Empty(t, stats.Tags)
	require.Zero(t, stats.MemoryUsage)
}

func TestManager_ClearDuringLookup(t *testing.T) {
	t.Parallel()

	var block atomic.Bool
	entered := make(chan struct{})
	release := make(chan struct{})
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	m, err := cache.New(cache.WithSweepInterval(0), cache.WithClock(func() time.Time {
		if block.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
		return base
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	block.Store(true)
	got := make(chan error, 1)
	go func() {
		_, err := m.Get(ctx, products, "missing")
		got <- err
	}()
	<-entered

	cleared := make(chan struct{})
	go func() {
		_ = m.Clear(ctx)
		close(cleared)
	}()

	select {
	case <-cleared:
		t.Fatal("Clear finished while a lookup was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.ErrorIs(t, <-got, cache.ErrNotFound)
	<-cleared

	stats := m.Stats()
	require.Zero(t, stats.Misses)
	require.Zero(t, stats.Hits)
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	t.Run("idempotent close", func(t *testing.T) {
		t.Parallel()

		m, err := cache.New()
		require.NoError(t, err)

		require.NoError(t, m.Close())
		require.NoError(t, m.Close())
	})

	t.Run("drops entries and rejects further use", func(t *testing.T) {
		t.Parallel()

		m, _ := newTestManager(t)
		ctx := context.Background()
		require.NoError(t, m.Set(ctx, products, "a", "v"))

		require.NoError(t, m.Close())
		require.Equal(t, 0, m.Stats().TotalKeys)
		require.ErrorIs(t, m.Clear(ctx), cache.ErrClosed)

		_, err := m.GetOrFetch(ctx, products, "a", func(context.Context) (any, error) {
			return "v", nil
		})
		require.ErrorIs(t, err, cache.ErrClosed)
	})

	t.Run("rejects invalid sweep schedule", func(t *testing.T) {
		t.Parallel()

		_, err := cache.New(cache.WithSweepSchedule("not a schedule"))
		require.Error(t, err)
	})
}

// --- Manager: Eviction callback ---

func TestManager_EvictCallback(t *testing.T) {
	t.Parallel()

	type eviction struct {
		key    string
		reason cache.EvictReason
	}

	newRecorder := func() (*[]eviction, *sync.Mutex, cache.Option) {
		var (
			got []eviction
			mu  sync.Mutex
		)
		return &got, &mu, cache.WithEvictCallback(func(key string, reason cache.EvictReason) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, eviction{key: key, reason: reason})
		})
	}

	t.Run("reports reasons", func(t *testing.T) {
		t.Parallel()

		got, mu, opt := newRecorder()
		m, clock := newTestManager(t, opt)
		ctx := context.Background()

		require.NoError(t, m.Set(ctx, products, "expired", "v", cache.WithTTL(time.Second)))
		require.NoError(t, m.Set(ctx, products, "deleted", "v"))
		require.NoError(t, m.Set(ctx, products, "tagged", "v", cache.WithTags("sale")))
		require.NoError(t, m.Set(ctx, products, "cleared", "v"))

		clock.Advance(2 * time.Second)
		_, _ = m.Get(ctx, products, "expired")
		m.Delete(ctx, products, "deleted")
		m.InvalidateByTag(ctx, "sale")
		require.NoError(t, m.Clear(ctx))

		mu.Lock()
		defer mu.Unlock()
		require.Equal(t, []eviction{
			{key: "products:expired", reason: cache.EvictExpired},
			{key: "products:deleted", reason: cache.EvictDeleted},
			{key: "products:tagged", reason: cache.EvictInvalidated},
			{key: "products:cleared", reason: cache.EvictCleared},
		}, *got)
	})

	t.Run("callback may use the cache", func(t *testing.T) {
		t.Parallel()

		var m *cache.Manager
		done := make(chan struct{})
		m, _ = newTestManager(t, cache.WithEvictCallback(func(string, cache.EvictReason) {
			_ = m.Stats()
			close(done)
		}))

		require.NoError(t, m.Set(context.Background(), products, "a", "v"))
		m.Delete(context.Background(), products, "a")

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("eviction callback deadlocked")
		}
	})

	t.Run("reason strings", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "expired", cache.EvictExpired.String())
		require.Equal(t, "invalidated", cache.EvictInvalidated.String())
		require.Equal(t, "deleted", cache.EvictDeleted.String())
		require.Equal(t, "cleared", cache.EvictCleared.String())
		require.Equal(t, "unknown", cache.EvictReason(0).String())
	})
}

// --- Manager: Concurrent Access ---

func TestManager_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, cache.WithParallelMGet(4))
	ctx := context.Background()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Go(func() {
			_ = m.Set(ctx, products, "key", i)
		})
	}
	for range 50 {
		wg.Go(func() {
			_, _ = m.Get(ctx, products, "key")
			_ = m.MGet(ctx, products, []string{"key", "other"})
		})
	}
	for range 10 {
		wg.Go(func() {
			m.InvalidateByTag(ctx, "catalog")
			m.DeleteExpired(ctx)
		})
	}

	wg.Wait()

	stats := m.Stats()
	require.LessOrEqual(t, stats.TotalKeys, 1)
	require.Equal(t, int64(150), stats.Hits+stats.Misses, "each Get and MGet id is counted once")

	v, err := m.Get(ctx, products, "key")
	if stats.TotalKeys == 0 {
		require.ErrorIs(t, err, cache.ErrNotFound)
		require.Empty(t, stats.Tags)
		return
	}
	require.NoError(t, err)
	require.IsType(t, 0, v)
	require.Equal(t, []string{"catalog", "products"}, stats.Tags)
}
