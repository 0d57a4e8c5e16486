package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	errs  int // fail the first errs calls
}

func (f *countingFetcher) fetch(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.errs {
		return nil, errors.New("upstream down")
	}
	return Empty(time.Time{}), nil
}

func (f *countingFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testCacheOptions(clock *fakeClock, slept *[]time.Duration) CacheOptions {
	return CacheOptions{
		Freshness:   30 * time.Second,
		Attempts:    3,
		BackoffStep: 2 * time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:         clock.Now,
		Sleep: func(d time.Duration) {
			if slept != nil {
				*slept = append(*slept, d)
			}
		},
	}
}

func TestCacheServesFreshSnapshot(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, nil))

	ctx := context.Background()
	first, err := cache.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, fetcher.count())

	// Within the freshness window every call returns the same snapshot
	// without touching upstream.
	clock.Advance(29 * time.Second)
	for i := 0; i < 5; i++ {
		snap, err := cache.Current(ctx)
		require.NoError(t, err)
		assert.Same(t, first, snap)
	}
	assert.Equal(t, 1, fetcher.count())

	// Past the window a single refetch happens.
	clock.Advance(2 * time.Second)
	snap, err := cache.Current(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, snap)
	assert.Equal(t, 2, fetcher.count())
}

func TestCacheConcurrentMissFetchesOnce(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, nil))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Current(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fetcher.count(), "concurrent callers share one upstream fetch")
}

func TestCacheRetryBackoff(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var slept []time.Duration
	fetcher := &countingFetcher{errs: 2}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, &slept))

	snap, err := cache.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, fetcher.count(), "two failures then success")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
}

func TestCacheStaleFallback(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, nil))

	ctx := context.Background()
	first, err := cache.Current(ctx)
	require.NoError(t, err)

	// Expire the snapshot, then break upstream for good.
	clock.Advance(time.Minute)
	fetcher.mu.Lock()
	fetcher.errs = 1 << 30
	fetcher.mu.Unlock()

	snap, err := cache.Current(ctx)
	require.NoError(t, err, "stale snapshot is served rather than an error")
	assert.Same(t, first, snap)
}

func TestCacheNoDataWhenNeverFetched(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetcher := &countingFetcher{errs: 1 << 30}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, nil))

	snap, err := cache.Current(context.Background())
	require.ErrorIs(t, err, ErrNoData)
	assert.Nil(t, snap)
	assert.Equal(t, 3, fetcher.count(), "all attempts exhausted")
}

func TestCacheAge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	fetcher := &countingFetcher{}
	cache := NewCache(fetcher.fetch, testCacheOptions(clock, nil))

	assert.Negative(t, cache.Age(), "no snapshot yet")

	_, err := cache.Current(context.Background())
	require.NoError(t, err)
	clock.Advance(12 * time.Second)
	assert.Equal(t, 12*time.Second, cache.Age())
}
