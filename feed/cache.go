package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoData means no snapshot could be fetched and no previous snapshot
// exists. Callers treat it as "reconcile against nothing", not as a fault.
var ErrNoData = errors.New("feed: no data available")

// FetchFunc produces one decoded snapshot. Injectable for tests.
type FetchFunc func(ctx context.Context) (*Snapshot, error)

// Metrics is the hook the cache reports to. Satisfied by
// metrics.Collector; may be nil.
type Metrics interface {
	FeedFetchInc()
	FeedFetchErrInc()
	CacheHitInc()
	StaleServeInc()
}

// CacheOptions configures a Cache. Zero values fall back to the documented
// defaults (30s freshness, 3 attempts, 2s backoff step).
type CacheOptions struct {
	Freshness   time.Duration
	Attempts    int
	BackoffStep time.Duration
	Logger      *slog.Logger
	Metrics     Metrics
	Now         func() time.Time
	Sleep       func(time.Duration)
}

// Cache keeps the last successfully decoded snapshot and refreshes it when
// it outlives the freshness window. The mutex spans the whole
// check-fetch-swap sequence, so concurrent callers during a miss trigger a
// single upstream fetch and the snapshot reference is swapped whole.
type Cache struct {
	mu    sync.Mutex
	fetch FetchFunc

	freshness   time.Duration
	attempts    int
	backoffStep time.Duration

	snapshot  *Snapshot
	fetchedAt time.Time

	logger  *slog.Logger
	metrics Metrics
	now     func() time.Time
	sleep   func(time.Duration)
}

// NewCache wraps a fetch function with the freshness/retry policy.
func NewCache(fetch FetchFunc, opts CacheOptions) *Cache {
	c := &Cache{
		fetch:       fetch,
		freshness:   opts.Freshness,
		attempts:    opts.Attempts,
		backoffStep: opts.BackoffStep,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
		sleep:       opts.Sleep,
	}
	if c.freshness <= 0 {
		c.freshness = 30 * time.Second
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	if c.backoffStep <= 0 {
		c.backoffStep = 2 * time.Second
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	return c
}

// Current returns the cached snapshot while it is fresh; otherwise it
// refetches with backoff. If every attempt fails it returns the stale
// snapshot when one exists, and ErrNoData only when there has never been a
// successful fetch.
func (c *Cache) Current(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.snapshot != nil && now.Sub(c.fetchedAt) < c.freshness {
		if c.metrics != nil {
			c.metrics.CacheHitInc()
		}
		return c.snapshot, nil
	}

	snap, err := c.fetchWithRetry(ctx)
	if err == nil {
		snap.FetchedAt = c.now()
		c.snapshot = snap
		c.fetchedAt = snap.FetchedAt
		return snap, nil
	}

	if c.snapshot != nil {
		c.logger.Warn("feed refresh failed, serving stale snapshot",
			slog.String("error", err.Error()),
			slog.Duration("age", now.Sub(c.fetchedAt)))
		if c.metrics != nil {
			c.metrics.StaleServeInc()
		}
		return c.snapshot, nil
	}
	return nil, ErrNoData
}

func (c *Cache) fetchWithRetry(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.metrics != nil {
			c.metrics.FeedFetchInc()
		}
		snap, err := c.fetch(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if c.metrics != nil {
			c.metrics.FeedFetchErrInc()
		}
		c.logger.Warn("feed fetch failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt < c.attempts {
			c.sleep(c.backoffStep * time.Duration(attempt))
		}
	}
	return nil, lastErr
}

// Age reports how old the held snapshot is; a negative value means no
// snapshot has ever been fetched.
func (c *Cache) Age() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return -1
	}
	return c.now().Sub(c.fetchedAt)
}
