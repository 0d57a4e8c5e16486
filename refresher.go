package delaywatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher periodically reconciles a configured set of stops in the
// background, feeding the quality monitor even when nobody is querying.
// Stop prevents further passes from being scheduled; an in-flight pass is
// allowed to finish.
type Refresher struct {
	engine   *Engine
	stops    []string
	interval time.Duration
	logger   *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRefresher creates a refresher for the given stops.
func NewRefresher(engine *Engine, stops []string, interval time.Duration, logger *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		engine:   engine,
		stops:    stops,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop. No-op when no stops are configured.
func (r *Refresher) Start() {
	if len(r.stops) == 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
	r.logger.Info("refresher started",
		slog.Int("stops", len(r.stops)),
		slog.Duration("interval", r.interval))
}

func (r *Refresher) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.pass()
		case <-r.stopCh:
			r.logger.Info("refresher stopping")
			return
		}
	}
}

func (r *Refresher) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()
	for _, stopID := range r.stops {
		select {
		case <-r.stopCh:
			return
		default:
		}
		infos := r.engine.ReconcileStop(ctx, stopID)
		r.logger.Debug("refreshed stop",
			slog.String("stop", stopID),
			slog.Int("departures", len(infos)))
	}
}

// Stop signals the loop to exit and waits for the current pass to finish.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}
