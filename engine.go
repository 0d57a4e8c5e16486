package delaywatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/openmobility/delaywatch/events"
	"github.com/openmobility/delaywatch/feed"
	"github.com/openmobility/delaywatch/metrics"
	"github.com/openmobility/delaywatch/quality"
	"github.com/openmobility/delaywatch/reconcile"
	"github.com/openmobility/delaywatch/schedule"
)

// Engine is the reconciliation facade the presentation layer talks to. It
// owns the schedule store, the feed cache, the reconciler and the quality
// monitor; callers never reach into those directly.
type Engine struct {
	store      *schedule.Store
	cache      *feed.Cache
	reconciler *reconcile.Reconciler
	monitor    *quality.Monitor
	publisher  *events.Publisher
	collector  *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
}

// EngineOptions carries the optional collaborators.
type EngineOptions struct {
	Publisher *events.Publisher
	Collector *metrics.Collector
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewEngine wires the core components together.
func NewEngine(store *schedule.Store, cache *feed.Cache, reconciler *reconcile.Reconciler, monitor *quality.Monitor, opts EngineOptions) *Engine {
	e := &Engine{
		store:      store,
		cache:      cache,
		reconciler: reconciler,
		monitor:    monitor,
		publisher:  opts.Publisher,
		collector:  opts.Collector,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// ReconcileStop returns delay records for every departure due at the stop
// within the horizon. The result is always usable: an unknown stop or a
// dead feed yields records with NO_DATA status or an empty slice, never an
// error the caller must branch on.
func (e *Engine) ReconcileStop(ctx context.Context, stopID string) []reconcile.DelayInfo {
	snap := e.currentSnapshot(ctx)
	start := e.now()
	infos := e.reconciler.ReconcileStop(stopID, start, snap)
	e.observe(infos, start)
	return infos
}

// ReconcileRoute returns delay records per stop for a route, optionally
// filtered to one direction (pass schedule.DirectionUnknown for both).
func (e *Engine) ReconcileRoute(ctx context.Context, routeID string, direction int) map[string][]reconcile.DelayInfo {
	snap := e.currentSnapshot(ctx)
	start := e.now()
	byStop := e.reconciler.ReconcileRoute(routeID, direction, start, snap)
	for _, infos := range byStop {
		e.observe(infos, start)
	}
	return byStop
}

// QualitySnapshot returns the historical reliability summary for a route.
func (e *Engine) QualitySnapshot(routeID string) quality.Snapshot {
	return e.monitor.RouteSnapshot(routeID, 5)
}

// PredictDelay exposes the monitor's rush-hour-aware delay estimate.
func (e *Engine) PredictDelay(routeID, stopID string, scheduledAt time.Time) (float64, bool) {
	return e.monitor.PredictDelay(routeID, stopID, scheduledAt)
}

// SnapshotAge reports the feed cache age for health reporting.
func (e *Engine) SnapshotAge() time.Duration { return e.cache.Age() }

// Store exposes read-only schedule lookups for the HTTP layer.
func (e *Engine) Store() *schedule.Store { return e.store }

// currentSnapshot fetches through the cache, degrading to an empty
// snapshot when there has never been feed data. Offline is a displayable
// state, not a fault.
func (e *Engine) currentSnapshot(ctx context.Context) *feed.Snapshot {
	snap, err := e.cache.Current(ctx)
	if err != nil {
		e.logger.Warn("no realtime data, reconciling against empty feed",
			slog.String("error", err.Error()))
		return feed.Empty(e.now())
	}
	if e.collector != nil {
		e.collector.SnapshotTrips.Set(float64(snap.Len()))
	}
	return snap
}

// observe folds reconciled records into the quality monitor, metrics and
// the optional event publisher.
func (e *Engine) observe(infos []reconcile.DelayInfo, start time.Time) {
	for _, info := range infos {
		if e.collector != nil {
			e.collector.MatchInc(info.Tier.String())
		}
		if !info.HasLiveData() {
			continue
		}
		e.monitor.Record(quality.DelayRecord{
			RouteID:      info.RouteID,
			RouteName:    info.RouteName,
			ObservedAt:   info.ObservedAt,
			DelaySeconds: info.DelaySeconds,
			StopID:       info.StopID,
			StopName:     info.StopName,
		})
		if e.publisher != nil {
			err := e.publisher.PublishDelay(events.Observation{
				RouteID:      info.RouteID,
				StopID:       info.StopID,
				TripID:       info.TripID,
				Status:       string(info.Status),
				DelaySeconds: info.DelaySeconds,
				Scheduled:    info.Scheduled,
				Predicted:    info.Predicted,
				ObservedAt:   info.ObservedAt,
			})
			if err != nil {
				e.logger.Warn("event publish failed", slog.String("error", err.Error()))
			}
		}
	}
	if e.collector != nil {
		e.collector.ObservePass(e.now().Sub(start))
		e.collector.DelayRecords.Set(float64(e.monitor.RecordCount()))
	}
}
