// Package metrics exposes prometheus instrumentation for the engine on a
// private registry.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every engine metric. It satisfies the feed.Metrics and
// events.Metrics hook interfaces.
type Collector struct {
	reg *prometheus.Registry

	FeedFetches   prometheus.Counter
	FeedFetchErrs prometheus.Counter
	CacheHits     prometheus.Counter
	StaleServes   prometheus.Counter
	MatchesByTier *prometheus.CounterVec
	EventsOut     prometheus.Counter
	EventsOutErrs prometheus.Counter
	NATSConnected prometheus.Gauge
	ReconcilePass prometheus.Histogram
	DelayRecords  prometheus.Gauge
	SnapshotTrips prometheus.Gauge
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		reg: reg,
		FeedFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_feed_fetches_total",
			Help: "Total upstream realtime feed fetch attempts.",
		}),
		FeedFetchErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_feed_fetch_errors_total",
			Help: "Total failed realtime feed fetch attempts.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_feed_cache_hits_total",
			Help: "Feed requests served from the fresh cached snapshot.",
		}),
		StaleServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_feed_stale_serves_total",
			Help: "Feed requests served from a stale snapshot after fetch failure.",
		}),
		MatchesByTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delaywatch_matches_total",
			Help: "Reconciled departures by matching tier.",
		}, []string{"tier"}),
		EventsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_events_published_total",
			Help: "Total delay observations published to NATS.",
		}),
		EventsOutErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delaywatch_events_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delaywatch_nats_connected",
			Help: "1 if the NATS connection is established, 0 otherwise.",
		}),
		ReconcilePass: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delaywatch_reconcile_pass_duration_seconds",
			Help:    "Duration of one reconciliation pass.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		DelayRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delaywatch_quality_records",
			Help: "Delay records currently held by the quality monitor.",
		}),
		SnapshotTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delaywatch_snapshot_trips",
			Help: "Live trips in the most recent feed snapshot.",
		}),
	}
	reg.MustRegister(
		c.FeedFetches, c.FeedFetchErrs, c.CacheHits, c.StaleServes,
		c.MatchesByTier, c.EventsOut, c.EventsOutErrs, c.NATSConnected,
		c.ReconcilePass, c.DelayRecords, c.SnapshotTrips,
	)
	return c
}

// Hook methods for the feed cache.
func (c *Collector) FeedFetchInc()    { c.FeedFetches.Inc() }
func (c *Collector) FeedFetchErrInc() { c.FeedFetchErrs.Inc() }
func (c *Collector) CacheHitInc()     { c.CacheHits.Inc() }
func (c *Collector) StaleServeInc()   { c.StaleServes.Inc() }

// Hook methods for the event publisher.
func (c *Collector) EventPublishedInc()  { c.EventsOut.Inc() }
func (c *Collector) EventPublishErrInc() { c.EventsOutErrs.Inc() }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}

// MatchInc counts one reconciled departure for a tier label.
func (c *Collector) MatchInc(tier string) { c.MatchesByTier.WithLabelValues(tier).Inc() }

// ObservePass records one reconciliation pass duration.
func (c *Collector) ObservePass(d time.Duration) { c.ReconcilePass.Observe(d.Seconds()) }

// Handler returns the /metrics handler for the private registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing /metrics on addr.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", addr))
	return srv
}
