package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/openmobility/delaywatch"
	"github.com/openmobility/delaywatch/config"
	"github.com/openmobility/delaywatch/events"
	"github.com/openmobility/delaywatch/feed"
	"github.com/openmobility/delaywatch/internal/logging"
	"github.com/openmobility/delaywatch/metrics"
	"github.com/openmobility/delaywatch/quality"
	"github.com/openmobility/delaywatch/reconcile"
	"github.com/openmobility/delaywatch/schedule"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yml", "path to the configuration file")
	debug := pflag.Bool("debug", false, "enable debug logging")
	pflag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := logging.New(os.Stdout, level)
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("config error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, _, err := schedule.Load(cfg.GTFS.StaticPath, logging.ForComponent(logger, "schedule"))
	if err != nil {
		logger.Error("schedule load error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var collector *metrics.Collector
	if cfg.Metrics.Addr != "" {
		collector = metrics.NewCollector()
		srv := collector.Serve(cfg.Metrics.Addr, logging.ForComponent(logger, "metrics"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client := feed.NewClient(cfg.GTFSRT.TripUpdatesURL,
		time.Duration(cfg.GTFSRT.ConnectTimeoutSec)*time.Second,
		time.Duration(cfg.GTFSRT.RequestTimeoutSec)*time.Second)
	cacheOpts := feed.CacheOptions{
		Freshness:   time.Duration(cfg.GTFSRT.FreshnessSec) * time.Second,
		Attempts:    cfg.GTFSRT.FetchAttempts,
		BackoffStep: time.Duration(cfg.GTFSRT.BackoffStepSec) * time.Second,
		Logger:      logging.ForComponent(logger, "feed"),
	}
	if collector != nil {
		cacheOpts.Metrics = collector
	}
	cache := feed.NewCache(client.FetchSnapshot, cacheOpts)

	matcher := reconcile.NewMatcher(
		reconcile.DirectionalPrefixes(cfg.Matching.DirectionalPrefixes...),
		time.Duration(cfg.Matching.FallbackWindowSec)*time.Second)
	reconciler := reconcile.NewReconciler(store, matcher,
		time.Duration(cfg.Reconcile.HorizonMin)*time.Minute,
		time.Duration(cfg.Reconcile.GraceMin)*time.Minute)

	monitorOpts := quality.Options{
		Retention: time.Duration(cfg.Quality.RetentionDays) * 24 * time.Hour,
	}
	var history *quality.History
	if cfg.Quality.HistoryPath != "" {
		history, err = quality.OpenHistory(cfg.Quality.HistoryPath)
		if err != nil {
			logger.Error("history open error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer func() { _ = history.Close() }()
		monitorOpts.Sink = history
	}
	monitor := quality.NewMonitor(monitorOpts)
	if history != nil {
		since := time.Now().Add(-time.Duration(cfg.Quality.RetentionDays) * 24 * time.Hour)
		if n, err := history.ReplayInto(monitor, since); err != nil {
			logger.Warn("history replay failed", slog.String("error", err.Error()))
		} else {
			logger.Info("history replayed", slog.Int("records", n))
		}
		_ = history.Prune(since)
	}

	engineOpts := delaywatch.EngineOptions{
		Collector: collector,
		Logger:    logging.ForComponent(logger, "engine"),
	}
	if cfg.NATS.URL != "" {
		var pubMetrics events.Metrics
		if collector != nil {
			pubMetrics = collector
		}
		pub, err := events.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix,
			pubMetrics, logging.ForComponent(logger, "events"))
		if err != nil {
			logger.Error("nats error", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pub.Close()
		engineOpts.Publisher = pub
	}

	engine := delaywatch.NewEngine(store, cache, reconciler, monitor, engineOpts)

	refresher := delaywatch.NewRefresher(engine, cfg.Reconcile.RefreshStops,
		time.Duration(cfg.Reconcile.RefreshIntervalSec)*time.Second,
		logging.ForComponent(logger, "refresher"))
	refresher.Start()

	server := delaywatch.NewServer(engine, cfg.Server.Port, logging.ForComponent(logger, "server"))
	server.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	refresher.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	} else {
		logger.Info("server shut down")
	}
}
