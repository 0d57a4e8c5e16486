package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file leaves a knob unset.
const (
	DefaultPort               = 16181
	DefaultFreshnessSec       = 30
	DefaultFetchAttempts      = 3
	DefaultBackoffStepSec     = 2
	DefaultConnectTimeoutSec  = 10
	DefaultRequestTimeoutSec  = 30
	DefaultFallbackWindowSec  = 300
	DefaultHorizonMin         = 40
	DefaultGraceMin           = 2
	DefaultRefreshIntervalSec = 60
	DefaultRetentionDays      = 7
)

// Load reads and validates the application configuration. A .env file in the
// working directory is overlaid onto the environment first (ignored if
// missing), so deployment-specific values like the feed URL need not live in
// the YAML file.
func Load(path string) (AppConfig, error) {
	_ = godotenv.Load()

	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("DELAYWATCH_FEED_URL"); v != "" {
		cfg.GTFSRT.TripUpdatesURL = v
	}
	if v := os.Getenv("DELAYWATCH_STATIC_PATH"); v != "" {
		cfg.GTFS.StaticPath = v
	}
	if v := os.Getenv("DELAYWATCH_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DELAYWATCH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.GTFSRT.FreshnessSec == 0 {
		cfg.GTFSRT.FreshnessSec = DefaultFreshnessSec
	}
	if cfg.GTFSRT.FetchAttempts == 0 {
		cfg.GTFSRT.FetchAttempts = DefaultFetchAttempts
	}
	if cfg.GTFSRT.BackoffStepSec == 0 {
		cfg.GTFSRT.BackoffStepSec = DefaultBackoffStepSec
	}
	if cfg.GTFSRT.ConnectTimeoutSec == 0 {
		cfg.GTFSRT.ConnectTimeoutSec = DefaultConnectTimeoutSec
	}
	if cfg.GTFSRT.RequestTimeoutSec == 0 {
		cfg.GTFSRT.RequestTimeoutSec = DefaultRequestTimeoutSec
	}
	if len(cfg.Matching.DirectionalPrefixes) == 0 {
		cfg.Matching.DirectionalPrefixes = []string{"0#", "1#"}
	}
	if cfg.Matching.FallbackWindowSec == 0 {
		cfg.Matching.FallbackWindowSec = DefaultFallbackWindowSec
	}
	if cfg.Reconcile.HorizonMin == 0 {
		cfg.Reconcile.HorizonMin = DefaultHorizonMin
	}
	if cfg.Reconcile.GraceMin == 0 {
		cfg.Reconcile.GraceMin = DefaultGraceMin
	}
	if cfg.Reconcile.RefreshIntervalSec == 0 {
		cfg.Reconcile.RefreshIntervalSec = DefaultRefreshIntervalSec
	}
	if cfg.Quality.RetentionDays == 0 {
		cfg.Quality.RetentionDays = DefaultRetentionDays
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "delays"
	}
}
