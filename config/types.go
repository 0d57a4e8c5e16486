package config

// ServerConfig contains the HTTP API configuration.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

// GTFSConfig points at the static schedule tables (a directory of .txt
// files or a GTFS zip).
type GTFSConfig struct {
	StaticPath string `yaml:"staticPath" validate:"required"`
}

// GTFSRTConfig contains the realtime feed endpoint and fetch policy.
type GTFSRTConfig struct {
	TripUpdatesURL    string `yaml:"tripUpdatesURL" validate:"omitempty,url"`
	FreshnessSec      int    `yaml:"freshnessSec" validate:"gte=0"`
	FetchAttempts     int    `yaml:"fetchAttempts" validate:"gte=0"`
	BackoffStepSec    int    `yaml:"backoffStepSec" validate:"gte=0"`
	ConnectTimeoutSec int    `yaml:"connectTimeoutSec" validate:"gte=0"`
	RequestTimeoutSec int    `yaml:"requestTimeoutSec" validate:"gte=0"`
}

// MatchingConfig carries the vendor-specific identifier quirks so they stay
// configuration, not code branches.
type MatchingConfig struct {
	DirectionalPrefixes []string `yaml:"directionalPrefixes"`
	FallbackWindowSec   int      `yaml:"fallbackWindowSec" validate:"gte=0"`
}

// ReconcileConfig bounds the reconciliation pass.
type ReconcileConfig struct {
	HorizonMin         int      `yaml:"horizonMin" validate:"gte=0"`
	GraceMin           int      `yaml:"graceMin" validate:"gte=0"`
	RefreshStops       []string `yaml:"refreshStops"`
	RefreshIntervalSec int      `yaml:"refreshIntervalSec" validate:"gte=0"`
}

// QualityConfig controls the historical service-quality window.
type QualityConfig struct {
	RetentionDays int    `yaml:"retentionDays" validate:"gte=0"`
	HistoryPath   string `yaml:"historyPath"`
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// MetricsConfig is optional; an empty addr disables the /metrics server.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	GTFS      GTFSConfig      `yaml:"gtfs" validate:"required"`
	GTFSRT    GTFSRTConfig    `yaml:"gtfsrt"`
	Matching  MatchingConfig  `yaml:"matching"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Quality   QualityConfig   `yaml:"quality"`
	NATS      NATSConfig      `yaml:"nats"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}
