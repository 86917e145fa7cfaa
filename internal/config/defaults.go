package config

import (
	"time"

	"github.com/agencypulse/crosssell-intelligence/internal/intelligence/crosssell"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "crosssell"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "crosssell-workers"
	DefaultIngestTopic  = "crosssell.ingest.rows"
	DefaultScoredTopic  = "crosssell.opportunity.scored"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "crosssell-ingest-archive"

	DefaultWorkerConcurrency = 4
	DefaultWorkerBatchSize   = 200

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultDashboardCacheTTL = 60 * time.Second
	DefaultDashboardTopN     = 50
)

// ApplyDefaults fills every zero-value field in cfg with the platform default.
// Fields already set by the caller are left unchanged so explicit
// configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.RateLimitBurst == 0 {
		cfg.Server.RateLimitBurst = 20
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MigrationPath == "" {
		cfg.Database.MigrationPath = "file://migrations"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.DefaultTTL == 0 {
		cfg.Redis.DefaultTTL = DefaultDashboardCacheTTL
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "crosssell:"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.IngestTopic == "" {
		cfg.Kafka.IngestTopic = DefaultIngestTopic
	}
	if cfg.Kafka.ScoredTopic == "" {
		cfg.Kafka.ScoredTopic = DefaultScoredTopic
	}
	if cfg.Kafka.MinBytes == 0 {
		cfg.Kafka.MinBytes = 1
	}
	if cfg.Kafka.MaxBytes == 0 {
		cfg.Kafka.MaxBytes = 10 << 20
	}
	if cfg.Kafka.CommitInterval == 0 {
		cfg.Kafka.CommitInterval = time.Second
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}
	if cfg.Kafka.ProducerRetries == 0 {
		cfg.Kafka.ProducerRetries = 3
	}

	// ── MinIO ─────────────────────────────────────────────────────────────────
	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = DefaultWorkerBatchSize
	}
	if cfg.Worker.DrainWait == 0 {
		cfg.Worker.DrainWait = 5 * time.Second
	}

	// ── Scoring ───────────────────────────────────────────────────────────────
	if cfg.Scoring.Weights == (crosssell.Weights{}) {
		cfg.Scoring.Weights = crosssell.DefaultWeights()
	}
	if cfg.Scoring.BlendWeight == 0 {
		cfg.Scoring.BlendWeight = crosssell.DefaultBlendWeight
	}
	if cfg.Scoring.MinBaseScore == 0 {
		cfg.Scoring.MinBaseScore = crosssell.DefaultMinBaseScore
	}
	if cfg.Scoring.PhoneRegion == "" {
		cfg.Scoring.PhoneRegion = "US"
	}

	// ── Dashboard ─────────────────────────────────────────────────────────────
	if cfg.Dashboard.CacheTTL == 0 {
		cfg.Dashboard.CacheTTL = DefaultDashboardCacheTTL
	}
	if cfg.Dashboard.DefaultTopN == 0 {
		cfg.Dashboard.DefaultTopN = DefaultDashboardTopN
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
