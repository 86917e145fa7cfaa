package cli

import (
	"context"

	"github.com/agencypulse/crosssell-intelligence/internal/application/dashboard"
	"github.com/agencypulse/crosssell-intelligence/internal/application/ingestion"
	appopp "github.com/agencypulse/crosssell-intelligence/internal/application/opportunity"
	"github.com/agencypulse/crosssell-intelligence/internal/config"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/database/postgres"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/database/postgres/repositories"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/database/redis"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/messaging/kafka"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/storage/minio"
)

// app bundles the wired infrastructure and services shared by the serve and
// worker entry points.
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *prometheus.Metrics

	pg       *postgres.Connection
	redis    *redis.Client
	producer *kafka.Producer
	archive  *minio.ArchiveStore

	repo        *repositories.OpportunityRepository
	ingestion   ingestion.Service
	dashboard   dashboard.Service
	opportunity appopp.Service
}

// appOptions selects which optional collaborators to wire.
type appOptions struct {
	withRedis    bool
	withProducer bool
	withArchive  bool
}

// buildApp wires infrastructure and application services from configuration.
// Postgres is always required; Redis, Kafka, and MinIO are wired on demand so
// offline commands stay light.
func buildApp(ctx context.Context, cfg *config.Config, log logging.Logger, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, logger: log, metrics: prometheus.NewMetrics()}

	pg, err := postgres.NewConnection(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.pg = pg
	a.repo = repositories.NewOpportunityRepository(pg.Pool(), log)

	if opts.withRedis {
		client, err := redis.NewClient(cfg.Redis, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.redis = client
	}
	if opts.withProducer {
		a.producer = kafka.NewProducer(cfg.Kafka, log)
	}
	if opts.withArchive {
		store, err := minio.NewArchiveStore(ctx, cfg.MinIO, log)
		if err != nil {
			// Object storage is an audit trail, not a dependency the
			// scoring path needs.  Start without it.
			log.Warn("archive store unavailable, batches will not be archived", logging.Err(err))
		} else {
			a.archive = store
		}
	}

	weights := cfg.Scoring.Weights
	if cfg.Scoring.WeightsFile != "" {
		w, err := config.LoadWeights(cfg.Scoring.WeightsFile)
		if err != nil {
			log.Warn("weights profile unreadable, using configured weights",
				logging.String("path", cfg.Scoring.WeightsFile), logging.Err(err))
		} else {
			weights = w
		}
	}

	var producer ingestion.Producer
	if a.producer != nil {
		producer = a.producer
	}
	var archiver ingestion.Archiver
	if a.archive != nil {
		archiver = a.archive
	}
	a.ingestion = ingestion.NewService(a.repo, producer, archiver, a.metrics, log, ingestion.Options{
		Enhance:     cfg.Scoring.EnhanceOptions(),
		Weights:     weights,
		PhoneRegion: cfg.Scoring.PhoneRegion,
		ScoredTopic: cfg.Kafka.ScoredTopic,
	})

	var cache dashboard.SnapshotCache
	if a.redis != nil {
		cache = redis.NewCache(a.redis, log,
			redis.WithPrefix(cfg.Redis.KeyPrefix),
			redis.WithDefaultTTL(cfg.Dashboard.CacheTTL))
	}
	a.dashboard = dashboard.NewService(a.repo, cache, a.metrics, log, dashboard.Options{
		Defaults:    cfg.Scoring.EnhanceOptions(),
		Weights:     weights,
		PhoneRegion: cfg.Scoring.PhoneRegion,
		CacheTTL:    cfg.Dashboard.CacheTTL,
		DefaultTopN: cfg.Dashboard.DefaultTopN,
		Concurrency: cfg.Worker.Concurrency,
	})
	a.opportunity = appopp.NewService(a.repo, log)

	return a, nil
}

// watchWeights starts live weight-profile reloading when a weights file is
// configured.  It returns immediately; the watcher stops with ctx.
func (a *app) watchWeights(ctx context.Context) {
	path := a.cfg.Scoring.WeightsFile
	if path == "" {
		return
	}
	go func() {
		err := config.WatchWeights(ctx, path, a.logger, a.ingestion.UpdateWeights)
		if err != nil && ctx.Err() == nil {
			a.logger.Error("weights watcher stopped", logging.Err(err))
		}
	}()
}

// close releases every wired resource in reverse construction order.
func (a *app) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", logging.Err(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", logging.Err(err))
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
}
