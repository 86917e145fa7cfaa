package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apphttp "github.com/agencypulse/crosssell-intelligence/internal/interfaces/http"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/handlers"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/middleware"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve starts the REST API: ingestion, opportunity management, dashboard
reads, health probes, and the Prometheus metrics endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log, appOptions{
				withRedis:    true,
				withProducer: true,
				withArchive:  true,
			})
			if err != nil {
				return err
			}
			defer a.close()

			a.watchWeights(ctx)

			health := handlers.NewHealthHandler(map[string]handlers.Checker{
				"postgres": a.pg,
				"redis":    a.redis,
			})
			server := apphttp.NewServer(cfg.Server, apphttp.RouterConfig{
				IngestionHandler:   handlers.NewIngestionHandler(a.ingestion, a.dashboard, log),
				OpportunityHandler: handlers.NewOpportunityHandler(a.opportunity),
				DashboardHandler:   handlers.NewDashboardHandler(a.dashboard),
				HealthHandler:      health,
				Logger:             log,
				Metrics:            a.metrics,
				CORS:               middleware.DefaultCORSConfig(),
				RateLimitRPS:       cfg.Server.RateLimitRPS,
				RateLimitBurst:     cfg.Server.RateLimitBurst,
			}, log)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			log.Info("api server started",
				logging.Int("port", cfg.Server.Port),
				logging.String("version", Version))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return server.Stop(shutdownCtx)
		},
	}
}
