// Package http assembles the gin route tree and the HTTP server lifecycle.
package http

import (
	"github.com/gin-gonic/gin"

	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/logging"
	"github.com/agencypulse/crosssell-intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/handlers"
	"github.com/agencypulse/crosssell-intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates every handler and middleware dependency needed to
// build the route tree.
type RouterConfig struct {
	IngestionHandler   *handlers.IngestionHandler
	OpportunityHandler *handlers.OpportunityHandler
	DashboardHandler   *handlers.DashboardHandler
	HealthHandler      *handlers.HealthHandler

	Logger  logging.Logger
	Metrics *prometheus.Metrics

	CORS           middleware.CORSConfig
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the complete gin engine: global middleware, public
// probes, the metrics endpoint, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Logger, cfg.Metrics))
	r.Use(middleware.CORS(cfg.CORS))

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	if cfg.IngestionHandler != nil {
		api.POST("/ingestions", cfg.IngestionHandler.Create)
	}
	if cfg.OpportunityHandler != nil {
		api.GET("/opportunities", cfg.OpportunityHandler.List)
		api.DELETE("/opportunities", cfg.OpportunityHandler.Clear)
		api.GET("/opportunities/:id", cfg.OpportunityHandler.Get)
		api.POST("/opportunities/:id/dismiss", cfg.OpportunityHandler.Dismiss)
		api.POST("/opportunities/:id/reopen", cfg.OpportunityHandler.Reopen)
		api.POST("/opportunities/:id/task", cfg.OpportunityHandler.LinkTask)
	}
	if cfg.DashboardHandler != nil {
		api.GET("/dashboard/ranked", cfg.DashboardHandler.Ranked)
		api.GET("/dashboard/summary", cfg.DashboardHandler.Summary)
		api.POST("/score/preview", cfg.DashboardHandler.Preview)
	}

	return r
}
