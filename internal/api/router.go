// Package api exposes the HTTP control surface: settings, credentials,
// page connections, schedules, published history, logs and manual runs.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/keys"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

const serviceVersion = "1.0.0"

// JobRunner runs one schedule on demand.
type JobRunner interface {
	RunByID(ctx context.Context, kind domain.ContentKind, id string) error
}

// Refresher wakes the scheduler after schedule mutations.
type Refresher interface {
	RequestRefresh()
}

// TokenVerifier resolves the pages a platform token can publish to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) ([]domain.Page, error)
}

// Router holds the API dependencies
type Router struct {
	store     *store.Store
	keys      *keys.Service
	runner    JobRunner
	refresher Refresher
	verifier  TokenVerifier
	registry  *prometheus.Registry
	logger    logger.Logger
	cfg       *config.Config
}

// Deps bundles the Router's dependencies.
type Deps struct {
	Store     *store.Store
	Keys      *keys.Service
	Runner    JobRunner
	Refresher Refresher
	Verifier  TokenVerifier
	Registry  *prometheus.Registry
	Logger    logger.Logger
	Config    *config.Config
}

// NewRouter creates a new API router
func NewRouter(deps Deps) *Router {
	return &Router{
		store:     deps.Store,
		keys:      deps.Keys,
		runner:    deps.Runner,
		refresher: deps.Refresher,
		verifier:  deps.Verifier,
		registry:  deps.Registry,
		logger:    deps.Logger,
		cfg:       deps.Config,
	}
}

// Engine builds the gin engine with all routes registered.
func (r *Router) Engine() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	engine.GET("/health", r.health)
	engine.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	apiGroup := engine.Group("/api")
	{
		apiGroup.GET("/settings", r.getSettings)
		apiGroup.PUT("/settings", r.updateSettings)
		apiGroup.DELETE("/settings/catbox", r.deleteCatboxHash)

		apiGroup.GET("/keys/:provider", r.listKeys)
		apiGroup.POST("/keys/:provider", r.addKey)
		apiGroup.PATCH("/keys/:provider/:id", r.setKeyStatus)
		apiGroup.DELETE("/keys/:provider/:id", r.deleteKey)

		apiGroup.POST("/facebook/connect", r.connectFacebook)
		apiGroup.GET("/facebook/pages", r.listPages)
		apiGroup.POST("/facebook/pages/:id/refresh", r.refreshPage)
		apiGroup.PUT("/facebook/pages/:id", r.updatePage)
		apiGroup.DELETE("/facebook/pages/:id", r.disconnectPage)

		apiGroup.GET("/schedules/:kind", r.listSchedules)
		apiGroup.POST("/schedules/:kind", r.createSchedule)
		apiGroup.DELETE("/schedules/:kind/:id", r.deleteSchedule)

		apiGroup.GET("/published/:kind", r.listPublished)
		apiGroup.GET("/logs", r.listLogs)
		apiGroup.GET("/niches", r.listNiches)

		apiGroup.POST("/run/:kind/:id", r.runNow)
	}

	return engine
}

// NewServer wraps the engine in an http.Server with configured timeouts.
func (r *Router) NewServer() *http.Server {
	return &http.Server{
		Addr:         r.cfg.Server.Address,
		Handler:      r.Engine(),
		ReadTimeout:  r.cfg.Server.ReadTimeout,
		WriteTimeout: r.cfg.Server.WriteTimeout,
	}
}

// health handles GET /health
func (r *Router) health(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	if err := r.store.Ping(c.Request.Context()); err != nil {
		r.logger.Error("health check failed", logger.Error(err))
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": "gopost",
		"version": serviceVersion,
	})
}
