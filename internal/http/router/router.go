package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"waworker/internal/app/config"
	"waworker/internal/http/handlers"
	appMiddleware "waworker/internal/http/middleware"
	"waworker/pkg/logger"
)

// Router is the worker's liveness HTTP surface (§6, §10.4): GET /health and
// nothing else.
type Router struct {
	*chi.Mux
	config        *config.Config
	logger        logger.Logger
	healthHandler *handlers.HealthHandler
}

// New builds a Router wired to the given config, logger, and health handler.
func New(cfg *config.Config, log logger.Logger, healthHandler *handlers.HealthHandler) *Router {
	r := &Router{
		Mux:           chi.NewRouter(),
		config:        cfg,
		logger:        log.WithComponent("router"),
		healthHandler: healthHandler,
	}

	r.setupMiddlewares()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddlewares() {
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(appMiddleware.NewCORS())
	r.Use(appMiddleware.NewLoggingMiddleware(r.logger))
	r.Use(appMiddleware.NewRecoveryMiddleware(r.logger))
	r.Use(appMiddleware.NewRateLimit(100))
}

func (r *Router) setupRoutes() {
	r.Get("/health", r.healthHandler.Health)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
}
