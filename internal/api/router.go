package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/querynotes/querynotes-api/docs"
	"github.com/querynotes/querynotes-api/internal/api/handler"
	"github.com/querynotes/querynotes-api/internal/api/middleware"
	"github.com/querynotes/querynotes-api/internal/core/ports"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth    ports.AuthService
	Queries ports.QueryService
	Tokens  ports.TokenVerifier
	Logger  zerolog.Logger

	// Readiness lists the backing services probed by /health/ready.
	Readiness []handler.Dependency

	// Registry receives the HTTP request metrics and backs /metrics.
	// Nil means the Prometheus default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Logger)

	promMiddleware := echoprometheus.MiddlewareConfig{
		Subsystem: "querynotes",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	}
	promHandler := echoprometheus.HandlerConfig{}
	if d.Registry != nil {
		promMiddleware.Registerer = d.Registry
		promHandler.Gatherer = d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(promMiddleware))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth)
	queryHandler := handler.NewQueryHandler(d.Queries)
	publicHandler := handler.NewPublicHandler(d.Queries)
	authMiddleware := middleware.Auth(d.Tokens)

	api := e.Group("/api")
	legacy := e.Group("")

	// --- Auth routes (legacy clients also call them at the top level) ---
	for _, g := range []*echo.Group{api, legacy} {
		g.POST("/signup", authHandler.Signup)
		g.POST("/login", authHandler.Login)
	}

	// --- Owner-scoped routes ---
	api.GET("/queries", queryHandler.List, authMiddleware)
	api.POST("/queries", queryHandler.Create, authMiddleware)
	api.GET("/queries/:id", queryHandler.Get, authMiddleware)
	api.PUT("/queries/:id", queryHandler.Update, authMiddleware)
	api.DELETE("/queries/:id", queryHandler.Delete, authMiddleware)
	api.POST("/queries/:id/share", queryHandler.Share, authMiddleware)
	api.GET("/tags", queryHandler.Tags, authMiddleware)

	// --- Anonymous share lookup ---
	for _, g := range []*echo.Group{api, legacy} {
		g.GET("/public/queries/:shareId", publicHandler.Get)
	}

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Logger, d.Readiness...)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Ops ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(promHandler))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
