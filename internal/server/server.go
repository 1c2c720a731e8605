// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vampirenirmal/storyscope/internal/analysis"
	"github.com/vampirenirmal/storyscope/internal/insights"
	"github.com/vampirenirmal/storyscope/internal/storage"
	"github.com/vampirenirmal/storyscope/internal/telemetry"
)

type Server struct {
	Echo *echo.Echo

	engine   *analysis.Engine
	reports  *storage.ReportStore
	insights insights.Analyzer
	sink     telemetry.Sink
	logger   *slog.Logger
}

type Option func(*Server)

// WithReports enables ?save=true and the /api/reports routes.
func WithReports(store *storage.ReportStore) Option {
	return func(s *Server) {
		s.reports = store
	}
}

// WithInsights enables ?insights=true on /api/analyze.
func WithInsights(a insights.Analyzer) Option {
	return func(s *Server) {
		s.insights = a
	}
}

func WithSink(sink telemetry.Sink) Option {
	return func(s *Server) {
		if sink != nil {
			s.sink = sink
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(engine *analysis.Engine, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		Echo:   e,
		engine: engine,
		sink:   telemetry.Nop{},
		logger: slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("8M"))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("HTTP request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"duration_ms", v.Latency.Milliseconds(),
				"error", v.Error)
			return nil
		},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/healthz", s.handleHealth)

	api := s.Echo.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.GET("/schema/:name", s.handleSchema)
	api.GET("/reports/:project", s.handleListReports)
	api.GET("/reports/:project/:id", s.handleGetReport)
	api.DELETE("/reports/:project/:id", s.handleDeleteReport)
}

func (s *Server) Start(addr string) error {
	s.logger.Info("Server listening", "addr", addr)
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.Echo.Shutdown(ctx)
}
