// Package http provides the read-only HTTP inspection API for causalityd.
package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/causalityd/internal/tracker"
)

// Server exposes the tracker's analyzers over HTTP. It is an observer:
// no endpoint mutates tracker state.
type Server struct {
	echo    *echo.Echo
	tracker *tracker.Tracker
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP inspection server.
func NewServer(trk *tracker.Tracker, logger *zap.Logger, cfg *Config) (*Server, error) {
	if trk == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9180,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		tracker: trk,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/chains", s.handleChains)
	v1.GET("/chains/:id/export", s.handleExport)
	v1.GET("/chains/:id/timeline", s.handleTimeline)
	v1.GET("/chains/:id/performance", s.handlePerformance)
	v1.GET("/stats", s.handleStats)
	v1.GET("/context", s.handleContext)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ChainsResponse is the response body for GET /api/v1/chains.
type ChainsResponse struct {
	Chains []*tracker.Chain `json:"chains"`
	Count  int              `json:"count"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleChains lists chains matching the query filter.
//
// Query parameters: root_type, since, until (RFC3339), tags
// (comma-separated), has_errors (bool).
func (s *Server) handleChains(c echo.Context) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		s.logger.Warn("invalid chains filter", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	chains := s.tracker.Chains(filter)
	return c.JSON(http.StatusOK, ChainsResponse{
		Chains: chains,
		Count:  len(chains),
	})
}

// handleExport returns the full snapshot for one chain.
func (s *Server) handleExport(c echo.Context) error {
	export, ok := s.tracker.ExportChain(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	return c.JSON(http.StatusOK, export)
}

// handleTimeline returns the chronological reconstruction of one chain.
func (s *Server) handleTimeline(c echo.Context) error {
	timeline, ok := s.tracker.ChainTimeline(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	return c.JSON(http.StatusOK, timeline)
}

// handlePerformance returns the performance report for one chain.
func (s *Server) handlePerformance(c echo.Context) error {
	impact, ok := s.tracker.ChainPerformanceImpact(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chain not found")
	}
	return c.JSON(http.StatusOK, impact)
}

// handleStats returns store sizes and lifetime counters.
func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.Stats())
}

// handleContext returns the flattened causality context of the active
// chain, the same record merged into structured log lines.
func (s *Server) handleContext(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tracker.CausalityContext())
}

// filterFromQuery builds a ChainFilter from request query parameters.
func filterFromQuery(c echo.Context) (*tracker.ChainFilter, error) {
	var filter tracker.ChainFilter
	var any bool

	if rootType := c.QueryParam("root_type"); rootType != "" {
		typ := tracker.EventType(rootType)
		if !typ.Valid() {
			return nil, fmt.Errorf("unknown root_type %q", rootType)
		}
		filter.RootType = typ
		any = true
	}

	if since := c.QueryParam("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %v", err)
		}
		filter.Since = ts
		any = true
	}

	if until := c.QueryParam("until"); until != "" {
		ts, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return nil, fmt.Errorf("invalid until timestamp: %v", err)
		}
		filter.Until = ts
		any = true
	}

	if tags := c.QueryParam("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.Tags = append(filter.Tags, tag)
			}
		}
		any = true
	}

	if hasErrors := c.QueryParam("has_errors"); hasErrors != "" {
		v, err := strconv.ParseBool(hasErrors)
		if err != nil {
			return nil, fmt.Errorf("invalid has_errors value: %v", err)
		}
		filter.HasErrors = &v
		any = true
	}

	if !any {
		return nil, nil
	}
	return &filter, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
