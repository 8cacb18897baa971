// Package api exposes the read-mostly status surface: health, aggregate
// metrics, risk state, recent decisions, and a WebSocket stream of bus events.
// It never originates trading actions beyond a manual breaker reset.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"tradecore/internal/database"
	"tradecore/internal/events"
	"tradecore/internal/metrics"
	"tradecore/internal/orchestrator"
	"tradecore/internal/risk"
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP status API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	logger     zerolog.Logger

	orch     *orchestrator.Orchestrator
	governor *risk.Governor
	metrics  *metrics.Aggregator
	repo     *database.Repository // may be nil
	hub      *WSHub
}

// NewServer creates the API server. repo may be nil when persistence is
// disabled; the decision history endpoint then reports unavailability.
func NewServer(
	cfg ServerConfig,
	orch *orchestrator.Orchestrator,
	governor *risk.Governor,
	metricsAgg *metrics.Aggregator,
	repo *database.Repository,
	bus *events.EventBus,
	logger zerolog.Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:5173"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		config:   cfg,
		logger:   logger.With().Str("component", "api").Logger(),
		orch:     orch,
		governor: governor,
		metrics:  metricsAgg,
		repo:     repo,
		hub:      NewWSHub(logger),
	}

	s.setupRoutes()
	s.hub.AttachBus(bus)
	go s.hub.Run()

	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/status", s.handleStatus)
		api.GET("/risk", s.handleRisk)
		api.GET("/decisions/:symbol", s.handleDecisions)
		api.POST("/breaker/reset", s.handleBreakerReset)
	}
	s.router.GET("/ws", s.handleWebSocket)
}

// Start runs the HTTP server until Stop is called. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// normalizeSymbol uppercases and trims a path symbol.
func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
