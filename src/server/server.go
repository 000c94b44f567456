package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"mt5-gateway/src/identity"
	"mt5-gateway/src/interfaces"
	"mt5-gateway/src/logger"
	"mt5-gateway/src/marketdata"
	"mt5-gateway/src/models"
	"mt5-gateway/src/orders"
	"mt5-gateway/src/session"

	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// HealthChecker reports the aggregated gateway health.
type HealthChecker interface {
	Check(ctx context.Context) models.MHealthReport
}

// Deps are the components the REST surface fronts.
type Deps struct {
	Sessions *session.Registry
	Market   *marketdata.Gateway
	Orders   *orders.Gateway
	Journal  interfaces.IJournal
	Identity interfaces.IIdentityProvider
	APIKeys  *identity.APIKeyVerifier
	Health   HealthChecker
	Hub      *Hub
}

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

type Server struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	http   *http.Server

	Deps
	limiter *rateLimiter
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewServer(cfg *models.MConfig, deps Deps, log *logger.Logger) (*Server, error) {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter, err := newRateLimiter(cfg.API.RequestsPerMinute, limiterIdleTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limiter: %w", err)
	}

	s := &Server{
		Config:  cfg,
		Logger:  log,
		engine:  gin.New(),
		Deps:    deps,
		limiter: limiter,
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), s.cors(), s.errorHandler())
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.getRoot)
	s.engine.GET("/health", s.getHealth)
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.GET("/api/v1/symbols", s.listSymbols)

	api := s.engine.Group("/api/v1", s.authenticate(), s.rateLimit())
	{
		api.POST("/accounts/connect", s.connectAccount)
		api.POST("/accounts/disconnect", s.disconnectAccount)
		api.GET("/accounts/status", s.accountStatus)
		api.GET("/account/info", s.accountInfo)

		api.POST("/trades", s.executeTrade)
		api.GET("/positions", s.listPositions)
		api.POST("/positions/:ticket/close", s.closePosition)
		api.PUT("/positions/:ticket", s.modifyPosition)

		api.GET("/orders", s.orderHistory)
		api.GET("/orders/open", s.openOrders)
		api.GET("/orders/journal", s.journalOrders)
		api.DELETE("/orders/:ticket", s.cancelOrder)

		api.GET("/market-data/:symbol", s.historicalData)
		api.GET("/market-data/:symbol/tick", s.latestTick)
		api.GET("/symbols/:symbol", s.symbolInfo)
	}
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.Logger.Info("Starting server on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains in-flight requests, then closes realtime sockets.
func (s *Server) Stop(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if s.Hub != nil {
		s.Hub.Stop()
	}
	s.limiter.Close()
	return err
}

// -----------------------------------------------------------------------------
// Service routes
// -----------------------------------------------------------------------------

func (s *Server) getRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "MT5 gateway is running",
		"service": s.Config.Name,
		"version": serviceVersion,
	})
}

// -----------------------------------------------------------------------------

func (s *Server) getHealth(c *gin.Context) {
	report := s.Health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == models.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// -----------------------------------------------------------------------------

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}
	s.Hub.Serve(conn)
}
