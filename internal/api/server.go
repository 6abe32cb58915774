// Package api exposes the connection service over HTTP.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"exchangelink/config"
	"exchangelink/internal/connection"
	"exchangelink/internal/metrics"
	"exchangelink/internal/pool"
	"exchangelink/logger"
	"exchangelink/models"
)

// ConnectionService is the subset of the connection service served over
// HTTP.
type ConnectionService interface {
	CreateConnection(ctx context.Context, in connection.CreateInput) (*models.Configuration, error)
	ListConnections(ctx context.Context, userID, tenantID string) ([]models.ConnectionSummary, error)
	GetConnectionSummary(ctx context.Context, ref models.ConfigRef) (*models.ConnectionSummary, error)
	GetConnectionStatus(ctx context.Context, ref models.ConfigRef) (*models.ConnectionStatusReport, error)
	TestConnection(ctx context.Context, ref models.ConfigRef) (*models.TestResult, error)
	DisableConnection(ctx context.Context, ref models.ConfigRef) error
	FetchBalances(ctx context.Context, ref models.ConfigRef) ([]models.Balance, error)
	FetchTicker(ctx context.Context, ref models.ConfigRef, symbol string) (*models.Ticker, error)
	FetchOrderBook(ctx context.Context, ref models.ConfigRef, symbol string, limit int) (*models.OrderBook, error)
	FetchTrades(ctx context.Context, ref models.ConfigRef, symbol string, limit int) ([]models.Trade, error)
	FetchOHLCV(ctx context.Context, ref models.ConfigRef, symbol, timeframe string, limit int) ([]models.Candle, error)
	ListMarkets(ctx context.Context, ref models.ConfigRef) ([]models.MarketSummary, error)
	GetMarket(ctx context.Context, ref models.ConfigRef, symbol string) (*models.MarketSummary, error)
}

// Server hosts the connection API.
type Server struct {
	cfg        config.HTTPConfig
	svc        ConnectionService
	stats      func() pool.Stats
	log        *logger.Log
	version    string
	httpServer *http.Server
}

// NewServer builds a server for svc. stats may be nil.
func NewServer(cfg config.HTTPConfig, version string, svc ConnectionService, stats func() pool.Stats, log *logger.Log) *Server {
	cfg.Address = normalizeAddress(cfg.Address)
	if log == nil {
		log = logger.GetLogger()
	}
	return &Server{cfg: cfg, svc: svc, stats: stats, log: log, version: version}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	return s.cfg.Address
}

// Run serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithComponent("api").WithFields(logger.Fields{"address": s.cfg.Address}).Info("http server started")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.log))
	_ = router.SetTrustedProxies(nil)

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	h := &handlers{svc: s.svc}
	conns := router.Group("/connections", identity())
	conns.POST("", h.create)
	conns.GET("", h.list)
	conns.GET("/:id", h.summary)
	conns.DELETE("/:id", h.disable)
	conns.GET("/:id/status", h.status)
	conns.POST("/:id/test", h.test)
	conns.GET("/:id/balances", h.balances)
	conns.GET("/:id/ticker", h.ticker)
	conns.GET("/:id/orderbook", h.orderBook)
	conns.GET("/:id/trades", h.trades)
	conns.GET("/:id/ohlcv", h.ohlcv)
	conns.GET("/:id/markets", h.markets)
	conns.GET("/:id/markets/:symbol", h.market)
	return router
}

func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok", "version": s.version}
	if s.stats != nil {
		body["pool"] = s.stats()
	}
	c.JSON(http.StatusOK, body)
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
