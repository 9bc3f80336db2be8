package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"flowrelay/internal/market"
	"flowrelay/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const ServiceName = "flowrelay"

// MarketAPI is the REST surface proxied under /api. *binance.RESTClient satisfies it.
type MarketAPI interface {
	GetKlines(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]market.Kline, error)
	GetAggTrades(ctx context.Context, symbol string, limit int, startTime, endTime int64) ([]market.Trade, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (market.OrderBook, error)
	Get24hrTicker(ctx context.Context, symbol string) (market.Ticker24h, error)
}

type SymbolSource interface {
	Get(symbol string) market.SymbolConfig
	GetAll() []market.SymbolConfig
}

type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string // empty or "*" allows every origin

	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           4000,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

type Server struct {
	cfg      Config
	api      MarketAPI
	symbols  SymbolSource
	sessions *session.Manager
	logger   *zap.Logger

	engine     *gin.Engine
	httpServer *http.Server
	upgrader   websocket.Upgrader

	// parent of every session context
	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, api MarketAPI, symbols SymbolSource, sessions *session.Manager, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		api:      api,
		symbols:  symbols,
		sessions: sessions,
		logger:   logger,
		engine:   gin.New(),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	s.engine.Use(gin.Recovery(), zapLoggerMiddleware(logger), corsMiddleware(cfg.AllowedOrigins))
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ws", s.handleWS)

	api := s.engine.Group("/api")
	api.GET("/klines/:symbol/:interval", s.handleKlines)
	api.GET("/trades/:symbol", s.handleTrades)
	api.GET("/orderbook/:symbol", s.handleOrderBook)
	api.GET("/ticker/:symbol", s.handleTicker)
	api.GET("/symbols", s.handleSymbols)
	api.GET("/volume-profile/:symbol", s.handleVolumeProfile)
	api.GET("/cvd/:symbol/:interval", s.handleCVD)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and closes every client session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.cancel()
	s.sessions.Shutdown()
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return originAllowed(s.cfg.AllowedOrigins, origin)
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
