package relay

import (
	"context"
	"fmt"
	"time"

	"flowrelay/config"
	"flowrelay/internal/market"
	"flowrelay/internal/memorystore"
	"flowrelay/internal/server"
	"flowrelay/internal/session"
	"flowrelay/internal/snapshot"
	"flowrelay/internal/stream"
	"flowrelay/internal/symbolmeta"
	"flowrelay/pkg/binance"
	"flowrelay/pkg/storage/postgres"

	"go.uber.org/zap"
)

const statsInterval = time.Minute

// Run wires the relay together and serves until ctx is canceled. Symbol metadata starts
// from the built-in table, is topped up from Postgres when enabled, and is refreshed from
// the exchange at startup and every UTC midnight when configured.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	symbolStore := memorystore.NewSymbolStore(market.DefaultSymbolConfigs...)

	var postgresClient *postgres.PostgresClient
	if cfg.Postgres.Enabled {
		client, err := postgres.InitializeAndMigrate(cfg.Postgres, cfg.Environment, true)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer client.Close()
		postgresClient = client

		if err := loadStoredSymbols(ctx, postgresClient, symbolStore); err != nil {
			logger.Warn("failed to load stored symbols", zap.Error(err))
		}
	}

	restClient := binance.NewRESTClient(
		cfg.Binance.REST.BaseURL,
		cfg.Binance.REST.Timeout,
		binance.WithAPIKey(cfg.Binance.REST.APIKey),
		binance.WithRateLimit(cfg.Binance.REST.RequestsPerSecond, cfg.Binance.REST.Burst),
	)

	if cfg.Symbols.RefreshOnStart || cfg.Symbols.DailyRefresh {
		loader := &snapshot.SymbolLoader{
			Fetcher:    restClient,
			QuoteAsset: cfg.Symbols.QuoteAsset,
			Timeout:    cfg.Binance.REST.Timeout,
			Logger:     logger,
		}
		scheduler := &symbolmeta.MidnightLoader{Load: symbolmeta.DefaultLoadFn(loader), Logger: logger}
		proc := refreshSymbols(symbolStore, postgresClient, logger)

		if cfg.Symbols.DailyRefresh {
			scheduler.Start(ctx, cfg.Symbols.RefreshOnStart, proc)
		} else {
			proc(scheduler.Load(ctx))
		}
	}
	logger.Info("symbol metadata ready", zap.Int("count", symbolStore.Count()))

	streamCfg := streamConfig(cfg.Binance.WS)
	newUpstream := func() session.Upstream {
		return stream.NewClient(streamCfg, logger.Named("upstream"))
	}
	sessions := session.NewManager(sessionConfig(cfg.Session), symbolStore, newUpstream, logger.Named("session"))

	srv := server.New(serverConfig(cfg.Server), restClient, symbolStore, sessions, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	go logStats(ctx, sessions, logger)

	select {
	case err := <-errCh:
		sessions.Shutdown()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Int("sessions", sessions.Count()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func loadStoredSymbols(ctx context.Context, client *postgres.PostgresClient, store *memorystore.MemorySymbolStore) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stored, err := client.ListSymbols(ctx)
	if err != nil {
		return err
	}
	for _, cfg := range stored {
		store.Add(cfg)
	}
	return nil
}

// refreshSymbols drains one load into the store and persists it when a DB is attached.
func refreshSymbols(store *memorystore.MemorySymbolStore, client *postgres.PostgresClient, logger *zap.Logger) func(<-chan market.SymbolConfig) {
	return func(ch <-chan market.SymbolConfig) {
		var loaded []market.SymbolConfig
		for cfg := range ch {
			if store.Add(cfg) {
				loaded = append(loaded, cfg)
			}
		}
		logger.Info("symbol refresh applied", zap.Int("loaded", len(loaded)), zap.Int("total", store.Count()))

		if client == nil || len(loaded) == 0 {
			return
		}
		dbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.UpsertSymbols(dbCtx, loaded); err != nil {
			logger.Warn("failed to persist symbols", zap.Error(err))
		}
	}
}

func logStats(ctx context.Context, sessions *session.Manager, logger *zap.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("active sessions", zap.Int("count", sessions.Count()))
		}
	}
}

func streamConfig(c config.WSConfig) binance.StreamConfig {
	return binance.StreamConfig{
		URL:                  c.URL,
		HandshakeTimeout:     c.HandshakeTimeout,
		ReadTimeout:          c.ReadTimeout,
		WriteTimeout:         c.WriteTimeout,
		PingInterval:         c.PingInterval,
		ReconnectDelay:       c.ReconnectDelay,
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		MaxReconnectDelay:    c.MaxReconnectDelay,
	}
}

func sessionConfig(c config.SessionConfig) session.Config {
	return session.Config{
		MaxTradeBuffer:             c.MaxTradeBuffer,
		MaxFootprintHistory:        c.MaxFootprintHistory,
		TradeHistorySize:           c.TradeHistorySize,
		ResubscribeGrace:           c.ResubscribeGrace,
		SupportResistanceThreshold: c.SupportResistanceThreshold,
		InboxSize:                  c.InboxSize,
	}
}

func serverConfig(c config.ServerConfig) server.Config {
	return server.Config{
		Host:           c.Host,
		Port:           c.Port,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		IdleTimeout:    c.IdleTimeout,
		AllowedOrigins: c.AllowedOrigins,
		SendBuffer:     c.SendBuffer,
		WriteWait:      c.WriteWait,
		PongWait:       c.PongWait,
		PingPeriod:     c.PingPeriod,
		MaxMessageSize: c.MaxMessageSize,
	}
}
