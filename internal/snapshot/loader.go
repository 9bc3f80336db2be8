package snapshot

import (
	"context"
	"time"

	"flowrelay/internal/market"

	"go.uber.org/zap"
)

// SymbolFetcher lists the tradable symbols of one quote asset.
type SymbolFetcher interface {
	GetSymbolConfigs(ctx context.Context, quoteAsset string) ([]market.SymbolConfig, error)
}

type SymbolLoader struct {
	Fetcher    SymbolFetcher
	QuoteAsset string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// LoadSymbols fetches the trading rules of every symbol quoted in QuoteAsset
// and streams them into the provided channel. ch is always closed on return.
func (l *SymbolLoader) LoadSymbols(ctx context.Context, ch chan<- market.SymbolConfig) error {
	defer close(ch) // Ensure downstream consumers can exit cleanly

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	symbols, err := l.Fetcher.GetSymbolConfigs(ctx, l.QuoteAsset)
	if err != nil {
		l.Logger.Error("failed to load symbols", zap.String("quote", l.QuoteAsset), zap.Error(err))
		return err
	}
	l.Logger.Info("loaded symbols", zap.String("quote", l.QuoteAsset), zap.Int("count", len(symbols)))

	for _, symbol := range symbols {
		select {
		case ch <- symbol:
		case <-ctx.Done():
			l.Logger.Warn("symbol streaming interrupted", zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}

	return nil
}
