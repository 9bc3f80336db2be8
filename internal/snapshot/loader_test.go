package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"flowrelay/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubFetcher struct {
	configs []market.SymbolConfig
	err     error
	quote   string
}

func (s *stubFetcher) GetSymbolConfigs(_ context.Context, quoteAsset string) ([]market.SymbolConfig, error) {
	s.quote = quoteAsset
	return s.configs, s.err
}

// go test -v --run TestLoadSymbolsStreamsAll
func TestLoadSymbolsStreamsAll(t *testing.T) {
	fetcher := &stubFetcher{configs: []market.SymbolConfig{
		{Symbol: "BTCUSDT", TickSize: 0.01},
		{Symbol: "ETHUSDT", TickSize: 0.01},
	}}
	loader := &SymbolLoader{Fetcher: fetcher, QuoteAsset: "USDT", Timeout: time.Second, Logger: zaptest.NewLogger(t)}

	ch := make(chan market.SymbolConfig, 10)
	require.NoError(t, loader.LoadSymbols(context.Background(), ch))

	var got []string
	for cfg := range ch {
		got = append(got, cfg.Symbol)
	}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
	assert.Equal(t, "USDT", fetcher.quote)
}

// go test -v --run TestLoadSymbolsErrorClosesChannel
func TestLoadSymbolsErrorClosesChannel(t *testing.T) {
	boom := errors.New("boom")
	loader := &SymbolLoader{Fetcher: &stubFetcher{err: boom}, Logger: zaptest.NewLogger(t)}

	ch := make(chan market.SymbolConfig)
	assert.ErrorIs(t, loader.LoadSymbols(context.Background(), ch), boom)

	_, ok := <-ch
	assert.False(t, ok)
}

// go test -v --run TestLoadSymbolsCanceled
func TestLoadSymbolsCanceled(t *testing.T) {
	loader := &SymbolLoader{
		Fetcher: &stubFetcher{configs: []market.SymbolConfig{{Symbol: "BTCUSDT", TickSize: 1}}},
		Logger:  zaptest.NewLogger(t),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// unbuffered and never read, so only cancellation can end the send
	ch := make(chan market.SymbolConfig)
	assert.ErrorIs(t, loader.LoadSymbols(ctx, ch), context.Canceled)
}
