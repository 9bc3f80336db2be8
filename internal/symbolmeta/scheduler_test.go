package symbolmeta

import (
	"context"
	"testing"
	"time"

	"flowrelay/internal/market"
	"flowrelay/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// go test -v --run TestNextMidnight
func TestNextMidnight(t *testing.T) {
	cases := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2024, 3, 1, 13, 45, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		// 01:30 in UTC+9 is 16:30 UTC of the previous day
		{time.Date(2024, 3, 2, 1, 30, 0, 0, time.FixedZone("KST", 9*3600)), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		assert.True(t, c.want.Equal(NextMidnight(c.in)), "%s", c.in)
	}
}

type fetcher []market.SymbolConfig

func (f fetcher) GetSymbolConfigs(context.Context, string) ([]market.SymbolConfig, error) {
	return f, nil
}

// go test -v --run TestStartRunsImmediatelyAndStops
func TestStartRunsImmediatelyAndStops(t *testing.T) {
	loader := &snapshot.SymbolLoader{
		Fetcher: fetcher{{Symbol: "BTCUSDT", TickSize: 0.01}, {Symbol: "ETHUSDT", TickSize: 0.01}},
		Logger:  zaptest.NewLogger(t),
	}
	m := &MidnightLoader{Load: DefaultLoadFn(loader), Logger: zaptest.NewLogger(t)}

	got := make(chan []string, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := m.Start(ctx, true, func(ch <-chan market.SymbolConfig) {
		var names []string
		for cfg := range ch {
			names = append(names, cfg.Symbol)
		}
		got <- names
	})

	select {
	case names := <-got:
		assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, names)
	case <-time.After(2 * time.Second):
		t.Fatal("initial load did not run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "scheduler did not stop")
	}
}
