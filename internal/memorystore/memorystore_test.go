package memorystore

import (
	"testing"

	"flowrelay/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestTradeBufferEvictsToNewestHalf
func TestTradeBufferEvictsToNewestHalf(t *testing.T) {
	b := NewTradeBuffer(10)

	for i := 1; i <= 10; i++ {
		assert.Zero(t, b.Append(market.Trade{TradeID: int64(i)}))
	}
	assert.Equal(t, 10, b.Len())

	evicted := b.Append(market.Trade{TradeID: 11})
	assert.Equal(t, 6, evicted)
	require.Equal(t, 5, b.Len())

	trades := b.Trades()
	for i, tr := range trades {
		assert.Equal(t, int64(7+i), tr.TradeID)
	}
}

// go test -v --run TestTradeBufferNeverExceedsCap
func TestTradeBufferNeverExceedsCap(t *testing.T) {
	b := NewTradeBuffer(100)
	for i := 0; i < 1000; i++ {
		b.Append(market.Trade{TradeID: int64(i)})
		require.LessOrEqual(t, b.Len(), b.Cap())
	}
}

// go test -v --run TestTradeBufferTakeUntil
func TestTradeBufferTakeUntil(t *testing.T) {
	b := NewTradeBuffer(100)
	for _, ts := range []int64{10, 20, 30, 25, 40} {
		b.Append(market.Trade{Time: ts})
	}

	taken := b.TakeUntil(25)
	require.Len(t, taken, 3)
	assert.Equal(t, []int64{10, 20, 25}, times(taken))
	assert.Equal(t, []int64{30, 40}, times(b.Trades()))

	assert.Empty(t, b.TakeUntil(5))
	b.Reset()
	assert.Zero(t, b.Len())
}

func times(trades []market.Trade) []int64 {
	out := make([]int64, 0, len(trades))
	for _, t := range trades {
		out = append(out, t.Time)
	}
	return out
}

// go test -v --run TestHistoryEvictsOldest
func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory[string](3)

	assert.Zero(t, h.Put(30, "c"))
	assert.Zero(t, h.Put(10, "a"))
	assert.Zero(t, h.Put(20, "b"))
	assert.Equal(t, []string{"a", "b", "c"}, h.Values())

	assert.Equal(t, 1, h.Put(40, "d"))
	assert.Equal(t, []string{"b", "c", "d"}, h.Values())
	_, ok := h.Get(10)
	assert.False(t, ok)

	assert.Zero(t, h.Put(20, "B"))
	v, ok := h.Get(20)
	require.True(t, ok)
	assert.Equal(t, "B", v)
	assert.Equal(t, 3, h.Len())

	h.Reset()
	assert.Zero(t, h.Len())
	assert.Empty(t, h.Values())
}

// go test -v --run TestSymbolStoreFallback
func TestSymbolStoreFallback(t *testing.T) {
	s := NewSymbolStore(market.DefaultSymbolConfigs...)

	btc := s.Get("btcusdt")
	assert.Equal(t, "BTCUSDT", btc.Symbol)
	assert.Equal(t, 0.01, btc.TickSize)
	assert.True(t, s.Has("BTCUSDT"))

	unknown := s.Get("FOOUSDT")
	assert.Equal(t, market.DefaultSymbolConfig("FOOUSDT"), unknown)
	assert.False(t, s.Has("FOOUSDT"))

	assert.False(t, s.Add(market.SymbolConfig{Symbol: "BAD", TickSize: 0}))
}

// go test -v --run TestSymbolStoreWorker
func TestSymbolStoreWorker(t *testing.T) {
	s := NewSymbolStore()
	ch := make(chan market.SymbolConfig)
	done := s.StartWorker(ch)

	ch <- market.SymbolConfig{Symbol: "ethusdt", TickSize: 0.01}
	ch <- market.SymbolConfig{Symbol: "ADAUSDT", TickSize: 0.0001}
	close(ch)
	<-done

	all := s.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "ADAUSDT", all[0].Symbol)
	assert.Equal(t, "ETHUSDT", all[1].Symbol)
	assert.Equal(t, 2, s.Count())
}
