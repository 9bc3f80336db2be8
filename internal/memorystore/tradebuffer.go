package memorystore

import "flowrelay/internal/market"

// DefaultMaxTradeBuffer bounds the per-subscription trade buffer.
const DefaultMaxTradeBuffer = 10000

// TradeBuffer is an append-only trade sequence with a hard cap. When an append pushes it past
// the cap, only the newest half is kept. It is owned by a single goroutine.
type TradeBuffer struct {
	max    int
	trades []market.Trade
}

func NewTradeBuffer(max int) *TradeBuffer {
	if max < 2 {
		max = 2
	}
	return &TradeBuffer{max: max}
}

// Append adds t and returns how many of the oldest trades were evicted to make room.
func (b *TradeBuffer) Append(t market.Trade) int {
	b.trades = append(b.trades, t)
	if len(b.trades) <= b.max {
		return 0
	}

	keep := b.max / 2
	evicted := len(b.trades) - keep
	kept := make([]market.Trade, keep, b.max)
	copy(kept, b.trades[evicted:])
	b.trades = kept
	return evicted
}

func (b *TradeBuffer) Len() int {
	return len(b.trades)
}

func (b *TradeBuffer) Cap() int {
	return b.max
}

// Trades returns a copy of the buffered trades in arrival order.
func (b *TradeBuffer) Trades() []market.Trade {
	cp := make([]market.Trade, len(b.trades))
	copy(cp, b.trades)
	return cp
}

// TakeUntil removes and returns every trade with Time <= cutoff. Later trades stay buffered
// in their original order.
func (b *TradeBuffer) TakeUntil(cutoff int64) []market.Trade {
	taken := make([]market.Trade, 0, len(b.trades))
	rest := b.trades[:0]
	for _, t := range b.trades {
		if t.Time <= cutoff {
			taken = append(taken, t)
		} else {
			rest = append(rest, t)
		}
	}
	b.trades = rest
	return taken
}

func (b *TradeBuffer) Reset() {
	b.trades = nil
}
