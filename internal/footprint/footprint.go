package footprint

import (
	"sort"

	"flowrelay/internal/market"

	"github.com/shopspring/decimal"
)

// Cell is the buy/sell breakdown of one price level within a candle.
type Cell struct {
	Price       float64 `json:"price"`
	BuyVolume   float64 `json:"buyVolume"`
	SellVolume  float64 `json:"sellVolume"`
	TotalVolume float64 `json:"totalVolume"`
	Delta       float64 `json:"delta"` // BuyVolume - SellVolume
	TradeCount  int     `json:"tradeCount"`
}

// Snapshot is the footprint of one closed candle. Cells are sparse and sorted by ascending price.
type Snapshot struct {
	Symbol          string  `json:"symbol"`
	Interval        string  `json:"interval"`
	OpenTime        int64   `json:"openTime"`
	CloseTime       int64   `json:"closeTime"`
	Open            float64 `json:"open"`
	High            float64 `json:"high"`
	Low             float64 `json:"low"`
	Close           float64 `json:"close"`
	Volume          float64 `json:"volume"`
	Cells           []Cell  `json:"cells"`
	CumulativeDelta float64 `json:"cumulativeDelta"` // sum of cell deltas for this candle only
}

// Calculator aggregates trades into footprints for a fixed tick size.
type Calculator struct {
	tickSize float64
	tick     decimal.Decimal
}

// NewCalculator validates tickSize once so Calculate cannot fail afterwards.
func NewCalculator(tickSize float64) (*Calculator, error) {
	tick, err := tickDecimal(tickSize)
	if err != nil {
		return nil, err
	}
	return &Calculator{tickSize: tickSize, tick: tick}, nil
}

func (c *Calculator) TickSize() float64 {
	return c.tickSize
}

// Calculate is the one-shot form of Calculator.Calculate.
func Calculate(trades []market.Trade, k market.Kline, tickSize float64) (Snapshot, error) {
	c, err := NewCalculator(tickSize)
	if err != nil {
		return Snapshot{}, err
	}
	return c.Calculate(trades, k), nil
}

// Calculate builds the footprint of kline k from trades.
//
// The ladder spans every tick from RoundToTick(k.Low) to RoundToTick(k.High) inclusive.
// Levels are addressed by integer tick index and only materialized when a trade lands on
// them, since empty levels are pruned from the result anyway. Trades rounding outside
// the ladder are dropped without error.
func (c *Calculator) Calculate(trades []market.Trade, k market.Kline) Snapshot {
	snap := Snapshot{
		Symbol:    k.Symbol,
		Interval:  k.Interval,
		OpenTime:  k.OpenTime,
		CloseTime: k.CloseTime,
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
		Cells:     []Cell{},
	}
	if !isFinite(k.Low) || !isFinite(k.High) {
		return snap
	}

	lo := tickIndex(k.Low, c.tick)
	hi := tickIndex(k.High, c.tick)

	levels := make(map[int64]*Cell)
	for _, t := range trades {
		if !isFinite(t.Price) || !isFinite(t.Quantity) {
			continue
		}
		idx := tickIndex(t.Price, c.tick)
		if idx < lo || idx > hi {
			continue
		}

		cell, ok := levels[idx]
		if !ok {
			cell = &Cell{Price: levelPrice(idx, c.tick)}
			levels[idx] = cell
		}
		if t.IsBuyerMaker {
			cell.SellVolume += t.Quantity
		} else {
			cell.BuyVolume += t.Quantity
		}
		cell.TotalVolume += t.Quantity
		cell.TradeCount++
		cell.Delta = cell.BuyVolume - cell.SellVolume
	}

	idxs := make([]int64, 0, len(levels))
	for idx := range levels {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })

	for _, idx := range idxs {
		cell := levels[idx]
		snap.CumulativeDelta += cell.Delta
		if cell.TotalVolume > 0 {
			snap.Cells = append(snap.Cells, *cell)
		}
	}
	return snap
}
