package cvd

import "flowrelay/internal/market"

// Point is one sample of the cumulative volume delta series.
type Point struct {
	Time   int64   `json:"time"`   // close time of the candle the delta belongs to (ms)
	Value  float64 `json:"value"`  // running total after folding
	Change float64 `json:"change"` // the candle's own delta
}

// Tracker accumulates candle deltas for the lifetime of one subscription.
// It is not safe for concurrent use; a session owns its tracker exclusively.
type Tracker struct {
	runningDelta float64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

func (t *Tracker) Reset() {
	t.runningDelta = 0
}

// Fold adds a candle delta to the running total.
func (t *Tracker) Fold(closeTime int64, delta float64) Point {
	t.runningDelta += delta
	return Point{Time: closeTime, Value: t.runningDelta, Change: delta}
}

func (t *Tracker) Value() float64 {
	return t.runningDelta
}

// Series re-derives the CVD series from raw history. A trade belongs to a kline when
// openTime <= time <= closeTime, the same window a session aggregates on candle close;
// exchange klines end one millisecond before the next open. Buyer-initiated volume
// counts positive.
func Series(klines []market.Kline, trades []market.Trade) []Point {
	var tracker Tracker
	points := make([]Point, 0, len(klines))

	for _, k := range klines {
		var buy, sell float64
		for _, tr := range trades {
			if tr.Time < k.OpenTime || tr.Time > k.CloseTime {
				continue
			}
			if tr.IsBuyerMaker {
				sell += tr.Quantity
			} else {
				buy += tr.Quantity
			}
		}
		points = append(points, tracker.Fold(k.CloseTime, buy-sell))
	}
	return points
}
