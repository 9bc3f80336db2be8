package footprint

import "sort"

// DefaultSupportResistanceThreshold is the share of candle volume a level needs to qualify.
const DefaultSupportResistanceThreshold = 0.1

// AggressiveAnalysis summarizes which side dominated the candle's levels.
type AggressiveAnalysis struct {
	AggressiveBuy  float64 `json:"aggressiveBuy"`
	AggressiveSell float64 `json:"aggressiveSell"`
	Ratio          float64 `json:"ratio"` // AggressiveBuy / AggressiveSell, 0 when there is no aggressive sell
}

// IdentifySupportResistance returns the prices of cells holding at least thresholdRatio of the
// snapshot's total volume, highest price first.
func IdentifySupportResistance(s Snapshot, thresholdRatio float64) []float64 {
	var total float64
	for _, c := range s.Cells {
		total += c.TotalVolume
	}
	minVolume := total * thresholdRatio

	levels := make([]float64, 0)
	for _, c := range s.Cells {
		if c.TotalVolume >= minVolume {
			levels = append(levels, c.Price)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))
	return levels
}

// AnalyzeAggressiveTrades sums buy volume over buyer-dominated levels and sell volume over
// seller-dominated levels. Balanced levels count toward neither side.
func AnalyzeAggressiveTrades(s Snapshot) AggressiveAnalysis {
	var a AggressiveAnalysis
	for _, c := range s.Cells {
		switch {
		case c.Delta > 0:
			a.AggressiveBuy += c.BuyVolume
		case c.Delta < 0:
			a.AggressiveSell += c.SellVolume
		}
	}
	if a.AggressiveSell > 0 {
		a.Ratio = a.AggressiveBuy / a.AggressiveSell
	}
	return a
}
