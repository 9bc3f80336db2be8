package footprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Cells: []Cell{
			{Price: 99, BuyVolume: 1, SellVolume: 4, TotalVolume: 5, Delta: -3},
			{Price: 100, BuyVolume: 30, SellVolume: 10, TotalVolume: 40, Delta: 20},
			{Price: 101, BuyVolume: 2, SellVolume: 2, TotalVolume: 4, Delta: 0},
			{Price: 102, BuyVolume: 6, SellVolume: 45, TotalVolume: 51, Delta: -39},
		},
	}
}

// go test -v --run TestIdentifySupportResistance
func TestIdentifySupportResistance(t *testing.T) {
	snap := sampleSnapshot()

	// total volume is 100, so 10% keeps levels with at least 10 units
	assert.Equal(t, []float64{102, 100}, IdentifySupportResistance(snap, DefaultSupportResistanceThreshold))
	assert.Equal(t, []float64{102, 101, 100, 99}, IdentifySupportResistance(snap, 0))
	assert.Empty(t, IdentifySupportResistance(Snapshot{}, DefaultSupportResistanceThreshold))
}

// go test -v --run TestAnalyzeAggressiveTrades
func TestAnalyzeAggressiveTrades(t *testing.T) {
	a := AnalyzeAggressiveTrades(sampleSnapshot())

	assert.Equal(t, 30.0, a.AggressiveBuy)
	assert.Equal(t, 49.0, a.AggressiveSell)
	assert.InDelta(t, 30.0/49.0, a.Ratio, floatDelta)
}

// go test -v --run TestAnalyzeAggressiveTradesNoSellers
func TestAnalyzeAggressiveTradesNoSellers(t *testing.T) {
	snap := Snapshot{Cells: []Cell{{Price: 1, BuyVolume: 3, TotalVolume: 3, Delta: 3}}}

	a := AnalyzeAggressiveTrades(snap)
	assert.Equal(t, 3.0, a.AggressiveBuy)
	assert.Zero(t, a.AggressiveSell)
	assert.Zero(t, a.Ratio)
}
