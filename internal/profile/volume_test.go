package profile

import (
	"math/rand"
	"testing"

	"flowrelay/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestCalculateEmptyRange
func TestCalculateEmptyRange(t *testing.T) {
	trades := []market.Trade{{Time: 10, Price: 100, Quantity: 1}}

	data, err := Calculate(trades, 20, 30, 1)
	require.NoError(t, err)
	assert.Empty(t, data.VolumeAtPrice)
	assert.Zero(t, data.PocPrice)
	assert.Zero(t, data.MaxVolume)
	assert.Zero(t, data.TotalVolume)
	assert.Equal(t, ValueArea{}, data.ValueArea)
}

// go test -v --run TestCalculateInvalidTickSize
func TestCalculateInvalidTickSize(t *testing.T) {
	_, err := Calculate(nil, 0, 1, 0)
	assert.Error(t, err)
}

// go test -v --run TestCalculateInclusiveRange
func TestCalculateInclusiveRange(t *testing.T) {
	trades := []market.Trade{
		{Time: 99, Price: 100, Quantity: 100},
		{Time: 100, Price: 100.2, Quantity: 1},
		{Time: 150, Price: 101.4, Quantity: 2},
		{Time: 200, Price: 99.6, Quantity: 3},
		{Time: 201, Price: 100, Quantity: 100},
	}

	data, err := Calculate(trades, 100, 200, 1)
	require.NoError(t, err)

	assert.Equal(t, []Level{{Price: 100, Volume: 4}, {Price: 101, Volume: 2}}, data.VolumeAtPrice)
	assert.Equal(t, 100.0, data.PocPrice)
	assert.Equal(t, 4.0, data.MaxVolume)
	assert.Equal(t, 6.0, data.TotalVolume)
	// 4 of 6 is below 70%, so the 101 bucket joins the value area
	assert.Equal(t, ValueArea{High: 101, Low: 100}, data.ValueArea)
}

// go test -v --run TestCalculatePocTieKeepsFirstDiscovered
func TestCalculatePocTieKeepsFirstDiscovered(t *testing.T) {
	trades := []market.Trade{
		{Time: 1, Price: 105, Quantity: 5},
		{Time: 2, Price: 100, Quantity: 5},
		{Time: 3, Price: 102, Quantity: 1},
	}

	data, err := Calculate(trades, 0, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, 105.0, data.PocPrice)
	assert.Equal(t, 5.0, data.MaxVolume)
}

// go test -v --run TestValueAreaNonContiguous
func TestValueAreaNonContiguous(t *testing.T) {
	trades := []market.Trade{
		{Time: 1, Price: 100, Quantity: 40},
		{Time: 1, Price: 101, Quantity: 5},
		{Time: 1, Price: 102, Quantity: 5},
		{Time: 1, Price: 103, Quantity: 40},
		{Time: 1, Price: 104, Quantity: 10},
	}

	data, err := Calculate(trades, 0, 10, 1)
	require.NoError(t, err)

	// 100 and 103 carry 80% on their own and bracket the gap at 101-102
	selected := selectValueArea(data.VolumeAtPrice, data.TotalVolume)
	require.Len(t, selected, 2)
	assert.Equal(t, ValueArea{High: 103, Low: 100}, data.ValueArea)
}

// go test -v --run TestValueAreaThresholdMinimal
func TestValueAreaThresholdMinimal(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 100; round++ {
		var trades []market.Trade
		for i := 0; i < 200; i++ {
			trades = append(trades, market.Trade{
				Time:     int64(i),
				Price:    1000 + float64(rng.Intn(40)),
				Quantity: 0.01 + rng.Float64()*3,
			})
		}

		data, err := Calculate(trades, 0, 1000, 1)
		require.NoError(t, err)

		selected := selectValueArea(data.VolumeAtPrice, data.TotalVolume)
		require.NotEmpty(t, selected)

		var acc float64
		for _, l := range selected {
			acc += l.Volume
			assert.GreaterOrEqual(t, l.Price, data.ValueArea.Low)
			assert.LessOrEqual(t, l.Price, data.ValueArea.High)
		}
		target := data.TotalVolume * ValueAreaRatio
		assert.GreaterOrEqual(t, acc, target)

		lowest := selected[len(selected)-1]
		assert.Less(t, acc-lowest.Volume, target)
		for _, l := range selected {
			assert.GreaterOrEqual(t, l.Volume, lowest.Volume)
		}
	}
}

// go test -v --run TestByPrice
func TestByPrice(t *testing.T) {
	data := Data{VolumeAtPrice: []Level{{Price: 2, Volume: 1}, {Price: 3, Volume: 1}, {Price: 1, Volume: 9}}}

	assert.Equal(t, []Level{{Price: 3, Volume: 1}, {Price: 2, Volume: 1}, {Price: 1, Volume: 9}}, data.ByPrice())
	assert.Equal(t, 2.0, data.VolumeAtPrice[0].Price, "ByPrice must not reorder the profile")
}
