package footprint

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ConfigurationError reports an unusable bucketing parameter.
type ConfigurationError struct {
	Field string
	Value float64
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %v (must be a positive number)", e.Field, e.Value)
}

// RoundToTick maps a raw price onto its tick-aligned level: round(price/tickSize) * tickSize.
// Arithmetic is done in decimal so that equal levels always produce the identical float64.
func RoundToTick(price, tickSize float64) (float64, error) {
	tick, err := tickDecimal(tickSize)
	if err != nil {
		return 0, err
	}
	if !isFinite(price) {
		return price, nil
	}
	return levelPrice(tickIndex(price, tick), tick), nil
}

func tickDecimal(tickSize float64) (decimal.Decimal, error) {
	if !isFinite(tickSize) || tickSize <= 0 {
		return decimal.Decimal{}, &ConfigurationError{Field: "tickSize", Value: tickSize}
	}
	return decimal.NewFromFloat(tickSize), nil
}

// tickIndex returns the integer number of ticks nearest to price (half away from zero).
func tickIndex(price float64, tick decimal.Decimal) int64 {
	return decimal.NewFromFloat(price).Div(tick).Round(0).IntPart()
}

func levelPrice(idx int64, tick decimal.Decimal) float64 {
	return decimal.NewFromInt(idx).Mul(tick).InexactFloat64()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
