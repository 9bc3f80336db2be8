package market

import "strings"

// SymbolConfig holds the per-symbol precision used for bucketing and display.
type SymbolConfig struct {
	Symbol            string  `json:"symbol"`
	TickSize          float64 `json:"tickSize"`
	MinQuantity       float64 `json:"minQuantity"`
	QuantityPrecision int     `json:"quantityPrecision"`
	PricePrecision    int     `json:"pricePrecision"`
	BaseAsset         string  `json:"baseAsset"`
	QuoteAsset        string  `json:"quoteAsset"`
}

// DefaultSymbolConfigs is the built-in table used until metadata is refreshed from the exchange.
var DefaultSymbolConfigs = []SymbolConfig{
	{Symbol: "BTCUSDT", TickSize: 0.01, MinQuantity: 0.001, QuantityPrecision: 3, PricePrecision: 2, BaseAsset: "BTC", QuoteAsset: "USDT"},
	{Symbol: "ETHUSDT", TickSize: 0.01, MinQuantity: 0.001, QuantityPrecision: 3, PricePrecision: 2, BaseAsset: "ETH", QuoteAsset: "USDT"},
	{Symbol: "SOLUSDT", TickSize: 0.01, MinQuantity: 0.01, QuantityPrecision: 2, PricePrecision: 2, BaseAsset: "SOL", QuoteAsset: "USDT"},
	{Symbol: "BNBUSDT", TickSize: 0.01, MinQuantity: 0.001, QuantityPrecision: 3, PricePrecision: 2, BaseAsset: "BNB", QuoteAsset: "USDT"},
	{Symbol: "XRPUSDT", TickSize: 0.0001, MinQuantity: 0.1, QuantityPrecision: 1, PricePrecision: 4, BaseAsset: "XRP", QuoteAsset: "USDT"},
	{Symbol: "DOGEUSDT", TickSize: 0.00001, MinQuantity: 1, QuantityPrecision: 0, PricePrecision: 5, BaseAsset: "DOGE", QuoteAsset: "USDT"},
	{Symbol: "ADAUSDT", TickSize: 0.0001, MinQuantity: 1, QuantityPrecision: 0, PricePrecision: 4, BaseAsset: "ADA", QuoteAsset: "USDT"},
}

// DefaultSymbolConfig returns the fallback configuration for a symbol missing from the table.
func DefaultSymbolConfig(symbol string) SymbolConfig {
	return SymbolConfig{
		Symbol:            strings.ToUpper(symbol),
		TickSize:          0.01,
		MinQuantity:       0.001,
		QuantityPrecision: 3,
		PricePrecision:    2,
		BaseAsset:         "UNKNOWN",
		QuoteAsset:        "USDT",
	}
}
