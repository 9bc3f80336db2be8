package market

// Channel names a stream a client can subscribe to.
type Channel string

const (
	ChannelTrade     Channel = "trade"
	ChannelKline     Channel = "kline"
	ChannelDepth     Channel = "depth"
	ChannelFootprint Channel = "footprint"
)

// Trade is a single executed (aggregate) trade as normalized from the upstream feed.
type Trade struct {
	Symbol       string  `json:"symbol"`       // Trading symbol (e.g., "BTCUSDT")
	TradeID      int64   `json:"tradeId"`      // Aggregate trade id
	Price        float64 `json:"price"`        // Execution price
	Quantity     float64 `json:"quantity"`     // Base asset quantity
	Time         int64   `json:"time"`         // Trade time (in milliseconds since epoch)
	IsBuyerMaker bool    `json:"isBuyerMaker"` // true when the aggressor was the seller
}

// Kline represents a single candlestick (1m, 5m, etc.).
type Kline struct {
	Symbol         string  `json:"symbol"`
	Interval       string  `json:"interval"`  // e.g., "1m", "1h"
	OpenTime       int64   `json:"openTime"`  // Start time of the kline (ms)
	CloseTime      int64   `json:"closeTime"` // End time of the kline (ms)
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	Close          float64 `json:"close"`
	Volume         float64 `json:"volume"`
	Trades         int64   `json:"trades,omitempty"`         // Number of trades in the interval
	TakerBuyVolume float64 `json:"takerBuyVolume,omitempty"` // Base volume bought by takers
}

// DepthLevel is one price level of an order book side.
type DepthLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a (partial) order book snapshot.
type OrderBook struct {
	Symbol       string       `json:"symbol"`
	LastUpdateID int64        `json:"lastUpdateId"`
	Bids         []DepthLevel `json:"bids"`
	Asks         []DepthLevel `json:"asks"`
	Timestamp    int64        `json:"timestamp,omitempty"` // receipt time, stamped by the relay (ms)
}

// Ticker24h mirrors the exchange 24h rolling window statistics verbatim.
type Ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	WeightedAvgPrice   string `json:"weightedAvgPrice"`
	PrevClosePrice     string `json:"prevClosePrice"`
	LastPrice          string `json:"lastPrice"`
	LastQty            string `json:"lastQty"`
	BidPrice           string `json:"bidPrice"`
	BidQty             string `json:"bidQty"`
	AskPrice           string `json:"askPrice"`
	AskQty             string `json:"askQty"`
	OpenPrice          string `json:"openPrice"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	OpenTime           int64  `json:"openTime"`
	CloseTime          int64  `json:"closeTime"`
	FirstID            int64  `json:"firstId"`
	LastID             int64  `json:"lastId"`
	Count              int64  `json:"count"`
}
