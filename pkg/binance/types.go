package binance

import (
	"encoding/json"
	"fmt"
)

// CombinedMessage is the envelope of every message on a combined stream.
type CombinedMessage struct {
	Stream string          `json:"stream"` // e.g., "btcusdt@aggTrade"
	Data   json.RawMessage `json:"data"`   // Delay decoding until the stream type is known
}

// AggTrade is an aggregate trade, both as a stream payload and as a REST row.
// encoding/json matches keys case-insensitively, so every single-letter key the
// exchange sends is declared to keep "M" from landing in "m".
type AggTrade struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	BestMatch    bool   `json:"M"`
}

type KlineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     KlinePayload `json:"k"`
}

type KlinePayload struct {
	StartTime           int64  `json:"t"`
	CloseTime           int64  `json:"T"`
	Symbol              string `json:"s"`
	Interval            string `json:"i"`
	FirstTradeID        int64  `json:"f"`
	LastTradeID         int64  `json:"L"`
	Open                string `json:"o"`
	Close               string `json:"c"`
	High                string `json:"h"`
	Low                 string `json:"l"`
	Volume              string `json:"v"`
	Trades              int64  `json:"n"`
	Closed              bool   `json:"x"`
	QuoteVolume         string `json:"q"`
	TakerBuyVolume      string `json:"V"`
	TakerBuyQuoteVolume string `json:"Q"`
	Ignore              string `json:"B"`
}

// Depth is a partial book snapshot (depth20 stream payload and /api/v3/depth response).
type Depth struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

type ExchangeInfo struct {
	Timezone   string       `json:"timezone"`
	ServerTime int64        `json:"serverTime"`
	Symbols    []SymbolInfo `json:"symbols"`
}

type SymbolInfo struct {
	Symbol             string         `json:"symbol"`
	Status             string         `json:"status"` // "TRADING", "BREAK", ...
	BaseAsset          string         `json:"baseAsset"`
	QuoteAsset         string         `json:"quoteAsset"`
	BaseAssetPrecision int            `json:"baseAssetPrecision"`
	QuotePrecision     int            `json:"quotePrecision"`
	Filters            []SymbolFilter `json:"filters"`
}

type SymbolFilter struct {
	FilterType string `json:"filterType"` // "PRICE_FILTER", "LOT_SIZE", ...
	TickSize   string `json:"tickSize,omitempty"`
	MinQty     string `json:"minQty,omitempty"`
	StepSize   string `json:"stepSize,omitempty"`
}

// APIError is the error body returned by the REST API on non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"msg"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("binance: http %d", e.StatusCode)
	}
	return fmt.Sprintf("binance: http %d: code %d: %s", e.StatusCode, e.Code, e.Message)
}
