package binance

import (
	"fmt"
	"strings"
	"time"

	"flowrelay/internal/market"
)

const (
	DefaultRESTURL = "https://api.binance.com"
	DefaultWSURL   = "wss://stream.binance.com:9443"

	// APIKeyHeader carries the optional API key on REST requests.
	APIKeyHeader = "X-MBX-APIKEY"

	DefaultKlineLimit = 500
	DefaultTradeLimit = 100
	DefaultDepthLimit = 20
)

// KlineInterval is the interval type used for API requests and kline stream names
type KlineInterval string

// KlineIntervalMeta holds the API value and nominal duration of a kline interval
type KlineIntervalMeta struct {
	APIValue string
	Duration time.Duration
}

const (
	Interval1Min    KlineInterval = "1m"
	Interval3Min    KlineInterval = "3m"
	Interval5Min    KlineInterval = "5m"
	Interval15Min   KlineInterval = "15m"
	Interval30Min   KlineInterval = "30m"
	Interval1Hour   KlineInterval = "1h"
	Interval2Hour   KlineInterval = "2h"
	Interval4Hour   KlineInterval = "4h"
	Interval6Hour   KlineInterval = "6h"
	Interval8Hour   KlineInterval = "8h"
	Interval12Hour  KlineInterval = "12h"
	IntervalDaily   KlineInterval = "1d"
	Interval3Day    KlineInterval = "3d"
	IntervalWeekly  KlineInterval = "1w"
	IntervalMonthly KlineInterval = "1M"

	DefaultInterval = Interval1Min
)

var validKlineIntervals = map[KlineInterval]KlineIntervalMeta{
	Interval1Min:    {APIValue: "1m", Duration: time.Minute},
	Interval3Min:    {APIValue: "3m", Duration: 3 * time.Minute},
	Interval5Min:    {APIValue: "5m", Duration: 5 * time.Minute},
	Interval15Min:   {APIValue: "15m", Duration: 15 * time.Minute},
	Interval30Min:   {APIValue: "30m", Duration: 30 * time.Minute},
	Interval1Hour:   {APIValue: "1h", Duration: time.Hour},
	Interval2Hour:   {APIValue: "2h", Duration: 2 * time.Hour},
	Interval4Hour:   {APIValue: "4h", Duration: 4 * time.Hour},
	Interval6Hour:   {APIValue: "6h", Duration: 6 * time.Hour},
	Interval8Hour:   {APIValue: "8h", Duration: 8 * time.Hour},
	Interval12Hour:  {APIValue: "12h", Duration: 12 * time.Hour},
	IntervalDaily:   {APIValue: "1d", Duration: 24 * time.Hour},
	Interval3Day:    {APIValue: "3d", Duration: 72 * time.Hour},
	IntervalWeekly:  {APIValue: "1w", Duration: 7 * 24 * time.Hour},
	IntervalMonthly: {APIValue: "1M", Duration: 30 * 24 * time.Hour}, // nominal; calendar months vary
}

// IsValid checks if the KlineInterval is a valid predefined interval
func (k KlineInterval) IsValid() bool {
	_, ok := validKlineIntervals[k]
	return ok
}

// ParseKlineInterval parses a string into a valid KlineIntervalMeta.
// Interval names are case sensitive: "1m" is a minute, "1M" a month.
func ParseKlineInterval(s string) (KlineIntervalMeta, error) {
	meta, ok := validKlineIntervals[KlineInterval(s)]
	if !ok {
		return KlineIntervalMeta{}, fmt.Errorf("invalid kline interval: %q", s)
	}
	return meta, nil
}

// StreamNames maps channels to combined stream names for symbol. Channels without an upstream
// stream of their own are skipped and duplicates are dropped.
func StreamNames(symbol string, channels []market.Channel, interval string) []string {
	sym := strings.ToLower(symbol)
	seen := make(map[string]bool, len(channels))
	var streams []string
	for _, ch := range channels {
		var name string
		switch ch {
		case market.ChannelTrade:
			name = sym + "@aggTrade"
		case market.ChannelKline:
			name = sym + "@kline_" + interval
		case market.ChannelDepth:
			name = sym + "@depth20@100ms"
		default:
			continue
		}
		if !seen[name] {
			seen[name] = true
			streams = append(streams, name)
		}
	}
	return streams
}

// CombinedStreamURL builds the combined stream endpoint for streams.
func CombinedStreamURL(baseURL string, streams []string) string {
	return strings.TrimRight(baseURL, "/") + "/stream?streams=" + strings.Join(streams, "/")
}
