package stream

import (
	"encoding/json"
	"strings"

	"flowrelay/internal/market"
	"flowrelay/pkg/binance"

	"go.uber.org/zap"
)

// Handler observes one upstream subscription. Methods are called from the upstream
// reader goroutine, one at a time, in the order events arrive.
type Handler interface {
	OnTrade(market.Trade)
	OnKline(market.Kline)
	OnDepth(market.OrderBook)
	OnError(error)
	OnConnect()
}

// MakeMessageHandler returns a function that decodes combined stream messages for symbol
// and routes them to h. Malformed messages are logged and dropped.
func MakeMessageHandler(logger *zap.Logger, symbol string, h Handler) func(msg []byte) {
	symbol = strings.ToUpper(symbol)

	return func(msg []byte) {
		// Step 1: Extract the stream name for routing
		var env binance.CombinedMessage
		if err := json.Unmarshal(msg, &env); err != nil {
			logger.Warn("failed to decode stream envelope", zap.Error(err))
			return
		}
		if env.Stream == "" || len(env.Data) == 0 {
			logger.Warn("unknown message format", zap.ByteString("message", truncate(msg, 256)))
			return
		}

		// Step 2: Decode the payload by stream type
		switch {
		case strings.Contains(env.Stream, "@aggTrade"):
			var a binance.AggTrade
			if err := json.Unmarshal(env.Data, &a); err != nil {
				logger.Warn("failed to parse trade payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			trade, err := a.ToTrade(symbol)
			if err != nil {
				logger.Warn("invalid trade payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			h.OnTrade(trade)

		case strings.Contains(env.Stream, "@kline"):
			var ev binance.KlineEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				logger.Warn("failed to parse kline payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			kline, err := ev.Kline.ToKline()
			if err != nil {
				logger.Warn("invalid kline payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			h.OnKline(kline)

		case strings.Contains(env.Stream, "@depth"):
			var d binance.Depth
			if err := json.Unmarshal(env.Data, &d); err != nil {
				logger.Warn("failed to parse depth payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			// Partial depth payloads carry no symbol
			book, err := d.ToOrderBook(symbol)
			if err != nil {
				logger.Warn("invalid depth payload", zap.String("stream", env.Stream), zap.Error(err))
				return
			}
			h.OnDepth(book)

		default:
			logger.Debug("ignoring stream", zap.String("stream", env.Stream))
		}
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
