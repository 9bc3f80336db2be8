package stream

import (
	"context"

	"flowrelay/internal/market"
	"flowrelay/pkg/binance"

	"go.uber.org/zap"
)

// UpstreamChannels returns the exchange streams needed to serve the requested channels.
// A footprint needs both trades and klines.
func UpstreamChannels(channels []market.Channel) []market.Channel {
	var out []market.Channel
	seen := make(map[market.Channel]bool, len(channels)+1)
	add := func(ch market.Channel) {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	for _, ch := range channels {
		switch ch {
		case market.ChannelTrade, market.ChannelKline, market.ChannelDepth:
			add(ch)
		case market.ChannelFootprint:
			add(market.ChannelTrade)
			add(market.ChannelKline)
		}
	}
	return out
}

// Client is a single upstream subscription for one symbol.
type Client struct {
	stream *binance.StreamClient
	logger *zap.Logger
}

func NewClient(cfg binance.StreamConfig, logger *zap.Logger, opts ...binance.StreamOption) *Client {
	return &Client{
		stream: binance.NewStreamClient(cfg, logger, opts...),
		logger: logger,
	}
}

// Subscribe opens the combined stream for symbol and routes decoded events to h.
func (c *Client) Subscribe(ctx context.Context, symbol string, channels []market.Channel, interval string, h Handler) error {
	streams := binance.StreamNames(symbol, UpstreamChannels(channels), interval)
	return c.stream.Subscribe(ctx, streams, binance.StreamHandlers{
		OnMessage: MakeMessageHandler(c.logger, symbol, h),
		OnConnect: h.OnConnect,
		OnError:   h.OnError,
	})
}

func (c *Client) Close() error {
	return c.stream.Close()
}

func (c *Client) IsConnected() bool {
	return c.stream.IsConnected()
}
