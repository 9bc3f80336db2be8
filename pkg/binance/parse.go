package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"flowrelay/internal/market"
)

// ErrNonFinite rejects NaN and infinite numbers in exchange payloads.
var ErrNonFinite = errors.New("non-finite number")

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse %s %q: %w", field, s, ErrNonFinite)
	}
	return v, nil
}

// ToTrade normalizes an aggregate trade. An empty symbol falls back to the payload's own.
func (a AggTrade) ToTrade(symbol string) (market.Trade, error) {
	price, err := parseFloat("price", a.Price)
	if err != nil {
		return market.Trade{}, err
	}
	qty, err := parseFloat("quantity", a.Quantity)
	if err != nil {
		return market.Trade{}, err
	}
	if symbol == "" {
		symbol = a.Symbol
	}
	return market.Trade{
		Symbol:       symbol,
		TradeID:      a.AggTradeID,
		Price:        price,
		Quantity:     qty,
		Time:         a.TradeTime,
		IsBuyerMaker: a.IsBuyerMaker,
	}, nil
}

func (k KlinePayload) ToKline() (market.Kline, error) {
	var (
		out  = market.Kline{Symbol: k.Symbol, Interval: k.Interval, OpenTime: k.StartTime, CloseTime: k.CloseTime, Trades: k.Trades}
		err  error
		vals = []struct {
			name string
			src  string
			dst  *float64
		}{
			{"open", k.Open, &out.Open},
			{"high", k.High, &out.High},
			{"low", k.Low, &out.Low},
			{"close", k.Close, &out.Close},
			{"volume", k.Volume, &out.Volume},
		}
	)
	for _, v := range vals {
		if *v.dst, err = parseFloat(v.name, v.src); err != nil {
			return market.Kline{}, err
		}
	}
	if k.TakerBuyVolume != "" {
		if out.TakerBuyVolume, err = parseFloat("taker buy volume", k.TakerBuyVolume); err != nil {
			return market.Kline{}, err
		}
	}
	return out, nil
}

func (d Depth) ToOrderBook(symbol string) (market.OrderBook, error) {
	bids, err := parseLevels(d.Bids)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(d.Asks)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("asks: %w", err)
	}
	return market.OrderBook{
		Symbol:       symbol,
		LastUpdateID: d.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func parseLevels(raw [][2]string) ([]market.DepthLevel, error) {
	out := make([]market.DepthLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := parseFloat("price", lvl[0])
		if err != nil {
			return nil, err
		}
		qty, err := parseFloat("quantity", lvl[1])
		if err != nil {
			return nil, err
		}
		out = append(out, market.DepthLevel{Price: price, Quantity: qty})
	}
	return out, nil
}

// ParseKlineRows converts REST kline rows to []market.Kline.
// Row layout: [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades,
// takerBuyVolume, takerBuyQuoteVolume, ignore]. Invalid rows are skipped.
func ParseKlineRows(symbol, interval string, rows [][]json.RawMessage) []market.Kline {
	out := make([]market.Kline, 0, len(rows))

	for _, row := range rows {
		if len(row) < 10 {
			continue // skip incomplete row
		}

		openTime, err := rawInt(row[0])
		if err != nil {
			continue
		}
		closeTime, err := rawInt(row[6])
		if err != nil {
			continue
		}
		trades, err := rawInt(row[8])
		if err != nil {
			continue
		}

		var floats [6]float64
		ok := true
		for i, idx := range []int{1, 2, 3, 4, 5, 9} {
			if floats[i], err = rawFloat(row[idx]); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}

		out = append(out, market.Kline{
			Symbol:         symbol,
			Interval:       interval,
			OpenTime:       openTime,
			CloseTime:      closeTime,
			Open:           floats[0],
			High:           floats[1],
			Low:            floats[2],
			Close:          floats[3],
			Volume:         floats[4],
			Trades:         trades,
			TakerBuyVolume: floats[5],
		})
	}
	return out
}

func rawInt(raw json.RawMessage) (int64, error) {
	return strconv.ParseInt(strings.Trim(string(raw), `"`), 10, 64)
}

func rawFloat(raw json.RawMessage) (float64, error) {
	return parseFloat("kline field", strings.Trim(string(raw), `"`))
}

// ToSymbolConfig extracts tick size and lot size from the symbol filters. It reports false when
// the symbol has no usable PRICE_FILTER.
func (s SymbolInfo) ToSymbolConfig() (market.SymbolConfig, bool) {
	cfg := market.SymbolConfig{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if v, err := parseFloat("tick size", f.TickSize); err == nil {
				cfg.TickSize = v
				cfg.PricePrecision = decimalPlaces(f.TickSize)
			}
		case "LOT_SIZE":
			if v, err := parseFloat("min quantity", f.MinQty); err == nil {
				cfg.MinQuantity = v
			}
			cfg.QuantityPrecision = decimalPlaces(f.StepSize)
		}
	}
	return cfg, cfg.TickSize > 0
}

// decimalPlaces counts significant fractional digits: "0.00100000" -> 3, "1.00000000" -> 0.
func decimalPlaces(s string) int {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return 0
	}
	return len(strings.TrimRight(s[i+1:], "0"))
}
