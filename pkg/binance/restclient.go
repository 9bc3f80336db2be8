package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flowrelay/internal/market"

	"golang.org/x/time/rate"
)

type RESTClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type RESTOption func(*RESTClient)

// WithAPIKey attaches the key to every request.
func WithAPIKey(key string) RESTOption {
	return func(c *RESTClient) { c.apiKey = key }
}

// WithRateLimit bounds outgoing requests. A non-positive rate disables limiting.
func WithRateLimit(requestsPerSecond float64, burst int) RESTOption {
	return func(c *RESTClient) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func NewRESTClient(baseURL string, timeout time.Duration, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// get performs a rate limited GET and decodes the JSON body into out.
func (c *RESTClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetKlines fetches up to limit candles ending at endTime (0 means now).
func (c *RESTClient) GetKlines(ctx context.Context, symbol, interval string, limit int, endTime int64) ([]market.Kline, error) {
	if _, err := ParseKlineInterval(interval); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultKlineLimit
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if endTime > 0 {
		q.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var rows [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", q, &rows); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}
	return ParseKlineRows(symbol, interval, rows), nil
}

// GetAggTrades fetches recent aggregate trades. startTime and endTime are optional (0 omits them).
func (c *RESTClient) GetAggTrades(ctx context.Context, symbol string, limit int, startTime, endTime int64) ([]market.Trade, error) {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))
	if startTime > 0 {
		q.Set("startTime", strconv.FormatInt(startTime, 10))
	}
	if endTime > 0 {
		q.Set("endTime", strconv.FormatInt(endTime, 10))
	}

	var raw []AggTrade
	if err := c.get(ctx, "/api/v3/aggTrades", q, &raw); err != nil {
		return nil, fmt.Errorf("aggTrades %s: %w", symbol, err)
	}

	trades := make([]market.Trade, 0, len(raw))
	for _, a := range raw {
		t, err := a.ToTrade(symbol)
		if err != nil {
			return nil, fmt.Errorf("aggTrades %s: %w", symbol, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func (c *RESTClient) GetOrderBook(ctx context.Context, symbol string, limit int) (market.OrderBook, error) {
	if limit <= 0 {
		limit = DefaultDepthLimit
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))

	var d Depth
	if err := c.get(ctx, "/api/v3/depth", q, &d); err != nil {
		return market.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
	}
	book, err := d.ToOrderBook(symbol)
	if err != nil {
		return market.OrderBook{}, fmt.Errorf("depth %s: %w", symbol, err)
	}
	return book, nil
}

func (c *RESTClient) Get24hrTicker(ctx context.Context, symbol string) (market.Ticker24h, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var t market.Ticker24h
	if err := c.get(ctx, "/api/v3/ticker/24hr", q, &t); err != nil {
		return market.Ticker24h{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	return t, nil
}

// GetSymbolConfigs loads tick and lot sizes of every trading symbol quoted in quoteAsset
// ("" keeps every quote asset).
func (c *RESTClient) GetSymbolConfigs(ctx context.Context, quoteAsset string) ([]market.SymbolConfig, error) {
	var info ExchangeInfo
	if err := c.get(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, fmt.Errorf("exchangeInfo: %w", err)
	}

	var out []market.SymbolConfig
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		if quoteAsset != "" && !strings.EqualFold(s.QuoteAsset, quoteAsset) {
			continue
		}
		if cfg, ok := s.ToSymbolConfig(); ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}
