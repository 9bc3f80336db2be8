package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"flowrelay/internal/cvd"
	"flowrelay/internal/footprint"
	"flowrelay/internal/market"
	"flowrelay/internal/profile"
	"flowrelay/internal/session"
	"flowrelay/pkg/binance"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxProfileTrades caps the aggregate trades fetched for one volume profile request.
const MaxProfileTrades = 1000

const (
	DefaultCVDKlines = 60
	MaxCVDKlines     = 500
	// MaxCVDTradePages bounds the aggregate trade pages fetched for one CVD request.
	MaxCVDTradePages = 20
)

type HealthResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Timestamp int64          `json:"timestamp"`
	Sessions  []session.Info `json:"sessions"`
}

type VolumeProfileResponse struct {
	Symbol    string          `json:"symbol"`
	TickSize  float64         `json:"tickSize"`
	StartTime int64           `json:"startTime"`
	EndTime   int64           `json:"endTime"`
	Trades    int             `json:"trades"`
	Profile   profile.Data    `json:"profile"`
	Levels    []profile.Level `json:"levels"` // highest price first
}

// CVDResponse is the CVD series rebuilt from exchange history. Complete is false when the
// trade page limit was reached before the last candle closed.
type CVDResponse struct {
	Symbol   string      `json:"symbol"`
	Interval string      `json:"interval"`
	Trades   int         `json:"trades"`
	Complete bool        `json:"complete"`
	Points   []cvd.Point `json:"points"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Service:   ServiceName,
		Timestamp: time.Now().UnixMilli(),
		Sessions:  s.sessions.Sessions(),
	})
}

func (s *Server) handleKlines(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.Param("interval")
	if _, err := binance.ParseKlineInterval(interval); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	limit := queryInt(c, "limit", binance.DefaultKlineLimit)
	endTime := queryInt64(c, "endTime", 0)

	klines, err := s.api.GetKlines(c.Request.Context(), symbol, interval, limit, endTime)
	if err != nil {
		s.upstreamFailed(c, "Error fetching klines", err)
		return
	}
	c.JSON(http.StatusOK, klines)
}

func (s *Server) handleTrades(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	limit := queryInt(c, "limit", binance.DefaultTradeLimit)

	trades, err := s.api.GetAggTrades(c.Request.Context(), symbol, limit, 0, 0)
	if err != nil {
		s.upstreamFailed(c, "Error fetching trades", err)
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleOrderBook(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	limit := queryInt(c, "limit", binance.DefaultDepthLimit)

	book, err := s.api.GetOrderBook(c.Request.Context(), symbol, limit)
	if err != nil {
		s.upstreamFailed(c, "Error fetching order book", err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (s *Server) handleTicker(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	ticker, err := s.api.Get24hrTicker(c.Request.Context(), symbol)
	if err != nil {
		s.upstreamFailed(c, "Error fetching ticker", err)
		return
	}
	c.JSON(http.StatusOK, ticker)
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, s.symbols.GetAll())
}

// handleVolumeProfile builds a fixed range volume profile from recent aggregate trades.
// Without a time range every fetched trade is included.
func (s *Server) handleVolumeProfile(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	startTime := queryInt64(c, "startTime", 0)
	endTime := queryInt64(c, "endTime", 0)
	limit := queryInt(c, "limit", MaxProfileTrades)
	if limit > MaxProfileTrades {
		limit = MaxProfileTrades
	}

	tickSize := s.symbols.Get(symbol).TickSize
	if raw := c.Query("tickSize"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid tickSize"})
			return
		}
		tickSize = v
	}
	if _, err := footprint.RoundToTick(0, tickSize); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if endTime > 0 && startTime > endTime {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "startTime is after endTime"})
		return
	}

	trades, err := s.api.GetAggTrades(c.Request.Context(), symbol, limit, startTime, endTime)
	if err != nil {
		s.upstreamFailed(c, "Error fetching trades", err)
		return
	}

	to := endTime
	if to == 0 {
		to = math.MaxInt64
	}
	data, err := profile.Calculate(trades, startTime, to, tickSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, VolumeProfileResponse{
		Symbol:    symbol,
		TickSize:  tickSize,
		StartTime: startTime,
		EndTime:   endTime,
		Trades:    len(trades),
		Profile:   data,
		Levels:    data.ByPrice(),
	})
}

// handleCVD rebuilds the CVD of the last candles from REST klines and aggregate trades, with
// the same candle membership a live session uses.
func (s *Server) handleCVD(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.Param("interval")
	if _, err := binance.ParseKlineInterval(interval); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	limit := queryInt(c, "limit", DefaultCVDKlines)
	if limit > MaxCVDKlines {
		limit = MaxCVDKlines
	}
	endTime := queryInt64(c, "endTime", 0)

	ctx := c.Request.Context()
	klines, err := s.api.GetKlines(ctx, symbol, interval, limit, endTime)
	if err != nil {
		s.upstreamFailed(c, "Error fetching klines", err)
		return
	}
	resp := CVDResponse{Symbol: symbol, Interval: interval, Complete: true, Points: []cvd.Point{}}
	if len(klines) == 0 {
		c.JSON(http.StatusOK, resp)
		return
	}

	from := klines[0].OpenTime
	to := klines[len(klines)-1].CloseTime
	var trades []market.Trade
	complete := false
	for page := 0; page < MaxCVDTradePages; page++ {
		batch, err := s.api.GetAggTrades(ctx, symbol, MaxProfileTrades, from, 0)
		if err != nil {
			s.upstreamFailed(c, "Error fetching trades", err)
			return
		}
		for _, t := range batch {
			if t.Time <= to {
				trades = append(trades, t)
			}
		}
		if len(batch) < MaxProfileTrades || batch[len(batch)-1].Time >= to {
			complete = true
			break
		}
		from = batch[len(batch)-1].Time + 1
	}

	resp.Trades = len(trades)
	resp.Complete = complete
	resp.Points = cvd.Series(klines, trades)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) upstreamFailed(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// queryInt falls back to def when the parameter is missing, malformed or not positive.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func queryInt64(c *gin.Context, key string, def int64) int64 {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
