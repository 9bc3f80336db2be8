package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"flowrelay/internal/backoff"
	"flowrelay/internal/cvd"
	"flowrelay/internal/footprint"
	"flowrelay/internal/market"
	"flowrelay/internal/memorystore"
	"flowrelay/internal/profile"
	"flowrelay/internal/stream"
	"flowrelay/pkg/binance"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Upstream is one exchange subscription. *stream.Client satisfies it.
type Upstream interface {
	Subscribe(ctx context.Context, symbol string, channels []market.Channel, interval string, h stream.Handler) error
	Close() error
	IsConnected() bool
}

// UpstreamFactory returns a fresh, unsubscribed upstream.
type UpstreamFactory func() Upstream

// Sender delivers outbound messages to the client. Send may block.
type Sender interface {
	Send(Message) error
}

type SymbolLookup interface {
	Get(symbol string) market.SymbolConfig
}

type Config struct {
	MaxTradeBuffer             int
	MaxFootprintHistory        int
	TradeHistorySize           int
	ResubscribeGrace           time.Duration
	SupportResistanceThreshold float64
	InboxSize                  int
}

func DefaultConfig() Config {
	return Config{
		MaxTradeBuffer:             memorystore.DefaultMaxTradeBuffer,
		MaxFootprintHistory:        memorystore.DefaultMaxHistory,
		TradeHistorySize:           50000,
		ResubscribeGrace:           100 * time.Millisecond,
		SupportResistanceThreshold: footprint.DefaultSupportResistanceThreshold,
		InboxSize:                  256,
	}
}

// Info is a point-in-time view of a session for health reporting.
type Info struct {
	ID                string           `json:"id"`
	State             string           `json:"state"`
	Symbol            string           `json:"symbol,omitempty"`
	Interval          string           `json:"interval,omitempty"`
	Channels          []market.Channel `json:"channels,omitempty"`
	UpstreamConnected bool             `json:"upstreamConnected"`
}

type eventKind int

const (
	evClient eventKind = iota
	evTrade
	evKline
	evDepth
	evUpstreamError
	evUpstreamConnect
)

type event struct {
	kind  eventKind
	gen   uint64
	raw   []byte
	trade market.Trade
	kline market.Kline
	book  market.OrderBook
	err   error
}

// subscription is the state of one active subscribe request.
type subscription struct {
	symbol   string
	interval string
	channels []market.Channel
	forward  map[market.Channel]bool

	upstream Upstream
	cancel   context.CancelFunc

	calc       *footprint.Calculator
	buffer     *memorystore.TradeBuffer // trades of the candle in progress
	recent     *memorystore.TradeBuffer // longer trade history for volume profiles
	cvd        *cvd.Tracker
	footprints *memorystore.History[footprint.Snapshot]
	cvdPoints  *memorystore.History[cvd.Point]

	lastKline     *market.Kline
	lastCloseTime int64
}

// Session serves one client connection. All mutable state is owned by the Run goroutine;
// client frames and upstream callbacks reach it through the inbox.
type Session struct {
	id          string
	cfg         Config
	logger      *zap.Logger
	sender      Sender
	symbols     SymbolLookup
	newUpstream UpstreamFactory
	validate    *validator.Validate

	inbox     chan event
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	infoMu sync.Mutex
	info   Info
	up     Upstream

	// owned by Run
	ctx   context.Context
	state State
	gen   uint64
	sub   *subscription
}

func newSession(id string, cfg Config, sender Sender, symbols SymbolLookup, newUpstream UpstreamFactory, v *validator.Validate, logger *zap.Logger) *Session {
	if cfg.InboxSize < 1 {
		cfg.InboxSize = 1
	}
	return &Session{
		id:          id,
		cfg:         cfg,
		logger:      logger.With(zap.String("session", id)),
		sender:      sender,
		symbols:     symbols,
		newUpstream: newUpstream,
		validate:    v,
		inbox:       make(chan event, cfg.InboxSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		info:        Info{ID: id, State: StateIdle.String()},
	}
}

func (s *Session) ID() string {
	return s.id
}

// Run processes events until ctx is cancelled or Close is called. It greets the client first.
func (s *Session) Run(ctx context.Context) {
	defer close(s.stopped)
	s.ctx = ctx

	s.send(Message{Type: TypeConnected, Data: Greeting{Message: GreetingText}})

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return
		case <-s.done:
			s.teardown()
			return
		case ev := <-s.inbox:
			s.handle(ev)
		}
	}
}

// Deliver queues a raw client frame. It blocks while the inbox is full.
func (s *Session) Deliver(raw []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- event{kind: evClient, raw: raw}:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Close stops the session as if the client had unsubscribed, and waits for Run to return.
// Run must have been started.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.stopped
}

// Info is safe to call from any goroutine.
func (s *Session) Info() Info {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()

	info := s.info
	info.Channels = append([]market.Channel(nil), s.info.Channels...)
	info.UpstreamConnected = s.up != nil && s.up.IsConnected()
	return info
}

func (s *Session) setState(st State) {
	s.state = st

	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	s.info.State = st.String()
	if s.sub == nil {
		s.info.Symbol, s.info.Interval, s.info.Channels = "", "", nil
		s.up = nil
		return
	}
	s.info.Symbol = s.sub.symbol
	s.info.Interval = s.sub.interval
	s.info.Channels = s.sub.channels
	s.up = s.sub.upstream
}

func (s *Session) send(msg Message) {
	if err := s.sender.Send(msg); err != nil {
		s.logger.Debug("dropping outbound message", zap.String("type", msg.Type), zap.Error(err))
	}
}

func (s *Session) handle(ev event) {
	if ev.kind == evClient {
		s.handleClient(ev.raw)
		return
	}
	// Events from a torn down upstream
	if s.sub == nil || ev.gen != s.gen {
		return
	}

	switch ev.kind {
	case evTrade:
		s.onTrade(ev.trade)
	case evKline:
		s.onKline(ev.kline)
	case evDepth:
		s.onDepth(ev.book)
	case evUpstreamError:
		s.onUpstreamError(ev.err)
	case evUpstreamConnect:
		s.setState(StateStreaming)
	}
}

func (s *Session) handleClient(raw []byte) {
	msg, err := DecodeClientMessage(s.validate, raw)
	if err != nil {
		s.logger.Warn("rejected client message", zap.Error(err))
		s.send(Message{Type: TypeError, Error: err.Error()})
		return
	}
	s.logger.Info("client message", zap.String("type", msg.Type), zap.String("symbol", msg.Symbol))

	switch msg.Type {
	case TypeSubscribe:
		s.subscribe(msg)
	case TypeUnsubscribe:
		s.unsubscribe()
	case TypeVolumeProfile:
		s.volumeProfile(msg.StartTime, msg.EndTime)
	case TypeHistory:
		s.history()
	}
}

func (s *Session) subscribe(msg ClientMessage) {
	interval := msg.Interval
	if interval == "" {
		interval = string(binance.DefaultInterval)
	}
	if _, err := binance.ParseKlineInterval(interval); err != nil {
		s.send(errorMessage("Invalid interval: %s", interval))
		return
	}

	symbol := strings.ToUpper(msg.Symbol)
	if len(stream.UpstreamChannels(msg.Channels)) == 0 {
		s.send(errorMessage("Subscribe failed: %v", binance.ErrNoStreams))
		return
	}

	symCfg := s.symbols.Get(symbol)
	calc, err := footprint.NewCalculator(symCfg.TickSize)
	if err != nil {
		s.send(errorMessage("Subscribe failed: %v", err))
		return
	}

	s.logger.Info("subscribing",
		zap.String("symbol", symbol),
		zap.Any("channels", msg.Channels),
		zap.String("interval", interval),
		zap.Float64("tickSize", symCfg.TickSize))

	if s.sub != nil {
		s.teardown()
		// Let the old upstream connection release before opening a new one
		select {
		case <-time.After(s.cfg.ResubscribeGrace):
		case <-s.done:
			return
		case <-s.ctx.Done():
			return
		}
	}

	forward := make(map[market.Channel]bool, len(msg.Channels))
	for _, ch := range msg.Channels {
		forward[ch] = true
	}

	ctx, cancel := context.WithCancel(s.ctx)
	s.gen++
	sub := &subscription{
		symbol:     symbol,
		interval:   interval,
		channels:   append([]market.Channel(nil), msg.Channels...),
		forward:    forward,
		upstream:   s.newUpstream(),
		cancel:     cancel,
		calc:       calc,
		buffer:     memorystore.NewTradeBuffer(s.cfg.MaxTradeBuffer),
		recent:     memorystore.NewTradeBuffer(s.cfg.TradeHistorySize),
		cvd:        cvd.NewTracker(),
		footprints: memorystore.NewHistory[footprint.Snapshot](s.cfg.MaxFootprintHistory),
		cvdPoints:  memorystore.NewHistory[cvd.Point](s.cfg.MaxFootprintHistory),
	}
	s.sub = sub
	s.setState(StateConnecting)

	h := &upstreamHandler{inbox: s.inbox, done: s.done, ctx: ctx, gen: s.gen}
	if err := sub.upstream.Subscribe(ctx, symbol, sub.channels, interval, h); err != nil {
		s.logger.Error("upstream subscribe failed", zap.Error(err))
		s.teardown()
		s.send(errorMessage("Subscribe failed: %v", err))
	}
}

func (s *Session) unsubscribe() {
	s.teardown()
}

// teardown closes the upstream and discards everything the subscription accumulated.
func (s *Session) teardown() {
	sub := s.sub
	if sub == nil {
		return
	}
	s.setState(StateClosing)
	s.logger.Info("unsubscribing", zap.String("symbol", sub.symbol))

	sub.cancel()
	if err := sub.upstream.Close(); err != nil {
		s.logger.Warn("closing upstream", zap.Error(err))
	}
	sub.buffer.Reset()
	sub.recent.Reset()
	sub.cvd.Reset()

	s.sub = nil
	s.gen++
	s.setState(StateIdle)
}

func (s *Session) onTrade(t market.Trade) {
	sub := s.sub
	if sub.forward[market.ChannelTrade] {
		s.send(Message{Type: TypeTrade, Data: t})
	}

	if evicted := sub.buffer.Append(t); evicted > 0 {
		s.logger.Warn("trade buffer full, dropped oldest trades",
			zap.Int("limit", sub.buffer.Cap()),
			zap.Int("evicted", evicted))
	}
	sub.recent.Append(t)
}

func (s *Session) onKline(k market.Kline) {
	sub := s.sub
	if sub.forward[market.ChannelKline] {
		s.send(Message{Type: TypeKline, Data: k})
	}

	switch {
	case sub.lastKline == nil:
		sub.lastCloseTime = k.CloseTime
	case k.CloseTime > sub.lastCloseTime:
		// A new candle started, so the previous one is final
		closed := *sub.lastKline
		s.closeCandle(closed)
		sub.lastCloseTime = k.CloseTime
	}
	sub.lastKline = &k
}

// closeCandle aggregates the trades of the closed candle and emits its footprint. Trades
// already belonging to the next candle stay buffered.
func (s *Session) closeCandle(closed market.Kline) {
	sub := s.sub

	taken := sub.buffer.TakeUntil(closed.CloseTime)
	trades := taken[:0]
	for _, t := range taken {
		if t.Time >= closed.OpenTime {
			trades = append(trades, t)
		}
	}
	if len(trades) == 0 {
		s.logger.Debug("no trades to calculate footprint", zap.Int64("openTime", closed.OpenTime))
		return
	}

	snap := sub.calc.Calculate(trades, closed)
	if len(snap.Cells) == 0 {
		s.logger.Debug("footprint has no levels", zap.Int64("openTime", closed.OpenTime), zap.Int("trades", len(trades)))
		return
	}

	point := sub.cvd.Fold(closed.CloseTime, snap.CumulativeDelta)
	sub.footprints.Put(snap.OpenTime, snap)
	sub.cvdPoints.Put(point.Time, point)

	s.send(Message{Type: TypeFootprint, Data: FootprintEvent{
		Footprint:          snap,
		SupportResistance:  footprint.IdentifySupportResistance(snap, s.cfg.SupportResistanceThreshold),
		AggressiveAnalysis: footprint.AnalyzeAggressiveTrades(snap),
		CVD:                &point,
	}})

	s.logger.Debug("footprint calculated",
		zap.Int("levels", len(snap.Cells)),
		zap.Float64("delta", snap.CumulativeDelta),
		zap.Float64("cvd", point.Value),
		zap.Int("trades", len(trades)))
}

func (s *Session) onDepth(book market.OrderBook) {
	book.Timestamp = time.Now().UnixMilli()
	s.send(Message{Type: TypeDepth, Data: book})
}

func (s *Session) onUpstreamError(err error) {
	if errors.Is(err, backoff.ErrRetriesExhausted) {
		s.logger.Error("upstream gave up", zap.Error(err))
		s.send(errorMessage("Binance connection error: %v", err))
		s.teardown()
		return
	}

	s.logger.Warn("upstream error", zap.Error(err))
	s.send(errorMessage("Binance connection error: %v", err))
	if s.state == StateStreaming {
		s.setState(StateConnecting)
	}
}

func (s *Session) volumeProfile(startTime, endTime int64) {
	if s.sub == nil {
		s.send(errorMessage("Not subscribed"))
		return
	}
	data, err := profile.Calculate(s.sub.recent.Trades(), startTime, endTime, s.sub.calc.TickSize())
	if err != nil {
		s.send(errorMessage("Volume profile failed: %v", err))
		return
	}
	s.send(Message{Type: TypeVolumeProfile, Data: data})
}

func (s *Session) history() {
	if s.sub == nil {
		s.send(errorMessage("Not subscribed"))
		return
	}
	s.send(Message{Type: TypeHistory, Data: HistoryEvent{
		Footprints: s.sub.footprints.Values(),
		CVD:        s.sub.cvdPoints.Values(),
	}})
}

// upstreamHandler turns upstream callbacks into inbox events tagged with their subscription
// generation. Posting gives up once the subscription or the session is gone.
type upstreamHandler struct {
	inbox chan<- event
	done  <-chan struct{}
	ctx   context.Context
	gen   uint64
}

func (h *upstreamHandler) post(ev event) {
	ev.gen = h.gen
	select {
	case h.inbox <- ev:
	case <-h.ctx.Done():
	case <-h.done:
	}
}

func (h *upstreamHandler) OnTrade(t market.Trade) { h.post(event{kind: evTrade, trade: t}) }
func (h *upstreamHandler) OnKline(k market.Kline) { h.post(event{kind: evKline, kline: k}) }
func (h *upstreamHandler) OnDepth(b market.OrderBook) { h.post(event{kind: evDepth, book: b}) }
func (h *upstreamHandler) OnError(err error) { h.post(event{kind: evUpstreamError, err: err}) }
func (h *upstreamHandler) OnConnect() { h.post(event{kind: evUpstreamConnect}) }
