package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"flowrelay/internal/backoff"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrNoStreams         = errors.New("no streams to subscribe")
	ErrAlreadySubscribed = errors.New("stream client already subscribed")
)

// Dialer opens websocket connections. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

type StreamConfig struct {
	URL                  string
	HandshakeTimeout     time.Duration
	ReadTimeout          time.Duration // 0 disables the read deadline
	WriteTimeout         time.Duration
	PingInterval         time.Duration // 0 disables client pings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	MaxReconnectDelay    time.Duration // 0 means uncapped
}

func DefaultStreamConfig(url string) StreamConfig {
	return StreamConfig{
		URL:                  url,
		HandshakeTimeout:     10 * time.Second,
		ReadTimeout:          5 * time.Minute,
		WriteTimeout:         10 * time.Second,
		PingInterval:         time.Minute,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// StreamHandlers receive everything the client observes. They are called from the
// client's reader goroutine, one at a time.
type StreamHandlers struct {
	OnMessage func([]byte)
	OnConnect func()
	OnError   func(error)
}

// StreamClient holds one combined stream subscription and reconnects it with
// exponential backoff until the attempt ceiling is reached.
type StreamClient struct {
	cfg    StreamConfig
	dialer Dialer
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	connected atomic.Bool
}

type StreamOption func(*StreamClient)

func WithDialer(d Dialer) StreamOption {
	return func(c *StreamClient) { c.dialer = d }
}

func NewStreamClient(cfg StreamConfig, logger *zap.Logger, opts ...StreamOption) *StreamClient {
	c := &StreamClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe connects to the combined stream in the background. It returns once the
// subscription is registered, not once the connection is up; OnConnect reports that.
func (c *StreamClient) Subscribe(ctx context.Context, streams []string, h StreamHandlers) error {
	if len(streams) == 0 {
		c.logger.Warn("No streams to subscribe")
		return ErrNoStreams
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadySubscribed
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	url := CombinedStreamURL(c.cfg.URL, streams)
	c.logger.Info("Connecting to combined stream", zap.Strings("streams", streams))
	go c.run(runCtx, url, h, c.done)
	return nil
}

func (c *StreamClient) run(ctx context.Context, url string, h StreamHandlers, done chan struct{}) {
	defer close(done)

	bo := backoff.New(c.cfg.ReconnectDelay, c.cfg.MaxReconnectAttempts, c.cfg.MaxReconnectDelay)
	for {
		err := c.connectAndRead(ctx, url, h, bo)
		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("Stream connection lost", zap.String("url", url), zap.Error(err))
		if h.OnError != nil {
			h.OnError(err)
		}

		delay, err := bo.Next()
		if err != nil {
			c.logger.Error("Giving up on stream", zap.String("url", url), zap.Int("attempts", bo.MaxAttempts()))
			if h.OnError != nil {
				h.OnError(fmt.Errorf("stream %s: %w", url, err))
			}
			return
		}

		c.logger.Info("Reconnecting",
			zap.Duration("delay", delay),
			zap.Int("attempt", bo.Attempt()),
			zap.Int("maxAttempts", bo.MaxAttempts()))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectAndRead dials once and reads until the connection fails or ctx is cancelled.
func (c *StreamClient) connectAndRead(ctx context.Context, url string, h StreamHandlers, bo *backoff.Controller) error {
	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := c.dialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	bo.Reset()
	c.connected.Store(true)
	defer c.connected.Store(false)
	c.logger.Info("Stream connected", zap.String("url", url))
	if h.OnConnect != nil {
		h.OnConnect()
	}

	stop := make(chan struct{})
	defer close(stop)
	go c.watch(ctx, conn, stop)

	c.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline(conn)
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.extendReadDeadline(conn)
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}

// watch sends keepalive pings and closes conn when ctx is cancelled. WriteControl is
// safe to use concurrently with the reader.
func (c *StreamClient) watch(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	var tick <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout()))
			_ = conn.Close()
			return
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout())); err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
			}
		}
	}
}

func (c *StreamClient) extendReadDeadline(conn *websocket.Conn) {
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (c *StreamClient) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 10 * time.Second
}

// Close cancels the subscription and waits for the reader goroutine to exit.
// Handlers must not block on anything Close's caller holds.
func (c *StreamClient) Close() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	c.logger.Info("Closing stream connection")
	cancel()
	<-done
	return nil
}

func (c *StreamClient) IsConnected() bool {
	return c.connected.Load()
}
