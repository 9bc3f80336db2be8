package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"flowrelay/internal/backoff"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingDialer struct {
	dials atomic.Int32
}

func (d *failingDialer) DialContext(ctx context.Context, urlStr string, h http.Header) (*websocket.Conn, *http.Response, error) {
	d.dials.Add(1)
	return nil, nil, errors.New("connection refused")
}

func fastConfig(url string) StreamConfig {
	cfg := DefaultStreamConfig(url)
	cfg.ReconnectDelay = time.Millisecond
	cfg.MaxReconnectDelay = 5 * time.Millisecond
	cfg.PingInterval = 0
	return cfg
}

// go test -v --run TestSubscribeWithoutStreams
func TestSubscribeWithoutStreams(t *testing.T) {
	c := NewStreamClient(fastConfig("ws://unused"), zaptest.NewLogger(t))
	err := c.Subscribe(context.Background(), nil, StreamHandlers{})
	assert.ErrorIs(t, err, ErrNoStreams)
}

// go test -v --run TestReconnectGivesUpAfterMaxAttempts
func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	dialer := &failingDialer{}
	c := NewStreamClient(fastConfig("ws://unused"), zaptest.NewLogger(t), WithDialer(dialer))

	errs := make(chan error, 64)
	require.NoError(t, c.Subscribe(context.Background(), []string{"btcusdt@aggTrade"}, StreamHandlers{
		OnError: func(err error) { errs <- err },
	}))
	assert.ErrorIs(t, c.Subscribe(context.Background(), []string{"btcusdt@aggTrade"}, StreamHandlers{}), ErrAlreadySubscribed)

	var terminal error
	timeout := time.After(5 * time.Second)
	for terminal == nil {
		select {
		case err := <-errs:
			if errors.Is(err, backoff.ErrRetriesExhausted) {
				terminal = err
			}
		case <-timeout:
			t.Fatal("no terminal error")
		}
	}

	// one initial dial plus ten reconnects, never an eleventh
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(11), dialer.dials.Load())
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Close())
}

// go test -v --run TestStreamDeliversMessages
func TestStreamDeliversMessages(t *testing.T) {
	var gotPath atomic.Value
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.RequestURI())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"btcusdt@aggTrade","data":{}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewStreamClient(fastConfig("ws"+strings.TrimPrefix(srv.URL, "http")), zaptest.NewLogger(t))

	connected := make(chan struct{}, 1)
	messages := make(chan []byte, 1)
	require.NoError(t, c.Subscribe(context.Background(), []string{"btcusdt@aggTrade", "btcusdt@kline_1m"}, StreamHandlers{
		OnConnect: func() { connected <- struct{}{} },
		OnMessage: func(b []byte) { messages <- b },
	}))

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("not connected")
	}
	select {
	case msg := <-messages:
		assert.Contains(t, string(msg), "btcusdt@aggTrade")
	case <-time.After(5 * time.Second):
		t.Fatal("no message")
	}

	assert.True(t, c.IsConnected())
	assert.Equal(t, "/stream?streams=btcusdt@aggTrade/btcusdt@kline_1m", gotPath.Load())

	require.NoError(t, c.Close())
	assert.False(t, c.IsConnected())
}
