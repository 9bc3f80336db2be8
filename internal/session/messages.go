package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"flowrelay/internal/cvd"
	"flowrelay/internal/footprint"
	"flowrelay/internal/market"

	"github.com/go-playground/validator/v10"
)

// Inbound message types.
const (
	TypeSubscribe     = "subscribe"
	TypeUnsubscribe   = "unsubscribe"
	TypeVolumeProfile = "volumeProfile"
	TypeHistory       = "history"
)

// Outbound message types.
const (
	TypeConnected = "connected"
	TypeTrade     = "trade"
	TypeKline     = "kline"
	TypeDepth     = "depth"
	TypeFootprint = "footprint"
	TypeError     = "error"
)

const GreetingText = "Connected to Crypto Monitor WebSocket"

// ClientMessage is any control message a client can send.
type ClientMessage struct {
	Type      string           `json:"type" validate:"required,oneof=subscribe unsubscribe volumeProfile history"`
	Symbol    string           `json:"symbol,omitempty" validate:"required_if=Type subscribe,max=20"`
	Channels  []market.Channel `json:"channels,omitempty" validate:"required_if=Type subscribe,dive,oneof=trade kline depth footprint"`
	Interval  string           `json:"interval,omitempty"`
	StartTime int64            `json:"startTime,omitempty" validate:"gte=0"`
	EndTime   int64            `json:"endTime,omitempty" validate:"gtefield=StartTime"`
}

// DecodeClientMessage parses and validates one inbound frame. The returned error text is
// meant for the client.
func DecodeClientMessage(v *validator.Validate, raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, errors.New("Invalid message format")
	}
	if err := v.Struct(msg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Field() == "Type" {
				return ClientMessage{}, fmt.Errorf("Unknown message type: %q", msg.Type)
			}
			return ClientMessage{}, fmt.Errorf("Invalid message: field %s failed %q", fe.Field(), fe.Tag())
		}
		return ClientMessage{}, fmt.Errorf("Invalid message: %w", err)
	}
	return msg, nil
}

// Message is the envelope of every outbound frame.
type Message struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type Greeting struct {
	Message string `json:"message"`
}

// FootprintEvent is emitted once per closed candle.
type FootprintEvent struct {
	Footprint          footprint.Snapshot           `json:"footprint"`
	SupportResistance  []float64                    `json:"supportResistance"`
	AggressiveAnalysis footprint.AggressiveAnalysis `json:"aggressiveAnalysis"`
	CVD                *cvd.Point                   `json:"cvd,omitempty"`
}

// HistoryEvent answers a history request, oldest first.
type HistoryEvent struct {
	Footprints []footprint.Snapshot `json:"footprints"`
	CVD        []cvd.Point          `json:"cvd"`
}

func errorMessage(format string, args ...any) Message {
	return Message{Type: TypeError, Error: fmt.Sprintf(format, args...)}
}
