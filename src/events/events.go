// Package events carries ledger outcomes to out-of-band consumers: logs, the
// journal database and webhooks.
package events

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindPositionOpened Kind = "position_opened"
	KindPositionClosed Kind = "position_closed"
	KindTradeBlocked   Kind = "trade_blocked"
)

// Event is one of PositionOpened, PositionClosed or TradeBlocked.
type Event interface {
	Kind() Kind
}

type PositionOpened struct {
	ID        string  `json:"id"`
	Strategy  string  `json:"strategy"`
	Symbol    string  `json:"symbol"`
	Quantity  int64   `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	StopLoss  float64 `json:"stop_loss"`
	Target    float64 `json:"target"`
	Algorithm string  `json:"algorithm"`
	Slices    int     `json:"slices"`
	Slippage  float64 `json:"slippage"`
	Degraded  bool    `json:"degraded,omitempty"`
}

func (PositionOpened) Kind() Kind { return KindPositionOpened }

type PositionClosed struct {
	ID         string  `json:"id"`
	Strategy   string  `json:"strategy"`
	Symbol     string  `json:"symbol"`
	Quantity   int64   `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnl_pct"`
	Reason     string  `json:"reason"`
}

func (PositionClosed) Kind() Kind { return KindPositionClosed }

type TradeBlocked struct {
	Strategy string `json:"strategy"`
	Symbol   string `json:"symbol"`
	Reason   string `json:"reason"`
	Detail   string `json:"detail,omitempty"`
}

func (TradeBlocked) Kind() Kind { return KindTradeBlocked }

// Envelope stamps an event with an identity and the time it happened.
type Envelope struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    Event     `json:"payload"`
}

func NewEnvelope(ev Event, at time.Time) Envelope {
	return Envelope{
		ID:         uuid.New(),
		Kind:       ev.Kind(),
		OccurredAt: at.UTC(),
		Payload:    ev,
	}
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ev Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
