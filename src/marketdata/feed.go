package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/ledger"
)

// Tick is one price frame on the feed.
type Tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts,omitempty"`
}

// TickHandler is satisfied by *ledger.Ledger.
type TickHandler interface {
	MarkToMarket(symbol string, price float64) ([]ledger.ClosedPosition, error)
}

// Feed streams ticks from a websocket into a TickHandler, reconnecting until
// its context is done.
type Feed struct {
	url           string
	handler       TickHandler
	reconnectWait time.Duration
	readTimeout   time.Duration
	header        http.Header
	log           *logrus.Entry
}

func NewFeed(config Config, handler TickHandler, logger *logrus.Entry) *Feed {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	wait := config.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Feed{
		url:           config.TickFeedURL,
		handler:       handler,
		reconnectWait: wait,
		readTimeout:   config.ReadTimeout,
		header:        http.Header{},
		log:           logger.WithField("component", "TickFeed"),
	}
}

// Run returns nil once ctx is done. Connection failures are logged and
// retried after the reconnect wait.
func (f *Feed) Run(ctx context.Context) error {
	if f.url == "" {
		return errors.New("tick feed url not set")
	}

	for {
		err := f.consume(ctx)
		if ctx.Err() != nil {
			f.log.Info("tick feed stopped")
			return nil
		}
		f.log.WithError(err).Warn("tick feed disconnected, reconnecting")

		select {
		case <-ctx.Done():
			f.log.Info("tick feed stopped")
			return nil
		case <-time.After(f.reconnectWait):
		}
	}
}

func (f *Feed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, f.url, f.header)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()
	f.log.WithField("url", f.url).Info("tick feed connected")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		if f.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}
		f.handle(msg)
	}
}

func (f *Feed) handle(msg []byte) {
	var t Tick
	if err := json.Unmarshal(msg, &t); err != nil {
		f.log.WithError(err).WithField("frame", truncate(string(msg), 200)).Warn("unparseable tick frame")
		return
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if t.Symbol == "" || t.Price <= 0 || math.IsNaN(t.Price) || math.IsInf(t.Price, 0) {
		f.log.WithField("frame", truncate(string(msg), 200)).Warn("invalid tick frame")
		return
	}

	closed, err := f.handler.MarkToMarket(t.Symbol, t.Price)
	if err != nil {
		f.log.WithError(err).WithField("symbol", t.Symbol).Error("mark to market failed")
		return
	}
	for _, c := range closed {
		f.log.WithFields(logrus.Fields{
			"position_id": c.ID,
			"reason":      c.ExitReason,
			"pnl":         c.RealizedPnL,
		}).Info("tick closed position")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
