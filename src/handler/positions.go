package handler

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/ledger"
)

type positionReader interface {
	OpenPositions() []ledger.Position
	ClosedPositions() []ledger.ClosedPosition
}

type positionOpener interface {
	Open(ctx context.Context, sig ledger.Signal) (ledger.Position, error)
}

type positionCloser interface {
	Position(id string) (ledger.Position, bool)
	Close(id string, price float64, reason ledger.ExitReason) (ledger.ClosedPosition, error)
}

type tickMarker interface {
	MarkToMarket(symbol string, price float64) ([]ledger.ClosedPosition, error)
}

func OpenPositionsHandler(p positionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.OpenPositions())
	}
}

func ClosedPositionsHandler(p positionReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.ClosedPositions())
	}
}

// SignalHandler opens a position from a strategy signal.
func SignalHandler(p positionOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sig ledger.Signal
		if err := decodeStrict(r, &sig); err != nil {
			logger.WithError(err).Warn("invalid signal payload")
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
		sig.Symbol = strings.ToUpper(strings.TrimSpace(sig.Symbol))
		sig.Side = ledger.Side(strings.ToUpper(string(sig.Side)))

		pos, err := p.Open(r.Context(), sig)
		if err != nil {
			logger.WithFields(map[string]interface{}{
				"strategy": sig.Strategy,
				"symbol":   sig.Symbol,
				"code":     ledger.Code(err),
			}).Info("signal refused")
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, pos)
	}
}

type tickPayload struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts,omitempty"`
}

// TickHandler marks positions on a symbol to market and returns the
// positions the tick closed.
func TickHandler(p tickMarker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var tick tickPayload
		if err := decodeStrict(r, &tick); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid payload")
			return
		}
		symbol := strings.ToUpper(strings.TrimSpace(tick.Symbol))
		if symbol == "" {
			writeError(w, http.StatusBadRequest, "symbol is required")
			return
		}

		closed, err := p.MarkToMarket(symbol, tick.Price)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		if closed == nil {
			closed = []ledger.ClosedPosition{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"closed": closed})
	}
}

type closePayload struct {
	Price  float64           `json:"price"`
	Reason ledger.ExitReason `json:"reason"`
}

// ClosePositionHandler closes {id}. Without a price the position's last
// marked price is used; the reason defaults to MANUAL.
func ClosePositionHandler(p positionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var payload closePayload
		if r.ContentLength != 0 {
			if err := decodeStrict(r, &payload); err != nil {
				writeError(w, http.StatusBadRequest, "Invalid payload")
				return
			}
		}

		price := payload.Price
		if price == 0 {
			pos, ok := p.Position(id)
			if !ok {
				writeLedgerError(w, ledger.ErrPositionNotFound)
				return
			}
			price = pos.CurrentPrice
		}
		if math.IsNaN(price) || price < 0 {
			writeError(w, http.StatusBadRequest, "invalid price")
			return
		}

		closed, err := p.Close(id, price, payload.Reason)
		if err != nil {
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, closed)
	}
}

// Portfolio is everything the HTTP surface needs from the ledger.
type Portfolio interface {
	portfolioReader
	rebalancer
	positionReader
	positionOpener
	positionCloser
	tickMarker
}
