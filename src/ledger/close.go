package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/events"
)

// MarkToMarket reprices every open position on symbol. A position whose stop
// is touched closes at the stop price; otherwise one whose target is reached
// closes at the target price. Stops win when a tick crosses both.
func (l *Ledger) MarkToMarket(symbol string, price float64) ([]ClosedPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return nil, err
	}
	if !finitePositive(price) {
		return nil, fmt.Errorf("%w: %s tick at %v", ErrInvalidPrice, symbol, price)
	}

	var closed []ClosedPosition
	for _, p := range l.sortedOpen() {
		if p.Symbol != symbol {
			continue
		}
		p.CurrentPrice = price
		p.PnL = (price - p.EntryPrice) * float64(p.Quantity)
		p.PnLPct = (price - p.EntryPrice) / p.EntryPrice * 100

		var (
			exit   float64
			reason ExitReason
		)
		switch {
		case price <= p.StopLoss:
			exit, reason = p.StopLoss, ExitStopLoss
		case p.Target > 0 && price >= p.Target:
			exit, reason = p.Target, ExitTarget
		default:
			continue
		}

		cp, err := l.closeLocked(p.ID, exit, reason)
		if err != nil {
			return closed, err
		}
		closed = append(closed, cp)
	}
	return closed, nil
}

// Close realizes a position at price.
func (l *Ledger) Close(id string, price float64, reason ExitReason) (ClosedPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return ClosedPosition{}, err
	}
	return l.closeLocked(id, price, reason)
}

// CloseAll closes every open position at its last known price. It stops
// early, keeping what it already closed, when ctx is done.
func (l *Ledger) CloseAll(ctx context.Context, reason ExitReason) ([]ClosedPosition, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return nil, err
	}

	var closed []ClosedPosition
	for _, p := range l.sortedOpen() {
		if err := ctx.Err(); err != nil {
			return closed, fmt.Errorf("close all interrupted: %w", err)
		}
		cp, err := l.closeLocked(p.ID, p.CurrentPrice, reason)
		if err != nil {
			return closed, err
		}
		closed = append(closed, cp)
	}

	l.logger.WithFields(logrus.Fields{
		"closed": len(closed),
		"reason": reason,
	}).Info("closed all positions")
	return closed, nil
}

func (l *Ledger) closeLocked(id string, price float64, reason ExitReason) (ClosedPosition, error) {
	p, ok := l.open[id]
	if !ok {
		return ClosedPosition{}, fmt.Errorf("%w: %q", ErrPositionNotFound, id)
	}
	if !finitePositive(price) {
		return ClosedPosition{}, fmt.Errorf("%w: close %q at %v", ErrInvalidPrice, id, price)
	}
	if reason == "" {
		reason = ExitManual
	}
	if !reason.valid() {
		return ClosedPosition{}, fmt.Errorf("%w: unknown exit reason %q", ErrInvalidSignal, reason)
	}

	realized := (price - p.EntryPrice) * float64(p.Quantity)
	realizedPct := (price - p.EntryPrice) / p.EntryPrice * 100

	p.CurrentPrice = price
	p.PnL = realized
	p.PnLPct = realizedPct

	cp := ClosedPosition{
		Position:       *p,
		ExitPrice:      price,
		ClosedAt:       l.now(),
		ExitReason:     reason,
		RealizedPnL:    realized,
		RealizedPnLPct: realizedPct,
	}

	delete(l.open, id)
	l.closed = append(l.closed, cp)
	l.availableCapital += price * float64(p.Quantity)
	l.realizedPnL += realized

	if s, ok := l.strategies[p.Strategy]; ok {
		s.CurrentPositions--
		s.RealizedPnL += realized
		if realized > 0 {
			s.WinningTrades++
		}
	}
	l.gate.RecordRealized(realized)

	if err := l.verify("close"); err != nil {
		return ClosedPosition{}, err
	}

	l.logger.WithFields(logrus.Fields{
		"position_id": id,
		"strategy":    p.Strategy,
		"symbol":      p.Symbol,
		"exit_price":  price,
		"pnl":         realized,
		"pnl_pct":     realizedPct,
		"reason":      reason,
	}).Info("position closed")

	l.publisher.Publish(events.PositionClosed{
		ID:         cp.ID,
		Strategy:   cp.Strategy,
		Symbol:     cp.Symbol,
		Quantity:   cp.Quantity,
		EntryPrice: cp.EntryPrice,
		ExitPrice:  price,
		PnL:        realized,
		PnLPct:     realizedPct,
		Reason:     string(reason),
	})
	return cp, nil
}
