package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/events"
	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/risk"
)

// Open sizes, authorizes, executes and books a position for sig. Any failure
// before booking leaves the ledger untouched and emits TradeBlocked.
func (l *Ledger) Open(ctx context.Context, sig Signal) (Position, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, err := l.openLocked(ctx, sig)
	if err != nil {
		if !errors.Is(err, ErrInternalConsistency) {
			l.publisher.Publish(events.TradeBlocked{
				Strategy: sig.Strategy,
				Symbol:   sig.Symbol,
				Reason:   Code(err),
				Detail:   err.Error(),
			})
		}
		return Position{}, err
	}
	return pos, nil
}

func (l *Ledger) openLocked(ctx context.Context, sig Signal) (Position, error) {
	if err := l.usable(); err != nil {
		return Position{}, err
	}

	if sig.Side == "" {
		sig.Side = SideLong
	}
	if sig.Side != SideLong {
		return Position{}, fmt.Errorf("%w: %q, only LONG positions are supported", ErrUnsupportedSide, sig.Side)
	}

	log := l.logger.WithFields(logrus.Fields{
		"strategy": sig.Strategy,
		"symbol":   sig.Symbol,
		"price":    sig.ReferencePrice,
	})

	pricesOK := finitePositive(sig.ReferencePrice) && finitePositive(sig.StopLoss)

	var quantity int64
	strategy, found := l.strategies[sig.Strategy]
	if found && pricesOK {
		quantity = risk.SizePosition(toView(strategy), sig.ReferencePrice, sig.StopLoss)
	}

	proposedRisk := float64(quantity) * math.Abs(sig.ReferencePrice-sig.StopLoss)
	if d := l.gate.Authorize(accountView{l}, sig.Strategy, proposedRisk); !d.Allowed {
		return Position{}, denied(d)
	}

	if err := validateSignal(sig); err != nil {
		return Position{}, err
	}
	if quantity == 0 {
		return Position{}, fmt.Errorf("%w: %q cannot afford one unit of %s risking %.2f per unit",
			ErrInsufficientCapital, sig.Strategy, sig.Symbol, sig.ReferencePrice-sig.StopLoss)
	}

	if l.sessionSizing {
		scaled, session := l.gate.Calendar().ScaleQuantity(quantity, l.now(), l.sessionCfg)
		log = log.WithField("session", session)
		if scaled == 0 {
			if session == risk.SessionNoTrade {
				return Position{}, fmt.Errorf("%w: session sizing", ErrNoTradeWindow)
			}
			return Position{}, fmt.Errorf("%w: session %s scales %d units to zero", ErrInsufficientCapital, session, quantity)
		}
		quantity = scaled
	}

	// last point at which the caller may walk away
	if err := ctx.Err(); err != nil {
		return Position{}, fmt.Errorf("open abandoned: %w", err)
	}

	req := l.orderFor(sig, quantity, log)
	fill, err := l.executor.Execute(ctx, req)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	plan := fill.Plan()
	if plan.FilledQuantity <= 0 {
		return Position{}, fmt.Errorf("%w: nothing filled", ErrExecutionFailed)
	}

	cost := plan.AvgExecutionPrice * float64(plan.FilledQuantity)
	if cost > l.availableCapital {
		return Position{}, fmt.Errorf("%w: need %.2f, available %.2f", ErrInsufficientCapital, cost, l.availableCapital)
	}

	now := l.now()
	pos := &Position{
		ID:           l.nextID(sig.Strategy, sig.Symbol, now),
		Strategy:     sig.Strategy,
		Symbol:       sig.Symbol,
		Side:         SideLong,
		Quantity:     plan.FilledQuantity,
		EntryPrice:   plan.AvgExecutionPrice,
		CurrentPrice: plan.AvgExecutionPrice,
		StopLoss:     sig.StopLoss,
		Target:       sig.Target,
		OpenedAt:     now,
		Algorithm:    plan.Algorithm,
		Slippage:     plan.TotalSlippage,
	}

	l.open[pos.ID] = pos
	l.availableCapital -= cost
	strategy.CurrentPositions++
	strategy.TotalTrades++

	l.stats.Record(plan)
	l.quality.Record(execution.AnalyzeQuality(plan.ReferencePrice, plan.AvgExecutionPrice, plan.FilledQuantity, plan.Algorithm))

	if err := l.verify("open"); err != nil {
		return Position{}, err
	}

	log.WithFields(logrus.Fields{
		"position_id": pos.ID,
		"quantity":    pos.Quantity,
		"entry_price": pos.EntryPrice,
		"algorithm":   pos.Algorithm,
		"available":   l.availableCapital,
	}).Info("position opened")

	l.publisher.Publish(events.PositionOpened{
		ID:        pos.ID,
		Strategy:  pos.Strategy,
		Symbol:    pos.Symbol,
		Quantity:  pos.Quantity,
		AvgPrice:  pos.EntryPrice,
		StopLoss:  pos.StopLoss,
		Target:    pos.Target,
		Algorithm: string(pos.Algorithm),
		Slices:    len(plan.Slices),
		Slippage:  plan.TotalSlippage,
		Degraded:  plan.Degraded,
	})

	return *pos, nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validateSignal(sig Signal) error {
	if sig.Symbol == "" {
		return fmt.Errorf("%w: symbol is empty", ErrInvalidSignal)
	}
	if !finitePositive(sig.ReferencePrice) {
		return fmt.Errorf("%w: reference price %v", ErrInvalidSignal, sig.ReferencePrice)
	}
	// a LONG exits below entry at the stop and above it at the target
	if !finitePositive(sig.StopLoss) || sig.StopLoss >= sig.ReferencePrice {
		return fmt.Errorf("%w: stop %v must be below entry %v", ErrInvalidStopLoss, sig.StopLoss, sig.ReferencePrice)
	}
	if !finitePositive(sig.Target) || sig.Target <= sig.ReferencePrice {
		return fmt.Errorf("%w: target %v must be above entry %v", ErrInvalidSignal, sig.Target, sig.ReferencePrice)
	}
	return nil
}

// orderFor picks the slicing algorithm from the order's share of average
// volume. Without a known volume the order goes out as MARKET.
func (l *Ledger) orderFor(sig Signal, quantity int64, log *logrus.Entry) execution.Request {
	req := execution.Request{
		Algorithm:      execution.AlgorithmMarket,
		Symbol:         sig.Symbol,
		Quantity:       quantity,
		Side:           execution.SideBuy,
		ReferencePrice: sig.ReferencePrice,
	}

	adv, ok := l.volumes.AverageVolume(sig.Symbol)
	if !ok || adv <= 0 {
		return req
	}

	urgency := sig.Urgency
	if urgency == "" {
		urgency = l.urgency
	}
	rec := l.optimizer.Recommend(quantity, adv, l.volatility, urgency)
	req.Algorithm = rec.Algorithm
	req.Params = rec.Params

	if rec.Algorithm == execution.AlgorithmVWAP {
		profile, err := l.volumes.Volumes(sig.Symbol)
		if err != nil {
			log.WithError(err).Warn("volume profile unavailable, VWAP will slice evenly")
		}
		req.Params.VolumeProfile = profile
	}

	log.WithFields(logrus.Fields{
		"algorithm":        rec.Algorithm,
		"size_vs_volume":   rec.SizeVsVolumePct,
		"estimated_impact": rec.EstimatedImpactPct,
	}).Debug(rec.Reason)
	return req
}

// nextID builds strategy_symbol_<unix nanos>, suffixed when the same
// instant was already used.
func (l *Ledger) nextID(strategy, symbol string, at time.Time) string {
	base := fmt.Sprintf("%s_%s_%d", strategy, symbol, at.UnixNano())
	id := base
	for n := 2; ; n++ {
		if _, taken := l.ids[id]; !taken {
			break
		}
		id = base + "_" + strconv.Itoa(n)
	}
	l.ids[id] = struct{}{}
	return id
}
