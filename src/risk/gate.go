// Package risk holds the pre-trade admission checks, position sizing and the
// daily realized P&L accounting they rely on.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonDailyLossLimit   Reason = "DAILY_LOSS_LIMIT"
	ReasonStrategyNotFound Reason = "STRATEGY_NOT_FOUND"
	ReasonMaxPositions     Reason = "MAX_POSITIONS"
	ReasonStrategyInactive Reason = "STRATEGY_INACTIVE"
	ReasonMaxDrawdown      Reason = "MAX_DRAWDOWN"
	ReasonNoTradeWindow    Reason = "NO_TRADE_WINDOW"
)

// Limits are the portfolio-wide risk settings. Zero MaxDrawdownPct disables
// the drawdown check. A nil TradingDay counts the daily loss on the New York
// date.
type Limits struct {
	MaxDailyLoss         float64
	MaxDrawdownPct       float64
	EnforceNoTradeWindow bool
	TradingDay           *time.Location
}

// StrategyView is the slice of a strategy allocation the gate looks at.
type StrategyView struct {
	Name             string
	AllocatedCapital float64
	MaxRiskPerTrade  float64
	MaxPositions     int
	CurrentPositions int
	Active           bool
}

// AccountView is the read-only ledger state handed to Authorize.
type AccountView interface {
	TotalCapital() float64
	Strategy(name string) (StrategyView, bool)
}

type Decision struct {
	Allowed bool
	Reason  Reason
	Detail  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason Reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Gate is owned by the ledger and consulted before every open.
type Gate struct {
	logger   *logrus.Entry
	limits   Limits
	calendar *Calendar
	daily    *DailyPnL
	now      func() time.Time
}

func NewGate(logger *logrus.Entry, limits Limits) *Gate {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	calendar := NewCalendar().WithTradingDay(limits.TradingDay)

	return &Gate{
		logger:   logger,
		limits:   limits,
		calendar: calendar,
		daily:    NewDailyPnL(calendar),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for trading-day rollover and the
// no-trade window.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

func (g *Gate) Limits() Limits { return g.limits }

func (g *Gate) Calendar() *Calendar { return g.calendar }

// Authorize runs the admission checks in order; the first failing check
// decides.
func (g *Gate) Authorize(view AccountView, strategyName string, proposedRisk float64) Decision {
	now := g.now()
	daily := g.daily.Value(now)

	decision := g.check(view, strategyName, daily, now)

	entry := g.logger.WithFields(logrus.Fields{
		"strategy":      strategyName,
		"proposed_risk": proposedRisk,
		"daily_pnl":     daily,
	})
	if decision.Allowed {
		entry.Debug("risk gate allowed trade")
	} else {
		entry.WithField("reason", decision.Reason).Warn(decision.Detail)
	}
	return decision
}

func (g *Gate) check(view AccountView, strategyName string, daily float64, now time.Time) Decision {
	if g.limits.MaxDailyLoss > 0 && daily <= -g.limits.MaxDailyLoss {
		return deny(ReasonDailyLossLimit, "daily loss limit reached: %.2f/%.2f", daily, g.limits.MaxDailyLoss)
	}

	strategy, ok := view.Strategy(strategyName)
	if !ok {
		return deny(ReasonStrategyNotFound, "strategy %q is not registered", strategyName)
	}
	if strategy.CurrentPositions >= strategy.MaxPositions {
		return deny(ReasonMaxPositions, "strategy %q already holds %d/%d positions",
			strategyName, strategy.CurrentPositions, strategy.MaxPositions)
	}
	if !strategy.Active {
		return deny(ReasonStrategyInactive, "strategy %q is inactive", strategyName)
	}

	if g.limits.MaxDrawdownPct > 0 && view.TotalCapital() > 0 {
		drawdown := -daily / view.TotalCapital() * 100
		if drawdown >= g.limits.MaxDrawdownPct {
			return deny(ReasonMaxDrawdown, "max drawdown reached: %.2f%%", drawdown)
		}
	}

	if g.limits.EnforceNoTradeWindow && g.calendar.InNoTradeWindow(now) {
		return deny(ReasonNoTradeWindow, "inside the New York no-trade window")
	}

	return allow()
}

// RecordRealized adds a closed trade's P&L to today's total.
func (g *Gate) RecordRealized(pnl float64) {
	g.daily.Record(g.now(), pnl)
}

func (g *Gate) DailyRealizedPnL() float64 {
	return g.daily.Value(g.now())
}

func (g *Gate) DailySummary() DailySummary {
	return g.daily.Summary(g.now(), g.limits.MaxDailyLoss)
}

// floorEpsilon absorbs binary rounding so 49.999999999 still sizes to 50.
const floorEpsilon = 1e-9

// riskBudgetPct is the hard ceiling on risk per trade as a share of the
// strategy's allocation.
const riskBudgetPct = 0.01

// SizePosition returns the whole-unit quantity that risks at most the
// strategy's per-trade budget between entry and stop, without exceeding the
// strategy's allocation. A zero stop distance yields zero.
func SizePosition(strategy StrategyView, entryPrice, stopLoss float64) int64 {
	distance := math.Abs(entryPrice - stopLoss)
	if distance == 0 || entryPrice <= 0 {
		return 0
	}

	budget := math.Min(strategy.MaxRiskPerTrade, strategy.AllocatedCapital*riskBudgetPct)
	if budget <= 0 {
		return 0
	}

	byRisk := math.Floor(budget/distance + floorEpsilon)
	byCapital := math.Floor(strategy.AllocatedCapital/entryPrice + floorEpsilon)

	return int64(math.Max(0, math.Min(byRisk, byCapital)))
}
