package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/risk"
)

type StrategySummary struct {
	StrategyAllocation
	WinRate float64 `json:"win_rate"`
}

type Summary struct {
	TotalCapital     float64           `json:"total_capital"`
	CurrentEquity    float64           `json:"current_equity"`
	AvailableCapital float64           `json:"available_capital"`
	TotalPnL         float64           `json:"total_pnl"`
	RealizedPnL      float64           `json:"realized_pnl"`
	UnrealizedPnL    float64           `json:"unrealized_pnl"`
	TotalReturnPct   float64           `json:"total_return_pct"`
	DailyRealizedPnL float64           `json:"daily_realized_pnl"`
	ActivePositions  int               `json:"active_positions"`
	ClosedTrades     int               `json:"total_closed_trades"`
	Strategies       []StrategySummary `json:"strategies"`
	Faulted          bool              `json:"faulted,omitempty"`
}

type RiskMetrics struct {
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgWin       float64 `json:"avg_win"`
	AvgLoss      float64 `json:"avg_loss"`
}

const tradingDaysPerYear = 252

func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryLocked()
}

func (l *Ledger) summaryLocked() Summary {
	unrealized, marketValue := 0.0, 0.0
	for _, p := range l.open {
		unrealized += p.PnL
		marketValue += p.CurrentPrice * float64(p.Quantity)
	}
	equity := l.availableCapital + marketValue

	s := Summary{
		TotalCapital:     l.totalCapital,
		CurrentEquity:    equity,
		AvailableCapital: l.availableCapital,
		TotalPnL:         l.realizedPnL + unrealized,
		RealizedPnL:      l.realizedPnL,
		UnrealizedPnL:    unrealized,
		TotalReturnPct:   (equity - l.totalCapital) / l.totalCapital * 100,
		DailyRealizedPnL: l.gate.DailyRealizedPnL(),
		ActivePositions:  len(l.open),
		ClosedTrades:     len(l.closed),
		Faulted:          l.fault != nil,
	}
	for _, name := range l.strategyOrder {
		a := *l.strategies[name]
		s.Strategies = append(s.Strategies, StrategySummary{StrategyAllocation: a, WinRate: a.WinRate()})
	}
	return s
}

// RiskMetrics is computed over closed trades in close order. Drawdown is the
// deepest fall of cumulative P&L from its running peak (zero or negative).
func (l *Ledger) RiskMetrics() RiskMetrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.riskMetricsLocked()
}

func (l *Ledger) riskMetricsLocked() RiskMetrics {
	var m RiskMetrics
	if len(l.closed) == 0 {
		return m
	}

	var (
		grossProfit, grossLoss float64
		wins, losses           int
		cumulative, peak, sum  float64
	)
	for i, c := range l.closed {
		pnl := c.RealizedPnL
		sum += pnl
		switch {
		case pnl > 0:
			grossProfit += pnl
			wins++
		case pnl < 0:
			grossLoss += -pnl
			losses++
		}

		cumulative += pnl
		if i == 0 || cumulative > peak {
			peak = cumulative
		}
		m.MaxDrawdown = math.Min(m.MaxDrawdown, cumulative-peak)
	}

	if wins > 0 {
		m.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		m.AvgLoss = grossLoss / float64(losses)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	}

	n := float64(len(l.closed))
	mean := sum / n
	variance := 0.0
	for _, c := range l.closed {
		variance += (c.RealizedPnL - mean) * (c.RealizedPnL - mean)
	}
	if std := math.Sqrt(variance / n); std > 0 {
		m.SharpeRatio = mean / std * math.Sqrt(tradingDaysPerYear)
	}
	return m
}

func (l *Ledger) OpenPositions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.open))
	for _, p := range l.sortedOpen() {
		out = append(out, *p)
	}
	return out
}

func (l *Ledger) Position(id string) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.open[id]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func (l *Ledger) ClosedPositions() []ClosedPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ClosedPosition(nil), l.closed...)
}

func (l *Ledger) Strategy(name string) (StrategyAllocation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.strategies[name]
	if !ok {
		return StrategyAllocation{}, false
	}
	return *s, true
}

func (l *Ledger) AvailableCapital() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableCapital
}

func (l *Ledger) DailySummary() risk.DailySummary {
	return l.gate.DailySummary()
}

func (l *Ledger) ExecutionStats() execution.StatsSnapshot {
	return l.stats.Snapshot()
}

func (l *Ledger) ExecutionSuggestions() (execution.Suggestions, bool) {
	return l.quality.Suggestions()
}

// Faulted returns the invariant violation that stopped the ledger, if any.
func (l *Ledger) Faulted() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fault
}

const reportWidth = 90

// Report renders the portfolio as a plain-text report.
func (l *Ledger) Report() string {
	l.mu.Lock()
	s := l.summaryLocked()
	m := l.riskMetricsLocked()
	open := make([]Position, 0, len(l.open))
	for _, p := range l.sortedOpen() {
		open = append(open, *p)
	}
	l.mu.Unlock()

	var b strings.Builder
	rule := strings.Repeat("=", reportWidth)
	line := strings.Repeat("-", reportWidth)
	w := func(format string, args ...any) { fmt.Fprintf(&b, format+"\n", args...) }

	w(rule)
	w("PORTFOLIO MANAGEMENT REPORT")
	w(rule)
	w("")
	w("PORTFOLIO OVERVIEW:")
	w(line)
	w("   Total Capital:      %s", money(s.TotalCapital))
	w("   Current Equity:     %s", money(s.CurrentEquity))
	w("   Available Capital:  %s", money(s.AvailableCapital))
	w("   Total P&L:          %s (%s%%)", money(s.TotalPnL), fixed(s.TotalReturnPct, 2))
	w("   Daily Realized P&L: %s", money(s.DailyRealizedPnL))
	w("   Active Positions:   %d", s.ActivePositions)
	w("   Closed Trades:      %d", s.ClosedTrades)
	w("")
	w("RISK METRICS:")
	w(line)
	w("   Max Drawdown:       %s", money(m.MaxDrawdown))
	w("   Sharpe Ratio:       %s", fixed(m.SharpeRatio, 2))
	w("   Profit Factor:      %s", fixed(m.ProfitFactor, 2))
	w("   Avg Win:            %s", money(m.AvgWin))
	w("   Avg Loss:           %s", money(m.AvgLoss))
	w("")
	w("STRATEGY BREAKDOWN:")
	w(line)
	for _, st := range s.Strategies {
		status := "ACTIVE"
		if !st.Active {
			status = "PAUSED"
		}
		w("")
		w("[%s] %s", status, st.Name)
		w("   Allocated Capital:  %s", money(st.AllocatedCapital))
		w("   Current Positions:  %d", st.CurrentPositions)
		w("   Total Trades:       %d", st.TotalTrades)
		w("   Win Rate:           %s%%", fixed(st.WinRate, 1))
		w("   Strategy P&L:       %s", money(st.RealizedPnL))
	}
	w("")

	if len(open) > 0 {
		w("ACTIVE POSITIONS:")
		w(line)
		for _, p := range open {
			marker := "+"
			if p.PnL < 0 {
				marker = "-"
			}
			w("%s %s (%s) x%d", marker, p.Symbol, p.Strategy, p.Quantity)
			w("   Entry: %s | Current: %s", fixed(p.EntryPrice, 2), fixed(p.CurrentPrice, 2))
			w("   P&L: %s (%s%%)", money(p.PnL), fixed(p.PnLPct, 2))
			w("   SL: %s | Target: %s", fixed(p.StopLoss, 2), fixed(p.Target, 2))
			w("")
		}
	}
	w(rule)

	return b.String()
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// money formats v with two decimals and thousands separators.
func money(v float64) string {
	s := fixed(v, 2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}
