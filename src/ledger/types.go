package ledger

import (
	"time"

	"portfolioexecutor/src/execution"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

type ExitReason string

const (
	ExitStopLoss       ExitReason = "STOP_LOSS"
	ExitTarget         ExitReason = "TARGET"
	ExitManual         ExitReason = "MANUAL"
	ExitSystemShutdown ExitReason = "SYSTEM_SHUTDOWN"
)

func (r ExitReason) valid() bool {
	switch r {
	case ExitStopLoss, ExitTarget, ExitManual, ExitSystemShutdown:
		return true
	}
	return false
}

const (
	defaultMaxPositions    = 3
	defaultRiskPerTradePct = 1.0
)

// StrategyConfig registers a strategy with a share of total capital.
// Zero MaxPositions and RiskPerTradePct select the defaults.
type StrategyConfig struct {
	Name            string  `json:"name"`
	AllocationPct   float64 `json:"allocation_pct"`
	MaxPositions    int     `json:"max_positions"`
	RiskPerTradePct float64 `json:"risk_per_trade_pct"`
}

type StrategyAllocation struct {
	Name             string  `json:"name"`
	AllocatedCapital float64 `json:"allocated_capital"`
	MaxRiskPerTrade  float64 `json:"max_risk_per_trade"`
	MaxPositions     int     `json:"max_positions"`
	CurrentPositions int     `json:"current_positions"`
	RealizedPnL      float64 `json:"realized_pnl"`
	TotalTrades      int     `json:"total_trades"`
	WinningTrades    int     `json:"winning_trades"`
	Active           bool    `json:"is_active"`
}

// WinRate is the share of winning trades in percent.
func (s StrategyAllocation) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

// Signal asks the ledger to open a position. An empty Side means LONG and an
// empty Urgency uses the ledger default.
type Signal struct {
	Strategy       string            `json:"strategy"`
	Symbol         string            `json:"symbol"`
	Side           Side              `json:"side"`
	ReferencePrice float64           `json:"reference_price"`
	StopLoss       float64           `json:"stop_loss"`
	Target         float64           `json:"target"`
	Urgency        execution.Urgency `json:"urgency,omitempty"`
}

type Position struct {
	ID           string              `json:"id"`
	Strategy     string              `json:"strategy"`
	Symbol       string              `json:"symbol"`
	Side         Side                `json:"side"`
	Quantity     int64               `json:"quantity"`
	EntryPrice   float64             `json:"entry_price"`
	CurrentPrice float64             `json:"current_price"`
	StopLoss     float64             `json:"stop_loss"`
	Target       float64             `json:"target"`
	OpenedAt     time.Time           `json:"opened_at"`
	PnL          float64             `json:"pnl"`
	PnLPct       float64             `json:"pnl_pct"`
	Algorithm    execution.Algorithm `json:"algorithm"`
	Slippage     float64             `json:"slippage"`
}

func (p Position) cost() float64 { return p.EntryPrice * float64(p.Quantity) }

type ClosedPosition struct {
	Position
	ExitPrice      float64    `json:"exit_price"`
	ClosedAt       time.Time  `json:"closed_at"`
	ExitReason     ExitReason `json:"exit_reason"`
	RealizedPnL    float64    `json:"realized_pnl"`
	RealizedPnLPct float64    `json:"realized_pnl_pct"`
}
