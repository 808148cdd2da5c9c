package ledger

import (
	"context"
	"errors"
	"fmt"

	"portfolioexecutor/src/risk"
)

var (
	ErrInsufficientCapital    = errors.New("insufficient capital")
	ErrMaxPositionsReached    = errors.New("max positions reached")
	ErrStrategyInactive       = errors.New("strategy inactive")
	ErrDailyLossLimitBreached = errors.New("daily loss limit breached")
	ErrInvalidStopLoss        = errors.New("invalid stop loss")
	ErrPositionNotFound       = errors.New("position not found")
	ErrAllocationOutOfRange   = errors.New("allocation out of range")

	ErrStrategyNotFound = errors.New("strategy not found")
	ErrStrategyExists   = errors.New("strategy already registered")
	ErrUnsupportedSide  = errors.New("unsupported side")
	ErrMaxDrawdown      = errors.New("max drawdown reached")
	ErrNoTradeWindow    = errors.New("inside no-trade window")
	ErrInvalidSignal    = errors.New("invalid signal")
	ErrInvalidPrice     = errors.New("invalid price")
	ErrExecutionFailed  = errors.New("execution failed")

	ErrInternalConsistency = errors.New("internal consistency fault")
	ErrLedgerFaulted       = errors.New("ledger is faulted")
)

// InvariantError reports a broken accounting invariant. It always matches
// ErrInternalConsistency.
type InvariantError struct {
	Op     string
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated after %s: %s", e.Op, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInternalConsistency }

var codes = []struct {
	err  error
	code string
}{
	{ErrInsufficientCapital, "INSUFFICIENT_CAPITAL"},
	{ErrMaxPositionsReached, "MAX_POSITIONS_REACHED"},
	{ErrStrategyInactive, "STRATEGY_INACTIVE"},
	{ErrDailyLossLimitBreached, "DAILY_LOSS_LIMIT_BREACHED"},
	{ErrInvalidStopLoss, "INVALID_STOP_LOSS"},
	{ErrPositionNotFound, "POSITION_NOT_FOUND"},
	{ErrAllocationOutOfRange, "ALLOCATION_OUT_OF_RANGE"},
	{ErrStrategyNotFound, "STRATEGY_NOT_FOUND"},
	{ErrStrategyExists, "STRATEGY_EXISTS"},
	{ErrUnsupportedSide, "UNSUPPORTED_SIDE"},
	{ErrMaxDrawdown, "MAX_DRAWDOWN"},
	{ErrNoTradeWindow, "NO_TRADE_WINDOW"},
	{ErrInvalidSignal, "INVALID_SIGNAL"},
	{ErrInvalidPrice, "INVALID_PRICE"},
	{ErrExecutionFailed, "EXECUTION_FAILED"},
	{ErrLedgerFaulted, "LEDGER_FAULTED"},
	{ErrInternalConsistency, "INTERNAL_CONSISTENCY"},
	{context.Canceled, "CANCELED"},
	{context.DeadlineExceeded, "CANCELED"},
}

// Code maps an error returned by the ledger to its taxonomy string. Nil maps
// to the empty string and foreign errors to "UNKNOWN".
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "UNKNOWN"
}

var gateErrors = map[risk.Reason]error{
	risk.ReasonDailyLossLimit:   ErrDailyLossLimitBreached,
	risk.ReasonStrategyNotFound: ErrStrategyNotFound,
	risk.ReasonMaxPositions:     ErrMaxPositionsReached,
	risk.ReasonStrategyInactive: ErrStrategyInactive,
	risk.ReasonMaxDrawdown:      ErrMaxDrawdown,
	risk.ReasonNoTradeWindow:    ErrNoTradeWindow,
}

func denied(d risk.Decision) error {
	sentinel, ok := gateErrors[d.Reason]
	if !ok {
		sentinel = ErrInternalConsistency
	}
	return fmt.Errorf("%w: %s", sentinel, d.Detail)
}
