package ledger

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	relativeTolerance = 1e-9
	absoluteTolerance = 1e-6
)

func (l *Ledger) tolerance() float64 {
	return math.Max(relativeTolerance*l.totalCapital, absoluteTolerance)
}

// verify checks the accounting invariants after a mutation. A violation
// latches the ledger into the faulted state.
func (l *Ledger) verify(op string) error {
	detail := l.violation()
	if detail == "" {
		return nil
	}

	err := &InvariantError{Op: op, Detail: detail}
	l.fault = err
	l.logger.WithFields(logrus.Fields{
		"op":                op,
		"available_capital": l.availableCapital,
		"realized_pnl":      l.realizedPnL,
		"open_positions":    len(l.open),
	}).WithError(err).Error("ledger invariant violated, refusing further mutations")
	return err
}

func (l *Ledger) violation() string {
	tol := l.tolerance()

	committed := 0.0
	perStrategy := make(map[string]int, len(l.strategies))
	for _, p := range l.open {
		committed += p.cost()
		perStrategy[p.Strategy]++
	}

	lhs := l.availableCapital + committed
	rhs := l.totalCapital + l.realizedPnL
	if math.IsNaN(lhs) || math.Abs(lhs-rhs) > tol {
		return fmt.Sprintf("capital not conserved: available %.6f + committed %.6f != total %.6f + realized %.6f",
			l.availableCapital, committed, l.totalCapital, l.realizedPnL)
	}

	if allocated := l.allocatedTotal(); allocated > l.totalCapital+tol {
		return fmt.Sprintf("allocations %.6f exceed total capital %.6f", allocated, l.totalCapital)
	}

	for name, s := range l.strategies {
		if s.AllocatedCapital < 0 {
			return fmt.Sprintf("strategy %q has negative allocation %.6f", name, s.AllocatedCapital)
		}
		if s.CurrentPositions != perStrategy[name] {
			return fmt.Sprintf("strategy %q counts %d open positions, ledger holds %d", name, s.CurrentPositions, perStrategy[name])
		}
		if s.CurrentPositions > s.MaxPositions {
			return fmt.Sprintf("strategy %q holds %d positions, max %d", name, s.CurrentPositions, s.MaxPositions)
		}
	}
	return ""
}
