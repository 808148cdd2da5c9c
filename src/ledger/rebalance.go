package ledger

import (
	"math"

	"github.com/sirupsen/logrus"
)

const (
	minRebalanceScore     = 0.5
	maxRebalanceScore     = 2.0
	neutralRebalanceScore = 1.0
	rebalanceRiskPct      = 0.01
)

// Rebalance redistributes total capital by each strategy's score, the win
// rate plus realized return on allocation, clamped to [0.5, 2]. Capital
// already committed to open positions is not touched. It returns the new
// allocation per strategy.
func (l *Ledger) Rebalance() (map[string]float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return nil, err
	}
	if len(l.strategies) == 0 {
		return map[string]float64{}, nil
	}

	scores := make(map[string]float64, len(l.strategies))
	sum := 0.0
	for name, s := range l.strategies {
		score := neutralRebalanceScore
		if s.TotalTrades > 0 {
			winRate := float64(s.WinningTrades) / float64(s.TotalTrades)
			pnlRatio := 0.0
			if s.AllocatedCapital > 0 {
				pnlRatio = s.RealizedPnL / s.AllocatedCapital
			}
			score = math.Max(minRebalanceScore, math.Min(winRate+pnlRatio, maxRebalanceScore))
		}
		scores[name] = score
		sum += score
	}

	out := make(map[string]float64, len(scores))
	for _, name := range l.strategyOrder {
		s := l.strategies[name]
		old := s.AllocatedCapital

		s.AllocatedCapital = l.totalCapital * scores[name] / sum
		s.MaxRiskPerTrade = s.AllocatedCapital * rebalanceRiskPct
		out[name] = s.AllocatedCapital

		l.logger.WithFields(logrus.Fields{
			"strategy":       name,
			"score":          scores[name],
			"old_allocation": old,
			"new_allocation": s.AllocatedCapital,
			"allocation_pct": scores[name] / sum * 100,
		}).Info("strategy rebalanced")
	}

	if err := l.verify("rebalance"); err != nil {
		return nil, err
	}
	return out, nil
}
