// Package allocator maps a capital pool and per-strategy inputs to
// percentage allocations. Every function here is pure.
package allocator

import "math"

const (
	kellyFraction = 0.5
	kellyCapPct   = 25.0
	minPerfScore  = 0.1

	defaultWinRate = 50.0
)

// Performance is the historical track record used by PerformanceBased.
// A nil WinRate is treated as a coin flip.
type Performance struct {
	WinRate     *float64
	AvgReturn   float64
	SharpeRatio float64
}

// EqualWeight gives each of n strategies 100/n percent.
func EqualWeight(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	pct := 100 / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = pct
	}
	return out
}

// PerformanceBased scores every strategy on win rate, average return and
// sharpe ratio and normalizes the scores to 100 percent.
func PerformanceBased(perf map[string]Performance) map[string]float64 {
	scores := make(map[string]float64, len(perf))
	for name, p := range perf {
		scores[name] = PerformanceScore(p)
	}
	return normalize(scores)
}

// PerformanceScore is the weighted 0..1 score behind PerformanceBased,
// floored at 0.1 so no strategy is starved completely.
func PerformanceScore(p Performance) float64 {
	winRate := defaultWinRate
	if p.WinRate != nil {
		winRate = *p.WinRate
	}

	winRateScore := winRate / 100
	returnScore := clamp((p.AvgReturn+10)/20, 0, 1)
	sharpeScore := clamp((p.SharpeRatio+1)/3, 0, 1)

	score := 0.4*winRateScore + 0.3*returnScore + 0.3*sharpeScore
	return math.Max(minPerfScore, score)
}

// RiskParity allocates inversely to volatility. A non-positive volatility
// gets a neutral inverse weight of 1.
func RiskParity(volatilities map[string]float64) map[string]float64 {
	inv := make(map[string]float64, len(volatilities))
	for name, vol := range volatilities {
		if vol > 0 {
			inv[name] = 1 / vol
		} else {
			inv[name] = 1
		}
	}
	return normalize(inv)
}

// KellyCriterion returns the half-Kelly bet size in percent, clamped to
// [0, 25]. winRate is a percentage.
func KellyCriterion(winRate, avgWin, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 0
	}

	b := avgWin / avgLoss
	if b == 0 {
		return 0
	}
	p := winRate / 100
	kelly := (p*b - (1 - p)) / b

	return clamp(kelly*kellyFraction*100, 0, kellyCapPct)
}

// ToCapital converts percentage allocations into capital amounts.
func ToCapital(totalCapital float64, pct map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(pct))
	for name, p := range pct {
		out[name] = totalCapital * p / 100
	}
	return out
}

func normalize(weights map[string]float64) map[string]float64 {
	total := 0.0
	for _, w := range weights {
		total += w
	}

	out := make(map[string]float64, len(weights))
	if total <= 0 {
		return out
	}
	for name, w := range weights {
		out[name] = w / total * 100
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
