package execution

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Quality grades a single execution against its reference price.
type Quality struct {
	Algorithm   Algorithm `json:"algorithm"`
	Slippage    float64   `json:"slippage"`
	SlippagePct float64   `json:"slippage_pct"`
	TotalCost   float64   `json:"total_cost"`
	Grade       string    `json:"grade"`
	Score       int       `json:"score"`
}

var qualityGrades = []struct {
	below float64
	grade string
	score int
}{
	{0.05, "Excellent", 100},
	{0.1, "Good", 80},
	{0.2, "Fair", 60},
	{0.5, "Poor", 40},
}

func AnalyzeQuality(referencePrice, executionPrice float64, quantity int64, alg Algorithm) Quality {
	slippage := math.Abs(executionPrice - referencePrice)
	slippagePct := 0.0
	if referencePrice > 0 {
		slippagePct = slippage / referencePrice * 100
	}

	q := Quality{
		Algorithm:   alg,
		Slippage:    slippage,
		SlippagePct: round(slippagePct, 4),
		TotalCost:   slippage * float64(quantity),
		Grade:       "Very Poor",
		Score:       20,
	}
	for _, g := range qualityGrades {
		if slippagePct < g.below {
			q.Grade, q.Score = g.grade, g.score
			break
		}
	}
	return q
}

type Suggestions struct {
	AvgSlippagePct   float64   `json:"avg_slippage_pct"`
	WorstSlippagePct float64   `json:"worst_slippage_pct"`
	BestAlgorithm    Algorithm `json:"best_algorithm"`
	Messages         []string  `json:"messages"`
}

// QualityTracker accumulates execution grades.
type QualityTracker struct {
	mu      sync.Mutex
	history []Quality
}

func (t *QualityTracker) Record(q Quality) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.history = append(t.history, q)
}

func (t *QualityTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// Suggestions returns false when nothing has been recorded yet.
func (t *QualityTracker) Suggestions() (Suggestions, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.history) == 0 {
		return Suggestions{}, false
	}

	sum, worst := 0.0, 0.0
	scores := map[Algorithm][]int{}
	for _, q := range t.history {
		sum += q.SlippagePct
		worst = math.Max(worst, q.SlippagePct)
		scores[q.Algorithm] = append(scores[q.Algorithm], q.Score)
	}

	algs := make([]Algorithm, 0, len(scores))
	for a := range scores {
		algs = append(algs, a)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })

	var best Algorithm
	bestMean := -1.0
	for _, a := range algs {
		total := 0
		for _, s := range scores[a] {
			total += s
		}
		mean := float64(total) / float64(len(scores[a]))
		if mean > bestMean {
			best, bestMean = a, mean
		}
	}

	out := Suggestions{
		AvgSlippagePct:   round(sum/float64(len(t.history)), 4),
		WorstSlippagePct: round(worst, 4),
		BestAlgorithm:    best,
	}
	if out.AvgSlippagePct > 0.2 {
		out.Messages = append(out.Messages, "Consider using TWAP/VWAP for better execution")
	}
	if out.WorstSlippagePct > 0.5 {
		out.Messages = append(out.Messages, "Avoid market orders during volatile periods")
	}
	out.Messages = append(out.Messages, fmt.Sprintf("Best performing strategy: %s", best))

	return out, true
}
