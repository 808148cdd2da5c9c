package execution

import "sync"

type StatsSnapshot struct {
	TotalExecutions     int               `json:"total_executions"`
	TotalQuantity       int64             `json:"total_quantity"`
	TotalSlippage       float64           `json:"total_slippage"`
	AvgSlippagePerOrder float64           `json:"avg_slippage_per_order"`
	DegradedExecutions  int               `json:"degraded_executions"`
	ByAlgorithm         map[Algorithm]int `json:"by_algorithm"`
}

// Stats keeps running totals over executed plans.
type Stats struct {
	mu          sync.Mutex
	executions  int
	quantity    int64
	slippage    float64
	degraded    int
	byAlgorithm map[Algorithm]int
}

func (s *Stats) Record(plan *FillPlan) {
	if plan == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byAlgorithm == nil {
		s.byAlgorithm = map[Algorithm]int{}
	}
	s.executions++
	s.quantity += plan.FilledQuantity
	s.slippage += plan.TotalSlippage
	s.byAlgorithm[plan.Algorithm]++
	if plan.Degraded {
		s.degraded++
	}
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := StatsSnapshot{
		TotalExecutions:    s.executions,
		TotalQuantity:      s.quantity,
		TotalSlippage:      s.slippage,
		DegradedExecutions: s.degraded,
		ByAlgorithm:        make(map[Algorithm]int, len(s.byAlgorithm)),
	}
	if s.executions > 0 {
		out.AvgSlippagePerOrder = s.slippage / float64(s.executions)
	}
	for k, v := range s.byAlgorithm {
		out.ByAlgorithm[k] = v
	}
	return out
}
