package handler

import (
	"net/http"

	logger "github.com/sirupsen/logrus"

	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/ledger"
	"portfolioexecutor/src/risk"
)

type portfolioReader interface {
	Summary() ledger.Summary
	RiskMetrics() ledger.RiskMetrics
	DailySummary() risk.DailySummary
	ExecutionStats() execution.StatsSnapshot
	ExecutionSuggestions() (execution.Suggestions, bool)
	Report() string
}

type rebalancer interface {
	Rebalance() (map[string]float64, error)
}

type riskResponse struct {
	Metrics     ledger.RiskMetrics      `json:"metrics"`
	Daily       risk.DailySummary       `json:"daily"`
	Execution   execution.StatsSnapshot `json:"execution"`
	Suggestions *execution.Suggestions  `json:"suggestions,omitempty"`
}

func SummaryHandler(p portfolioReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Summary())
	}
}

func RiskHandler(p portfolioReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := riskResponse{
			Metrics:   p.RiskMetrics(),
			Daily:     p.DailySummary(),
			Execution: p.ExecutionStats(),
		}
		if s, ok := p.ExecutionSuggestions(); ok {
			resp.Suggestions = &s
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ReportHandler serves the plain text portfolio report.
func ReportHandler(p portfolioReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(p.Report())); err != nil {
			logger.WithError(err).Error("failed to write report")
		}
	}
}

// RebalanceHandler reallocates capital by strategy performance and returns
// the new allocations.
func RebalanceHandler(p rebalancer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allocations, err := p.Rebalance()
		if err != nil {
			logger.WithError(err).Warn("rebalance refused")
			writeLedgerError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"allocations": allocations})
	}
}
