// Package ledger owns the portfolio: capital, strategy allocations and the
// position lifecycle. All mutations go through one mutex and every mutation
// re-checks the capital conservation and allocation invariants.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"portfolioexecutor/src/events"
	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/risk"
)

// Executor fills parent orders. *execution.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) (execution.Fill, error)
}

// VolumeSource supplies the volume history used to choose and shape the
// execution algorithm. Volumes are ordered oldest first.
type VolumeSource interface {
	Volumes(symbol string) ([]float64, error)
	AverageVolume(symbol string) (float64, bool)
}

type noVolumes struct{}

func (noVolumes) Volumes(string) ([]float64, error) { return nil, nil }
func (noVolumes) AverageVolume(string) (float64, bool) { return 0, false }

type Ledger struct {
	mu sync.Mutex

	logger    *logrus.Entry
	gate      *risk.Gate
	executor  Executor
	optimizer *execution.Optimizer
	volumes   VolumeSource
	publisher events.Publisher
	stats     *execution.Stats
	quality   *execution.QualityTracker
	now       func() time.Time

	volatility    float64
	urgency       execution.Urgency
	sessionSizing bool
	sessionCfg    risk.SessionSizeConfig

	totalCapital     float64
	availableCapital float64
	realizedPnL      float64
	strategies       map[string]*StrategyAllocation
	strategyOrder    []string
	open             map[string]*Position
	closed           []ClosedPosition
	ids              map[string]struct{}

	fault error
}

type Option func(*Ledger)

func WithLogger(logger *logrus.Entry) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock sets the time source for position timestamps, the trading day
// and the no-trade window.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithExecutor(executor Executor) Option {
	return func(l *Ledger) { l.executor = executor }
}

func WithVolumeSource(volumes VolumeSource) Option {
	return func(l *Ledger) { l.volumes = volumes }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(l *Ledger) { l.publisher = publisher }
}

// New builds a ledger and registers the configured strategies in order.
func New(cfg Config, opts ...Option) (*Ledger, error) {
	if cfg.TotalCapital <= 0 {
		return nil, fmt.Errorf("%w: total capital must be positive, got %v", ErrAllocationOutOfRange, cfg.TotalCapital)
	}
	tradingDay, err := risk.LoadTradingDay(cfg.TradingTimezone)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		optimizer: execution.NewOptimizer(execution.Bands{
			MarketPct: cfg.MarketBandPct,
			TwapPct:   cfg.TwapBandPct,
			VwapPct:   cfg.VwapBandPct,
		}),
		stats:         &execution.Stats{},
		quality:       &execution.QualityTracker{},
		now:           time.Now,
		volatility:    cfg.Volatility,
		urgency:       parseUrgency(cfg.Urgency),
		sessionSizing: cfg.SessionSizing,
		sessionCfg:    risk.DefaultSessionSizeConfig(),

		totalCapital:     cfg.TotalCapital,
		availableCapital: cfg.TotalCapital,
		strategies:       make(map[string]*StrategyAllocation),
		open:             make(map[string]*Position),
		ids:              make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.logger == nil {
		l.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	l.logger = l.logger.WithField("component", "Ledger")
	if l.volumes == nil {
		l.volumes = noVolumes{}
	}
	if l.publisher == nil {
		l.publisher = events.Discard{}
	}
	if l.executor == nil {
		seed := cfg.NoiseSeed
		if seed == 0 {
			seed = uint64(time.Now().UnixNano())
		}
		l.executor = execution.NewEngine(l.logger, execution.NewGaussianNoise(seed)).WithClock(l.now)
	}

	l.gate = risk.NewGate(l.logger, risk.Limits{
		MaxDailyLoss:         cfg.MaxDailyLoss,
		MaxDrawdownPct:       cfg.MaxDrawdownPct,
		EnforceNoTradeWindow: cfg.EnforceNoTradeWindow,
		TradingDay:           tradingDay,
	})
	l.gate.SetClock(l.now)

	for _, s := range cfg.Strategies {
		if err := l.RegisterStrategy(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parseUrgency(s string) execution.Urgency {
	switch u := execution.Urgency(s); u {
	case execution.UrgencyLow, execution.UrgencyHigh:
		return u
	}
	return execution.UrgencyNormal
}

// usable refuses mutations once an invariant has been broken.
func (l *Ledger) usable() error {
	if l.fault != nil {
		return fmt.Errorf("%w: %v", ErrLedgerFaulted, l.fault)
	}
	return nil
}

// RegisterStrategy carves AllocationPct of total capital out for a new
// strategy.
func (l *Ledger) RegisterStrategy(cfg StrategyConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return err
	}
	if cfg.Name == "" {
		return fmt.Errorf("%w: strategy name is empty", ErrInvalidSignal)
	}
	if _, ok := l.strategies[cfg.Name]; ok {
		return fmt.Errorf("%w: %q", ErrStrategyExists, cfg.Name)
	}
	if !(cfg.AllocationPct > 0 && cfg.AllocationPct <= 100) {
		return fmt.Errorf("%w: %q allocation %.4f%% not in (0,100]", ErrAllocationOutOfRange, cfg.Name, cfg.AllocationPct)
	}
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = defaultMaxPositions
	}
	if cfg.RiskPerTradePct <= 0 {
		cfg.RiskPerTradePct = defaultRiskPerTradePct
	}

	allocated := l.totalCapital * cfg.AllocationPct / 100
	if l.allocatedTotal()+allocated > l.totalCapital+l.tolerance() {
		return fmt.Errorf("%w: %q would take allocations to %.2f of %.2f",
			ErrAllocationOutOfRange, cfg.Name, l.allocatedTotal()+allocated, l.totalCapital)
	}

	l.strategies[cfg.Name] = &StrategyAllocation{
		Name:             cfg.Name,
		AllocatedCapital: allocated,
		MaxRiskPerTrade:  allocated * cfg.RiskPerTradePct / 100,
		MaxPositions:     cfg.MaxPositions,
		Active:           true,
	}
	l.strategyOrder = append(l.strategyOrder, cfg.Name)

	l.logger.WithFields(logrus.Fields{
		"strategy":       cfg.Name,
		"allocated":      allocated,
		"allocation_pct": cfg.AllocationPct,
		"max_positions":  cfg.MaxPositions,
	}).Info("strategy registered")

	return l.verify("register")
}

func (l *Ledger) SetStrategyActive(name string, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.usable(); err != nil {
		return err
	}
	s, ok := l.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrStrategyNotFound, name)
	}
	s.Active = active
	l.logger.WithFields(logrus.Fields{"strategy": name, "active": active}).Info("strategy state changed")
	return nil
}

func (l *Ledger) allocatedTotal() float64 {
	total := 0.0
	for _, s := range l.strategies {
		total += s.AllocatedCapital
	}
	return total
}

// accountView exposes ledger state to the risk gate. Callers hold l.mu.
type accountView struct{ l *Ledger }

func (v accountView) TotalCapital() float64 { return v.l.totalCapital }

func (v accountView) Strategy(name string) (risk.StrategyView, bool) {
	s, ok := v.l.strategies[name]
	if !ok {
		return risk.StrategyView{}, false
	}
	return toView(s), true
}

func toView(s *StrategyAllocation) risk.StrategyView {
	return risk.StrategyView{
		Name:             s.Name,
		AllocatedCapital: s.AllocatedCapital,
		MaxRiskPerTrade:  s.MaxRiskPerTrade,
		MaxPositions:     s.MaxPositions,
		CurrentPositions: s.CurrentPositions,
		Active:           s.Active,
	}
}

// sortedOpen returns open positions ordered by open time, then ID.
func (l *Ledger) sortedOpen() []*Position {
	out := make([]*Position, 0, len(l.open))
	for _, p := range l.open {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
