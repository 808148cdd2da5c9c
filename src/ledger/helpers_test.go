package ledger

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/events"
	"portfolioexecutor/src/execution"
)

// tuesdayMorning is 2025-03-04 10:00 New York, inside the US session.
var tuesdayMorning = time.Date(2025, time.March, 4, 15, 0, 0, 0, time.UTC)

// exactExecutor fills everything at the reference price times factor.
type exactExecutor struct {
	factor float64
}

func (e exactExecutor) Execute(_ context.Context, req execution.Request) (execution.Fill, error) {
	factor := e.factor
	if factor == 0 {
		factor = 1
	}
	price := req.ReferencePrice * factor
	return &execution.MarketFill{FillPlan: execution.FillPlan{
		Algorithm:         req.Algorithm,
		Symbol:            req.Symbol,
		Side:              req.Side,
		ReferencePrice:    req.ReferencePrice,
		TotalQuantity:     req.Quantity,
		FilledQuantity:    req.Quantity,
		Slices:            []execution.Slice{{Index: 1, Quantity: req.Quantity, Price: price}},
		AvgExecutionPrice: price,
		TotalSlippage:     math.Abs(price-req.ReferencePrice) * float64(req.Quantity),
	}}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) blocked() []events.TradeBlocked {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.TradeBlocked
	for _, ev := range p.events {
		if b, ok := ev.(events.TradeBlocked); ok {
			out = append(out, b)
		}
	}
	return out
}

func (p *recordingPublisher) count(kind events.Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, ev := range p.events {
		if ev.Kind() == kind {
			n++
		}
	}
	return n
}

type staticVolumes map[string][]float64

func (s staticVolumes) Volumes(symbol string) ([]float64, error) { return s[symbol], nil }

func (s staticVolumes) AverageVolume(symbol string) (float64, bool) {
	v := s[symbol]
	if len(v) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v)), true
}

func quietLogger() *logrus.Entry {
	logger, _ := logrustest.NewNullLogger()
	return logrus.NewEntry(logger)
}

type fixture struct {
	ledger    *Ledger
	publisher *recordingPublisher
	hook      *logrustest.Hook
	now       *time.Time
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()

	logger, hook := logrustest.NewNullLogger()
	now := tuesdayMorning
	f := &fixture{publisher: &recordingPublisher{}, hook: hook, now: &now}

	base := []Option{
		WithLogger(logrus.NewEntry(logger)),
		WithClock(func() time.Time { return *f.now }),
		WithPublisher(f.publisher),
		WithExecutor(exactExecutor{}),
	}
	l, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	f.ledger = l
	return f
}

// conserved checks available + committed == total + realized from the
// public read side.
func conserved(t *testing.T, l *Ledger) {
	t.Helper()

	s := l.Summary()
	committed := 0.0
	for _, p := range l.OpenPositions() {
		committed += p.EntryPrice * float64(p.Quantity)
	}
	realized := 0.0
	for _, c := range l.ClosedPositions() {
		realized += c.RealizedPnL
	}

	tol := math.Max(1e-9*s.TotalCapital, 1e-6)
	require.InDelta(t, s.TotalCapital+realized, s.AvailableCapital+committed, tol)

	allocated := 0.0
	for _, st := range s.Strategies {
		allocated += st.AllocatedCapital
	}
	require.LessOrEqual(t, allocated, s.TotalCapital+tol)
}

func signal(strategy, symbol string, entry, stop, target float64) Signal {
	return Signal{
		Strategy:       strategy,
		Symbol:         symbol,
		Side:           SideLong,
		ReferencePrice: entry,
		StopLoss:       stop,
		Target:         target,
	}
}
