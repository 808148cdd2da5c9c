// Package simulate runs an offline trading session against an in-memory
// ledger and prints the reports.
package simulate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"portfolioexecutor/src/allocator"
	"portfolioexecutor/src/events"
	"portfolioexecutor/src/execution"
	"portfolioexecutor/src/ledger"
	"portfolioexecutor/src/marketdata"
	"portfolioexecutor/src/utils"
)

type Simulation struct {
	Log  *logrus.Entry
	Out  io.Writer
	Seed uint64
	// Now anchors the session clock; it is truncated to the minute.
	Now func() time.Time
}

var demoStrategies = ledger.StrategyList{
	{Name: "ema_crossover", AllocationPct: 30, MaxPositions: 2, RiskPerTradePct: 1},
	{Name: "rsi_reversal", AllocationPct: 25, MaxPositions: 3, RiskPerTradePct: 1},
	{Name: "bollinger_breakout", AllocationPct: 25, MaxPositions: 2, RiskPerTradePct: 1},
	{Name: "macd_momentum", AllocationPct: 20, MaxPositions: 2, RiskPerTradePct: 1},
}

var demoSignals = []ledger.Signal{
	{Strategy: "ema_crossover", Symbol: "NIFTY", ReferencePrice: 23000, StopLoss: 22800, Target: 23400},
	{Strategy: "rsi_reversal", Symbol: "BANKNIFTY", ReferencePrice: 45000, StopLoss: 44500, Target: 45800},
	{Strategy: "bollinger_breakout", Symbol: "FINNIFTY", ReferencePrice: 21500, StopLoss: 21300, Target: 21900},
}

var demoVolumes = map[string]float64{"NIFTY": 1_000_000, "BANKNIFTY": 250_000, "FINNIFTY": 400_000}

func (s *Simulation) Start(ctx context.Context) error {
	if s.Log == nil {
		s.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	clock := utils.ResetTime(s.Now(), "minute")
	now := func() time.Time { return clock }

	dispatcher := events.NewDispatcher(s.Log, events.Config{QueueSize: 256, SinkTimeout: time.Second}, events.NewLogSink(s.Log))
	var g errgroup.Group
	g.Go(func() error { return dispatcher.Run(ctx) })

	err := s.run(ctx, dispatcher, now, func(d time.Duration) { clock = clock.Add(d) })

	_ = dispatcher.Close()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func (s *Simulation) run(ctx context.Context, pub events.Publisher, now func() time.Time, advance func(time.Duration)) error {
	led, err := ledger.New(ledger.Config{
		TotalCapital:    500000,
		MaxDailyLoss:    10000,
		TradingTimezone: "Asia/Kolkata",
		Strategies:      demoStrategies,
		MarketBandPct:   0.5,
		TwapBandPct:     2,
		VwapBandPct:     5,
		Volatility:      1.5,
		Urgency:         string(execution.UrgencyNormal),
		NoiseSeed:       s.Seed,
	},
		ledger.WithLogger(s.Log),
		ledger.WithClock(now),
		ledger.WithPublisher(pub),
		ledger.WithVolumeSource(marketdata.NewStaticVolumeSource(demoVolumes)),
	)
	if err != nil {
		return err
	}

	fmt.Fprintln(s.Out, led.Report())

	fmt.Fprintln(s.Out, "SIMULATING TRADING ACTIVITY")
	for _, sig := range demoSignals {
		pos, err := led.Open(ctx, sig)
		if err != nil {
			fmt.Fprintf(s.Out, "  %s %s refused: %s\n", sig.Strategy, sig.Symbol, ledger.Code(err))
			continue
		}
		fmt.Fprintf(s.Out, "  opened %s x%d @ %.2f via %s\n", pos.ID, pos.Quantity, pos.EntryPrice, pos.Algorithm)
		advance(time.Minute)
	}

	for _, tick := range []marketdata.Tick{{Symbol: "NIFTY", Price: 23200}, {Symbol: "BANKNIFTY", Price: 45300}, {Symbol: "FINNIFTY", Price: 21450}} {
		closed, err := led.MarkToMarket(tick.Symbol, tick.Price)
		if err != nil {
			return err
		}
		for _, c := range closed {
			fmt.Fprintf(s.Out, "  %s triggered for %s\n", c.ExitReason, c.ID)
		}
	}
	advance(time.Minute)
	fmt.Fprintln(s.Out, led.Report())

	if open := led.OpenPositions(); len(open) > 0 {
		c, err := led.Close(open[0].ID, open[0].CurrentPrice, ledger.ExitManual)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "  closed %s manually with P&L %.2f\n", c.ID, c.RealizedPnL)
	}
	fmt.Fprintln(s.Out, led.Report())

	s.printAllocations()
	return nil
}

func (s *Simulation) printAllocations() {
	winRates := []float64{65, 58, 62, 60}
	perf := map[string]allocator.Performance{}
	vols := map[string]float64{}
	volatility := []float64{0.15, 0.20, 0.18, 0.16}
	returns := []float64{5, 3, 4, 3.5}
	sharpe := []float64{1.5, 1.2, 1.4, 1.3}
	for i, st := range demoStrategies {
		wr := winRates[i]
		perf[st.Name] = allocator.Performance{WinRate: &wr, AvgReturn: returns[i], SharpeRatio: sharpe[i]}
		vols[st.Name] = volatility[i]
	}

	fmt.Fprintln(s.Out, "CAPITAL ALLOCATION OPTIMIZATION")
	WriteAllocations(s.Out, "PERFORMANCE-BASED ALLOCATION", 500000, allocator.PerformanceBased(perf))
	WriteAllocations(s.Out, "RISK PARITY ALLOCATION", 500000, allocator.RiskParity(vols))

	kelly := allocator.KellyCriterion(60, 1500, 1000)
	fmt.Fprintf(s.Out, "KELLY CRITERION: %.1f%% per trade (%.2f of 500000)\n", kelly, 500000*kelly/100)
}
