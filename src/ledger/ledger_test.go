package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolioexecutor/src/events"
	"portfolioexecutor/src/execution"
)

func TestRegisterStrategyAllocations(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 10000})
	l := f.ledger

	for _, s := range []StrategyConfig{
		{Name: "ema", AllocationPct: 30},
		{Name: "rsi", AllocationPct: 25},
		{Name: "macd", AllocationPct: 25},
		{Name: "bb", AllocationPct: 20},
	} {
		require.NoError(t, l.RegisterStrategy(s))
	}

	want := map[string]float64{"ema": 150000, "rsi": 125000, "macd": 125000, "bb": 100000}
	for name, capital := range want {
		s, ok := l.Strategy(name)
		require.True(t, ok, name)
		assert.Equal(t, capital, s.AllocatedCapital, name)
		assert.Equal(t, capital*0.01, s.MaxRiskPerTrade, name)
		assert.Equal(t, 3, s.MaxPositions, name)
		assert.True(t, s.Active, name)
	}

	err := l.RegisterStrategy(StrategyConfig{Name: "extra", AllocationPct: 1})
	require.ErrorIs(t, err, ErrAllocationOutOfRange)
	_, ok := l.Strategy("extra")
	assert.False(t, ok)

	conserved(t, l)
}

func TestRegisterStrategyRejects(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 100000})
	l := f.ledger

	tests := []struct {
		name string
		cfg  StrategyConfig
		want error
	}{
		{"zero pct", StrategyConfig{Name: "a", AllocationPct: 0}, ErrAllocationOutOfRange},
		{"negative pct", StrategyConfig{Name: "a", AllocationPct: -5}, ErrAllocationOutOfRange},
		{"above hundred", StrategyConfig{Name: "a", AllocationPct: 100.5}, ErrAllocationOutOfRange},
		{"nan pct", StrategyConfig{Name: "a", AllocationPct: math.NaN()}, ErrAllocationOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, l.RegisterStrategy(tt.cfg), tt.want)
		})
	}

	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "a", AllocationPct: 100}))
	require.ErrorIs(t, l.RegisterStrategy(StrategyConfig{Name: "a", AllocationPct: 10}), ErrStrategyExists)
}

func TestNewRegistersConfiguredStrategies(t *testing.T) {
	_, err := New(Config{TotalCapital: 0})
	require.ErrorIs(t, err, ErrAllocationOutOfRange)

	_, err = New(Config{TotalCapital: 1000, Strategies: StrategyList{{Name: "a", AllocationPct: 60}, {Name: "b", AllocationPct: 60}}})
	require.ErrorIs(t, err, ErrAllocationOutOfRange)

	l, err := New(Config{TotalCapital: 1000, Strategies: StrategyList{{Name: "a", AllocationPct: 60, MaxPositions: 1, RiskPerTradePct: 2}}})
	require.NoError(t, err)
	s, ok := l.Strategy("a")
	require.True(t, ok)
	assert.Equal(t, 600.0, s.AllocatedCapital)
	assert.Equal(t, 12.0, s.MaxRiskPerTrade)
	assert.Equal(t, 1, s.MaxPositions)
}

func TestOpenAndTargetCloseAtTargetPrice(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 2_300_000, MaxDailyLoss: 50000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 50}))

	pos, err := l.Open(context.Background(), signal("ema", "NIFTY", 23000, 22800, 23400))
	require.NoError(t, err)
	assert.Equal(t, int64(50), pos.Quantity)
	assert.Equal(t, 23000.0, pos.EntryPrice)
	assert.Equal(t, execution.AlgorithmMarket, pos.Algorithm)
	assert.Equal(t, fmt.Sprintf("ema_NIFTY_%d", tuesdayMorning.UnixNano()), pos.ID)
	assert.Equal(t, 2_300_000-23000*50.0, l.AvailableCapital())
	conserved(t, l)

	closed, err := l.MarkToMarket("NIFTY", 23450)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, ExitTarget, closed[0].ExitReason)
	assert.Equal(t, 23400.0, closed[0].ExitPrice)
	assert.Equal(t, 20000.0, closed[0].RealizedPnL)
	assert.Empty(t, l.OpenPositions())
	assert.Equal(t, 2_320_000.0, l.AvailableCapital())

	s, _ := l.Strategy("ema")
	assert.Equal(t, 0, s.CurrentPositions)
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.Equal(t, 20000.0, s.RealizedPnL)
	assert.Equal(t, 20000.0, l.DailySummary().RealizedPnL)
	conserved(t, l)

	assert.Equal(t, 1, f.publisher.count(events.KindPositionOpened))
	assert.Equal(t, 1, f.publisher.count(events.KindPositionClosed))
}

func TestOpenZeroStopDistance(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 10000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	_, err := l.Open(context.Background(), signal("ema", "NIFTY", 23000, 23000, 23400))
	require.ErrorIs(t, err, ErrInvalidStopLoss)
	assert.Equal(t, "INVALID_STOP_LOSS", Code(err))

	assert.Equal(t, 500000.0, l.AvailableCapital())
	assert.Empty(t, l.OpenPositions())
	s, _ := l.Strategy("ema")
	assert.Equal(t, 0, s.CurrentPositions)
	assert.Equal(t, 0, s.TotalTrades)

	blocked := f.publisher.blocked()
	require.Len(t, blocked, 1)
	assert.Equal(t, "INVALID_STOP_LOSS", blocked[0].Reason)
	assert.Equal(t, "ema", blocked[0].Strategy)
}

func TestOpenRejections(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 10000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "one", AllocationPct: 30, MaxPositions: 1}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "paused", AllocationPct: 30}))
	require.NoError(t, l.SetStrategyActive("paused", false))
	require.ErrorIs(t, l.SetStrategyActive("missing", true), ErrStrategyNotFound)

	_, err := l.Open(context.Background(), signal("one", "NIFTY", 100, 98, 110))
	require.NoError(t, err)

	short := signal("one", "NIFTY", 100, 102, 90)
	short.Side = SideShort

	tests := []struct {
		name string
		sig  Signal
		want error
		code string
	}{
		{"max positions", signal("one", "NIFTY", 100, 98, 110), ErrMaxPositionsReached, "MAX_POSITIONS_REACHED"},
		{"inactive", signal("paused", "NIFTY", 100, 98, 110), ErrStrategyInactive, "STRATEGY_INACTIVE"},
		{"unknown strategy", signal("ghost", "NIFTY", 100, 98, 110), ErrStrategyNotFound, "STRATEGY_NOT_FOUND"},
		{"short side", short, ErrUnsupportedSide, "UNSUPPORTED_SIDE"},
		{"inactive wins over sizing", signal("paused", "NIFTY", 1e9, 1, 2e9), ErrStrategyInactive, "STRATEGY_INACTIVE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.AvailableCapital()
			_, err := l.Open(context.Background(), tt.sig)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, Code(err))
			assert.Equal(t, before, l.AvailableCapital())
		})
	}

	require.NoError(t, l.SetStrategyActive("paused", true))
	_, err = l.Open(context.Background(), signal("paused", "NIFTY", 1e9, 1, 2e9))
	require.ErrorIs(t, err, ErrInsufficientCapital)

	assert.Len(t, l.OpenPositions(), 1)
	assert.Len(t, f.publisher.blocked(), len(tests)+1)
	conserved(t, l)
}

func TestOpenRejectsLevelsOnTheWrongSideOfEntry(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 10000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	tests := []struct {
		name string
		sig  Signal
		want error
		code string
	}{
		{"stop above entry", signal("ema", "NIFTY", 100, 105, 110), ErrInvalidStopLoss, "INVALID_STOP_LOSS"},
		{"target below entry", signal("ema", "NIFTY", 100, 98, 90), ErrInvalidSignal, "INVALID_SIGNAL"},
		{"target at entry", signal("ema", "NIFTY", 100, 98, 100), ErrInvalidSignal, "INVALID_SIGNAL"},
		{"target missing", signal("ema", "NIFTY", 100, 98, 0), ErrInvalidSignal, "INVALID_SIGNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Open(context.Background(), tt.sig)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, Code(err))
		})
	}

	assert.Equal(t, 500000.0, l.AvailableCapital())
	assert.Empty(t, l.OpenPositions())
	assert.Len(t, f.publisher.blocked(), len(tests))

	// nothing was booked, so a tick between the bad levels closes nothing
	closed, err := l.MarkToMarket("NIFTY", 100.5)
	require.NoError(t, err)
	assert.Empty(t, closed)
	assert.Zero(t, l.DailySummary().RealizedPnL)
}

func TestOpenFailsWhenFillCostsMoreThanAvailable(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 100000}, WithExecutor(exactExecutor{factor: 2}))
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "all", AllocationPct: 100}))

	_, err := l.Open(context.Background(), signal("all", "NIFTY", 100, 99, 110))
	require.ErrorIs(t, err, ErrInsufficientCapital)
	assert.Equal(t, 100000.0, l.AvailableCapital())
	assert.Empty(t, l.OpenPositions())
	conserved(t, l)
}

func TestOpenHonoursCancellationBeforeDebit(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Open(ctx, signal("ema", "NIFTY", 100, 98, 110))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "CANCELED", Code(err))
	assert.Equal(t, 500000.0, l.AvailableCapital())
	assert.Empty(t, l.OpenPositions())
}

func TestStopTakesPrecedenceOverTarget(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 100000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	pos, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)

	// a gap tick through both levels cannot come from a valid signal, so
	// the booked levels are moved under it
	l.mu.Lock()
	l.open[pos.ID].Target = 97
	l.mu.Unlock()

	closed, err := l.MarkToMarket("NIFTY", 97.5)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, ExitStopLoss, closed[0].ExitReason)
	assert.Equal(t, 98.0, closed[0].ExitPrice)
	assert.Equal(t, -2*float64(pos.Quantity), closed[0].RealizedPnL)
	conserved(t, l)
}

func TestMarkToMarketUpdatesOnlyMatchingSymbol(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	a, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
	*f.now = f.now.Add(time.Second)
	b, err := l.Open(context.Background(), signal("ema", "BANKNIFTY", 200, 196, 220))
	require.NoError(t, err)

	closed, err := l.MarkToMarket("NIFTY", 105)
	require.NoError(t, err)
	assert.Empty(t, closed)

	pa, ok := l.Position(a.ID)
	require.True(t, ok)
	assert.Equal(t, 105.0, pa.CurrentPrice)
	assert.Equal(t, 5*float64(a.Quantity), pa.PnL)
	assert.InDelta(t, 5.0, pa.PnLPct, 1e-9)

	pb, ok := l.Position(b.ID)
	require.True(t, ok)
	assert.Equal(t, 200.0, pb.CurrentPrice)

	_, err = l.MarkToMarket("NIFTY", 0)
	require.ErrorIs(t, err, ErrInvalidPrice)
}

func TestCloseIsNotIdempotent(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	pos, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)

	cp, err := l.Close(pos.ID, 101, "")
	require.NoError(t, err)
	assert.Equal(t, ExitManual, cp.ExitReason)
	assert.Equal(t, float64(pos.Quantity), cp.RealizedPnL)

	_, err = l.Close(pos.ID, 101, ExitManual)
	require.ErrorIs(t, err, ErrPositionNotFound)
	assert.Equal(t, "POSITION_NOT_FOUND", Code(err))

	_, err = l.Close("nope", 101, ExitManual)
	require.ErrorIs(t, err, ErrPositionNotFound)
	conserved(t, l)
}

func TestDailyLossLimitIsMonotonic(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 1000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "rsi", AllocationPct: 30}))

	pos, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
	require.Equal(t, int64(750), pos.Quantity)

	closed, err := l.MarkToMarket("NIFTY", 97)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.Equal(t, -1500.0, closed[0].RealizedPnL)

	attempts := []Signal{
		signal("ema", "NIFTY", 100, 98, 110),
		signal("rsi", "BANKNIFTY", 200, 190, 250),
		signal("ghost", "NIFTY", 100, 98, 110),
	}
	for i := 0; i < 3; i++ {
		for _, sig := range attempts {
			_, err := l.Open(context.Background(), sig)
			require.ErrorIs(t, err, ErrDailyLossLimitBreached)
			assert.Equal(t, "DAILY_LOSS_LIMIT_BREACHED", Code(err))
		}
		*f.now = f.now.Add(time.Hour)
	}

	// next New York trading day
	*f.now = time.Date(2025, time.March, 5, 15, 0, 0, 0, time.UTC)
	_, err = l.Open(context.Background(), signal("rsi", "BANKNIFTY", 200, 190, 250))
	require.NoError(t, err)
}

func TestDailyLossLimitFollowsTradingTimezone(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	f := newFixture(t, Config{TotalCapital: 500000, MaxDailyLoss: 1000, TradingTimezone: "Asia/Kolkata"})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	*f.now = time.Date(2025, time.March, 4, 9, 20, 0, 0, ist)
	_, err = l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
	closed, err := l.MarkToMarket("NIFTY", 97)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.Equal(t, -1500.0, closed[0].RealizedPnL)

	*f.now = time.Date(2025, time.March, 4, 9, 21, 0, 0, ist)
	_, err = l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.ErrorIs(t, err, ErrDailyLossLimitBreached)

	*f.now = time.Date(2025, time.March, 4, 10, 45, 0, 0, ist)
	_, err = l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.ErrorIs(t, err, ErrDailyLossLimitBreached)

	*f.now = time.Date(2025, time.March, 5, 9, 20, 0, 0, ist)
	_, err = l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
}

func TestNewRejectsUnknownTradingTimezone(t *testing.T) {
	_, err := New(Config{TotalCapital: 1000, TradingTimezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}

func TestCloseAllForShutdown(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	for i, sym := range []string{"A", "B", "C"} {
		*f.now = tuesdayMorning.Add(time.Duration(i) * time.Minute)
		_, err := l.Open(context.Background(), signal("ema", sym, 100, 98, 110))
		require.NoError(t, err)
	}
	_, err := l.MarkToMarket("B", 104)
	require.NoError(t, err)

	closed, err := l.CloseAll(context.Background(), ExitSystemShutdown)
	require.NoError(t, err)
	require.Len(t, closed, 3)
	for _, c := range closed {
		assert.Equal(t, ExitSystemShutdown, c.ExitReason)
	}
	assert.Equal(t, "B", closed[1].Symbol)
	assert.Equal(t, 104.0, closed[1].ExitPrice)
	assert.Empty(t, l.OpenPositions())
	conserved(t, l)
}

func TestRebalance(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 100000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "winner", AllocationPct: 50}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "idle", AllocationPct: 30}))

	pos, err := l.Open(context.Background(), signal("winner", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
	require.Equal(t, int64(250), pos.Quantity)
	_, err = l.Close(pos.ID, 102, ExitManual)
	require.NoError(t, err)

	got, err := l.Rebalance()
	require.NoError(t, err)

	// winner: win rate 1 + 500/50000 = 1.01, idle: neutral 1
	wantWinner := 100000 * 1.01 / 2.01
	assert.InDelta(t, wantWinner, got["winner"], 1e-6)
	assert.InDelta(t, 100000-wantWinner, got["idle"], 1e-6)

	s, _ := l.Strategy("winner")
	assert.InDelta(t, wantWinner*0.01, s.MaxRiskPerTrade, 1e-9)
	conserved(t, l)
}

func TestRebalanceClampsScores(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 100000, MaxDailyLoss: 1e9})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "loser", AllocationPct: 50}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "idle", AllocationPct: 50}))

	pos, err := l.Open(context.Background(), signal("loser", "NIFTY", 100, 98, 110))
	require.NoError(t, err)
	_, err = l.Close(pos.ID, 50, ExitManual)
	require.NoError(t, err)

	got, err := l.Rebalance()
	require.NoError(t, err)
	assert.InDelta(t, 100000*0.5/1.5, got["loser"], 1e-6)
	assert.InDelta(t, 100000*1.0/1.5, got["idle"], 1e-6)
}

func TestConservationUnderRandomOperations(t *testing.T) {
	volumes := staticVolumes{
		"LIQUID": {900_000, 1_000_000, 1_100_000},
		"THIN":   {5_000, 10_000, 15_000, 20_000, 25_000, 30_000, 35_000, 40_000},
		"MID":    {50_000, 60_000, 70_000, 80_000, 90_000, 100_000, 110_000, 120_000},
		"DRY":    {100, 200},
	}
	logger := quietLogger()
	engine := execution.NewEngine(logger, execution.NewGaussianNoise(7)).WithClock(func() time.Time { return tuesdayMorning })

	f := newFixture(t, Config{TotalCapital: 1_000_000, MaxDailyLoss: 1e12},
		WithExecutor(engine), WithVolumeSource(volumes))
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "a", AllocationPct: 40, MaxPositions: 5}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "b", AllocationPct: 40, MaxPositions: 5, RiskPerTradePct: 2}))

	rng := rand.New(rand.NewPCG(1, 2))
	symbols := []string{"LIQUID", "THIN", "MID", "DRY"}
	for step := 0; step < 300; step++ {
		*f.now = f.now.Add(time.Second)
		sym := symbols[rng.IntN(len(symbols))]
		price := 90 + rng.Float64()*20

		switch rng.IntN(4) {
		case 0, 1:
			name := []string{"a", "b"}[rng.IntN(2)]
			_, err := l.Open(context.Background(), signal(name, sym, price, price*0.98, price*1.03))
			if err != nil {
				require.False(t, errors.Is(err, ErrInternalConsistency), err)
			}
		case 2:
			_, err := l.MarkToMarket(sym, price)
			require.NoError(t, err)
		case 3:
			open := l.OpenPositions()
			if len(open) > 0 {
				_, err := l.Close(open[rng.IntN(len(open))].ID, price, ExitManual)
				require.NoError(t, err)
			}
		}
		conserved(t, l)
	}

	require.NoError(t, l.Faulted())
	stats := l.ExecutionStats()
	assert.Positive(t, stats.TotalExecutions)
}

func TestConcurrentOperationsKeepInvariants(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 1_000_000, MaxDailyLoss: 1e12})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "a", AllocationPct: 50, MaxPositions: 10}))
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "b", AllocationPct: 50, MaxPositions: 10}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			name := []string{"a", "b"}[g%2]
			for i := 0; i < 50; i++ {
				price := 100 + float64((g+i)%7)
				_, _ = l.Open(context.Background(), signal(name, "NIFTY", price, price-2, price+3))
				_, _ = l.MarkToMarket("NIFTY", price+float64(i%5)-2)
				_ = l.Summary()
				_ = l.RiskMetrics()
			}
		}(g)
	}
	wg.Wait()

	require.NoError(t, l.Faulted())
	conserved(t, l)
	for _, s := range l.Summary().Strategies {
		assert.LessOrEqual(t, s.CurrentPositions, s.MaxPositions)
	}
}

type nanExecutor struct{}

func (nanExecutor) Execute(_ context.Context, req execution.Request) (execution.Fill, error) {
	return &execution.MarketFill{FillPlan: execution.FillPlan{
		Algorithm:         req.Algorithm,
		TotalQuantity:     req.Quantity,
		FilledQuantity:    req.Quantity,
		AvgExecutionPrice: math.NaN(),
	}}, nil
}

func TestInvariantViolationFaultsLedger(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 500000}, WithExecutor(nanExecutor{}))
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

	_, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.ErrorIs(t, err, ErrInternalConsistency)
	var inv *InvariantError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, "open", inv.Op)
	assert.Equal(t, "INTERNAL_CONSISTENCY", Code(err))
	assert.Empty(t, f.publisher.blocked())

	var logged bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	assert.True(t, logged)

	_, err = l.MarkToMarket("NIFTY", 101)
	require.ErrorIs(t, err, ErrLedgerFaulted)
	require.ErrorIs(t, l.RegisterStrategy(StrategyConfig{Name: "x", AllocationPct: 1}), ErrLedgerFaulted)
	assert.True(t, l.Summary().Faulted)
	assert.Error(t, l.Faulted())
}

func TestAlgorithmFollowsShareOfVolume(t *testing.T) {
	logger := quietLogger()
	engine := execution.NewEngine(logger, execution.ZeroNoise{}).WithClock(func() time.Time { return tuesdayMorning })

	tests := []struct {
		name    string
		volumes staticVolumes
		want    execution.Algorithm
	}{
		{"unknown volume", staticVolumes{}, execution.AlgorithmMarket},
		{"tiny share", staticVolumes{"NIFTY": {1_000_000}}, execution.AlgorithmMarket},
		{"one percent", staticVolumes{"NIFTY": {75_000}}, execution.AlgorithmTWAP},
		{"three percent", staticVolumes{"NIFTY": {10_000, 20_000, 30_000, 40_000}}, execution.AlgorithmVWAP},
		{"ten percent", staticVolumes{"NIFTY": {7_500}}, execution.AlgorithmIceberg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{TotalCapital: 500000}, WithExecutor(engine), WithVolumeSource(tt.volumes))
			require.NoError(t, f.ledger.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 30}))

			pos, err := f.ledger.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
			require.NoError(t, err)
			assert.Equal(t, int64(750), pos.Quantity)
			assert.Equal(t, tt.want, pos.Algorithm)
			assert.Equal(t, 1, f.ledger.ExecutionStats().ByAlgorithm[tt.want])
			conserved(t, f.ledger)
		})
	}
}

func TestRiskMetricsAndReport(t *testing.T) {
	f := newFixture(t, Config{TotalCapital: 1_000_000})
	l := f.ledger
	require.NoError(t, l.RegisterStrategy(StrategyConfig{Name: "ema", AllocationPct: 10, RiskPerTradePct: 0.2}))

	for _, exit := range []float64{102, 99, 100.5} {
		pos, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
		require.NoError(t, err)
		require.Equal(t, int64(100), pos.Quantity)
		_, err = l.Close(pos.ID, exit, ExitManual)
		require.NoError(t, err)
		*f.now = f.now.Add(time.Minute)
	}

	m := l.RiskMetrics()
	assert.InDelta(t, -100.0, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 125.0, m.AvgWin, 1e-9)
	assert.InDelta(t, 100.0, m.AvgLoss, 1e-9)
	assert.InDelta(t, 2.5, m.ProfitFactor, 1e-9)
	assert.InDelta(t, 50/math.Sqrt(15000)*math.Sqrt(252), m.SharpeRatio, 1e-9)

	_, err := l.Open(context.Background(), signal("ema", "NIFTY", 100, 98, 110))
	require.NoError(t, err)

	report := l.Report()
	assert.Contains(t, report, "PORTFOLIO MANAGEMENT REPORT")
	assert.Contains(t, report, "Total Capital:      1,000,000.00")
	assert.Contains(t, report, "Profit Factor:      2.50")
	assert.Contains(t, report, "[ACTIVE] ema")
	assert.Contains(t, report, "Win Rate:           50.0%")
	assert.Contains(t, report, "ACTIVE POSITIONS:")

	s := l.Summary()
	assert.Equal(t, 150.0, s.RealizedPnL)
	assert.Equal(t, 3, s.ClosedTrades)
	assert.Equal(t, 1, s.ActivePositions)
}

func TestMoney(t *testing.T) {
	tests := map[float64]string{
		0:          "0.00",
		999.5:      "999.50",
		1000:       "1,000.00",
		-1234567.8: "-1,234,567.80",
		20000:      "20,000.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, money(in))
	}
}
