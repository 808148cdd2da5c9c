package risk

import (
	"sync"
	"time"
)

// DailySummary is the state of the current trading day.
type DailySummary struct {
	Date               string  `json:"date"`
	RealizedPnL        float64 `json:"realized_pnl"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	RemainingLossLimit float64 `json:"remaining_loss_limit"`
}

// DailyPnL accumulates realized P&L for the current trading day and resets
// itself the first time it is touched on a new day.
type DailyPnL struct {
	mu       sync.Mutex
	calendar *Calendar

	date   string
	pnl    float64
	trades int
	wins   int
	losses int
}

func NewDailyPnL(calendar *Calendar) *DailyPnL {
	if calendar == nil {
		calendar = NewCalendar()
	}
	return &DailyPnL{calendar: calendar}
}

func (d *DailyPnL) roll(at time.Time) {
	date := d.calendar.TradingDate(at)
	if date == d.date {
		return
	}
	d.date = date
	d.pnl = 0
	d.trades, d.wins, d.losses = 0, 0, 0
}

func (d *DailyPnL) Record(at time.Time, pnl float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roll(at)
	d.pnl += pnl
	d.trades++
	switch {
	case pnl > 0:
		d.wins++
	case pnl < 0:
		d.losses++
	}
}

func (d *DailyPnL) Value(at time.Time) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roll(at)
	return d.pnl
}

func (d *DailyPnL) Summary(at time.Time, maxDailyLoss float64) DailySummary {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roll(at)
	return DailySummary{
		Date:               d.date,
		RealizedPnL:        d.pnl,
		TotalTrades:        d.trades,
		WinningTrades:      d.wins,
		LosingTrades:       d.losses,
		RemainingLossLimit: maxDailyLoss + d.pnl,
	}
}
