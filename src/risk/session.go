package risk

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// ----- session labels -----

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionDefault        Session = "default"
	SessionNoTrade        Session = "no_trade"

	daysPerWeek = 7
	dateLayout  = "2006-01-02"
)

// SessionSizeConfig scales position sizes by the New York session the
// order is placed in.
type SessionSizeConfig struct {
	WeekendHolidayMultiplier decimal.Decimal
	DeadZoneMultiplier       decimal.Decimal
	AsiaMultiplier           decimal.Decimal
	LondonMultiplier         decimal.Decimal
	USMultiplier             decimal.Decimal
	DefaultMultiplier        decimal.Decimal
}

func DefaultSessionSizeConfig() SessionSizeConfig {
	return SessionSizeConfig{
		WeekendHolidayMultiplier: decimal.NewFromFloat(0.15),
		DeadZoneMultiplier:       decimal.NewFromFloat(0.15),
		AsiaMultiplier:           decimal.NewFromFloat(0.75),
		LondonMultiplier:         decimal.NewFromFloat(1.0),
		USMultiplier:             decimal.NewFromFloat(1.25),
		DefaultMultiplier:        decimal.NewFromFloat(0.15),
	}
}

func (c SessionSizeConfig) multiplier(s Session) decimal.Decimal {
	switch s {
	case SessionWeekendHoliday:
		return c.WeekendHolidayMultiplier
	case SessionDeadZone:
		return c.DeadZoneMultiplier
	case SessionAsia:
		return c.AsiaMultiplier
	case SessionLondon:
		return c.LondonMultiplier
	case SessionUS:
		return c.USMultiplier
	case SessionNoTrade:
		return decimal.Zero
	default:
		return c.DefaultMultiplier
	}
}

const newYork = "America/New_York"

// Calendar answers session questions in New York time. The trading day used
// for daily loss accounting is the calendar date in the day location, New
// York unless set with WithTradingDay.
type Calendar struct {
	loc *time.Location
	day *time.Location
}

func NewCalendar() *Calendar {
	loc, err := time.LoadLocation(newYork)
	if err != nil {
		panic(fmt.Errorf("error loading %s: %w", newYork, err))
	}
	return &Calendar{loc: loc, day: loc}
}

// LoadTradingDay resolves the IANA zone the trading day is counted in. An
// empty name means New York.
func LoadTradingDay(name string) (*time.Location, error) {
	if name == "" {
		name = newYork
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("trading timezone %q: %w", name, err)
	}
	return loc, nil
}

// WithTradingDay returns a copy of c whose trading date rolls over at
// midnight in day. Sessions and the no-trade window stay in New York.
func (c *Calendar) WithTradingDay(day *time.Location) *Calendar {
	if day == nil {
		return c
	}
	return &Calendar{loc: c.loc, day: day}
}

func (c *Calendar) local(t time.Time) time.Time { return t.In(c.loc) }

// TradingDate is the date t belongs to in the trading-day location.
func (c *Calendar) TradingDate(t time.Time) string {
	return t.In(c.day).Format(dateLayout)
}

// InNoTradeWindow reports whether t falls between Friday 09:00 and Sunday
// 03:00 New York time, or on a US market holiday.
func (c *Calendar) InNoTradeWindow(t time.Time) bool {
	et := c.local(t)
	h := et.Hour()

	// London opens on Sunday even when Sunday is a holiday
	if et.Weekday() == time.Sunday && inLondon(h) {
		return false
	}
	if isUSHoliday(et) {
		return true
	}

	switch et.Weekday() {
	case time.Friday:
		return h >= 9
	case time.Saturday:
		return true
	case time.Sunday:
		return h < 3
	}
	return false
}

// Detect labels t with its session, ignoring the no-trade window.
func (c *Calendar) Detect(t time.Time) Session {
	et := c.local(t)
	h := et.Hour()

	if et.Weekday() == time.Sunday && inLondon(h) {
		return SessionLondon
	}
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday || isUSHoliday(et) {
		return SessionWeekendHoliday
	}

	switch {
	case h >= 17 && h < 20:
		return SessionDeadZone
	case h >= 20 || h < 3:
		return SessionAsia
	case inLondon(h):
		return SessionLondon
	case h >= 9 && h <= 17:
		return SessionUS
	}
	return SessionDefault
}

// ScaleQuantity applies the session multiplier to a base quantity, rounding
// down to whole units. Inside the no-trade window the result is zero.
func (c *Calendar) ScaleQuantity(base int64, t time.Time, cfg SessionSizeConfig) (int64, Session) {
	if base <= 0 {
		return 0, SessionDefault
	}
	if c.InNoTradeWindow(t) {
		return 0, SessionNoTrade
	}

	sess := c.Detect(t)
	scaled := decimal.NewFromInt(base).Mul(cfg.multiplier(sess)).Floor()
	return scaled.IntPart(), sess
}

func inLondon(hour int) bool { return hour >= 3 && hour < 9 }

func isUSHoliday(t time.Time) bool {
	day := t.Format(dateLayout)
	for _, h := range usHolidays(t.Year()) {
		if h.Format(dateLayout) == day {
			return true
		}
	}
	return false
}

func usHolidays(year int) []time.Time {
	observed := func(d time.Time) time.Time {
		if d.Weekday() == time.Sunday {
			return d.AddDate(0, 0, 1)
		}
		return d
	}
	date := func(m time.Month, d int) time.Time {
		return time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
	}

	memorial := date(time.May, 31)
	for memorial.Weekday() != time.Monday {
		memorial = memorial.AddDate(0, 0, -1)
	}

	return []time.Time{
		observed(date(time.January, 1)),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		memorial,
		observed(date(time.July, 4)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(date(time.December, 25)),
	}
}

// nthWeekday returns the nth (1-based) given weekday of the month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(wd-first.Weekday()+daysPerWeek) % daysPerWeek
	return first.AddDate(0, 0, offset+(n-1)*daysPerWeek)
}
