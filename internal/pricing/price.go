// Package pricing holds the price, sizing and session arithmetic shared by
// the matching and escalation components.
package pricing

import (
	"math"
	"time"

	"futures-trader/internal/domain"
)

// AdjustedPrice moves fill by base*multiplier, up or down, rounded to 2 decimals.
func AdjustedPrice(fill, base, multiplier float64, up bool) float64 {
	delta := base * multiplier
	if !up {
		delta = -delta
	}
	return round(fill*(1+delta), 2)
}

// DiffPct returns |a-b|/b in percent, rounded to 3 decimals.
// A zero b yields +Inf so that every "distance below threshold" check fails.
func DiffPct(a, b float64) float64 {
	if b == 0 {
		return math.Inf(1)
	}
	return round(math.Abs(a-b)/b*100, 3)
}

// PositionSize returns the lots to open: ceil(balance*scale/multiple/price).
// Returns 0 when any input makes the size undefined.
func PositionSize(balance, openPosScale float64, multiple int, price float64) int {
	if balance <= 0 || openPosScale <= 0 || multiple <= 0 || price <= 0 {
		return 0
	}
	available := balance * openPosScale / float64(multiple)
	return int(math.Ceil(available / price))
}

// Trading session boundaries, exchange time.
const (
	lastFiveStart = 14*time.Hour + 55*time.Minute
	sessionClose  = 15 * time.Hour
	nightOpen     = 21 * time.Hour
)

// IsLastFiveMinutes reports whether t lies strictly between 14:55:00 and
// 15:00:00 exchange time.
func IsLastFiveMinutes(t time.Time) bool {
	d := sinceMidnight(t)
	return d > lastFiveStart && d < sessionClose
}

// IsAfterSession reports whether t lies between the day session close
// (15:00:00, inclusive) and the night session open (21:00:00) exchange time.
func IsAfterSession(t time.Time) bool {
	d := sinceMidnight(t)
	return d >= sessionClose && d < nightOpen
}

func sinceMidnight(t time.Time) time.Duration {
	ct := t.In(domain.ExchangeTZ)
	return time.Duration(ct.Hour())*time.Hour +
		time.Duration(ct.Minute())*time.Minute +
		time.Duration(ct.Second())*time.Second
}

// TradingDay returns midnight of t's calendar date in exchange time.
func TradingDay(t time.Time) time.Time {
	ct := t.In(domain.ExchangeTZ)
	return time.Date(ct.Year(), ct.Month(), ct.Day(), 0, 0, 0, 0, domain.ExchangeTZ)
}

// SessionDay maps a bar time to the trading day it belongs to: night
// session bars starting at or after 21:00 count toward the next weekday, so
// a Friday night belongs to Monday. Exchange holidays are not known here.
func SessionDay(t time.Time) time.Time {
	day := TradingDay(t)
	if sinceMidnight(t) < nightOpen {
		return day
	}
	day = day.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

func round(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}
