// Package calendar knows the US equity session calendar and computes the
// time-zone-aware start boundaries used by ingestion.
package calendar

import (
	"time"
	_ "time/tzdata" // embed tz database so Eastern resolves in minimal images

	"ohlcv-pipeline/internal/model"
)

// Eastern is the US/Eastern location equities trade in.
var Eastern = loadEastern()

func loadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// Regular session in Eastern time.
const (
	OpenHour    = 9
	OpenMinute  = 30
	CloseHour   = 16
	CloseMinute = 0
)

// IsWeekday returns true if t is Mon–Fri in Eastern time.
func IsWeekday(t time.Time) bool {
	wd := t.In(Eastern).Weekday()
	return wd >= time.Monday && wd <= time.Friday
}

// IsTradingDay returns true if t is a weekday and not an exchange holiday.
// Crypto trades every day, so callers only consult this for equities.
func IsTradingDay(t time.Time) bool {
	et := t.In(Eastern)
	return IsWeekday(et) && !IsHoliday(et)
}

// IsSessionClosed reports whether t falls outside the regular equity session:
// a non-trading day, before the open, or at or after the close.
func IsSessionClosed(t time.Time) bool {
	et := t.In(Eastern)
	if !IsTradingDay(et) {
		return true
	}
	hm := et.Hour()*60 + et.Minute()
	return hm < OpenHour*60+OpenMinute || hm >= CloseHour*60+CloseMinute
}

// Location returns the time zone the asset class's day boundaries use.
func Location(class model.AssetClass) *time.Location {
	if class == model.Equity {
		return Eastern
	}
	return time.UTC
}

// LookbackStart returns now minus months, expressed in the asset class's
// location.
func LookbackStart(now time.Time, months int, class model.AssetClass) time.Time {
	return now.In(Location(class)).AddDate(0, -months, 0)
}

// Boundary expresses a stored timestamp as a start boundary for class.
func Boundary(ts time.Time, class model.AssetClass) time.Time {
	return ts.In(Location(class))
}
