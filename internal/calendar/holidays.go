package calendar

import (
	"log"
	"sync"
	"time"
)

type holiday struct {
	month time.Month
	day   int
}

// NYSE full-day closures by year. Dates that fall on a weekend are listed on
// the observed weekday.
var nyseHolidays = map[int][]holiday{
	2026: {
		{time.January, 1},   // New Year's Day
		{time.January, 19},  // Martin Luther King Jr. Day
		{time.February, 16}, // Washington's Birthday
		{time.April, 3},     // Good Friday
		{time.May, 25},      // Memorial Day
		{time.June, 19},     // Juneteenth
		{time.July, 3},      // Independence Day (observed)
		{time.September, 7}, // Labor Day
		{time.November, 26}, // Thanksgiving Day
		{time.December, 25}, // Christmas Day
	},
	2027: {
		{time.January, 1},   // New Year's Day
		{time.January, 18},  // Martin Luther King Jr. Day
		{time.February, 15}, // Washington's Birthday
		{time.March, 26},    // Good Friday
		{time.May, 31},      // Memorial Day
		{time.June, 18},     // Juneteenth (observed)
		{time.July, 5},      // Independence Day (observed)
		{time.September, 6}, // Labor Day
		{time.November, 25}, // Thanksgiving Day
		{time.December, 24}, // Christmas Day (observed)
	},
}

var holidaySet map[string]bool

var (
	missingMu     sync.Mutex
	missingWarned = map[int]bool{}
)

func init() {
	holidaySet = make(map[string]bool)
	for year, days := range nyseHolidays {
		for _, h := range days {
			holidaySet[dateKey(year, h.month, h.day)] = true
		}
	}
}

// IsHoliday returns true if the Eastern date of t is an NYSE holiday. Years
// without a table are treated as having no holidays; the first lookup for such
// a year is logged.
func IsHoliday(t time.Time) bool {
	et := t.In(Eastern)
	if !HasYear(et.Year()) {
		warnMissingYear(et.Year())
		return false
	}
	return holidaySet[dateKey(et.Year(), et.Month(), et.Day())]
}

// HasYear reports whether the holiday table covers year.
func HasYear(year int) bool {
	_, ok := nyseHolidays[year]
	return ok
}

func warnMissingYear(year int) {
	missingMu.Lock()
	defer missingMu.Unlock()
	if missingWarned[year] {
		return
	}
	missingWarned[year] = true
	log.Printf("[calendar] no NYSE holiday table for %d, treating every weekday as a trading day", year)
}

func dateKey(year int, month time.Month, day int) string {
	return time.Date(year, month, day, 0, 0, 0, 0, Eastern).Format("2006-01-02")
}
