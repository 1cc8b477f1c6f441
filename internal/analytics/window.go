package analytics

import (
	"math"
	"time"
)

// allTimeStartYear anchors the "all time" window. Data before this point does
// not exist in the source account.
const allTimeStartYear = 2026

// Window is an inclusive [Start, End] time range.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// MonthSelection identifies a concrete calendar month. A nil *MonthSelection
// means "all time".
type MonthSelection struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// ResolveWindows derives the global window (KPIs, funnel, channels, data
// capture) and the trend window (weekly/monthly charts) from the month
// selection.
//
// When a month is selected both windows are that month. When "all time" is
// selected the global window spans from the all-time anchor to now, while the
// trend window still covers the current calendar month. The asymmetry is
// deliberate: trend charts always show "this month".
func ResolveWindows(sel *MonthSelection, now time.Time, loc *time.Location) (global, trend Window) {
	if sel != nil {
		global = monthWindow(sel.Year, sel.Month, loc)
		return global, global
	}

	global = Window{
		Start: time.Date(allTimeStartYear, time.January, 1, 0, 0, 0, 0, loc),
		End:   now,
	}
	trend = monthWindow(now.Year(), now.Month(), loc)
	return global, trend
}

// monthWindow returns [1st 00:00:00, last day 23:59:59] of the given month.
func monthWindow(year int, month time.Month, loc *time.Location) Window {
	return Window{
		Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
		// Day 0 of the next month normalizes to this month's last day.
		End: time.Date(year, month+1, 0, 23, 59, 59, 0, loc),
	}
}

// WeekNumber buckets a date into its 1-based week of the month. The first
// partial week counts as week 1 and the index can exceed 5 (a 31-day month
// starting late in the week pushes its last days into week 6). This is the
// domain's own convention, not ISO week numbering: the weekday of the first
// of the month (Sunday = 0) shifts the whole-day count before dividing by 7.
func WeekNumber(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	daysElapsed := t.YearDay() - first.YearDay()
	return int(math.Ceil(float64(daysElapsed+int(first.Weekday())+1) / 7.0))
}
