// Package window resolves named time filters and custom date ranges into
// inclusive UTC instant windows, derives adjacent comparison windows and
// splits windows into trend buckets. All calendar math happens in the
// caller's IANA timezone so DST transitions land on the right local midnight.
package window

import (
	"time"
)

// Filter names a preset reporting window.
type Filter string

const (
	FilterToday  Filter = "today"
	FilterWeek   Filter = "week"
	FilterMonth  Filter = "month"
	FilterLast7  Filter = "last7"
	FilterLast30 Filter = "last30"
)

// ParseFilter validates a raw filter name.
func ParseFilter(s string) (Filter, bool) {
	switch Filter(s) {
	case FilterToday, FilterWeek, FilterMonth, FilterLast7, FilterLast30:
		return Filter(s), true
	}
	return "", false
}

// Window is an inclusive [Start, End] instant range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t falls inside the inclusive window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ResolveZone maps an IANA zone name to a location, silently downgrading to
// UTC when the name is absent or unknown.
func ResolveZone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Preset resolves a named filter into a window ending at now. The start is
// the local midnight (in loc) of: today, the most recent Monday, the first
// of the month, or 6/29 days back. time.Date renormalizes out-of-range days
// and resolves the local wall time against the zone's DST rules.
func Preset(f Filter, now time.Time, loc *time.Location) Window {
	local := now.In(loc)
	y, m, d := local.Date()
	var start time.Time
	switch f {
	case FilterToday:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	case FilterWeek:
		diff := (int(local.Weekday()) + 6) % 7
		start = time.Date(y, m, d-diff, 0, 0, 0, 0, loc)
	case FilterMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case FilterLast7:
		start = time.Date(y, m, d-6, 0, 0, 0, 0, loc)
	default: // FilterLast30
		start = time.Date(y, m, d-29, 0, 0, 0, 0, loc)
	}
	return Window{Start: start, End: now}
}

// ParseDateInput parses a YYYY-MM-DD value as local midnight (or the last
// millisecond of the day) in loc. Malformed values report ok=false.
func ParseDateInput(value string, loc *time.Location, endOfDay bool) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	if endOfDay {
		return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc), true
	}
	return time.Date(y, m, d, 0, 0, 0, 0, loc), true
}

// Custom resolves an explicit from/to date pair into a window spanning local
// midnight of from through 23:59:59.999 of to. Malformed or inverted bounds
// report ok=false so callers can fall back to a named filter.
func Custom(from, to string, loc *time.Location) (Window, bool) {
	start, ok := ParseDateInput(from, loc, false)
	if !ok {
		return Window{}, false
	}
	end, ok := ParseDateInput(to, loc, true)
	if !ok {
		return Window{}, false
	}
	if start.After(end) {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// Previous returns the immediately adjacent window of identical duration:
// it ends one millisecond before w starts. Deliberately not calendar-aligned;
// see DESIGN.md.
func Previous(w Window) Window {
	end := w.Start.Add(-time.Millisecond)
	return Window{Start: end.Add(-w.Duration()), End: end}
}

// dayFloor returns local midnight of t in loc.
func dayFloor(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// dayCeil returns the last millisecond of t's local day in loc.
func dayCeil(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// addDays shifts a local wall-clock time by n calendar days, re-resolving
// against the zone so DST shifts cannot drift the wall clock.
func addDays(t time.Time, n int, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	lt := t.In(loc)
	return time.Date(y, m, d+n, lt.Hour(), lt.Minute(), lt.Second(), lt.Nanosecond(), loc)
}

// DayCount returns the inclusive number of local calendar days the window
// spans. Counted on the calendar, not by elapsed hours, so 23h/25h DST days
// still count as one day.
func DayCount(w Window, loc *time.Location) int {
	sy, sm, sd := w.Start.In(loc).Date()
	ey, em, ed := w.End.In(loc).Date()
	s := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	n := int(e.Sub(s)/(24*time.Hour)) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Buckets splits the window's inclusive day range into contiguous,
// equal-size chunks whose count lands close to target: chunk size is
// ceil(totalDays/target) and chunk count ceil(totalDays/size). The final
// chunk is clipped to the end of the window's last day.
func Buckets(w Window, target int, loc *time.Location) []Window {
	if target < 1 {
		target = 1
	}
	dayStart := dayFloor(w.Start, loc)
	dayEnd := dayCeil(w.End, loc)
	totalDays := DayCount(w, loc)
	size := (totalDays + target - 1) / target
	if size < 1 {
		size = 1
	}
	count := (totalDays + size - 1) / size
	out := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		cs := addDays(dayStart, i*size, loc)
		ce := dayCeil(addDays(cs, size-1, loc), loc)
		if ce.After(dayEnd) {
			ce = dayEnd
		}
		out = append(out, Window{Start: cs, End: ce})
	}
	return out
}

// PresetTrendPeriods returns the three calendar-aligned historical periods a
// preset filter compares on the trend chart, oldest first and ending with
// the current period. The month filter compares whole calendar months; every
// other filter compares equal-length day periods anchored to the window
// start. Custom ranges never use this; they bucket the range itself.
func PresetTrendPeriods(f Filter, w Window, loc *time.Location) []Window {
	if f == FilterMonth {
		y, m, _ := w.Start.In(loc).Date()
		out := make([]Window, 0, 3)
		for offset := 2; offset >= 0; offset-- {
			start := time.Date(y, m-time.Month(offset), 1, 0, 0, 0, 0, loc)
			end := time.Date(y, m-time.Month(offset)+1, 1, 0, 0, 0, 0, loc).Add(-time.Millisecond)
			out = append(out, Window{Start: start, End: end})
		}
		return out
	}

	days := 30
	switch f {
	case FilterToday:
		days = 1
	case FilterWeek, FilterLast7:
		days = 7
	}
	out := make([]Window, 0, 3)
	for offset := 2; offset >= 0; offset-- {
		start := dayFloor(addDays(w.Start, -offset*days, loc), loc)
		end := dayCeil(addDays(start, days-1, loc), loc)
		out = append(out, Window{Start: start, End: end})
	}
	return out
}

// MonthStarts returns the local start instants of the last n calendar months
// (oldest first, ending with the current month) plus the exclusive end bound
// at the start of next month.
func MonthStarts(now time.Time, loc *time.Location, n int) ([]time.Time, time.Time) {
	y, m, _ := now.In(loc).Date()
	starts := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		starts = append(starts, time.Date(y, m-time.Month(i), 1, 0, 0, 0, 0, loc))
	}
	return starts, time.Date(y, m+1, 1, 0, 0, 0, 0, loc)
}

// RangeLabel renders a compact dd/mm label for a bucket: a single day shows
// one date, a multi-day span shows "dd-mm->dd-mm".
func RangeLabel(w Window, loc *time.Location) string {
	startDay := w.Start.In(loc).Format("02/01")
	endDay := w.End.In(loc).Format("02/01")
	if startDay == endDay {
		return startDay
	}
	return w.Start.In(loc).Format("02-01") + "->" + w.End.In(loc).Format("02-01")
}
