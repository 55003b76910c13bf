package selector

import "time"

// DayBoundary defines when a study day starts. Daily quotas reset at
// StartHour in Location, never in the host's local time.
type DayBoundary struct {
	Location  *time.Location
	StartHour int
}

// UTCMidnight is the boundary used when nothing else is configured.
var UTCMidnight = DayBoundary{Location: time.UTC}

// Start returns the beginning of the study day that contains now.
// A 4 o'clock boundary puts 02:00 on the previous day.
func (b DayBoundary) Start(now time.Time) time.Time {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), b.StartHour, 0, 0, 0, loc)
	if start.After(local) {
		start = time.Date(local.Year(), local.Month(), local.Day()-1, b.StartHour, 0, 0, 0, loc)
	}
	return start
}

// End returns the start of the following study day.
func (b DayBoundary) End(now time.Time) time.Time {
	s := b.Start(now)
	return time.Date(s.Year(), s.Month(), s.Day()+1, b.StartHour, 0, 0, 0, s.Location())
}

// Day returns the calendar date label (YYYY-MM-DD) of the study day
// containing t.
func (b DayBoundary) Day(t time.Time) string {
	return b.Start(t).Format(time.DateOnly)
}
