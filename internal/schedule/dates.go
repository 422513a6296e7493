package schedule

import "time"

// FirstMatchday returns the first date on or after start that falls on
// weekday. start is returned unchanged when it already matches.
func FirstMatchday(start time.Time, weekday time.Weekday) time.Time {
	d := civil(start)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDate(0, 0, offset)
}

// RoundDates returns count matchdays one week apart, beginning with
// FirstMatchday(start, weekday).
func RoundDates(start time.Time, weekday time.Weekday, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	first := FirstMatchday(start, weekday)
	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, 7*i)
	}
	return dates
}

// civil truncates t to midnight in its own location.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
