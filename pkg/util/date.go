package util

import (
	"strconv"
	"time"
)

var layouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts RFC3339, zone-less ISO forms (read in loc) and unix
// seconds. Returns (t, true) if any worked.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, l := range layouts {
		if t, err := time.ParseInLocation(l, s, loc); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0).In(loc), true
	}
	return time.Time{}, false
}

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	return t, err == nil
}

// HourFloor drops the local minutes and below. Unlike Truncate it respects
// zones with a non-hour UTC offset, and the repeated hour of a DST change
// keeps both instants.
func HourFloor(t time.Time) time.Time {
	return t.Add(-time.Duration(t.Minute())*time.Minute - time.Duration(t.Second())*time.Second - time.Duration(t.Nanosecond()))
}

// HourFloorIn floors t to the start of its hour in loc.
func HourFloorIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return HourFloor(t.In(loc))
}

// DayFloor returns local midnight of t's day.
func DayFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// HoursBetween counts whole hours from a to b; negative when b is before a.
func HoursBetween(a, b time.Time) int {
	return int(b.Sub(a) / time.Hour)
}
