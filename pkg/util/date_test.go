package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s, nil)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeZoneless(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got, ok := ParseTime("2024-06-01T14:00", loc)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Location() != loc || got.Hour() != 14 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10), time.UTC)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeRejects(t *testing.T) {
	for _, s := range []string{"", "yesterday", "-5", "2024-13-01T00:00"} {
		if _, ok := ParseTime(s, nil); ok {
			t.Fatalf("%q should not parse", s)
		}
	}
}

func TestHourFloorHalfHourZone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2024, 6, 1, 14, 47, 12, 5, loc)
	got := HourFloor(in)
	want := time.Date(2024, 6, 1, 14, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("HourFloor = %v, want %v", got, want)
	}
}

func TestHourFloorInKeepsRepeatedDSTHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// 2024-11-03 01:xx happens twice in New York.
	first := time.Date(2024, 11, 3, 5, 20, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	a, b := HourFloorIn(first, ny), HourFloorIn(second, ny)
	if a.Equal(b) {
		t.Fatalf("both hours floored to %v", a)
	}
	if !a.Equal(time.Date(2024, 11, 3, 5, 0, 0, 0, time.UTC)) || b.Sub(a) != time.Hour {
		t.Fatalf("unexpected floors %v %v", a, b)
	}
}

func TestHourFloorInHalfHourZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	got := HourFloorIn(time.Date(2024, 3, 9, 4, 40, 0, 0, time.UTC), ist)
	if !got.Equal(time.Date(2024, 3, 9, 10, 0, 0, 0, ist)) {
		t.Fatalf("got %v", got)
	}
}

func TestHoursBetween(t *testing.T) {
	a := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if n := HoursBetween(a, a.Add(25*time.Hour)); n != 25 {
		t.Fatalf("got %d", n)
	}
	if n := HoursBetween(a, a.Add(-3*time.Hour)); n != -3 {
		t.Fatalf("got %d", n)
	}
}
