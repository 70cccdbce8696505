package holiday

import (
	"testing"
	"time"
)

func TestCalendar(t *testing.T) {
	c, err := New([]string{"01-26", "08-15"}, []string{"2024-11-01"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	cases := []struct {
		d    time.Time
		want bool
	}{
		{time.Date(2023, 1, 26, 10, 0, 0, 0, time.UTC), true},
		{time.Date(2031, 8, 15, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 11, 1, 23, 0, 0, 0, time.UTC), true},
		{time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC), false},
		{time.Date(2024, 1, 27, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		if got := c.IsHoliday(tc.d); got != tc.want {
			t.Fatalf("IsHoliday(%s) = %v, want %v", tc.d.Format(time.RFC3339), got, tc.want)
		}
	}
}

func TestCalendarRejectsBadDates(t *testing.T) {
	if _, err := New([]string{"2024-01-26"}, nil); err == nil {
		t.Fatalf("expected error for full date in fixed list")
	}
	if _, err := New(nil, []string{"26/01/2024"}); err == nil {
		t.Fatalf("expected error for bad one-off date")
	}
}
