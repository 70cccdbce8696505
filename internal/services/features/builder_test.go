package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"GridCast/internal/domain/models"
)

type fixedCalendar map[string]bool

func (c fixedCalendar) IsHoliday(d time.Time) bool { return c[d.Format("2006-01-02")] }

func constantHistory(end time.Time, hours int, load float64) *WorkingHistory {
	h := NewWorkingHistory(nil, time.UTC)
	for i := hours; i >= 1; i-- {
		h.Append(end.Add(-time.Duration(i)*time.Hour), load)
	}
	return h
}

func index(t *testing.T, name string) int {
	for i, n := range DefaultOrder {
		if n == name {
			return i
		}
	}
	t.Fatalf("feature %s not in default order", name)
	return -1
}

func TestBuildConstantHistoryZeroWeather(t *testing.T) {
	b, err := NewBuilder(DefaultOrder, 17, nil, time.UTC)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	ts := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	fv := b.Build(ts, constantHistory(ts, 400, 1000), models.WeatherFields{})

	if len(fv) != 17 {
		t.Fatalf("expected 17 features, got %d", len(fv))
	}
	for _, name := range []string{"lag_1", "lag_24", "lag_168", "roll24", "roll168"} {
		if got := fv[index(t, name)]; got != 1000 {
			t.Fatalf("%s = %v, want 1000", name, got)
		}
	}
	want := HeatIndex(0, 0)
	if got := fv[index(t, "heat_index")]; got != want {
		t.Fatalf("heat_index = %v, want %v", got, want)
	}
	if math.Abs(want-(-3.9444444)) > 1e-6 {
		t.Fatalf("heat index of 0C/0%% = %v", want)
	}
}

func TestBuildTemporalFields(t *testing.T) {
	cal := fixedCalendar{"2024-01-26": true}
	b, err := NewBuilder(DefaultOrder, 17, cal, time.UTC)
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	// Friday
	ts := time.Date(2024, 1, 26, 9, 0, 0, 0, time.UTC)
	fv := b.Build(ts, NewWorkingHistory(nil, time.UTC), models.WeatherFields{})
	if fv[index(t, "dow")] != 4 || fv[index(t, "hour")] != 9 || fv[index(t, "month")] != 1 {
		t.Fatalf("unexpected temporal fields %v", fv)
	}
	if fv[index(t, "is_weekend")] != 0 || fv[index(t, "is_holiday")] != 1 {
		t.Fatalf("flags wrong: weekend=%v holiday=%v", fv[index(t, "is_weekend")], fv[index(t, "is_holiday")])
	}

	sunday := time.Date(2024, 1, 28, 9, 0, 0, 0, time.UTC)
	fv = b.Build(sunday, NewWorkingHistory(nil, time.UTC), models.WeatherFields{})
	if fv[index(t, "dow")] != 6 || fv[index(t, "is_weekend")] != 1 {
		t.Fatalf("sunday: dow=%v weekend=%v", fv[index(t, "dow")], fv[index(t, "is_weekend")])
	}
}

func TestBuildTimezone(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	b, _ := NewBuilder(DefaultOrder, 17, nil, ist)
	ts := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC) // 01:30 next day IST
	fv := b.Build(ts, NewWorkingHistory(nil, time.UTC), models.WeatherFields{})
	if fv[index(t, "hour")] != 1 || fv[index(t, "dow")] != 5 {
		t.Fatalf("hour=%v dow=%v", fv[index(t, "hour")], fv[index(t, "dow")])
	}
}

func TestBuildForwardFill(t *testing.T) {
	b, _ := NewBuilder(DefaultOrder, 17, nil, time.UTC)
	ts := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)

	h := NewWorkingHistory(nil, time.UTC)
	h.Append(ts.Add(-5*time.Hour), 700)
	fv := b.Build(ts, h, models.WeatherFields{})
	for _, name := range []string{"lag_1", "lag_24", "lag_168"} {
		if fv[index(t, name)] != 700 {
			t.Fatalf("%s = %v, want forward-filled 700", name, fv[index(t, name)])
		}
	}
	if fv[index(t, "roll24")] != 700 || fv[index(t, "roll168")] != 700 {
		t.Fatalf("rolling means = %v/%v", fv[index(t, "roll24")], fv[index(t, "roll168")])
	}

	empty := b.Build(ts, NewWorkingHistory(nil, time.UTC), models.WeatherFields{})
	if len(empty) != 17 || empty[index(t, "lag_1")] != 0 {
		t.Fatalf("empty history should yield zero lags, got %v", empty)
	}
}

func TestBuildIgnoresFutureHistory(t *testing.T) {
	b, _ := NewBuilder(DefaultOrder, 17, nil, time.UTC)
	ts := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	h := constantHistory(ts, 200, 1000)
	before := b.Build(ts, h, models.WeatherFields{})

	h.Append(ts, 99999)
	h.Append(ts.Add(time.Hour), 99999)
	after := b.Build(ts, h, models.WeatherFields{})
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("feature %s changed after appending ts and later hours", DefaultOrder[i])
		}
	}
}

func TestNewBuilderFailsFast(t *testing.T) {
	if _, err := NewBuilder(DefaultOrder, 18, nil, nil); !errors.Is(err, ErrFeatureConfig) {
		t.Fatalf("expected count mismatch error, got %v", err)
	}
	bad := append(append([]string(nil), DefaultOrder[:16]...), "sunspots")
	if _, err := NewBuilder(bad, 17, nil, nil); !errors.Is(err, ErrFeatureConfig) {
		t.Fatalf("expected unknown feature error, got %v", err)
	}
	dup := append(append([]string(nil), DefaultOrder[:16]...), "lag_1")
	if _, err := NewBuilder(dup, 17, nil, nil); !errors.Is(err, ErrFeatureConfig) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestHeatIndexHotHumid(t *testing.T) {
	// 35C / 60% is roughly 45C by the NOAA table.
	got := HeatIndex(35, 60)
	if got < 43 || got > 47 {
		t.Fatalf("heat index 35C/60%% = %v", got)
	}
}
