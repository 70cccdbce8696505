package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"GridCast/internal/usecase"
)

type fakePrefetcher struct {
	mu    sync.Mutex
	calls int
	hours int
}

func (f *fakePrefetcher) Prefetch(_ context.Context, _ time.Time, hours int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.hours = hours
	return hours
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	msgs []usecase.RefreshPayload
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msgType == usecase.RefreshJobType {
		f.msgs = append(f.msgs, payload.(usecase.RefreshPayload))
	}
	return nil
}

func TestNextDayIsLocalMidnight(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	s := New(nil, nil, Config{}, loc, nil)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC) } // 01:30 on June 2 local

	got := s.NextDay()
	want := time.Date(2024, 6, 3, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("NextDay = %s, want %s", got, want)
	}
}

func TestJobs(t *testing.T) {
	w := &fakePrefetcher{}
	q := &fakeEnqueuer{}
	s := New(w, q, Config{PrefetchHours: 48, Horizon: 24}, time.UTC, nil)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }

	s.prefetchWeather()
	s.enqueueRefresh()

	if w.calls != 1 || w.hours != 48 {
		t.Fatalf("prefetch calls=%d hours=%d", w.calls, w.hours)
	}
	if len(q.msgs) != 1 {
		t.Fatalf("expected one refresh, got %d", len(q.msgs))
	}
	if got := q.msgs[0]; !got.Start.Equal(time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)) || got.Horizon != 24 {
		t.Fatalf("unexpected refresh payload %+v", got)
	}
}

func TestStartRunsJobsImmediately(t *testing.T) {
	w := &fakePrefetcher{}
	s := New(w, nil, Config{WeatherInterval: time.Hour, PrefetchHours: 6}, time.UTC, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		n := w.calls
		w.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("prefetch did not run after Start")
}
