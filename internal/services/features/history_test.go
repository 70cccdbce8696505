package features

import (
	"testing"
	"time"

	"GridCast/internal/domain/models"
)

func TestWorkingHistoryOrdering(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewWorkingHistory([]models.ObservationPoint{
		{Timestamp: base.Add(2 * time.Hour), Load: 3},
		{Timestamp: base, Load: 1},
	}, nil)
	h.Append(base.Add(time.Hour), 2)
	h.Append(base.Add(2*time.Hour), 30) // replace

	if h.Len() != 3 {
		t.Fatalf("len = %d", h.Len())
	}
	if v, ok := h.LatestBefore(base.Add(2 * time.Hour)); !ok || v != 2 {
		t.Fatalf("latest before = %v %v", v, ok)
	}
	if v, ok := h.LatestBefore(base.Add(5 * time.Hour)); !ok || v != 30 {
		t.Fatalf("latest before end = %v %v", v, ok)
	}
	if _, ok := h.LatestBefore(base); ok {
		t.Fatalf("nothing precedes the first hour")
	}
}

func TestWorkingHistoryMeanBetweenExclusive(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewWorkingHistory(nil, nil)
	for i := 0; i < 5; i++ {
		h.Append(base.Add(time.Duration(i)*time.Hour), float64(i))
	}
	m, ok := h.MeanBetween(base, base.Add(4*time.Hour))
	if !ok || m != 2 { // 1,2,3
		t.Fatalf("mean = %v %v", m, ok)
	}
	if _, ok := h.MeanBetween(base.Add(4*time.Hour), base.Add(5*time.Hour)); ok {
		t.Fatalf("empty window should report !ok")
	}
}

func TestWorkingHistoryHalfHourZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	ten := time.Date(2024, 3, 9, 10, 0, 0, 0, ist)
	h := NewWorkingHistory([]models.ObservationPoint{
		{Timestamp: ten.Add(-time.Hour), Load: 9},
		{Timestamp: ten.Add(20 * time.Minute), Load: 10},
	}, ist)
	// 10:50 IST is 05:20 UTC, which a UTC floor would put in the 10:30 slot.
	h.Append(ten.Add(50*time.Minute), 11)

	if h.Len() != 2 {
		t.Fatalf("len = %d", h.Len())
	}
	if v, ok := h.LoadAt(ten); !ok || v != 11 {
		t.Fatalf("load at 10:00 IST = %v %v", v, ok)
	}
	if v, ok := h.LoadAt(ten.Add(-time.Hour)); !ok || v != 9 {
		t.Fatalf("load at 09:00 IST = %v %v", v, ok)
	}
}
