package features

import (
	"sort"
	"time"

	"GridCast/internal/domain/models"
	"GridCast/pkg/util"
)

// WorkingHistory is the hourly load buffer a single forecast run reads its
// lag and rolling features from. Real observations seed it; synthetic
// predictions are appended as the run advances. Not safe for concurrent use.
type WorkingHistory struct {
	loc   *time.Location
	loads map[int64]float64
	hours []int64 // ascending unix seconds of local hour starts
}

// NewWorkingHistory keys every load on the start of its hour in loc; nil
// means UTC.
func NewWorkingHistory(obs []models.ObservationPoint, loc *time.Location) *WorkingHistory {
	if loc == nil {
		loc = time.UTC
	}
	h := &WorkingHistory{loc: loc, loads: make(map[int64]float64, len(obs))}
	for _, o := range obs {
		h.Append(o.Timestamp, o.Load)
	}
	return h
}

func (h *WorkingHistory) hourKey(ts time.Time) int64 { return util.HourFloorIn(ts, h.loc).Unix() }

// Append records the load for ts, replacing any earlier value for that hour.
func (h *WorkingHistory) Append(ts time.Time, load float64) {
	k := h.hourKey(ts)
	if _, ok := h.loads[k]; ok {
		h.loads[k] = load
		return
	}
	h.loads[k] = load
	n := len(h.hours)
	if n == 0 || h.hours[n-1] < k {
		h.hours = append(h.hours, k)
		return
	}
	i := sort.Search(n, func(i int) bool { return h.hours[i] > k })
	h.hours = append(h.hours, 0)
	copy(h.hours[i+1:], h.hours[i:])
	h.hours[i] = k
}

func (h *WorkingHistory) LoadAt(ts time.Time) (float64, bool) {
	v, ok := h.loads[h.hourKey(ts)]
	return v, ok
}

// LatestBefore returns the most recent load strictly before ts.
func (h *WorkingHistory) LatestBefore(ts time.Time) (float64, bool) {
	k := h.hourKey(ts)
	i := sort.Search(len(h.hours), func(i int) bool { return h.hours[i] >= k })
	if i == 0 {
		return 0, false
	}
	return h.loads[h.hours[i-1]], true
}

// MeanBetween averages loads with from < ts < to.
func (h *WorkingHistory) MeanBetween(from, to time.Time) (float64, bool) {
	lo, hi := h.hourKey(from), h.hourKey(to)
	i := sort.Search(len(h.hours), func(i int) bool { return h.hours[i] > lo })
	var sum float64
	n := 0
	for ; i < len(h.hours) && h.hours[i] < hi; i++ {
		sum += h.loads[h.hours[i]]
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func (h *WorkingHistory) Len() int { return len(h.hours) }
