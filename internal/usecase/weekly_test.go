package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridCast/internal/domain/models"
	"GridCast/internal/repository"
)

func hourlyPoints(start time.Time, n int, load func(time.Time) float64) []models.PredictionPoint {
	out := make([]models.PredictionPoint, n)
	for i := range out {
		ts := start.Add(time.Duration(i) * time.Hour)
		out[i] = models.PredictionPoint{Timestamp: ts, Combined: load(ts)}
	}
	return out
}

func TestAggregateWeek(t *testing.T) {
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	hourly := hourlyPoints(day, 168, func(ts time.Time) float64 {
		v := 100 * float64(ts.Sub(day)/(24*time.Hour)+1)
		if ts.Hour() == 18 {
			v += 48
		}
		return v
	})

	wf := AggregateWeek(day, hourly, 10)
	require.Len(t, wf.Daily, 7)
	assert.Equal(t, "2024-03-11", wf.StartDate)

	d0 := wf.Daily[0]
	assert.Equal(t, "2024-03-11", d0.Date)
	assert.InDelta(t, 102, d0.AvgDemand, 1e-9)
	assert.InDelta(t, 148, d0.PeakDemand, 1e-9)
	assert.InDelta(t, 100, d0.MinDemand, 1e-9)
	assert.InDelta(t, 2448, d0.TotalEnergyMWh, 1e-9)
	assert.Equal(t, 18, d0.PeakHour)
	assert.InDelta(t, 102-19.6, d0.ConfidenceInterval.Lower, 1e-9)
	assert.InDelta(t, 102+19.6, d0.ConfidenceInterval.Upper, 1e-9)

	assert.Equal(t, "2024-03-17", wf.Summary.PeakDay)
	assert.InDelta(t, 702, wf.Summary.PeakDemand, 1e-9)
	assert.InDelta(t, 402, wf.Summary.AvgDemand, 1e-9)
	assert.InDelta(t, 402*168, wf.Summary.TotalEnergyMWh, 1e-6)
}

func TestAggregateWeekClampsLowerBound(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wf := AggregateWeek(day, hourlyPoints(day, 168, func(time.Time) float64 { return 0 }), 89.52)
	for _, d := range wf.Daily {
		assert.Equal(t, 0.0, d.ConfidenceInterval.Lower)
		assert.InDelta(t, 1.96*89.52, d.ConfidenceInterval.Upper, 1e-9)
	}
}

func TestAggregateWeekFollowsLocalDatesAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// Sunday 2024-03-10 has 23 local hours.
	day := time.Date(2024, 3, 9, 0, 0, 0, 0, ny)
	end := time.Date(2024, 3, 16, 0, 0, 0, 0, ny)
	n := int(end.Sub(day) / time.Hour)
	require.Equal(t, 167, n)

	hourly := hourlyPoints(day, n, func(ts time.Time) float64 {
		local := ts.In(ny)
		v := float64(local.Day())
		if local.Hour() == 20 {
			v += 100
		}
		return v
	})
	wf := AggregateWeek(day, hourly, 0)
	require.Len(t, wf.Daily, 7)
	for i, d := range wf.Daily {
		date := day.AddDate(0, 0, i)
		assert.Equal(t, date.Format("2006-01-02"), d.Date)
		assert.Equal(t, float64(date.Day()), d.MinDemand, d.Date)
		assert.Equal(t, 20, d.PeakHour, d.Date)
	}
	assert.InDelta(t, 23*10+100, wf.Daily[1].TotalEnergyMWh, 1e-9)
}

func TestFallbackWeek(t *testing.T) {
	wf := FallbackWeek(time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC), 3000)
	require.Len(t, wf.Daily, 7)
	assert.Equal(t, "2025-01-04", wf.Daily[6].Date)
	for d, day := range wf.Daily {
		avg := 3000 + 50*float64(d)
		assert.Equal(t, avg, day.AvgDemand)
		assert.InDelta(t, avg*1.3, day.PeakDemand, 1e-9)
		assert.InDelta(t, avg*0.7, day.MinDemand, 1e-9)
		assert.InDelta(t, avg*24, day.TotalEnergyMWh, 1e-9)
		assert.Equal(t, 14, day.PeakHour)
		assert.InDelta(t, avg*0.9, day.ConfidenceInterval.Lower, 1e-9)
		assert.InDelta(t, avg*1.1, day.ConfidenceInterval.Upper, 1e-9)
	}
	assert.Equal(t, "2025-01-04", wf.Summary.PeakDay)
	assert.Equal(t, 3300.0, wf.Summary.PeakDemand)
	assert.Equal(t, 3150.0, wf.Summary.AvgDemand)
}

func TestPredictWeekly(t *testing.T) {
	pts := flatHistory(96, 1000)
	o := testEnv{
		history:  repository.NewMemoryHistory(pts),
		baseline: lagBaseline{idx: featureIndex(t, "lag_1")},
	}.build(t)

	wf, err := o.PredictWeekly(context.Background(), time.Date(2024, 3, 8, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.ModeIterative, wf.Mode)
	assert.Equal(t, "2024-03-08", wf.StartDate)
	require.Len(t, wf.Daily, 7)
	for _, d := range wf.Daily {
		assert.InDelta(t, 1000, d.AvgDemand, 1e-9)
		assert.InDelta(t, 24000, d.TotalEnergyMWh, 1e-6)
		assert.InDelta(t, 1000-1.96*89.52, d.ConfidenceInterval.Lower, 1e-9)
	}
}

func TestPredictWeeklyFallsBack(t *testing.T) {
	hist := repository.NewMemoryHistory(nil)
	hist.Fail = errors.New("down")
	o := testEnv{history: hist, baseline: lagBaseline{}}.build(t)

	wf, err := o.PredictWeekly(context.Background(), time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.ModeFallback, wf.Mode)
	assert.Equal(t, 3000.0, wf.Daily[0].AvgDemand)
	assert.Equal(t, 3300.0, wf.Daily[6].AvgDemand)
}

func TestAccuracy(t *testing.T) {
	m := Accuracy([]float64{100, 200}, []float64{110, 190})
	assert.InDelta(t, 10, m.MAE, 1e-9)
	assert.InDelta(t, 10, m.RMSE, 1e-9)
	assert.InDelta(t, 7.5, m.MAPE, 1e-9)

	zero := Accuracy([]float64{0}, []float64{1})
	assert.InDelta(t, 1e8, zero.MAPE, 1e-3)
	assert.False(t, math.IsInf(zero.MAPE, 0))

	assert.Equal(t, models.AccuracyMetrics{}, Accuracy(nil, nil))
}
