package usecase

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"GridCast/internal/domain/models"
	domrepo "GridCast/internal/domain/repository"
	"GridCast/pkg/util"
)

const (
	weekDays      = 7
	dateLayout    = "2006-01-02"
	fallbackDelta = 50.0
)

// PredictWeekly forecasts every hour of the seven local days from startDate
// and aggregates them per day. A week holding a DST change runs 167 or 169
// hours.
func (o *Orchestrator) PredictWeekly(ctx context.Context, startDate time.Time) (*models.WeeklyForecast, error) {
	day := util.DayFloor(startDate.In(o.loc))
	end := time.Date(day.Year(), day.Month(), day.Day()+weekDays, 0, 0, 0, 0, o.loc)
	res := o.run(ctx, runSpec{
		start:   day,
		horizon: int(end.Sub(day) / time.Hour),
		kind:    domrepo.KindWeekly,
		weather: models.AutoFetchWeather(),
	})

	var wf *models.WeeklyForecast
	if res.Metadata.Mode == models.ModeFallback {
		wf = FallbackWeek(day, o.cfg.FallbackBase)
	} else {
		wf = AggregateWeek(day, res.Points, o.models.Stats.Std)
	}
	wf.Mode = res.Metadata.Mode
	wf.Model = o.models.Version
	wf.Unit = o.models.Unit
	wf.GeneratedAt = res.Metadata.GeneratedAt
	return wf, nil
}

// AggregateWeek groups points by their local date in day's zone and
// summarizes the first seven days. The day CI is avg ± 1.96·std with the
// lower bound clamped at zero.
func AggregateWeek(day time.Time, points []models.PredictionPoint, std float64) *models.WeeklyForecast {
	loc := day.Location()
	wf := &models.WeeklyForecast{
		StartDate: day.Format(dateLayout),
		Daily:     make([]models.DailyForecast, 0, weekDays),
	}

	var (
		dates []string
		byDay = make(map[string][]models.PredictionPoint, weekDays)
	)
	for _, p := range points {
		d := p.Timestamp.In(loc).Format(dateLayout)
		if _, ok := byDay[d]; !ok {
			if len(dates) == weekDays {
				break
			}
			dates = append(dates, d)
		}
		byDay[d] = append(byDay[d], p)
	}

	avgs := make([]float64, 0, weekDays)
	margin := bandZ * std
	for _, d := range dates {
		pts := byDay[d]
		vals := make([]float64, len(pts))
		for i, p := range pts {
			vals[i] = p.Combined
		}
		avg := stat.Mean(vals, nil)
		avgs = append(avgs, avg)
		wf.Daily = append(wf.Daily, models.DailyForecast{
			Date:           d,
			AvgDemand:      avg,
			PeakDemand:     floats.Max(vals),
			MinDemand:      floats.Min(vals),
			TotalEnergyMWh: floats.Sum(vals),
			PeakHour:       pts[floats.MaxIdx(vals)].Timestamp.In(loc).Hour(),
			ConfidenceInterval: models.ConfidenceInterval{
				Lower: math.Max(0, avg-margin),
				Upper: avg + margin,
			},
		})
	}
	summarize(wf, avgs)
	return wf
}

// FallbackWeek is the static week: day d averages base+50·d.
func FallbackWeek(day time.Time, base float64) *models.WeeklyForecast {
	wf := &models.WeeklyForecast{
		StartDate: day.Format(dateLayout),
		Daily:     make([]models.DailyForecast, weekDays),
	}
	avgs := make([]float64, weekDays)
	for d := range wf.Daily {
		avg := base + fallbackDelta*float64(d)
		avgs[d] = avg
		wf.Daily[d] = models.DailyForecast{
			Date:           day.AddDate(0, 0, d).Format(dateLayout),
			AvgDemand:      avg,
			PeakDemand:     avg * 1.3,
			MinDemand:      avg * 0.7,
			TotalEnergyMWh: avg * 24,
			PeakHour:       fallbackPeakHour,
			ConfidenceInterval: models.ConfidenceInterval{
				Lower: avg * (1 - fallbackBand),
				Upper: avg * (1 + fallbackBand),
			},
		}
	}
	summarize(wf, avgs)
	return wf
}

// summarize fills the weekly summary; the peak day is the day with the
// highest average.
func summarize(wf *models.WeeklyForecast, avgs []float64) {
	if len(avgs) == 0 {
		return
	}
	var total float64
	for _, d := range wf.Daily {
		total += d.TotalEnergyMWh
	}
	peak := floats.MaxIdx(avgs)
	wf.Summary = models.WeeklySummary{
		AvgDemand:      stat.Mean(avgs, nil),
		TotalEnergyMWh: total,
		PeakDay:        wf.Daily[peak].Date,
		PeakDemand:     avgs[peak],
	}
}
