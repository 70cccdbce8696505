package weather

import (
	"math"
	"time"

	"GridCast/internal/domain/models"
)

// Seasonal is the deterministic stand-in used when no forecast can be had.
// Temperature follows a day-of-year sinusoid peaking in early June plus a
// diurnal swing peaking mid-afternoon.
type Seasonal struct {
	BaseTemp         float64
	AnnualAmplitude  float64
	AnnualOffset     float64
	DiurnalAmplitude float64
	Humidity         float64
	WindSpeed        float64
	DaylightSolar    float64
	Loc              *time.Location
}

func NewSeasonal(baseTemp float64, loc *time.Location) *Seasonal {
	if loc == nil {
		loc = time.UTC
	}
	return &Seasonal{
		BaseTemp:         baseTemp,
		AnnualAmplitude:  8.5,
		AnnualOffset:     3.5,
		DiurnalAmplitude: 4,
		Humidity:         60,
		WindSpeed:        3.5,
		DaylightSolar:    100,
		Loc:              loc,
	}
}

func (s *Seasonal) At(ts time.Time) models.WeatherFields {
	local := ts.In(s.Loc)
	doy := float64(local.YearDay())
	hour := float64(local.Hour())

	annual := s.AnnualOffset + s.AnnualAmplitude*math.Sin(2*math.Pi*(doy-69)/365.25)
	diurnal := math.Sin(2 * math.Pi * (hour - 9) / 24)
	temp := s.BaseTemp + annual + s.DiurnalAmplitude*diurnal

	var solar float64
	if local.Hour() >= 6 && local.Hour() <= 18 {
		solar = s.DaylightSolar
	}
	return models.WeatherFields{
		Temperature:         temp,
		Humidity:            s.Humidity - 10*diurnal,
		ApparentTemperature: temp,
		SolarRadiation:      solar,
		Precipitation:       0,
		WindSpeed:           s.WindSpeed,
		Source:              models.WeatherSourceSynthetic,
	}
}
