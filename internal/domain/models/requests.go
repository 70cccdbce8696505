package models

// Requests for the forecast HTTP endpoints.

type PredictRequest struct {
	Timestamp           string   `json:"timestamp" validate:"required"`
	Temperature         *float64 `json:"temperature" validate:"omitempty,gte=-60,lte=60"`
	Humidity            *float64 `json:"humidity" validate:"omitempty,gte=0,lte=100"`
	ApparentTemperature *float64 `json:"apparent_temperature" validate:"omitempty,gte=-60,lte=80"`
	SolarRadiation      *float64 `json:"solar_radiation" validate:"omitempty,gte=0"`
	Precipitation       *float64 `json:"precipitation" validate:"omitempty,gte=0"`
	WindSpeed           *float64 `json:"wind_speed" validate:"omitempty,gte=0"`
}

// Patch extracts the optional weather override.
func (r PredictRequest) Patch() WeatherPatch {
	return WeatherPatch{
		Temperature:         r.Temperature,
		Humidity:            r.Humidity,
		ApparentTemperature: r.ApparentTemperature,
		SolarRadiation:      r.SolarRadiation,
		Precipitation:       r.Precipitation,
		WindSpeed:           r.WindSpeed,
	}
}

type HorizonRequest struct {
	Timestamp string `query:"timestamp" json:"timestamp" validate:"required"`
	Horizon   int    `query:"horizon" json:"horizon" default:"24" validate:"gte=1,lte=168"`
}

type WeeklyRequest struct {
	StartDate string `query:"start_date" json:"start_date"`
}
