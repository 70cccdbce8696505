package models

import "time"

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

type DailyForecast struct {
	Date               string             `json:"date"`
	AvgDemand          float64            `json:"avg_demand"`
	PeakDemand         float64            `json:"peak_demand"`
	MinDemand          float64            `json:"min_demand"`
	TotalEnergyMWh     float64            `json:"total_energy_mwh"`
	PeakHour           int                `json:"peak_hour"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

type WeeklySummary struct {
	AvgDemand      float64 `json:"avg_demand"`
	TotalEnergyMWh float64 `json:"total_energy_mwh"`
	PeakDay        string  `json:"peak_day"`
	PeakDemand     float64 `json:"peak_demand"`
}

type WeeklyForecast struct {
	StartDate   string          `json:"start_date"`
	Daily       []DailyForecast `json:"daily_forecasts"`
	Summary     WeeklySummary   `json:"weekly_summary"`
	Mode        Mode            `json:"mode"`
	Model       string          `json:"model"`
	Unit        string          `json:"unit"`
	GeneratedAt time.Time       `json:"generated_at"`
}
