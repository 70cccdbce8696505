package models

import "time"

// WeatherFields are the six weather inputs of the baseline model.
type WeatherFields struct {
	Temperature         float64 `json:"temperature"`
	Humidity            float64 `json:"humidity"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	SolarRadiation      float64 `json:"solar_radiation"`
	Precipitation       float64 `json:"precipitation"`
	WindSpeed           float64 `json:"wind_speed"`
	Source              string  `json:"source,omitempty"`
}

const (
	WeatherSourceObserved  = "observed"
	WeatherSourceProvider  = "provider"
	WeatherSourceSynthetic = "synthetic"
	WeatherSourceRequest   = "request"
)

// ObservationPoint is one completed hour of ground truth. Weather is nil when
// the row was stored without weather columns.
type ObservationPoint struct {
	Timestamp time.Time      `json:"timestamp"`
	Load      float64        `json:"load"`
	Weather   *WeatherFields `json:"weather,omitempty"`
}

// FeatureVector is laid out in the artifact's feature order.
type FeatureVector []float64

type Mode string

const (
	ModeHistorical Mode = "historical"
	ModeIterative  Mode = "iterative"
	ModeFallback   Mode = "static_fallback"
)

// Tier is the data-source tier a point was produced under: 1 historical,
// 2 iterative, 4 static.
type Tier int

const (
	TierHistorical Tier = 1
	TierIterative  Tier = 2
	TierStatic     Tier = 4
)

func (m Mode) Tier() Tier {
	switch m {
	case ModeHistorical:
		return TierHistorical
	case ModeIterative:
		return TierIterative
	default:
		return TierStatic
	}
}

type PredictionPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	Baseline        float64   `json:"baseline"`
	Residual        float64   `json:"residual_correction"`
	Combined        float64   `json:"prediction"`
	ConfidenceLower float64   `json:"confidence_lower"`
	ConfidenceUpper float64   `json:"confidence_upper"`
	Confidence      float64   `json:"confidence_score"`
	Actual          *float64  `json:"actual,omitempty"`
	Tier            Tier      `json:"data_source_tier"`
}

type AccuracyMetrics struct {
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
}

type ForecastMetrics struct {
	Hybrid   AccuracyMetrics `json:"hybrid"`
	Baseline AccuracyMetrics `json:"baseline"`
	Samples  int             `json:"samples"`
}

type ForecastMetadata struct {
	ID                   string           `json:"id"`
	Mode                 Mode             `json:"mode"`
	CacheHit             bool             `json:"cache_hit"`
	ModelVersion         string           `json:"model_version"`
	Unit                 string           `json:"unit"`
	GeneratedAt          time.Time        `json:"generated_at"`
	LastAvailable        *time.Time       `json:"last_available,omitempty"`
	GapHours             int              `json:"gap_hours,omitempty"`
	DegradedWeatherHours int              `json:"degraded_weather_hours,omitempty"`
	Actuals              int              `json:"actuals_available,omitempty"`
	Metrics              *ForecastMetrics `json:"metrics,omitempty"`
	Reason               string           `json:"reason,omitempty"`
}

type ForecastResult struct {
	Start    time.Time         `json:"start"`
	Horizon  int               `json:"horizon"`
	Points   []PredictionPoint `json:"points"`
	Metadata ForecastMetadata  `json:"metadata"`
}

// Values returns the combined predictions in order.
func (r *ForecastResult) Values() []float64 {
	out := make([]float64, len(r.Points))
	for i, p := range r.Points {
		out[i] = p.Combined
	}
	return out
}

// HourForecast is the single-hour answer with the run metadata.
type HourForecast struct {
	PredictionPoint
	Metadata ForecastMetadata `json:"metadata"`
}

// ResidualStats describe the training residual distribution used for the
// confidence band.
type ResidualStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	N    int     `json:"n"`
}

var DefaultResidualStats = ResidualStats{Mean: 9.11, Std: 89.52}
