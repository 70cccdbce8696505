package usecase

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"GridCast/internal/domain/models"
)

const mapeFloor = 1e-6

// Accuracy scores predicted against actual. MAPE divides by
// max(actual, 1e-6) and is in percent.
func Accuracy(actual, predicted []float64) models.AccuracyMetrics {
	n := len(actual)
	if n == 0 || len(predicted) != n {
		return models.AccuracyMetrics{}
	}
	errs := make([]float64, n)
	floats.SubTo(errs, predicted, actual)

	var pct float64
	for i, e := range errs {
		pct += math.Abs(e) / math.Max(actual[i], mapeFloor)
	}
	return models.AccuracyMetrics{
		MAE:  floats.Norm(errs, 1) / float64(n),
		MAPE: pct / float64(n) * 100,
		RMSE: floats.Norm(errs, 2) / math.Sqrt(float64(n)),
	}
}
