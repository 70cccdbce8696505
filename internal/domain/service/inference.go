package service

import (
	"context"

	"GridCast/internal/domain/models"
)

// BaselineModel maps a feature vector to a load estimate in raw units.
type BaselineModel interface {
	Predict(ctx context.Context, fv models.FeatureVector) (float64, error)
	FeatureCount() int
}

// CorrectionModel predicts the next normalized residual from a window of
// normalized residuals. Callers de-normalize the output.
type CorrectionModel interface {
	Predict(ctx context.Context, window []float64) (float64, error)
	WindowSize() int
}
