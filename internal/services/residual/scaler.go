package residual

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler is the affine normalizer fitted on training residuals.
type Scaler struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

func (s Scaler) Normalize(x float64) float64 { return (x - s.Mean) / s.Std }

func (s Scaler) Denormalize(z float64) float64 { return z*s.Std + s.Mean }

func (s Scaler) Validate() error {
	if math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0) {
		return fmt.Errorf("scaler mean is not finite: %v", s.Mean)
	}
	if !(s.Std > 0) || math.IsInf(s.Std, 0) {
		return fmt.Errorf("scaler std must be positive and finite: %v", s.Std)
	}
	return nil
}

// FitScaler computes population mean and standard deviation, matching a
// standard scaler fitted at training time.
func FitScaler(values []float64) (Scaler, error) {
	if len(values) < 2 {
		return Scaler{}, errors.New("need at least two residuals to fit a scaler")
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	s := Scaler{Mean: mean, Std: std}
	return s, s.Validate()
}
