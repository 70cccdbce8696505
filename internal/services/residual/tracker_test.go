package residual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalerRoundTrip(t *testing.T) {
	s := Scaler{Mean: 9.11, Std: 89.52}
	for _, x := range []float64{-1234.5, -1, 0, 0.001, 42, 9.11, 5000} {
		assert.InDelta(t, x, s.Denormalize(s.Normalize(x)), 1e-9)
	}
}

func TestScalerValidate(t *testing.T) {
	assert.NoError(t, Scaler{Mean: 0, Std: 1}.Validate())
	assert.Error(t, Scaler{Mean: 0, Std: 0}.Validate())
	assert.Error(t, Scaler{Mean: math.NaN(), Std: 1}.Validate())
	assert.Error(t, Scaler{Mean: 0, Std: math.Inf(1)}.Validate())
}

func TestFitScaler(t *testing.T) {
	s, err := FitScaler([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 2.0, s.Std, 1e-12)

	_, err = FitScaler([]float64{1})
	assert.Error(t, err)
	_, err = FitScaler([]float64{3, 3, 3})
	assert.Error(t, err)
}

func TestTrackerWindowLengthInvariant(t *testing.T) {
	tr := NewTracker(168, Scaler{Mean: 0, Std: 1})
	require.Equal(t, 168, tr.Len())

	tr.Initialize([]float64{1, 2, 3})
	require.Equal(t, 168, tr.Len())
	w := tr.Current()
	assert.Equal(t, 0.0, w[0])
	assert.Equal(t, []float64{1, 2, 3}, w[165:])

	for i := 0; i < 500; i++ {
		tr.Push(float64(i))
		require.Equal(t, 168, tr.Len())
	}
	w = tr.Current()
	assert.Equal(t, 499.0, w[167])
	assert.Equal(t, 332.0, w[0])
}

func TestTrackerInitializeKeepsNewest(t *testing.T) {
	tr := NewTracker(3, Scaler{Mean: 10, Std: 2})
	tr.Initialize([]float64{0, 10, 12, 14})
	assert.Equal(t, []float64{0, 1, 2}, tr.Current())
}

func TestTrackerCurrentIsACopy(t *testing.T) {
	tr := NewTracker(2, Scaler{Mean: 0, Std: 1})
	w := tr.Current()
	w[0] = 99
	assert.Equal(t, 0.0, tr.Current()[0])
}
