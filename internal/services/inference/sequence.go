package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"

	domsvc "GridCast/internal/domain/service"
	"GridCast/internal/services/residual"
)

// Layer is a dense layer, weights laid out [out][in].
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

// SequenceModel maps a window of normalized residuals to the next
// normalized residual with a feed-forward network: ReLU on hidden layers,
// linear scalar output.
type SequenceModel struct {
	Window int     `json:"window"`
	Layers []Layer `json:"layers"`
}

var _ domsvc.CorrectionModel = (*SequenceModel)(nil)

func LoadSequenceModel(path string) (*SequenceModel, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sequence model: %w", err)
	}
	var m SequenceModel
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse sequence model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *SequenceModel) Validate() error {
	if len(m.Layers) == 0 {
		return fmt.Errorf("sequence model: no layers")
	}
	in := m.Window
	for i, l := range m.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Biases) {
			return fmt.Errorf("sequence model layer %d: %d rows, %d biases", i, len(l.Weights), len(l.Biases))
		}
		for j, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("sequence model layer %d row %d: %d inputs, want %d", i, j, len(row), in)
			}
		}
		in = len(l.Weights)
	}
	if in != 1 {
		return fmt.Errorf("sequence model: output width %d, want 1", in)
	}
	return nil
}

func (m *SequenceModel) WindowSize() int { return m.Window }

func (m *SequenceModel) Predict(_ context.Context, window []float64) (float64, error) {
	if len(window) != m.Window {
		return 0, fmt.Errorf("sequence model: window %d, want %d", len(window), m.Window)
	}
	x := window
	last := len(m.Layers) - 1
	for li, l := range m.Layers {
		out := make([]float64, len(l.Weights))
		for j, row := range l.Weights {
			out[j] = floats.Dot(row, x)
		}
		floats.Add(out, l.Biases)
		if li < last {
			for j, v := range out {
				out[j] = math.Max(v, 0)
			}
		}
		x = out
	}
	return x[0], nil
}

// ConstantCorrection adds the same residual, in load units, to every hour.
// It emits Scaler.Normalize(Value) so that denormalizing gives Value back;
// Value zero reproduces the bare baseline whatever the scaler mean. A zero
// Scaler passes Value through unchanged.
type ConstantCorrection struct {
	Value  float64
	Window int
	Scaler residual.Scaler
}

var _ domsvc.CorrectionModel = ConstantCorrection{}

func (c ConstantCorrection) WindowSize() int { return c.Window }

func (c ConstantCorrection) Predict(_ context.Context, window []float64) (float64, error) {
	if len(window) != c.Window {
		return 0, fmt.Errorf("constant correction: window %d, want %d", len(window), c.Window)
	}
	if c.Scaler.Std > 0 {
		return c.Scaler.Normalize(c.Value), nil
	}
	return c.Value, nil
}
