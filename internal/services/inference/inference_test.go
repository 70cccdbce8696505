package inference

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"GridCast/internal/services/residual"
	"GridCast/pkg/config"
)

// stump splits on feature 0 at 10: left 100, right 200.
func stump() Tree {
	return Tree{Nodes: []TreeNode{
		{Feature: 0, Threshold: 10, Left: 1, Right: 2, DefaultLeft: true},
		{Leaf: true, Value: 100},
		{Leaf: true, Value: 200},
	}}
}

func TestTreeEnsemblePredict(t *testing.T) {
	m := &TreeEnsemble{BaseScore: 3000, NumFeatures: 2, Trees: []Tree{stump(), {Nodes: []TreeNode{{Leaf: true, Value: -5}}}}}
	require.NoError(t, m.Validate())

	ctx := context.Background()
	got, err := m.Predict(ctx, []float64{5, 0})
	require.NoError(t, err)
	assert.Equal(t, 3095.0, got)

	got, err = m.Predict(ctx, []float64{10, 0})
	require.NoError(t, err)
	assert.Equal(t, 3195.0, got)

	got, err = m.Predict(ctx, []float64{math.NaN(), 0})
	require.NoError(t, err)
	assert.Equal(t, 3095.0, got)

	_, err = m.Predict(ctx, []float64{1})
	assert.Error(t, err)
}

func TestTreeEnsembleValidateRejectsCycles(t *testing.T) {
	m := &TreeEnsemble{NumFeatures: 1, Trees: []Tree{{Nodes: []TreeNode{
		{Feature: 0, Threshold: 1, Left: 0, Right: 1},
		{Leaf: true},
	}}}}
	assert.Error(t, m.Validate())

	m = &TreeEnsemble{NumFeatures: 1, Trees: []Tree{{Nodes: []TreeNode{
		{Feature: 3, Threshold: 1, Left: 1, Right: 2},
		{Leaf: true}, {Leaf: true},
	}}}}
	assert.Error(t, m.Validate())
}

func TestSequenceModelForward(t *testing.T) {
	m := &SequenceModel{Window: 2, Layers: []Layer{
		{Weights: [][]float64{{1, 1}, {-1, 0}}, Biases: []float64{0, 0}},
		{Weights: [][]float64{{0.5, 2}}, Biases: []float64{0.25}},
	}}
	require.NoError(t, m.Validate())

	// hidden = relu([3, -1]) = [3, 0]; out = 1.5 + 0 + 0.25
	got, err := m.Predict(context.Background(), []float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.75, got, 1e-12)

	_, err = m.Predict(context.Background(), []float64{1})
	assert.Error(t, err)
}

func TestSequenceModelValidateShapes(t *testing.T) {
	m := &SequenceModel{Window: 3, Layers: []Layer{{Weights: [][]float64{{1, 1}}, Biases: []float64{0}}}}
	assert.Error(t, m.Validate())
	m = &SequenceModel{Window: 2, Layers: []Layer{{Weights: [][]float64{{1, 1}, {1, 1}}, Biases: []float64{0, 0}}}}
	assert.Error(t, m.Validate(), "two outputs")
}

func writeJSON(t *testing.T, dir, name string, v interface{}) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), b, 0o644))
}

func artifactDir(t *testing.T, mutate func(*Manifest)) (string, config.ModelConfig) {
	t.Helper()
	dir := t.TempDir()
	order := []string{"a", "b"}
	writeJSON(t, dir, "feature_order.json", order)
	writeJSON(t, dir, "scaler.json", map[string]float64{"mean": 1, "std": 50})
	writeJSON(t, dir, "residual_stats.json", map[string]interface{}{"mean": 2, "std": 80, "n": 1000})
	writeJSON(t, dir, "baseline.json", TreeEnsemble{BaseScore: 3000, NumFeatures: 2, Trees: []Tree{stump()}})
	m := Manifest{
		Version:       "v-test",
		Baseline:      ModelRef{Kind: "tree", Path: "baseline.json"},
		Correction:    ModelRef{Kind: "constant"},
		Scaler:        "scaler.json",
		FeatureOrder:  "feature_order.json",
		ResidualStats: "residual_stats.json",
		ValueUnit:     "MW",
		ScaleFactor:   1,
		Sample:        &Sample{Features: []float64{0, 0}, ExpectedBaseline: 3100},
	}
	if mutate != nil {
		mutate(&m)
	}
	writeJSON(t, dir, "manifest.json", m)
	return dir, config.ModelConfig{
		ArtifactDir: dir, Manifest: "manifest.json",
		WindowSize: 4, FeatureCount: 2, ValueUnit: "MW", ScaleFactor: 1,
	}
}

func TestLoadArtifacts(t *testing.T) {
	_, cfg := artifactDir(t, nil)
	a, err := LoadArtifacts(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "v-test", a.Version)
	assert.Equal(t, []string{"a", "b"}, a.FeatureOrder)
	assert.Equal(t, 50.0, a.Scaler.Std)
	assert.Equal(t, 80.0, a.ResidualStats.Std)
	assert.Equal(t, 4, a.Correction.WindowSize())
	assert.True(t, a.Checks["sample"])

	// A zero constant contributes nothing once denormalized, despite the
	// scaler's non-zero mean.
	z, err := a.Correction.Predict(context.Background(), make([]float64, 4))
	require.NoError(t, err)
	assert.InDelta(t, 0, a.Scaler.Denormalize(z), 1e-12)
}

func TestConstantCorrectionInLoadUnits(t *testing.T) {
	sc := residual.Scaler{Mean: 9.11, Std: 89.52}
	c := ConstantCorrection{Value: 25, Window: 3, Scaler: sc}
	z, err := c.Predict(context.Background(), make([]float64, 3))
	require.NoError(t, err)
	assert.InDelta(t, 25, sc.Denormalize(z), 1e-9)

	raw := ConstantCorrection{Value: 0.5, Window: 3}
	z, err = raw.Predict(context.Background(), make([]float64, 3))
	require.NoError(t, err)
	assert.Equal(t, 0.5, z)

	_, err = c.Predict(context.Background(), make([]float64, 2))
	assert.Error(t, err)
}

func TestLoadArtifactsRefusesMismatch(t *testing.T) {
	cases := map[string]func(*Manifest, *config.ModelConfig){
		"unit":          func(m *Manifest, c *config.ModelConfig) { c.ValueUnit = "kW" },
		"scale":         func(m *Manifest, c *config.ModelConfig) { c.ScaleFactor = 10 },
		"feature count": func(m *Manifest, c *config.ModelConfig) { c.FeatureCount = 17 },
		"sample drift":  func(m *Manifest, c *config.ModelConfig) { m.Sample.ExpectedBaseline = 310 },
		"missing model": func(m *Manifest, c *config.ModelConfig) { m.Baseline.Path = "nope.json" },
		"bad kind":      func(m *Manifest, c *config.ModelConfig) { m.Correction.Kind = "lstm" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var cfgMut func(*config.ModelConfig)
			_, cfg := artifactDir(t, func(m *Manifest) {
				var c config.ModelConfig
				mutate(m, &c)
				cfgMut = func(dst *config.ModelConfig) {
					if c.ValueUnit != "" {
						dst.ValueUnit = c.ValueUnit
					}
					if c.ScaleFactor != 0 {
						dst.ScaleFactor = c.ScaleFactor
					}
					if c.FeatureCount != 0 {
						dst.FeatureCount = c.FeatureCount
					}
				}
			})
			cfgMut(&cfg)
			_, err := LoadArtifacts(context.Background(), cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrArtifact), "got %v", err)
		})
	}
}

func TestScaledBaseline(t *testing.T) {
	m := &TreeEnsemble{BaseScore: 300, NumFeatures: 1, Trees: []Tree{{Nodes: []TreeNode{{Leaf: true}}}}}
	got, err := Scaled(m, 10).Predict(context.Background(), []float64{0})
	require.NoError(t, err)
	assert.Equal(t, 3000.0, got)
	assert.Same(t, m, Scaled(m, 1))
}
