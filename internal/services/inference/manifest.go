package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"GridCast/internal/domain/models"
	domsvc "GridCast/internal/domain/service"
	"GridCast/internal/services/residual"
	"GridCast/pkg/config"
)

// ErrArtifact marks a model artifact that is missing or inconsistent with
// configuration. The process must not serve with it.
var ErrArtifact = errors.New("model artifact")

type ModelRef struct {
	Kind  string  `json:"kind"` // tree | mlp | constant | remote
	Path  string  `json:"path,omitempty"`
	Value float64 `json:"value,omitempty"` // constant: residual in value units
}

// Sample is a known-good input with the baseline output recorded at export
// time, in value units.
type Sample struct {
	Features         []float64 `json:"features"`
	ExpectedBaseline float64   `json:"expected_baseline"`
	Tolerance        float64   `json:"tolerance,omitempty"` // relative, default 1%
}

type Manifest struct {
	Version       string             `json:"version"`
	TrainedAt     string             `json:"trained_at,omitempty"`
	Baseline      ModelRef           `json:"baseline"`
	Correction    ModelRef           `json:"correction"`
	Scaler        string             `json:"scaler"`
	FeatureOrder  string             `json:"feature_order"`
	ResidualStats string             `json:"residual_stats,omitempty"`
	ValueUnit     string             `json:"value_unit"`
	ScaleFactor   float64            `json:"scale_factor"`
	Sample        *Sample            `json:"sample,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// Artifacts is the read-only model state shared by every request.
type Artifacts struct {
	Version       string
	TrainedAt     string
	Baseline      domsvc.BaselineModel
	Correction    domsvc.CorrectionModel
	Scaler        residual.Scaler
	FeatureOrder  []string
	ResidualStats models.ResidualStats
	Unit          string
	Metrics       map[string]float64
	Checks        map[string]bool
}

// LoadArtifacts reads the manifest under cfg.ArtifactDir and every file it
// names, then cross-checks them against cfg.
func LoadArtifacts(ctx context.Context, cfg config.ModelConfig) (*Artifacts, error) {
	dir := cfg.ArtifactDir
	var m Manifest
	if err := readJSON(filepath.Join(dir, cfg.Manifest), &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrArtifact, err)
	}

	a := &Artifacts{
		Version:       m.Version,
		TrainedAt:     m.TrainedAt,
		Unit:          m.ValueUnit,
		Metrics:       m.Metrics,
		ResidualStats: models.DefaultResidualStats,
		Checks:        map[string]bool{},
	}

	if m.ValueUnit != cfg.ValueUnit {
		return nil, fmt.Errorf("%w: manifest unit %q, configured %q", ErrArtifact, m.ValueUnit, cfg.ValueUnit)
	}
	if m.ScaleFactor == 0 {
		m.ScaleFactor = 1
	}
	if math.Abs(m.ScaleFactor-cfg.ScaleFactor) > 1e-9 {
		return nil, fmt.Errorf("%w: manifest scale factor %v, configured %v", ErrArtifact, m.ScaleFactor, cfg.ScaleFactor)
	}
	a.Checks["units"] = true

	if err := readJSON(filepath.Join(dir, m.FeatureOrder), &a.FeatureOrder); err != nil {
		return nil, fmt.Errorf("%w: feature order: %v", ErrArtifact, err)
	}
	if len(a.FeatureOrder) != cfg.FeatureCount {
		return nil, fmt.Errorf("%w: %d features in order file, configured %d", ErrArtifact, len(a.FeatureOrder), cfg.FeatureCount)
	}
	a.Checks["feature_order"] = true

	if err := readJSON(filepath.Join(dir, m.Scaler), &a.Scaler); err != nil {
		return nil, fmt.Errorf("%w: scaler: %v", ErrArtifact, err)
	}
	if err := a.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
	}
	a.Checks["scaler"] = true

	if m.ResidualStats != "" {
		if err := readJSON(filepath.Join(dir, m.ResidualStats), &a.ResidualStats); err != nil {
			return nil, fmt.Errorf("%w: residual stats: %v", ErrArtifact, err)
		}
		if !(a.ResidualStats.Std > 0) {
			return nil, fmt.Errorf("%w: residual stats std %v", ErrArtifact, a.ResidualStats.Std)
		}
	}

	base, err := loadBaseline(dir, m.Baseline, cfg)
	if err != nil {
		return nil, err
	}
	if base.FeatureCount() != cfg.FeatureCount {
		return nil, fmt.Errorf("%w: baseline takes %d features, configured %d", ErrArtifact, base.FeatureCount(), cfg.FeatureCount)
	}
	a.Baseline = Scaled(base, m.ScaleFactor)
	a.Checks["baseline"] = true

	corr, err := loadCorrection(dir, m.Correction, cfg, a.Scaler)
	if err != nil {
		return nil, err
	}
	if corr.WindowSize() != cfg.WindowSize {
		return nil, fmt.Errorf("%w: correction window %d, configured %d", ErrArtifact, corr.WindowSize(), cfg.WindowSize)
	}
	a.Correction = corr
	a.Checks["correction"] = true

	if m.Sample != nil {
		if err := checkSample(ctx, a.Baseline, *m.Sample); err != nil {
			return nil, err
		}
		a.Checks["sample"] = true
	}
	return a, nil
}

func loadBaseline(dir string, ref ModelRef, cfg config.ModelConfig) (domsvc.BaselineModel, error) {
	switch ref.Kind {
	case "tree", "":
		m, err := LoadTreeEnsemble(filepath.Join(dir, ref.Path))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
		}
		return m, nil
	case "remote":
		return NewRemoteBaseline(cfg.RemoteURL, cfg.RemoteTimeout, cfg.FeatureCount), nil
	default:
		return nil, fmt.Errorf("%w: unknown baseline kind %q", ErrArtifact, ref.Kind)
	}
}

func loadCorrection(dir string, ref ModelRef, cfg config.ModelConfig, sc residual.Scaler) (domsvc.CorrectionModel, error) {
	switch ref.Kind {
	case "mlp", "":
		m, err := LoadSequenceModel(filepath.Join(dir, ref.Path))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
		}
		return m, nil
	case "constant":
		return ConstantCorrection{Value: ref.Value, Window: cfg.WindowSize, Scaler: sc}, nil
	case "remote":
		return NewRemoteCorrection(cfg.RemoteURL, cfg.RemoteTimeout, cfg.WindowSize), nil
	default:
		return nil, fmt.Errorf("%w: unknown correction kind %q", ErrArtifact, ref.Kind)
	}
}

// checkSample catches unit drift between model generations, such as a
// baseline exported in tens of MW.
func checkSample(ctx context.Context, base domsvc.BaselineModel, s Sample) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	got, err := base.Predict(ctx, s.Features)
	if err != nil {
		return fmt.Errorf("%w: sample prediction: %v", ErrArtifact, err)
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = 0.01
	}
	denom := math.Max(math.Abs(s.ExpectedBaseline), 1)
	if math.Abs(got-s.ExpectedBaseline)/denom > tol {
		return fmt.Errorf("%w: sample baseline %.2f, expected %.2f (check value_unit/scale_factor)", ErrArtifact, got, s.ExpectedBaseline)
	}
	return nil
}

func readJSON(path string, dest interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dest)
}

type scaledBaseline struct {
	domsvc.BaselineModel
	factor float64
}

// Scaled multiplies baseline output by factor. A factor of 1 returns m.
func Scaled(m domsvc.BaselineModel, factor float64) domsvc.BaselineModel {
	if factor == 1 {
		return m
	}
	return scaledBaseline{BaselineModel: m, factor: factor}
}

func (s scaledBaseline) Predict(ctx context.Context, fv models.FeatureVector) (float64, error) {
	v, err := s.BaselineModel.Predict(ctx, fv)
	return v * s.factor, err
}
