package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"GridCast/internal/domain/models"
	domsvc "GridCast/internal/domain/service"
)

// TreeNode is one node of a regression tree. Leaves carry Value; split
// nodes send x[Feature] < Threshold left. NaN inputs follow DefaultLeft.
type TreeNode struct {
	Leaf        bool    `json:"leaf"`
	Value       float64 `json:"value,omitempty"`
	Feature     int     `json:"feature,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
	Left        int     `json:"left,omitempty"`
	Right       int     `json:"right,omitempty"`
	DefaultLeft bool    `json:"default_left,omitempty"`
}

type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsemble is a gradient-boosted regressor exported as JSON node arrays.
// The prediction is BaseScore plus the sum of one leaf per tree.
type TreeEnsemble struct {
	BaseScore   float64 `json:"base_score"`
	NumFeatures int     `json:"num_features"`
	Trees       []Tree  `json:"trees"`
}

var _ domsvc.BaselineModel = (*TreeEnsemble)(nil)

func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree model: %w", err)
	}
	var m TreeEnsemble
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse tree model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every tree is well formed: children point forward
// (so evaluation terminates) and split features are in range.
func (m *TreeEnsemble) Validate() error {
	if m.NumFeatures <= 0 {
		return fmt.Errorf("tree model: num_features must be positive")
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("tree model: no trees")
	}
	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d: empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= m.NumFeatures {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			for _, c := range []int{n.Left, n.Right} {
				if c <= ni || c >= len(t.Nodes) {
					return fmt.Errorf("tree %d node %d: bad child %d", ti, ni, c)
				}
			}
		}
	}
	return nil
}

func (m *TreeEnsemble) FeatureCount() int { return m.NumFeatures }

func (m *TreeEnsemble) Predict(_ context.Context, fv models.FeatureVector) (float64, error) {
	if len(fv) != m.NumFeatures {
		return 0, fmt.Errorf("tree model: got %d features, want %d", len(fv), m.NumFeatures)
	}
	sum := m.BaseScore
	for _, t := range m.Trees {
		sum += t.eval(fv)
	}
	return sum, nil
}

func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.DefaultLeft {
				i = n.Left
			} else {
				i = n.Right
			}
		case v < n.Threshold:
			i = n.Left
		default:
			i = n.Right
		}
	}
}
