package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Regressor errors.
var (
	ErrFeatureMismatch = errors.New("feature count does not match model")
	ErrInvalidModel    = errors.New("invalid model")
)

// Regressor predicts a single value from a dense feature row.
type Regressor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
}

// leafNode marks a node without children.
const leafNode = -1

// TreeNode is one node of a regression tree. A node is a leaf when Left is -1.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a regression tree rooted at node 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeEnsemble is a random forest exported as JSON: the prediction is the
// mean of every tree's leaf value.
type TreeEnsemble struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

// DecodeTreeEnsemble reads and validates an ensemble.
func DecodeTreeEnsemble(r io.Reader) (*TreeEnsemble, error) {
	var e TreeEnsemble
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrInvalidModel, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Validate checks that every tree is well formed. Children must point
// forward so that traversal always terminates.
func (e *TreeEnsemble) Validate() error {
	if e.NFeatures <= 0 {
		return fmt.Errorf("%w: n_features must be positive", ErrInvalidModel)
	}
	if len(e.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidModel)
	}

	for t, tree := range e.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrInvalidModel, t)
		}
		for i, n := range tree.Nodes {
			if n.Left == leafNode {
				continue
			}
			if n.Feature < 0 || n.Feature >= e.NFeatures {
				return fmt.Errorf("%w: tree %d node %d uses feature %d", ErrInvalidModel, t, i, n.Feature)
			}
			if n.Left <= i || n.Left >= len(tree.Nodes) || n.Right <= i || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("%w: tree %d node %d has invalid children", ErrInvalidModel, t, i)
			}
		}
	}
	return nil
}

// NumFeatures returns the width of the expected feature row.
func (e *TreeEnsemble) NumFeatures() int {
	return e.NFeatures
}

// Predict averages the leaf values reached in every tree. Samples go left
// when x <= threshold.
func (e *TreeEnsemble) Predict(features []float64) (float64, error) {
	if len(features) != e.NFeatures {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureMismatch, len(features), e.NFeatures)
	}

	var sum float64
	for _, tree := range e.Trees {
		sum += tree.predict(features)
	}
	return sum / float64(len(e.Trees)), nil
}

func (t *Tree) predict(features []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leafNode {
			return n.Value
		}
		if features[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}
