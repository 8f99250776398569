package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// DecisionTree is a fitted binary tree stored as a flat node array; node 0
// is the root.
type DecisionTree struct {
	nodes       []TreeNode
	numFeatures int
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	ClassLabel int     `json:"class_label"`
	IsLeaf     bool    `json:"is_leaf"`
	// Counts holds per-class training sample counts at a leaf.
	Counts []float64 `json:"counts,omitempty"`
}

// NewDecisionTree validates nodes and returns a tree over them.
func NewDecisionTree(nodes []TreeNode) (*DecisionTree, error) {
	dt := &DecisionTree{}
	if err := dt.setNodes(nodes); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	idx := 0
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := dt.nodes[idx]
		if node.IsLeaf {
			return leafProba(node), nil
		}
		if node.FeatureIdx >= len(features) {
			return nil, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
	}
	return nil, errors.New("invalid tree state")
}

// NumFeatures is 0: a tree does not record its training width.
func (dt *DecisionTree) NumFeatures() int {
	return 0
}

// MinFeatures is one past the highest feature index the tree splits on.
func (dt *DecisionTree) MinFeatures() int {
	return dt.numFeatures
}

func (dt *DecisionTree) Save(path string) error {
	if len(dt.nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(dt.nodes)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (dt *DecisionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return dt.decode(payload)
}

func (dt *DecisionTree) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.nodes)
}

func (dt *DecisionTree) decode(payload []byte) error {
	var nodes []TreeNode
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return err
	}
	return dt.setNodes(nodes)
}

func (dt *DecisionTree) setNodes(nodes []TreeNode) error {
	if len(nodes) == 0 {
		return errors.New("decision tree has no nodes")
	}
	maxFeature := -1
	for i, node := range nodes {
		if node.IsLeaf {
			if node.ClassLabel != ClassNormal && node.ClassLabel != ClassHeartDisease {
				return fmt.Errorf("node %d: class label %d out of range", i, node.ClassLabel)
			}
			if len(node.Counts) != 0 && len(node.Counts) != 2 {
				return fmt.Errorf("node %d: expected 2 class counts, got %d", i, len(node.Counts))
			}
			for _, c := range node.Counts {
				if c < 0 || !isFinite(c) {
					return fmt.Errorf("node %d: invalid class count", i)
				}
			}
			continue
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d: negative feature index", i)
		}
		// children always follow their parent, which rules out cycles
		if node.LeftChild <= i || node.LeftChild >= len(nodes) ||
			node.RightChild <= i || node.RightChild >= len(nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
		if node.FeatureIdx > maxFeature {
			maxFeature = node.FeatureIdx
		}
	}
	dt.nodes = nodes
	dt.numFeatures = maxFeature + 1
	return nil
}

func leafProba(node TreeNode) []float64 {
	total := 0.0
	for _, c := range node.Counts {
		total += c
	}
	if len(node.Counts) == 2 && total > 0 {
		return []float64{node.Counts[0] / total, node.Counts[1] / total}
	}
	proba := []float64{0, 0}
	proba[node.ClassLabel] = 1
	return proba
}
