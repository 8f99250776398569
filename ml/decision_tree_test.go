package ml

import (
	"path/filepath"
	"testing"
)

func sampleTree(t *testing.T) *DecisionTree {
	t.Helper()
	// Oldpeak (slot 5) <= 0.5 -> mostly normal, else mostly disease.
	tree, err := NewDecisionTree([]TreeNode{
		{FeatureIdx: 5, Threshold: 0.5, LeftChild: 1, RightChild: 2},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 0, IsLeaf: true, Counts: []float64{30, 10}},
		{FeatureIdx: -1, LeftChild: -1, RightChild: -1, ClassLabel: 1, IsLeaf: true, Counts: []float64{5, 45}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tree
}

func TestDecisionTreePredictProba(t *testing.T) {
	tree := sampleTree(t)

	proba, err := tree.PredictProba([]float64{0, 0, 0, 0, 0, 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[0] != 0.75 || proba[1] != 0.25 {
		t.Fatalf("unexpected probabilities: %v", proba)
	}

	proba, err = tree.PredictProba([]float64{0, 0, 0, 0, 0, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[1] != 0.9 {
		t.Fatalf("expected 0.9 for class 1, got %v", proba)
	}

	if _, err := tree.PredictProba([]float64{0, 0}); err == nil {
		t.Fatal("expected error for short vector")
	}
	if tree.MinFeatures() != 6 {
		t.Fatalf("expected min features 6, got %d", tree.MinFeatures())
	}
}

func TestDecisionTreeLeafWithoutCounts(t *testing.T) {
	tree, err := NewDecisionTree([]TreeNode{{IsLeaf: true, ClassLabel: 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proba, err := tree.PredictProba(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[0] != 0 || proba[1] != 1 {
		t.Fatalf("unexpected probabilities: %v", proba)
	}
}

func TestDecisionTreeRejectsInvalidNodes(t *testing.T) {
	cases := map[string][]TreeNode{
		"empty":          nil,
		"self loop":      {{FeatureIdx: 0, LeftChild: 0, RightChild: 0}},
		"child missing":  {{FeatureIdx: 0, LeftChild: 1, RightChild: 5}, {IsLeaf: true}},
		"bad label":      {{IsLeaf: true, ClassLabel: 2}},
		"bad counts":     {{IsLeaf: true, Counts: []float64{1, 2, 3}}},
		"negative count": {{IsLeaf: true, Counts: []float64{-1, 2}}},
	}
	for name, nodes := range cases {
		if _, err := NewDecisionTree(nodes); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecisionTreeSaveLoad(t *testing.T) {
	tree := sampleTree(t)
	path := filepath.Join(t.TempDir(), "dt.json")
	if err := tree.Save(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	model, err := LoadModel(ModelTypeDecisionTree, path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proba, err := model.PredictProba([]float64{0, 0, 0, 0, 0, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proba[1] != 0.9 {
		t.Fatalf("expected 0.9 for class 1, got %v", proba)
	}

	if err := (&DecisionTree{}).Save(path); err == nil {
		t.Fatal("expected error saving an empty tree")
	}
}

func TestLoadModelUnknownType(t *testing.T) {
	if _, err := DecodeModel("svm", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unsupported model type")
	}
}
