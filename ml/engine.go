package ml

import (
	"errors"
	"fmt"
	"math"
)

// ProbabilityTolerance bounds how far a probability vector may sum from 1.
const ProbabilityTolerance = 1e-6

// InferenceError reports a model failure or a malformed model output.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "inference: " + e.Err.Error()
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Engine runs a classifier on one feature vector. It holds no state.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Predict returns the predicted class index and the per-class probabilities.
// The class is the most probable one; ties go to the lower index.
func (e *Engine) Predict(model Classifier, vector FeatureVector) (int, []float64, error) {
	if model == nil {
		return 0, nil, &InferenceError{Err: errors.New("no model")}
	}
	if n := model.NumFeatures(); n > 0 && n != len(vector) {
		return 0, nil, &InferenceError{Err: fmt.Errorf("model expects %d features, got %d", n, len(vector))}
	}

	proba, err := model.PredictProba(vector)
	if err != nil {
		return 0, nil, &InferenceError{Err: err}
	}
	if err := checkProbabilities(proba); err != nil {
		return 0, nil, &InferenceError{Err: err}
	}

	classIndex := ClassNormal
	if proba[ClassHeartDisease] > proba[ClassNormal] {
		classIndex = ClassHeartDisease
	}
	return classIndex, append([]float64(nil), proba...), nil
}

func checkProbabilities(proba []float64) error {
	if len(proba) != 2 {
		return fmt.Errorf("expected 2 class probabilities, got %d", len(proba))
	}
	sum := 0.0
	for i, p := range proba {
		if !isFinite(p) || p < 0 || p > 1 {
			return fmt.Errorf("probability %d out of range: %v", i, p)
		}
		sum += p
	}
	if math.Abs(sum-1) > ProbabilityTolerance {
		return fmt.Errorf("probabilities sum to %v", sum)
	}
	return nil
}
