package ml

import (
	"fmt"
	"os"
)

const (
	ModelTypeDecisionTree       = "decision_tree"
	ModelTypeLogisticRegression = "logistic_regression"
)

// SupportedModelTypes lists the model types LoadModel understands.
func SupportedModelTypes() []string {
	return []string{ModelTypeDecisionTree, ModelTypeLogisticRegression}
}

func LoadModel(modelType, path string) (Classifier, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeModel(modelType, payload)
}

// DecodeModel parses a serialized model of the given type.
func DecodeModel(modelType string, payload []byte) (Classifier, error) {
	switch modelType {
	case ModelTypeDecisionTree:
		model := &DecisionTree{}
		if err := model.decode(payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", modelType, err)
		}
		return model, nil
	case ModelTypeLogisticRegression:
		model := &LogisticRegression{}
		if err := model.decode(payload); err != nil {
			return nil, fmt.Errorf("decode %s: %w", modelType, err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}
