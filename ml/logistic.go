package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LogisticRegression is a fitted binary logistic model.
type LogisticRegression struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

func (lr *LogisticRegression) PredictProba(features []float64) ([]float64, error) {
	if len(lr.Coefficients) == 0 {
		return nil, errors.New("model not trained")
	}
	if len(features) != len(lr.Coefficients) {
		return nil, fmt.Errorf("expected %d features, got %d", len(lr.Coefficients), len(features))
	}
	z := lr.Intercept
	for i, w := range lr.Coefficients {
		z += w * features[i]
	}
	p := sigmoid(z)
	return []float64{1 - p, p}, nil
}

func (lr *LogisticRegression) NumFeatures() int {
	return len(lr.Coefficients)
}

func (lr *LogisticRegression) Save(path string) error {
	if len(lr.Coefficients) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (lr *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return lr.decode(payload)
}

func (lr *LogisticRegression) decode(payload []byte) error {
	var model LogisticRegression
	if err := json.Unmarshal(payload, &model); err != nil {
		return err
	}
	if len(model.Coefficients) == 0 {
		return errors.New("logistic regression has no coefficients")
	}
	if !isFinite(model.Intercept) {
		return errors.New("logistic regression has a non-finite intercept")
	}
	for _, w := range model.Coefficients {
		if !isFinite(w) {
			return errors.New("logistic regression has non-finite coefficients")
		}
	}
	*lr = model
	return nil
}

// sigmoid is split by sign so large |z| never overflows exp.
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
