package serving

import (
	"fmt"
	"math"

	"cardioserve/ml"
)

// Risk levels shown to callers. High iff the label is Heart Disease.
const (
	RiskHigh = "High"
	RiskLow  = "Low"
)

// Outcome is the result of one served request. Probability is that of the
// predicted class, rounded to two decimals.
type Outcome struct {
	Label       string  `json:"label"`
	ClassIndex  int     `json:"class_index"`
	Probability float64 `json:"probability"`
}

// NewOutcome builds the outcome for classIndex from the class probabilities.
func NewOutcome(classIndex int, proba []float64) Outcome {
	return Outcome{
		Label:       ml.LabelFor(classIndex),
		ClassIndex:  classIndex,
		Probability: RoundProbability(proba[classIndex]),
	}
}

// RoundProbability rounds p to two decimals.
func RoundProbability(p float64) float64 {
	return math.Round(p*100) / 100
}

// Response is the payload returned by the predict endpoint.
type Response struct {
	Prediction  string `json:"prediction"`
	Probability string `json:"probability"`
	RiskLevel   string `json:"risk_level"`
}

func (o Outcome) Response() Response {
	return Response{
		Prediction:  o.Label,
		Probability: FormatPercent(o.Probability),
		RiskLevel:   RiskLevel(o.Label),
	}
}

// FormatPercent renders p as a percentage with one decimal, e.g. "85.0%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

func RiskLevel(label string) string {
	if label == ml.LabelHeartDisease {
		return RiskHigh
	}
	return RiskLow
}
