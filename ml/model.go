package ml

// Class labels of the trained artifact. The index mapping is fixed.
const (
	ClassNormal       = 0
	ClassHeartDisease = 1

	LabelNormal       = "Normal"
	LabelHeartDisease = "Heart Disease"
)

// Classifier is a trained binary model.
type Classifier interface {
	// PredictProba returns one probability per class, indexed by class.
	PredictProba(features []float64) ([]float64, error)
	// NumFeatures is the expected input width, or 0 when the model does not
	// declare one.
	NumFeatures() int
}

// LabelFor maps a class index to its label.
func LabelFor(classIndex int) string {
	if classIndex == ClassHeartDisease {
		return LabelHeartDisease
	}
	return LabelNormal
}
