package ml

import (
	"fmt"
	"strconv"
)

// Dataset column names. They double as the JSON field names of a request.
const (
	ColAge            = "Age"
	ColSex            = "Sex"
	ColChestPainType  = "ChestPainType"
	ColRestingBP      = "RestingBP"
	ColCholesterol    = "Cholesterol"
	ColFastingBS      = "FastingBS"
	ColRestingECG     = "RestingECG"
	ColMaxHR          = "MaxHR"
	ColExerciseAngina = "ExerciseAngina"
	ColOldpeak        = "Oldpeak"
	ColSTSlope        = "ST_Slope"

	// TargetColumn is the label column of the reference dataset.
	TargetColumn = "HeartDisease"
)

// PatientRecord holds the eleven clinical attributes of one patient.
type PatientRecord struct {
	Age            int     `json:"Age"`
	Sex            string  `json:"Sex"`
	ChestPainType  string  `json:"ChestPainType"`
	RestingBP      int     `json:"RestingBP"`
	Cholesterol    int     `json:"Cholesterol"`
	FastingBS      int     `json:"FastingBS"`
	RestingECG     string  `json:"RestingECG"`
	MaxHR          int     `json:"MaxHR"`
	ExerciseAngina string  `json:"ExerciseAngina"`
	Oldpeak        float64 `json:"Oldpeak"`
	ST_Slope       string  `json:"ST_Slope"`
}

// FeatureVector is the model input produced by a fitted Transformer.
type FeatureVector []float64

// NumericColumns returns the standardized columns in slot order.
func NumericColumns() []string {
	return []string{
		ColAge,
		ColRestingBP,
		ColCholesterol,
		ColFastingBS,
		ColMaxHR,
		ColOldpeak,
	}
}

// CategoricalColumns returns the one-hot encoded columns in group order.
func CategoricalColumns() []string {
	return []string{
		ColSex,
		ColChestPainType,
		ColRestingECG,
		ColExerciseAngina,
		ColSTSlope,
	}
}

// FeatureColumns returns every input column of a PatientRecord.
func FeatureColumns() []string {
	return append(NumericColumns(), CategoricalColumns()...)
}

// NumericValues returns the numeric fields in NumericColumns order.
func (r PatientRecord) NumericValues() []float64 {
	return []float64{
		float64(r.Age),
		float64(r.RestingBP),
		float64(r.Cholesterol),
		float64(r.FastingBS),
		float64(r.MaxHR),
		r.Oldpeak,
	}
}

// CategoricalValues returns the categorical fields in CategoricalColumns order.
func (r PatientRecord) CategoricalValues() []string {
	return []string{
		r.Sex,
		r.ChestPainType,
		r.RestingECG,
		r.ExerciseAngina,
		r.ST_Slope,
	}
}

// Key identifies a record by value. Equal records share a key.
func (r PatientRecord) Key() string {
	return fmt.Sprintf("%d|%q|%q|%d|%d|%d|%q|%d|%q|%s|%q",
		r.Age, r.Sex, r.ChestPainType, r.RestingBP, r.Cholesterol, r.FastingBS,
		r.RestingECG, r.MaxHR, r.ExerciseAngina,
		strconv.FormatFloat(r.Oldpeak, 'g', -1, 64), r.ST_Slope)
}
