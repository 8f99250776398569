package ml

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitComputesScaleAndCategories(t *testing.T) {
	transformer := fitSample(t)
	state := transformer.State()

	require.Len(t, state.Numeric, 6)
	assert.Equal(t, ColAge, state.Numeric[0].Column)
	assert.InDelta(t, 45.0, state.Numeric[0].Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(46.5), state.Numeric[0].Std, 1e-9)
	assert.Equal(t, 0.0, state.Numeric[3].Std, "FastingBS is constant in the sample")

	require.Len(t, state.Categorical, 5)
	assert.Equal(t, []string{"F", "M"}, state.Categorical[0].Categories)
	assert.Equal(t, []string{"ASY", "ATA", "NAP"}, state.Categorical[1].Categories)
	assert.Equal(t, []string{"Flat", "Up"}, state.Categorical[4].Categories)
	assert.Equal(t, 17, transformer.Width())
}

func TestFeatureNamesLayout(t *testing.T) {
	transformer := fitSample(t)
	expected := []string{
		"Age", "RestingBP", "Cholesterol", "FastingBS", "MaxHR", "Oldpeak",
		"Sex_F", "Sex_M",
		"ChestPainType_ASY", "ChestPainType_ATA", "ChestPainType_NAP",
		"RestingECG_Normal", "RestingECG_ST",
		"ExerciseAngina_N", "ExerciseAngina_Y",
		"ST_Slope_Flat", "ST_Slope_Up",
	}
	assert.Equal(t, expected, transformer.FeatureNames())
}

func TestTransformEncodesRecord(t *testing.T) {
	transformer := fitSample(t)
	records, _ := sampleRecords()

	vector, err := transformer.Transform(records[0])
	require.NoError(t, err)
	require.Len(t, vector, 17)

	assert.InDelta(t, -5/math.Sqrt(46.5), vector[0], 1e-9)
	assert.Equal(t, 0.0, vector[3], "zero std column contributes 0")
	expectedHot := map[int]bool{7: true, 9: true, 11: true, 13: true, 16: true}
	for i := 6; i < len(vector); i++ {
		if expectedHot[i] {
			assert.Equal(t, 1.0, vector[i], "slot %d", i)
		} else {
			assert.Equal(t, 0.0, vector[i], "slot %d", i)
		}
	}
}

func TestTransformIsDeterministic(t *testing.T) {
	transformer := fitSample(t)
	records, _ := sampleRecords()
	for _, record := range records {
		first, err := transformer.Transform(record)
		require.NoError(t, err)
		second, err := transformer.Transform(record)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestTransformUnknownCategoryIsAllZero(t *testing.T) {
	transformer := fitSample(t)
	records, _ := sampleRecords()
	record := records[0]
	record.ChestPainType = "XX"

	vector, err := transformer.Transform(record)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, []float64(vector[8:11]))

	hot := 0.0
	for _, v := range vector[6:] {
		hot += v
	}
	assert.Equal(t, 4.0, hot, "other groups stay encoded")
}

func TestTransformConstantColumnIgnoresInput(t *testing.T) {
	transformer := fitSample(t)
	records, _ := sampleRecords()
	record := records[0]
	record.FastingBS = 1

	vector, err := transformer.Transform(record)
	require.NoError(t, err)
	assert.Equal(t, 0.0, vector[3])
}

func TestTransformNotFitted(t *testing.T) {
	var nilTransformer *Transformer
	_, err := nilTransformer.Transform(PatientRecord{})
	assert.ErrorIs(t, err, ErrNotFitted)

	_, err = (&Transformer{}).Transform(PatientRecord{})
	assert.ErrorIs(t, err, ErrNotFitted)

	var transformErr *TransformError
	assert.False(t, errors.As(err, &transformErr))
}

func TestTransformRejectsNonFiniteInput(t *testing.T) {
	transformer := fitSample(t)
	records, _ := sampleRecords()
	record := records[0]
	record.Oldpeak = math.NaN()

	_, err := transformer.Transform(record)
	var transformErr *TransformError
	require.ErrorAs(t, err, &transformErr)
	assert.Equal(t, ColOldpeak, transformErr.Column)
	assert.NotErrorIs(t, err, ErrNotFitted)
}

func TestFitErrors(t *testing.T) {
	records, labels := sampleRecords()

	_, err := Fit(&Frame{Columns: []string{ColAge}}, TargetColumn)
	assert.Error(t, err, "empty frame")

	_, err = Fit(NewFrame(records, labels), ColAge)
	assert.Error(t, err, "excluding a feature column")

	frame := NewFrame(records, labels)
	frame.Columns[frame.Index(ColSex)] = "Gender"
	_, err = Fit(frame, TargetColumn)
	assert.ErrorContains(t, err, "missing column Sex")

	frame = NewFrame(records, labels)
	frame.Rows[2][frame.Index(ColCholesterol)] = "n/a"
	_, err = Fit(frame, TargetColumn)
	assert.ErrorContains(t, err, "row 3")
}

func TestNewTransformerRejectsReorderedState(t *testing.T) {
	state := fitSample(t).State()
	state.Numeric[0], state.Numeric[1] = state.Numeric[1], state.Numeric[0]
	_, err := NewTransformer(state)
	assert.Error(t, err)

	state = fitSample(t).State()
	state.Categorical[0].Categories = []string{"M", "M"}
	_, err = NewTransformer(state)
	assert.Error(t, err)
}

func TestTransformerStateSurvivesSerialization(t *testing.T) {
	transformer := fitSample(t)
	raw, err := json.Marshal(transformer)
	require.NoError(t, err)

	restored, err := DecodeTransformer(raw)
	require.NoError(t, err)
	assert.Equal(t, transformer.FeatureNames(), restored.FeatureNames())

	records, _ := sampleRecords()
	want, err := transformer.Transform(records[3])
	require.NoError(t, err)
	got, err := restored.Transform(records[3])
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRecordedCategoryOrderIsKept(t *testing.T) {
	state := fitSample(t).State()
	state.Categorical[0].Categories = []string{"M", "F"}
	transformer, err := NewTransformer(state)
	require.NoError(t, err)

	records, _ := sampleRecords()
	vector, err := transformer.Transform(records[0])
	require.NoError(t, err)
	assert.Equal(t, 1.0, vector[6], "M occupies the first Sex slot")
	assert.Equal(t, 0.0, vector[7])
}
