package ml

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRecords() ([]PatientRecord, []int) {
	records := []PatientRecord{
		{Age: 40, Sex: "M", ChestPainType: "ATA", RestingBP: 140, Cholesterol: 289, FastingBS: 0, RestingECG: "Normal", MaxHR: 172, ExerciseAngina: "N", Oldpeak: 0, ST_Slope: "Up"},
		{Age: 49, Sex: "F", ChestPainType: "NAP", RestingBP: 160, Cholesterol: 180, FastingBS: 0, RestingECG: "Normal", MaxHR: 156, ExerciseAngina: "N", Oldpeak: 1, ST_Slope: "Flat"},
		{Age: 37, Sex: "M", ChestPainType: "ATA", RestingBP: 130, Cholesterol: 283, FastingBS: 0, RestingECG: "ST", MaxHR: 98, ExerciseAngina: "N", Oldpeak: 0, ST_Slope: "Up"},
		{Age: 54, Sex: "M", ChestPainType: "ASY", RestingBP: 150, Cholesterol: 195, FastingBS: 0, RestingECG: "Normal", MaxHR: 122, ExerciseAngina: "Y", Oldpeak: 1.5, ST_Slope: "Flat"},
	}
	return records, []int{0, 1, 0, 1}
}

func fitSample(t *testing.T) *Transformer {
	t.Helper()
	records, labels := sampleRecords()
	transformer, err := Fit(NewFrame(records, labels), TargetColumn)
	require.NoError(t, err)
	return transformer
}

func writeFrameCSV(t *testing.T, path string, frame *Frame) {
	t.Helper()
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	writer := csv.NewWriter(file)
	require.NoError(t, writer.Write(frame.Columns))
	require.NoError(t, writer.WriteAll(frame.Rows))
}

func writeSampleDataset(t *testing.T, dir string) string {
	t.Helper()
	records, labels := sampleRecords()
	path := filepath.Join(dir, "heart.csv")
	writeFrameCSV(t, path, NewFrame(records, labels))
	return path
}

type stubModel struct {
	proba []float64
	err   error
	width int
}

func (s *stubModel) PredictProba(features []float64) ([]float64, error) {
	return s.proba, s.err
}

func (s *stubModel) NumFeatures() int {
	return s.width
}
