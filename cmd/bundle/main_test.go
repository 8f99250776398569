package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cardioserve/ml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datasetCSV = `Age,Sex,ChestPainType,RestingBP,Cholesterol,FastingBS,RestingECG,MaxHR,ExerciseAngina,Oldpeak,ST_Slope,HeartDisease
40,M,ATA,140,289,0,Normal,172,N,0,Up,0
49,F,NAP,160,180,0,Normal,156,N,1,Flat,1
54,M,ASY,150,195,0,ST,122,Y,1.5,Flat,1
`

func TestRunWritesLoadableBundle(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, (&ml.LogisticRegression{Coefficients: make([]float64, 17), Intercept: 0.1}).Save(modelPath))
	datasetPath := filepath.Join(dir, "heart.csv")
	require.NoError(t, os.WriteFile(datasetPath, []byte(datasetCSV), 0o600))
	outPath := filepath.Join(dir, "out", "bundle.json")

	var stdout bytes.Buffer
	err := run([]string{"-model_path", modelPath, "-dataset_path", datasetPath, "-out", outPath}, &stdout)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), outPath)

	artifacts, err := ml.NewArtifactStore(ml.StoreConfig{ModelPath: outPath}).Load()
	require.NoError(t, err)
	assert.Equal(t, ml.BundleModelWithTransformer, artifacts.Kind)
	assert.Equal(t, ml.ModelTypeLogisticRegression, artifacts.ModelType)

	stdout.Reset()
	require.NoError(t, run([]string{"-inspect", outPath}, &stdout))
	assert.Contains(t, stdout.String(), "kind: model_with_transformer")
	assert.Contains(t, stdout.String(), "features: 17")
	assert.True(t, strings.Contains(stdout.String(), "ChestPainType_ASY"))
}

func TestRunRejectsWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	require.NoError(t, (&ml.LogisticRegression{Coefficients: []float64{1, 2}}).Save(modelPath))
	datasetPath := filepath.Join(dir, "heart.csv")
	require.NoError(t, os.WriteFile(datasetPath, []byte(datasetCSV), 0o600))
	outPath := filepath.Join(dir, "bundle.json")

	err := run([]string{"-model_path", modelPath, "-dataset_path", datasetPath, "-out", outPath}, &bytes.Buffer{})
	assert.Error(t, err)
	assert.NoFileExists(t, outPath)
}

func TestRunMissingModel(t *testing.T) {
	err := run([]string{"-model_path", filepath.Join(t.TempDir(), "absent.json")}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to load model")
}
