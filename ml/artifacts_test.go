package ml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLogistic() *LogisticRegression {
	coefficients := make([]float64, 17)
	coefficients[5] = 1.2  // Oldpeak
	coefficients[14] = 0.8 // ExerciseAngina_Y
	return &LogisticRegression{Coefficients: coefficients, Intercept: -0.2}
}

func writeModel(t *testing.T, dir string, model *LogisticRegression) string {
	t.Helper()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, model.Save(path))
	return path
}

func TestArtifactStoreFitsTransformerFromDataset(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(StoreConfig{
		ModelPath:   writeModel(t, dir, sampleLogistic()),
		ModelType:   ModelTypeLogisticRegression,
		DatasetPath: writeSampleDataset(t, dir),
	})

	artifacts, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, BundleModelOnly, artifacts.Kind)
	assert.Equal(t, SourceDataset, artifacts.TransformerSource)
	assert.Equal(t, ModelTypeLogisticRegression, artifacts.ModelType)
	assert.Equal(t, fitSample(t).State(), artifacts.Transformer.State())
}

func TestArtifactStoreUsesBundledTransformer(t *testing.T) {
	dir := t.TempDir()
	payload, err := EncodeBundle(ModelTypeLogisticRegression, sampleLogistic(), fitSample(t))
	require.NoError(t, err)
	path := filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	// no dataset: the bundle must be self-sufficient
	store := NewArtifactStore(StoreConfig{ModelPath: path, ModelType: ModelTypeDecisionTree})
	artifacts, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, BundleModelWithTransformer, artifacts.Kind)
	assert.Equal(t, SourceBundle, artifacts.TransformerSource)
	assert.Equal(t, ModelTypeLogisticRegression, artifacts.ModelType, "bundle model_type wins")
	assert.Equal(t, 17, artifacts.Transformer.Width())
}

func TestArtifactStoreContainerWithoutTransformer(t *testing.T) {
	dir := t.TempDir()
	payload, err := EncodeBundle(ModelTypeLogisticRegression, sampleLogistic(), nil)
	require.NoError(t, err)
	path := filepath.Join(dir, "bundle.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	store := NewArtifactStore(StoreConfig{ModelPath: path, DatasetPath: writeSampleDataset(t, dir)})
	artifacts, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, BundleModelOnly, artifacts.Kind)
	assert.Equal(t, SourceDataset, artifacts.TransformerSource)
}

func TestArtifactStoreFatalConditions(t *testing.T) {
	dir := t.TempDir()
	modelPath := writeModel(t, dir, sampleLogistic())
	datasetPath := writeSampleDataset(t, dir)

	narrow := &LogisticRegression{Coefficients: []float64{1, 2, 3}}
	narrowPath := filepath.Join(dir, "narrow.json")
	require.NoError(t, narrow.Save(narrowPath))

	garbagePath := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbagePath, []byte("not json"), 0o600))

	cases := map[string]StoreConfig{
		"missing model":   {ModelPath: filepath.Join(dir, "absent.json"), ModelType: ModelTypeLogisticRegression, DatasetPath: datasetPath},
		"missing dataset": {ModelPath: modelPath, ModelType: ModelTypeLogisticRegression, DatasetPath: filepath.Join(dir, "absent.csv")},
		"no dataset":      {ModelPath: modelPath, ModelType: ModelTypeLogisticRegression},
		"width mismatch":  {ModelPath: narrowPath, ModelType: ModelTypeLogisticRegression, DatasetPath: datasetPath},
		"unreadable":      {ModelPath: garbagePath, ModelType: ModelTypeLogisticRegression, DatasetPath: datasetPath},
	}
	for name, config := range cases {
		t.Run(name, func(t *testing.T) {
			artifacts, err := NewArtifactStore(config).Load()
			assert.ErrorIs(t, err, ErrArtifactMissing)
			assert.Nil(t, artifacts)
		})
	}
}

func TestArtifactStoreLoadIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	store := NewArtifactStore(StoreConfig{
		ModelPath:   writeModel(t, dir, sampleLogistic()),
		ModelType:   ModelTypeLogisticRegression,
		DatasetPath: writeSampleDataset(t, dir),
	})

	first, err := store.Load()
	require.NoError(t, err)
	second, err := store.Load()
	require.NoError(t, err)
	assert.NotSame(t, first.Transformer, second.Transformer)

	records, _ := sampleRecords()
	a, err := first.Transformer.Transform(records[1])
	require.NoError(t, err)
	b, err := second.Transformer.Transform(records[1])
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeBundleBareTree(t *testing.T) {
	decoded, err := DecodeBundle([]byte(`[{"is_leaf":true,"class_label":1}]`), ModelTypeDecisionTree)
	require.NoError(t, err)
	assert.Equal(t, BundleModelOnly, decoded.Kind)
	assert.Nil(t, decoded.Transformer)

	decoded, err = DecodeBundle([]byte(`{"model":[{"is_leaf":true}],"model_type":"decision_tree","transformer":null}`), "")
	require.NoError(t, err)
	assert.Equal(t, BundleModelOnly, decoded.Kind)
}
