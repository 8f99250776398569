package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, "http:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Http.Port)
	assert.Equal(t, 30*time.Second, config.Http.Timeout)
	assert.Equal(t, []string{"*"}, config.Http.AllowedOrigins)
	assert.Equal(t, "logistic_regression", config.ML.ModelType)
	assert.Equal(t, "HeartDisease", config.ML.TargetColumn)
	assert.True(t, config.RequireWrite())
	assert.Equal(t, 1024, config.Cache.TransformCacheSize)
}

func TestLoadReadsValues(t *testing.T) {
	t.Setenv("ARTIFACT_DIR", "/srv/models")
	config, err := Load(writeConfig(t, `
http:
  timeout: 5s
ml:
  model_type: decision_tree
  model_path: ${ARTIFACT_DIR}/tree.json
  require_artifacts: true
persistence:
  require_write: false
`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, config.Http.Timeout)
	assert.Equal(t, "decision_tree", config.ML.ModelType)
	assert.Equal(t, "/srv/models/tree.json", config.ML.ModelPath)
	assert.True(t, config.ML.RequireArtifacts)
	assert.False(t, config.RequireWrite())
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, "ml:\n  model_type: svm\n"))
	assert.ErrorContains(t, err, "svm")

	_, err = Load(writeConfig(t, "http:\n  port: 70000\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
