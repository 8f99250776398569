package config

import (
	"fmt"
	"os"
	"time"

	"cardioserve/ml"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Http struct {
		Port           int           `yaml:"port"`
		Timeout        time.Duration `yaml:"timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	ML struct {
		ModelType        string `yaml:"model_type"`
		ModelPath        string `yaml:"model_path"`
		DatasetPath      string `yaml:"dataset_path"`
		TargetColumn     string `yaml:"target_column"`
		RequireArtifacts bool   `yaml:"require_artifacts"`
		LazyLoad         bool   `yaml:"lazy_load"`
		WatchArtifacts   bool   `yaml:"watch_artifacts"`
	} `yaml:"ml"`
	Persistence struct {
		RequireWrite *bool `yaml:"require_write"`
	} `yaml:"persistence"`
	Cache struct {
		TransformCacheSize int `yaml:"transform_cache_size"`
	} `yaml:"cache"`
	Feed struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"feed"`
}

// Load reads a YAML config file and fills defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.Http.Port == 0 {
		c.Http.Port = 8000
	}
	if c.Http.Timeout == 0 {
		c.Http.Timeout = 30 * time.Second
	}
	if len(c.Http.AllowedOrigins) == 0 {
		c.Http.AllowedOrigins = []string{"*"}
	}
	if c.Http.MaxBodyBytes == 0 {
		c.Http.MaxBodyBytes = 1 << 16
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/heart_predictions.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 30
	}
	if c.ML.ModelType == "" {
		c.ML.ModelType = ml.ModelTypeLogisticRegression
	}
	if c.ML.ModelPath == "" {
		c.ML.ModelPath = "./artifacts/heart_disease_model.json"
	}
	if c.ML.DatasetPath == "" {
		c.ML.DatasetPath = "./artifacts/heart_disease_datasets.csv"
	}
	if c.ML.TargetColumn == "" {
		c.ML.TargetColumn = ml.TargetColumn
	}
	if c.Persistence.RequireWrite == nil {
		requireWrite := true
		c.Persistence.RequireWrite = &requireWrite
	}
	if c.Cache.TransformCacheSize == 0 {
		c.Cache.TransformCacheSize = 1024
	}

	c.Database.Path = os.ExpandEnv(c.Database.Path)
	c.Log.File = os.ExpandEnv(c.Log.File)
	c.ML.ModelPath = os.ExpandEnv(c.ML.ModelPath)
	c.ML.DatasetPath = os.ExpandEnv(c.ML.DatasetPath)
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.Http.Port)
	}
	supported := false
	for _, modelType := range ml.SupportedModelTypes() {
		if c.ML.ModelType == modelType {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("unsupported ml.model_type %q", c.ML.ModelType)
	}
	if c.Cache.TransformCacheSize < 0 {
		return fmt.Errorf("invalid cache.transform_cache_size %d", c.Cache.TransformCacheSize)
	}
	return nil
}

// RequireWrite reports whether a failed history write fails the request.
func (c *Config) RequireWrite() bool {
	return c.Persistence.RequireWrite == nil || *c.Persistence.RequireWrite
}
