package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "esgpanel.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_MinimalConfigAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "raw"), config.Paths.RawDir)
	assert.Equal(t, filepath.Join("data", "processed"), config.Paths.ProcessedDir)
	assert.Equal(t, "results", config.Paths.ResultsDir)
	assert.Equal(t, "country-classification.xlsx", config.Inputs.ClassificationFile)
	assert.Len(t, config.Countries, 50)
	assert.Len(t, config.ESGIndicators, 11)
	assert.Len(t, config.EconIndicators, 5)
	assert.Equal(t, "gdp_growth", config.Regression.Dependent)
	assert.Equal(t, []string{"ENV_index", "SOC_index", "GOV_index"}, config.Regression.Regressors)
	assert.Equal(t, 5, config.Prediction.Folds)
	assert.Equal(t, int64(42), config.Prediction.Seed)
	assert.Equal(t, CVKFold, config.Prediction.CV)
	assert.Equal(t, []string{ModelLinear, ModelRandomForest, ModelGradientBoosting}, config.Prediction.Models)
	assert.Equal(t, 200, config.Prediction.Forest.Trees)
	assert.Equal(t, 0.05, config.Prediction.Boosting.LearningRate)
	assert.Equal(t, "default", config.Store.Project)
}

func TestLoad_OverridesAreKept(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
paths:
  raw_dir: input
years:
  from: 2000
  to: 2020
countries: ["France", "Germany"]
esg_indicators:
  - name: "CO2 emissions (metric tons per capita)"
    category: E
    direction: -1
prediction:
  folds: 3
  cv: group
  models: [linear]
  gradient_boosting:
    learning_rate: 0.1
store:
  redis_url: redis://localhost:6379
  project: study
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "input", config.Paths.RawDir)
	assert.Equal(t, []string{"France", "Germany"}, config.Countries)
	assert.Len(t, config.ESGIndicators, 1)
	assert.Equal(t, 3, config.Prediction.Folds)
	assert.Equal(t, CVGroup, config.Prediction.CV)
	assert.Equal(t, []string{ModelLinear}, config.Prediction.Models)
	assert.Equal(t, 0.1, config.Prediction.Boosting.LearningRate)
	assert.Equal(t, 200, config.Prediction.Boosting.Rounds)
	assert.Equal(t, "study", config.Store.Project)
	assert.True(t, config.Years.Contains(2000))
	assert.False(t, config.Years.Contains(2021))
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/esgpanel.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
countries:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	config, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "1.0", config.Version)
	assert.Len(t, config.Countries, 50)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unsupported version",
			mutate:  func(c *Config) { c.Version = "2.0" },
			wantErr: "unsupported version: 2.0",
		},
		{
			name:    "bad category",
			mutate:  func(c *Config) { c.ESGIndicators = []ESGIndicator{{Name: "x", Category: "Q", Direction: 1}} },
			wantErr: "invalid category: Q",
		},
		{
			name:    "bad direction",
			mutate:  func(c *Config) { c.ESGIndicators = []ESGIndicator{{Name: "x", Category: "E", Direction: 2}} },
			wantErr: "direction must be 1 or -1",
		},
		{
			name: "duplicate indicator",
			mutate: func(c *Config) {
				c.ESGIndicators = []ESGIndicator{
					{Name: "x", Category: "E", Direction: 1},
					{Name: "x", Category: "S", Direction: 1},
				}
			},
			wantErr: "duplicate indicator 'x'",
		},
		{
			name: "duplicate econ column",
			mutate: func(c *Config) {
				c.EconIndicators = []EconIndicator{{Name: "a", Column: "c"}, {Name: "b", Column: "c"}}
			},
			wantErr: "duplicate column 'c'",
		},
		{
			name:    "one fold",
			mutate:  func(c *Config) { c.Prediction.Folds = 1 },
			wantErr: "prediction.folds must be >= 2",
		},
		{
			name:    "unknown cv",
			mutate:  func(c *Config) { c.Prediction.CV = "loo" },
			wantErr: "invalid prediction.cv: loo",
		},
		{
			name:    "unknown model",
			mutate:  func(c *Config) { c.Prediction.Models = []string{"svm"} },
			wantErr: "unknown model 'svm'",
		},
		{
			name:    "inverted years",
			mutate:  func(c *Config) { c.Years = &YearWindow{From: 2020, To: 2000} },
			wantErr: "must not be after years.to",
		},
		{
			name:    "learning rate out of range",
			mutate:  func(c *Config) { c.Prediction.Boosting = &BoostingConfig{LearningRate: 1.5} },
			wantErr: "learning_rate must be in (0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Version: "1.0"}
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestYearWindow_NilContainsEverything(t *testing.T) {
	var w *YearWindow
	assert.True(t, w.Contains(1960))
	assert.True(t, (&YearWindow{From: 2000}).Contains(2050))
	assert.False(t, (&YearWindow{To: 2000}).Contains(2001))
}

func TestESGCategories(t *testing.T) {
	assert.Equal(t, []string{"E", "G", "S"}, Default().ESGCategories())
}
