package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up when --config is omitted.
const DefaultPath = "esgpanel.yml"

// Config represents the top-level esgpanel.yml configuration
type Config struct {
	Version        string           `yaml:"version"`
	Paths          PathsConfig      `yaml:"paths"`
	Inputs         InputsConfig     `yaml:"inputs"`
	Years          *YearWindow      `yaml:"years,omitempty"`
	Countries      []string         `yaml:"countries,omitempty"`
	ESGIndicators  []ESGIndicator   `yaml:"esg_indicators,omitempty"`
	EconIndicators []EconIndicator  `yaml:"econ_indicators,omitempty"`
	Regression     RegressionConfig `yaml:"regression"`
	Prediction     PredictionConfig `yaml:"prediction"`
	Store          StoreConfig      `yaml:"store"`
	Outputs        OutputsConfig    `yaml:"outputs"`
}

// PathsConfig holds the project directory layout
type PathsConfig struct {
	RawDir       string `yaml:"raw_dir,omitempty"`
	ProcessedDir string `yaml:"processed_dir,omitempty"`
	ResultsDir   string `yaml:"results_dir,omitempty"`
}

// InputsConfig names the raw files under paths.raw_dir
type InputsConfig struct {
	ESGFile            string `yaml:"esg_file,omitempty"`
	EconomicFile       string `yaml:"economic_file,omitempty"`
	ClassificationFile string `yaml:"classification_file,omitempty"` // .xlsx or .csv
}

// YearWindow restricts observations to [From, To] inclusive. Zero means open.
type YearWindow struct {
	From int `yaml:"from,omitempty"`
	To   int `yaml:"to,omitempty"`
}

// Contains reports whether year falls inside the window.
func (w *YearWindow) Contains(year int) bool {
	if w == nil {
		return true
	}
	if w.From != 0 && year < w.From {
		return false
	}
	if w.To != 0 && year > w.To {
		return false
	}
	return true
}

// ESGIndicator maps a raw series name to an ESG pillar and a direction.
// Direction +1 means higher is better, -1 means higher is worse.
type ESGIndicator struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"` // E, S or G
	Direction int    `yaml:"direction"`
}

// EconIndicator maps a raw series name to a regression dataset column.
type EconIndicator struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
}

// RegressionConfig specifies the fixed-effects model
type RegressionConfig struct {
	Dependent        string   `yaml:"dependent,omitempty"`
	Regressors       []string `yaml:"regressors,omitempty"`
	ShowFixedEffects bool     `yaml:"show_fixed_effects,omitempty"`
}

// PredictionConfig specifies the model comparison
type PredictionConfig struct {
	Target   string          `yaml:"target,omitempty"`
	Features []string        `yaml:"features,omitempty"`
	Folds    int             `yaml:"folds,omitempty"`
	Seed     int64           `yaml:"seed,omitempty"`
	CV       string          `yaml:"cv,omitempty"` // "kfold" or "group"
	Models   []string        `yaml:"models,omitempty"`
	Forest   *ForestConfig   `yaml:"random_forest,omitempty"`
	Boosting *BoostingConfig `yaml:"gradient_boosting,omitempty"`
}

// ForestConfig holds random forest hyperparameters
type ForestConfig struct {
	Trees       int `yaml:"trees,omitempty"`
	MaxDepth    int `yaml:"max_depth,omitempty"`
	MinLeaf     int `yaml:"min_leaf,omitempty"`
	MaxFeatures int `yaml:"max_features,omitempty"` // 0 = sqrt(p)
}

// BoostingConfig holds gradient boosting hyperparameters
type BoostingConfig struct {
	Rounds       int     `yaml:"rounds,omitempty"`
	LearningRate float64 `yaml:"learning_rate,omitempty"`
	MaxDepth     int     `yaml:"max_depth,omitempty"`
	MinLeaf      int     `yaml:"min_leaf,omitempty"`
	Subsample    float64 `yaml:"subsample,omitempty"`
}

// StoreConfig enables the Redis run store when RedisURL is set
type StoreConfig struct {
	RedisURL string `yaml:"redis_url,omitempty"`
	Project  string `yaml:"project,omitempty"`
}

// OutputsConfig specifies optional extra outputs
type OutputsConfig struct {
	SQLite string `yaml:"sqlite,omitempty"`
}

// Known model names
const (
	ModelLinear           = "linear"
	ModelRandomForest     = "random_forest"
	ModelGradientBoosting = "gradient_boosting"
)

// CV strategies
const (
	CVKFold = "kfold"
	CVGroup = "group"
)

// Default returns a validated configuration with every default applied.
func Default() *Config {
	c := &Config{Version: "1.0"}
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return c
}

// Validate performs strict validation on the configuration and fills defaults
func (c *Config) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	c.applyDefaults()

	if c.Years != nil && c.Years.From != 0 && c.Years.To != 0 && c.Years.From > c.Years.To {
		return fmt.Errorf("years.from (%d) must not be after years.to (%d)", c.Years.From, c.Years.To)
	}

	seen := make(map[string]bool)
	for i, ind := range c.ESGIndicators {
		if ind.Name == "" {
			return fmt.Errorf("esg_indicators[%d]: name is required", i)
		}
		if seen[ind.Name] {
			return fmt.Errorf("esg_indicators[%d]: duplicate indicator '%s'", i, ind.Name)
		}
		seen[ind.Name] = true
		if ind.Category != "E" && ind.Category != "S" && ind.Category != "G" {
			return fmt.Errorf("esg indicator '%s': invalid category: %s (must be 'E', 'S' or 'G')", ind.Name, ind.Category)
		}
		if ind.Direction != 1 && ind.Direction != -1 {
			return fmt.Errorf("esg indicator '%s': direction must be 1 or -1, got %d", ind.Name, ind.Direction)
		}
	}

	columns := make(map[string]bool)
	for i, ind := range c.EconIndicators {
		if ind.Name == "" || ind.Column == "" {
			return fmt.Errorf("econ_indicators[%d]: name and column are required", i)
		}
		if columns[ind.Column] {
			return fmt.Errorf("econ indicator '%s': duplicate column '%s'", ind.Name, ind.Column)
		}
		columns[ind.Column] = true
	}

	p := &c.Prediction
	if p.Folds < 2 {
		return fmt.Errorf("prediction.folds must be >= 2, got %d", p.Folds)
	}
	if p.CV != CVKFold && p.CV != CVGroup {
		return fmt.Errorf("invalid prediction.cv: %s (must be 'kfold' or 'group')", p.CV)
	}
	for _, m := range p.Models {
		switch m {
		case ModelLinear, ModelRandomForest, ModelGradientBoosting:
		default:
			return fmt.Errorf("unknown model '%s' (valid: linear, random_forest, gradient_boosting)", m)
		}
	}
	if p.Boosting.LearningRate <= 0 || p.Boosting.LearningRate > 1 {
		return fmt.Errorf("gradient_boosting.learning_rate must be in (0, 1], got %g", p.Boosting.LearningRate)
	}
	if p.Boosting.Subsample <= 0 || p.Boosting.Subsample > 1 {
		return fmt.Errorf("gradient_boosting.subsample must be in (0, 1], got %g", p.Boosting.Subsample)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Paths.RawDir == "" {
		c.Paths.RawDir = filepath.Join("data", "raw")
	}
	if c.Paths.ProcessedDir == "" {
		c.Paths.ProcessedDir = filepath.Join("data", "processed")
	}
	if c.Paths.ResultsDir == "" {
		c.Paths.ResultsDir = "results"
	}
	if c.Inputs.ESGFile == "" {
		c.Inputs.ESGFile = "esg-economic-data.csv"
	}
	if c.Inputs.EconomicFile == "" {
		c.Inputs.EconomicFile = "gdp-inflation-fdi-data.csv"
	}
	if c.Inputs.ClassificationFile == "" {
		c.Inputs.ClassificationFile = "country-classification.xlsx"
	}
	if len(c.Countries) == 0 {
		c.Countries = DefaultCountries()
	}
	if len(c.ESGIndicators) == 0 {
		c.ESGIndicators = DefaultESGIndicators()
	}
	if len(c.EconIndicators) == 0 {
		c.EconIndicators = DefaultEconIndicators()
	}

	r := &c.Regression
	if r.Dependent == "" {
		r.Dependent = "gdp_growth"
	}
	if len(r.Regressors) == 0 {
		r.Regressors = []string{"ENV_index", "SOC_index", "GOV_index"}
	}

	p := &c.Prediction
	if p.Target == "" {
		p.Target = "gdp_growth"
	}
	if len(p.Features) == 0 {
		p.Features = []string{"ENV_index", "SOC_index", "GOV_index", "gdp_per_capita", "inflation", "fdi_inflows"}
	}
	if p.Folds == 0 {
		p.Folds = 5
	}
	if p.Seed == 0 {
		p.Seed = 42
	}
	if p.CV == "" {
		p.CV = CVKFold
	}
	if len(p.Models) == 0 {
		p.Models = []string{ModelLinear, ModelRandomForest, ModelGradientBoosting}
	}
	if p.Forest == nil {
		p.Forest = &ForestConfig{}
	}
	if p.Forest.Trees == 0 {
		p.Forest.Trees = 200
	}
	if p.Forest.MaxDepth == 0 {
		p.Forest.MaxDepth = 8
	}
	if p.Forest.MinLeaf == 0 {
		p.Forest.MinLeaf = 5
	}
	if p.Boosting == nil {
		p.Boosting = &BoostingConfig{}
	}
	if p.Boosting.Rounds == 0 {
		p.Boosting.Rounds = 200
	}
	if p.Boosting.LearningRate == 0 {
		p.Boosting.LearningRate = 0.05
	}
	if p.Boosting.MaxDepth == 0 {
		p.Boosting.MaxDepth = 3
	}
	if p.Boosting.MinLeaf == 0 {
		p.Boosting.MinLeaf = 5
	}
	if p.Boosting.Subsample == 0 {
		p.Boosting.Subsample = 1.0
	}

	if c.Store.Project == "" {
		c.Store.Project = "default"
	}
}

// Load reads and validates esgpanel.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
// The returned bool reports whether the file was found.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// RawPath joins name onto the raw data directory.
func (c *Config) RawPath(name string) string {
	return filepath.Join(c.Paths.RawDir, name)
}

// ProcessedPath joins name onto the processed data directory.
func (c *Config) ProcessedPath(name string) string {
	return filepath.Join(c.Paths.ProcessedDir, name)
}

// ResultsPath joins elem onto the results directory.
func (c *Config) ResultsPath(elem ...string) string {
	return filepath.Join(append([]string{c.Paths.ResultsDir}, elem...)...)
}

// ESGCategories returns the distinct pillars present in the indicator map.
func (c *Config) ESGCategories() []string {
	set := make(map[string]bool)
	for _, ind := range c.ESGIndicators {
		set[ind.Category] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
