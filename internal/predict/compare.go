package predict

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/esg"
	"go.uber.org/zap"
)

// Importance is one feature's share of a fitted model's importance.
type Importance struct {
	Model      string  `json:"model"`
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Comparison is the outcome of comparing models on one dataset.
type Comparison struct {
	Target   string     `json:"target"`
	Features []string   `json:"features"`
	Rows     int        `json:"rows"`
	Groups   int        `json:"groups"`
	CV       CVSpec     `json:"cv"`
	Results  []CVResult `json:"results"` // ranked, best first
	Best     string     `json:"best"`
	// Importances come from the best model refit on all rows, or from the
	// best-ranked tree model when the best model has none.
	Importances []Importance `json:"importances"`
}

// Compare cross-validates every configured model on the complete cases of
// d and ranks them by mean RMSE, then mean MAE, then name.
func Compare(ctx context.Context, d *esg.Dataset, p config.PredictionConfig, logger *zap.Logger) (*Comparison, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(p.Features) == 0 {
		return nil, fmt.Errorf("no features configured")
	}

	factories := make([]Factory, 0, len(p.Models))
	byName := make(map[string]Factory, len(p.Models))
	for _, name := range p.Models {
		f, err := NewFactory(name, p)
		if err != nil {
			return nil, err
		}
		factories = append(factories, f)
		byName[name] = f
	}

	X, y, rows, err := d.Matrix(p.Target, p.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to build model matrix: %w", err)
	}
	groups := make([]string, len(rows))
	unique := make(map[string]bool)
	for i, r := range rows {
		groups[i] = r.CountryCode
		unique[r.CountryCode] = true
	}

	spec := CVSpec{Folds: p.Folds, Strategy: p.CV, Seed: uint64(p.Seed)}
	logger.Info("Cross-validating models",
		zap.Strings("models", p.Models),
		zap.Int("rows", len(y)),
		zap.Int("countries", len(unique)),
		zap.Int("folds", spec.Folds),
		zap.String("strategy", spec.Strategy))

	results, err := CrossValidate(ctx, factories, X, y, groups, spec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to cross-validate: %w", err)
	}
	Rank(results)

	c := &Comparison{
		Target:   p.Target,
		Features: append([]string(nil), p.Features...),
		Rows:     len(y),
		Groups:   len(unique),
		CV:       spec,
		Results:  results,
		Best:     results[0].Model,
	}

	for _, r := range results {
		model := byName[r.Model]()
		if _, ok := model.(Importancer); !ok {
			continue
		}
		if err := model.Fit(X, y); err != nil {
			return nil, fmt.Errorf("failed to refit %s: %w", r.Model, err)
		}
		for j, v := range model.(Importancer).FeatureImportances() {
			c.Importances = append(c.Importances, Importance{Model: r.Model, Feature: p.Features[j], Importance: v})
		}
		sort.SliceStable(c.Importances, func(i, j int) bool {
			return c.Importances[i].Importance > c.Importances[j].Importance
		})
		break
	}

	logger.Info("Model comparison complete",
		zap.String("best", c.Best),
		zap.Float64("rmse", results[0].Mean.RMSE))
	return c, nil
}

// Rank sorts results by mean RMSE, then mean MAE, then model name. NaN
// scores sort last.
func Rank(results []CVResult) {
	less := func(a, b float64) (bool, bool) {
		an, bn := math.IsNaN(a), math.IsNaN(b)
		switch {
		case an && bn:
			return false, false
		case an:
			return false, true
		case bn:
			return true, true
		case a != b:
			return a < b, true
		}
		return false, false
	}
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Mean, results[j].Mean
		if l, decided := less(a.RMSE, b.RMSE); decided {
			return l
		}
		if l, decided := less(a.MAE, b.MAE); decided {
			return l
		}
		return results[i].Model < results[j].Model
	})
}

var comparisonHeader = []string{"rank", "model", "folds", "rmse_mean", "rmse_std", "mae_mean", "mae_std", "r2_mean", "r2_std"}

// WriteComparison writes the ranked results as CSV.
func (c *Comparison) WriteComparison(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(comparisonHeader); err != nil {
		return err
	}
	for i, r := range c.Results {
		rec := []string{
			strconv.Itoa(i + 1), r.Model, strconv.Itoa(len(r.Folds)),
			formatFloat(r.Mean.RMSE), formatFloat(r.Std.RMSE),
			formatFloat(r.Mean.MAE), formatFloat(r.Std.MAE),
			formatFloat(r.Mean.R2), formatFloat(r.Std.R2),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteImportances writes the feature importances as CSV.
func (c *Comparison) WriteImportances(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"model", "feature", "importance"}); err != nil {
		return err
	}
	for _, imp := range c.Importances {
		if err := cw.Write([]string{imp.Model, imp.Feature, formatFloat(imp.Importance)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFiles writes model_comparison.csv and feature_importance.csv into dir.
func (c *Comparison) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := writeFile(filepath.Join(dir, "model_comparison.csv"), c.WriteComparison); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "feature_importance.csv"), c.WriteImportances)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}
