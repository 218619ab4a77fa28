package predict

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// linearData returns y = 1 + 2 x0 - 3 x1 with x2 irrelevant.
func linearData(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := math.Sin(float64(i) * 0.9)
		x1 := math.Cos(float64(i) * 0.4)
		x2 := math.Sin(float64(i) * 2.3)
		X.SetRow(i, []float64{x0, x1, x2})
		y[i] = 1 + 2*x0 - 3*x1
	}
	return X, y
}

// stepData returns y = 10 when x0 > 0.5 and 0 otherwise, x1 noise.
func stepData(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i) / float64(n)
		x1 := math.Sin(float64(i) * 1.7)
		X.SetRow(i, []float64{x0, x1})
		if x0 > 0.5 {
			y[i] = 10
		}
	}
	return X, y
}

func TestLinear(t *testing.T) {
	X, y := linearData(40)
	m := NewLinear()

	_, err := m.Predict(X)
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, m.Fit(X, y))
	assert.InDelta(t, 1, m.Intercept, 1e-8)
	assert.InDelta(t, 2, m.Coef[0], 1e-8)
	assert.InDelta(t, -3, m.Coef[1], 1e-8)
	assert.InDelta(t, 0, m.Coef[2], 1e-8)

	pred, err := m.Predict(X)
	require.NoError(t, err)
	s := Score(y, pred)
	assert.InDelta(t, 0, s.RMSE, 1e-8)
	assert.InDelta(t, 1, s.R2, 1e-10)

	_, err = m.Predict(mat.NewDense(1, 2, nil))
	assert.ErrorContains(t, err, "expected 3 features")
}

func TestFitErrors(t *testing.T) {
	for _, m := range []Model{NewLinear(), NewTree(TreeParams{}, nil), NewRandomForest(ForestParams{}), NewGradientBoosting(BoostingParams{})} {
		t.Run(m.Name(), func(t *testing.T) {
			assert.ErrorIs(t, m.Fit(nil, nil), ErrEmptyTraining)
			assert.ErrorContains(t, m.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1}), "2 rows but y has 1")
		})
	}
}

func TestTree_FindsStep(t *testing.T) {
	X, y := stepData(50)
	tree := NewTree(TreeParams{MaxDepth: 3, MinLeaf: 2}, nil)
	require.NoError(t, tree.Fit(X, y))

	// one split separates the classes exactly
	assert.Equal(t, 1, tree.Depth())
	pred, err := tree.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, y, pred)

	imp := tree.FeatureImportances()
	assert.Equal(t, []float64{1, 0}, imp)
}

func TestTree_RespectsLimits(t *testing.T) {
	X, y := linearData(60)

	shallow := NewTree(TreeParams{MaxDepth: 2, MinLeaf: 1}, nil)
	require.NoError(t, shallow.Fit(X, y))
	assert.LessOrEqual(t, shallow.Depth(), 2)

	// a leaf needs 40 rows: no split of 60 rows leaves both sides >= 40
	stump := NewTree(TreeParams{MinLeaf: 40}, nil)
	require.NoError(t, stump.Fit(X, y))
	assert.Equal(t, 0, stump.Depth())
	assert.Equal(t, []float64{0, 0, 0}, stump.FeatureImportances())
}

func TestRandomForest(t *testing.T) {
	X, y := stepData(80)
	params := ForestParams{Trees: 25, MaxDepth: 4, MinLeaf: 2, MaxFeatures: 1, Seed: 7}

	m := NewRandomForest(params)
	require.NoError(t, m.Fit(X, y))
	pred, err := m.Predict(X)
	require.NoError(t, err)
	assert.Less(t, Score(y, pred).RMSE, 1.5)

	imp := m.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1, imp[0]+imp[1], 1e-12)
	assert.Greater(t, imp[0], imp[1])

	// same seed, same forest
	again := NewRandomForest(params)
	require.NoError(t, again.Fit(X, y))
	pred2, err := again.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, pred, pred2)
}

func TestGradientBoosting(t *testing.T) {
	X, y := linearData(80)

	m := NewGradientBoosting(BoostingParams{Rounds: 150, LearningRate: 0.1, MaxDepth: 3, MinLeaf: 2, Subsample: 0.8, Seed: 3})
	require.NoError(t, m.Fit(X, y))
	pred, err := m.Predict(X)
	require.NoError(t, err)

	s := Score(y, pred)
	assert.Greater(t, s.R2, 0.9)

	imp := m.FeatureImportances()
	require.Len(t, imp, 3)
	assert.Less(t, imp[2], imp[0])
	assert.Less(t, imp[2], imp[1])
}

func TestScore(t *testing.T) {
	s := Score([]float64{1, 2, 3}, []float64{1, 2, 5})
	assert.InDelta(t, math.Sqrt(4.0/3), s.RMSE, 1e-12)
	assert.InDelta(t, 2.0/3, s.MAE, 1e-12)
	assert.InDelta(t, 1-4.0/2, s.R2, 1e-12)

	flat := Score([]float64{2, 2}, []float64{1, 3})
	assert.True(t, math.IsNaN(flat.R2))
	assert.InDelta(t, 1, flat.RMSE, 1e-12)

	assert.True(t, math.IsNaN(Score(nil, nil).RMSE))
}

func TestKFoldSplits(t *testing.T) {
	folds, err := KFoldSplits(11, 3, 42)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.GreaterOrEqual(t, len(f), 3)
		assert.LessOrEqual(t, len(f), 4)
		for _, i := range f {
			seen[i]++
		}
	}
	assert.Len(t, seen, 11)
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d", i)
	}

	again, err := KFoldSplits(11, 3, 42)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(folds, again))

	_, err = KFoldSplits(2, 3, 1)
	assert.ErrorContains(t, err, "cannot split 2 rows into 3 folds")
	_, err = KFoldSplits(10, 1, 1)
	assert.Error(t, err)
}

func TestGroupKFoldSplits(t *testing.T) {
	groups := []string{"A", "A", "A", "B", "B", "C", "D", "D", "E"}
	folds, err := GroupKFoldSplits(groups, 2)
	require.NoError(t, err)

	want := [][]int{
		{0, 1, 2, 5, 8}, // A(3), then C(1), then E(1) on a tie
		{3, 4, 6, 7},    // B(2), D(2)
	}
	if diff := cmp.Diff(want, folds); diff != "" {
		t.Errorf("folds mismatch (-want +got):\n%s", diff)
	}

	for f, rows := range folds {
		for _, other := range folds[f+1:] {
			for _, i := range rows {
				for _, j := range other {
					assert.NotEqual(t, groups[i], groups[j], "group split across folds")
				}
			}
		}
	}

	_, err = GroupKFoldSplits([]string{"A", "A", "B"}, 3)
	assert.ErrorContains(t, err, "cannot split 2 groups into 3 folds")
}

func TestSplits(t *testing.T) {
	_, err := Splits(4, nil, CVSpec{Folds: 2, Strategy: config.CVGroup})
	assert.ErrorContains(t, err, "one group per row")

	_, err = Splits(4, nil, CVSpec{Folds: 2, Strategy: "loo"})
	assert.ErrorContains(t, err, "unknown cv strategy")
}

func TestCrossValidate(t *testing.T) {
	X, y := linearData(60)
	p := config.Default().Prediction
	p.Forest.Trees = 10
	p.Boosting.Rounds = 30

	var factories []Factory
	for _, name := range []string{config.ModelLinear, config.ModelRandomForest, config.ModelGradientBoosting} {
		f, err := NewFactory(name, p)
		require.NoError(t, err)
		factories = append(factories, f)
	}

	spec := CVSpec{Folds: 4, Strategy: config.CVKFold, Seed: 1}
	results, err := CrossValidate(context.Background(), factories, X, y, nil, spec, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, config.ModelLinear, results[0].Model)
	assert.Equal(t, config.ModelRandomForest, results[1].Model)
	assert.Equal(t, config.ModelGradientBoosting, results[2].Model)
	for _, r := range results {
		require.Len(t, r.Folds, 4)
		total := 0
		for k, f := range r.Folds {
			assert.Equal(t, k+1, f.Fold)
			assert.Equal(t, 60, f.Train+f.Test)
			total += f.Test
		}
		assert.Equal(t, 60, total)
	}
	assert.InDelta(t, 0, results[0].Mean.RMSE, 1e-8, "linear model is exact")

	again, err := CrossValidate(context.Background(), factories, X, y, nil, spec, nil)
	require.NoError(t, err)
	assert.Equal(t, results, again, "results are deterministic")
}

func TestCrossValidate_Cancelled(t *testing.T) {
	X, y := linearData(30)
	f, err := NewFactory(config.ModelLinear, config.Default().Prediction)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CrossValidate(ctx, []Factory{f}, X, y, nil, CVSpec{Folds: 3}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewFactory_Unknown(t *testing.T) {
	_, err := NewFactory("svm", config.Default().Prediction)
	assert.ErrorContains(t, err, "unknown model 'svm'")
}

func TestRank(t *testing.T) {
	results := []CVResult{
		{Model: "c", Mean: Metrics{RMSE: 2, MAE: 1}},
		{Model: "b", Mean: Metrics{RMSE: 1, MAE: 2}},
		{Model: "a", Mean: Metrics{RMSE: 1, MAE: 2}},
		{Model: "d", Mean: Metrics{RMSE: math.NaN()}},
		{Model: "e", Mean: Metrics{RMSE: 1, MAE: 1}},
	}
	Rank(results)

	var order []string
	for _, r := range results {
		order = append(order, r.Model)
	}
	assert.Equal(t, []string{"e", "a", "b", "c", "d"}, order)
}

// comparisonDataset builds a regression dataset with 12 countries x 8
// years where gdp_growth depends on ENV_index and inflation.
func comparisonDataset() *esg.Dataset {
	p := config.Default().Prediction
	d := &esg.Dataset{Columns: append([]string{p.Target}, p.Features...)}
	i := 0
	for c := 0; c < 12; c++ {
		for yr := 0; yr < 8; yr++ {
			vals := make([]float64, len(d.Columns))
			for j := 1; j < len(vals); j++ {
				vals[j] = math.Sin(float64(i*j) * 0.37)
			}
			vals[0] = 2*vals[1] + 0.5*vals[5] + 0.1*math.Cos(float64(i))
			d.Rows = append(d.Rows, esg.Row{
				Key:    esg.Key{CountryName: fmt.Sprintf("Country %d", c), CountryCode: fmt.Sprintf("C%02d", c), Year: 2000 + yr},
				Values: vals,
			})
			i++
		}
	}
	// one incomplete row is dropped
	d.Rows[0].Values[2] = math.NaN()
	return d
}

func TestCompare(t *testing.T) {
	p := config.Default().Prediction
	p.Forest.Trees = 15
	p.Boosting.Rounds = 40
	p.CV = config.CVGroup
	p.Folds = 3

	c, err := Compare(context.Background(), comparisonDataset(), p, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 95, c.Rows)
	assert.Equal(t, 12, c.Groups)
	require.Len(t, c.Results, 3)
	assert.Equal(t, config.ModelLinear, c.Best)
	assert.Equal(t, c.Results[0].Model, c.Best)

	// linear has no importances: they come from the best tree model
	require.Len(t, c.Importances, len(p.Features))
	model := c.Importances[0].Model
	assert.NotEqual(t, config.ModelLinear, model)
	total := 0.0
	for i, imp := range c.Importances {
		assert.Equal(t, model, imp.Model)
		total += imp.Importance
		if i > 0 {
			assert.LessOrEqual(t, imp.Importance, c.Importances[i-1].Importance)
		}
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Equal(t, "ENV_index", c.Importances[0].Feature)

	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, c.WriteFiles(dir))
	data, err := os.ReadFile(filepath.Join(dir, "model_comparison.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "rank,model,folds,rmse_mean,rmse_std,mae_mean,mae_std,r2_mean,r2_std", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,linear,3,"))

	var buf bytes.Buffer
	require.NoError(t, c.WriteImportances(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "model,feature,importance\n"))
}

func TestCompare_Errors(t *testing.T) {
	p := config.Default().Prediction
	p.Models = []string{"svm"}
	_, err := Compare(context.Background(), comparisonDataset(), p, nil)
	assert.ErrorContains(t, err, "unknown model")

	p = config.Default().Prediction
	p.Features = []string{"nope"}
	_, err = Compare(context.Background(), comparisonDataset(), p, nil)
	assert.ErrorContains(t, err, `unknown column "nope"`)

	p = config.Default().Prediction
	p.Folds = 200
	_, err = Compare(context.Background(), comparisonDataset(), p, nil)
	assert.ErrorContains(t, err, "cannot split")
}
