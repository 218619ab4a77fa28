package predict

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sort"

	"github.com/dyluth/esgpanel/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// CVSpec describes how rows are split into folds.
type CVSpec struct {
	Folds    int
	Strategy string // config.CVKFold or config.CVGroup
	Seed     uint64
}

// FoldResult holds the scores of one model on one held-out fold.
type FoldResult struct {
	Fold  int `json:"fold"`
	Train int `json:"train"`
	Test  int `json:"test"`
	Metrics
}

// CVResult aggregates the folds of one model.
type CVResult struct {
	Model string       `json:"model"`
	Folds []FoldResult `json:"folds"`
	Mean  Metrics      `json:"mean"`
	Std   Metrics      `json:"std"`
}

// KFoldSplits shuffles 0..n-1 with seed and deals the rows into k test
// folds whose sizes differ by at most one.
func KFoldSplits(n, k int, seed uint64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("cannot split %d rows into %d folds", n, k)
	}
	perm := rand.New(rand.NewPCG(seed, 0)).Perm(n)

	folds := make([][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		folds[f] = append([]int(nil), perm[start:start+size]...)
		sort.Ints(folds[f])
		start += size
	}
	return folds, nil
}

// GroupKFoldSplits keeps every group inside a single test fold. Groups are
// taken largest first (ties by name) and each goes to the fold with the
// fewest rows so far.
func GroupKFoldSplits(groups []string, k int) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	members := make(map[string][]int)
	for i, g := range groups {
		members[g] = append(members[g], i)
	}
	if len(members) < k {
		return nil, fmt.Errorf("cannot split %d groups into %d folds", len(members), k)
	}

	names := make([]string, 0, len(members))
	for g := range members {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := len(members[names[i]]), len(members[names[j]])
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})

	folds := make([][]int, k)
	for _, g := range names {
		target := 0
		for f := 1; f < k; f++ {
			if len(folds[f]) < len(folds[target]) {
				target = f
			}
		}
		folds[target] = append(folds[target], members[g]...)
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// Splits returns the test folds for spec. groups is required for the group
// strategy and ignored otherwise.
func Splits(n int, groups []string, spec CVSpec) ([][]int, error) {
	switch spec.Strategy {
	case config.CVKFold, "":
		return KFoldSplits(n, spec.Folds, spec.Seed)
	case config.CVGroup:
		if len(groups) != n {
			return nil, fmt.Errorf("group strategy needs one group per row: %d groups for %d rows", len(groups), n)
		}
		return GroupKFoldSplits(groups, spec.Folds)
	}
	return nil, fmt.Errorf("unknown cv strategy '%s'", spec.Strategy)
}

// CrossValidate fits a fresh model from every factory on every training
// split and scores it on the held-out fold. Model-fold pairs run
// concurrently; results are returned in factory order with folds in order.
func CrossValidate(ctx context.Context, factories []Factory, X *mat.Dense, y []float64, groups []string, spec CVSpec, logger *zap.Logger) ([]CVResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(factories) == 0 {
		return nil, fmt.Errorf("no models to compare")
	}
	n, _, err := checkFit(X, y)
	if err != nil {
		return nil, err
	}
	folds, err := Splits(n, groups, spec)
	if err != nil {
		return nil, err
	}

	results := make([]CVResult, len(factories))
	for m, f := range factories {
		results[m] = CVResult{Model: f().Name(), Folds: make([]FoldResult, len(folds))}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for m := range factories {
		for k := range folds {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				model := factories[m]()
				trainX, trainY, testX, testY := splitRows(X, y, folds[k])
				if err := model.Fit(trainX, trainY); err != nil {
					return fmt.Errorf("failed to fit %s on fold %d: %w", model.Name(), k+1, err)
				}
				pred, err := model.Predict(testX)
				if err != nil {
					return fmt.Errorf("failed to predict %s on fold %d: %w", model.Name(), k+1, err)
				}
				fr := FoldResult{Fold: k + 1, Train: len(trainY), Test: len(testY), Metrics: Score(testY, pred)}
				results[m].Folds[k] = fr

				logger.Debug("Fold scored",
					zap.String("model", model.Name()),
					zap.Int("fold", fr.Fold),
					zap.Float64("rmse", fr.RMSE))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Mean, results[i].Std = summarise(results[i].Folds)
	}
	return results, nil
}

// splitRows separates the test rows from the training rows.
func splitRows(X *mat.Dense, y []float64, test []int) (*mat.Dense, []float64, *mat.Dense, []float64) {
	n, p := X.Dims()
	inTest := make([]bool, n)
	for _, i := range test {
		inTest[i] = true
	}
	var train []int
	for i := 0; i < n; i++ {
		if !inTest[i] {
			train = append(train, i)
		}
	}
	trainX, trainY := subset(X, y, train, p)
	testX, testY := subset(X, y, test, p)
	return trainX, trainY, testX, testY
}

func subset(X *mat.Dense, y []float64, rows []int, p int) (*mat.Dense, []float64) {
	if len(rows) == 0 {
		return nil, nil
	}
	out := mat.NewDense(len(rows), p, nil)
	ys := make([]float64, len(rows))
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
		ys[i] = y[r]
	}
	return out, ys
}
