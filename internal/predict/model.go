// Package predict compares regression models for GDP growth by
// cross-validation. Models follow a Fit/Predict interface over gonum
// matrices.
package predict

import (
	"errors"
	"fmt"

	"github.com/dyluth/esgpanel/internal/config"
	"gonum.org/v1/gonum/mat"
)

// Model is a regressor that can be fitted and used for prediction.
type Model interface {
	Name() string
	Fit(X *mat.Dense, y []float64) error
	Predict(X *mat.Dense) ([]float64, error)
}

// Importancer is implemented by models that report feature importances.
// Importances are non-negative and sum to one, or are all zero when no
// split was made.
type Importancer interface {
	FeatureImportances() []float64
}

// Factory returns a fresh, unfitted model.
type Factory func() Model

var (
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("model is not fitted")
	// ErrEmptyTraining is returned by Fit for an empty training set.
	ErrEmptyTraining = errors.New("training set is empty")
)

// NewFactory returns the factory for a configured model name.
func NewFactory(name string, p config.PredictionConfig) (Factory, error) {
	seed := uint64(p.Seed)
	switch name {
	case config.ModelLinear:
		return func() Model { return NewLinear() }, nil
	case config.ModelRandomForest:
		f := *p.Forest
		return func() Model {
			return NewRandomForest(ForestParams{
				Trees:       f.Trees,
				MaxDepth:    f.MaxDepth,
				MinLeaf:     f.MinLeaf,
				MaxFeatures: f.MaxFeatures,
				Seed:        seed,
			})
		}, nil
	case config.ModelGradientBoosting:
		b := *p.Boosting
		return func() Model {
			return NewGradientBoosting(BoostingParams{
				Rounds:       b.Rounds,
				LearningRate: b.LearningRate,
				MaxDepth:     b.MaxDepth,
				MinLeaf:      b.MinLeaf,
				Subsample:    b.Subsample,
				Seed:         seed,
			})
		}, nil
	}
	return nil, fmt.Errorf("unknown model '%s'", name)
}

func checkFit(X *mat.Dense, y []float64) (int, int, error) {
	if X == nil || X.IsEmpty() || len(y) == 0 {
		return 0, 0, ErrEmptyTraining
	}
	n, p := X.Dims()
	if n != len(y) {
		return 0, 0, fmt.Errorf("X has %d rows but y has %d values", n, len(y))
	}
	return n, p, nil
}

func checkPredict(X *mat.Dense, features int) (int, error) {
	if X == nil || X.IsEmpty() {
		return 0, nil
	}
	n, p := X.Dims()
	if p != features {
		return 0, fmt.Errorf("expected %d features, got %d", features, p)
	}
	return n, nil
}
