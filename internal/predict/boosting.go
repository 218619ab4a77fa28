package predict

import (
	"math/rand/v2"

	"github.com/dyluth/esgpanel/internal/config"
	"gonum.org/v1/gonum/mat"
)

// BoostingParams configures gradient boosting.
type BoostingParams struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
	MinLeaf      int
	Subsample    float64 // fraction of rows per round, (0, 1]
	Seed         uint64
}

// GradientBoosting fits shallow trees to the residuals of the running
// prediction under squared loss, starting from the mean.
type GradientBoosting struct {
	params BoostingParams
	init   float64
	trees  []*Tree
}

// NewGradientBoosting returns an unfitted booster.
func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	if params.Rounds < 1 {
		params.Rounds = 1
	}
	if params.LearningRate <= 0 {
		params.LearningRate = 0.1
	}
	if params.Subsample <= 0 || params.Subsample > 1 {
		params.Subsample = 1
	}
	return &GradientBoosting{params: params}
}

func (m *GradientBoosting) Name() string { return config.ModelGradientBoosting }

func (m *GradientBoosting) Fit(X *mat.Dense, y []float64) error {
	n, _, err := checkFit(X, y)
	if err != nil {
		return err
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	m.init = sum / float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = m.init
	}
	resid := make([]float64, n)
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	size := max(1, int(m.params.Subsample*float64(n)))
	rng := rand.New(rand.NewPCG(m.params.Seed, 0))

	m.trees = make([]*Tree, 0, m.params.Rounds)
	for round := 0; round < m.params.Rounds; round++ {
		for i := range resid {
			resid[i] = y[i] - current[i]
		}

		rows := all
		if size < n {
			perm := rng.Perm(n)
			rows = perm[:size]
		}

		t := NewTree(TreeParams{MaxDepth: m.params.MaxDepth, MinLeaf: m.params.MinLeaf}, nil)
		t.fitRows(X, resid, rows)
		m.trees = append(m.trees, t)

		for i := range current {
			current[i] += m.params.LearningRate * t.predictRow(X, i)
		}
	}
	return nil
}

func (m *GradientBoosting) Predict(X *mat.Dense) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, ErrNotFitted
	}
	n, err := checkPredict(X, m.trees[0].features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v := m.init
		for _, t := range m.trees {
			v += m.params.LearningRate * t.predictRow(X, i)
		}
		out[i] = v
	}
	return out, nil
}

// FeatureImportances sums the raw SSE reductions over all rounds.
func (m *GradientBoosting) FeatureImportances() []float64 {
	if len(m.trees) == 0 {
		return nil
	}
	sum := make([]float64, m.trees[0].features)
	for _, t := range m.trees {
		for j, v := range t.importance {
			sum[j] += v
		}
	}
	return normalise(sum)
}
