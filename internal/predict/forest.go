package predict

import (
	"math"
	"math/rand/v2"

	"github.com/dyluth/esgpanel/internal/config"
	"gonum.org/v1/gonum/mat"
)

// ForestParams configures a random forest.
type ForestParams struct {
	Trees       int
	MaxDepth    int
	MinLeaf     int
	MaxFeatures int // 0 = floor(sqrt(p)), at least 1
	Seed        uint64
}

// RandomForest averages CART trees grown on bootstrap samples with a
// random feature subset tried at each split.
type RandomForest struct {
	params ForestParams
	trees  []*Tree
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(params ForestParams) *RandomForest {
	if params.Trees < 1 {
		params.Trees = 1
	}
	return &RandomForest{params: params}
}

func (m *RandomForest) Name() string { return config.ModelRandomForest }

func (m *RandomForest) Fit(X *mat.Dense, y []float64) error {
	n, p, err := checkFit(X, y)
	if err != nil {
		return err
	}

	k := m.params.MaxFeatures
	if k <= 0 {
		k = max(1, int(math.Sqrt(float64(p))))
	}

	m.trees = make([]*Tree, m.params.Trees)
	rows := make([]int, n)
	for i := range m.trees {
		rng := rand.New(rand.NewPCG(m.params.Seed, uint64(i)))
		for j := range rows {
			rows[j] = rng.IntN(n)
		}
		t := NewTree(TreeParams{MaxDepth: m.params.MaxDepth, MinLeaf: m.params.MinLeaf, MaxFeatures: k}, rng)
		t.fitRows(X, y, rows)
		m.trees[i] = t
	}
	return nil
}

func (m *RandomForest) Predict(X *mat.Dense) ([]float64, error) {
	if len(m.trees) == 0 {
		return nil, ErrNotFitted
	}
	var out []float64
	for _, t := range m.trees {
		pred, err := t.Predict(X)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = make([]float64, len(pred))
		}
		for i, v := range pred {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(m.trees))
	}
	return out, nil
}

// FeatureImportances averages the normalised importances of the trees.
func (m *RandomForest) FeatureImportances() []float64 {
	if len(m.trees) == 0 {
		return nil
	}
	sum := make([]float64, m.trees[0].features)
	for _, t := range m.trees {
		for j, v := range t.FeatureImportances() {
			sum[j] += v
		}
	}
	return normalise(sum)
}
