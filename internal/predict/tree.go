package predict

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// TreeParams controls the growth of a regression tree.
type TreeParams struct {
	MaxDepth    int // 0 = unlimited
	MinLeaf     int // minimum samples per leaf, at least 1
	MaxFeatures int // features tried per split, 0 = all
}

type node struct {
	feature     int
	threshold   float64
	left, right int
	value       float64
	leaf        bool
}

// Tree is a CART regression tree grown by variance reduction.
type Tree struct {
	params     TreeParams
	rng        *rand.Rand
	nodes      []node
	features   int
	importance []float64
}

// NewTree returns an unfitted tree. rng drives the per-split feature
// subsets and may be nil when MaxFeatures is 0.
func NewTree(params TreeParams, rng *rand.Rand) *Tree {
	if params.MinLeaf < 1 {
		params.MinLeaf = 1
	}
	return &Tree{params: params, rng: rng}
}

func (t *Tree) Name() string { return "tree" }

// Fit grows the tree on all rows of X.
func (t *Tree) Fit(X *mat.Dense, y []float64) error {
	n, _, err := checkFit(X, y)
	if err != nil {
		return err
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	t.fitRows(X, y, idx)
	return nil
}

// fitRows grows the tree on the given rows only. Rows may repeat.
func (t *Tree) fitRows(X *mat.Dense, y []float64, rows []int) {
	_, p := X.Dims()
	t.features = p
	t.nodes = t.nodes[:0]
	t.importance = make([]float64, p)
	t.grow(X, y, append([]int(nil), rows...), 0)
}

func (t *Tree) grow(X *mat.Dense, y []float64, rows []int, depth int) int {
	mean, sse := meanSSE(y, rows)
	id := len(t.nodes)
	t.nodes = append(t.nodes, node{value: mean, leaf: true})

	if len(rows) < 2*t.params.MinLeaf || sse <= 1e-12 {
		return id
	}
	if t.params.MaxDepth > 0 && depth >= t.params.MaxDepth {
		return id
	}

	best := t.bestSplit(X, y, rows, sse)
	if best.feature < 0 {
		return id
	}

	var left, right []int
	for _, r := range rows {
		if X.At(r, best.feature) <= best.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	t.importance[best.feature] += best.gain

	l := t.grow(X, y, left, depth+1)
	r := t.grow(X, y, right, depth+1)
	t.nodes[id] = node{feature: best.feature, threshold: best.threshold, left: l, right: r, value: mean}
	return id
}

type split struct {
	feature   int
	threshold float64
	gain      float64
}

func (t *Tree) bestSplit(X *mat.Dense, y []float64, rows []int, parentSSE float64) split {
	best := split{feature: -1}
	minLeaf := t.params.MinLeaf
	order := make([]int, len(rows))

	for _, f := range t.candidateFeatures() {
		copy(order, rows)
		sort.Slice(order, func(a, b int) bool { return X.At(order[a], f) < X.At(order[b], f) })

		var totalSum, totalSq float64
		for _, r := range order {
			totalSum += y[r]
			totalSq += y[r] * y[r]
		}

		var leftSum, leftSq float64
		n := len(order)
		for i := 0; i < n-1; i++ {
			v := y[order[i]]
			leftSum += v
			leftSq += v * v
			nl := i + 1
			nr := n - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			x0, x1 := X.At(order[i], f), X.At(order[i+1], f)
			if x0 == x1 {
				continue
			}
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			sse := (leftSq - leftSum*leftSum/float64(nl)) + (rightSq - rightSum*rightSum/float64(nr))
			gain := parentSSE - sse
			if gain > best.gain+1e-12 {
				best = split{feature: f, threshold: (x0 + x1) / 2, gain: gain}
			}
		}
	}
	return best
}

func (t *Tree) candidateFeatures() []int {
	all := make([]int, t.features)
	for i := range all {
		all[i] = i
	}
	k := t.params.MaxFeatures
	if k <= 0 || k >= t.features || t.rng == nil {
		return all
	}
	t.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	chosen := all[:k]
	sort.Ints(chosen)
	return chosen
}

func (t *Tree) Predict(X *mat.Dense) ([]float64, error) {
	if len(t.nodes) == 0 {
		return nil, ErrNotFitted
	}
	n, err := checkPredict(X, t.features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = t.predictRow(X, i)
	}
	return out, nil
}

func (t *Tree) predictRow(X *mat.Dense, i int) float64 {
	nd := t.nodes[0]
	for !nd.leaf {
		if X.At(i, nd.feature) <= nd.threshold {
			nd = t.nodes[nd.left]
		} else {
			nd = t.nodes[nd.right]
		}
	}
	return nd.value
}

// Depth returns the depth of the deepest leaf, 0 for a single leaf.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(id int) int
	walk = func(id int) int {
		nd := t.nodes[id]
		if nd.leaf {
			return 0
		}
		return 1 + max(walk(nd.left), walk(nd.right))
	}
	return walk(0)
}

// FeatureImportances returns the total SSE reduction per feature,
// normalised to sum to one.
func (t *Tree) FeatureImportances() []float64 {
	return normalise(t.importance)
}

func meanSSE(y []float64, rows []int) (float64, float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	var sum float64
	for _, r := range rows {
		sum += y[r]
	}
	mean := sum / float64(len(rows))
	var sse float64
	for _, r := range rows {
		d := y[r] - mean
		sse += d * d
	}
	return mean, sse
}

func normalise(v []float64) []float64 {
	out := make([]float64, len(v))
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 || math.IsNaN(total) {
		return out
	}
	for i, x := range v {
		out[i] = x / total
	}
	return out
}
