package predict

import (
	"fmt"

	"github.com/dyluth/esgpanel/internal/config"
	"github.com/dyluth/esgpanel/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Linear is ordinary least squares with an intercept.
type Linear struct {
	Intercept float64
	Coef      []float64
	fitted    bool
}

// NewLinear returns an unfitted linear model.
func NewLinear() *Linear { return &Linear{} }

func (m *Linear) Name() string { return config.ModelLinear }

func (m *Linear) Fit(X *mat.Dense, y []float64) error {
	n, p, err := checkFit(X, y)
	if err != nil {
		return err
	}

	design := mat.NewDense(n, p+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < p; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
	}

	beta, _, _, err := linalg.LeastSquares(design, y)
	if err != nil {
		return fmt.Errorf("failed to fit linear model: %w", err)
	}
	m.Intercept = beta.AtVec(0)
	m.Coef = make([]float64, p)
	for j := range m.Coef {
		m.Coef[j] = beta.AtVec(j + 1)
	}
	m.fitted = true
	return nil
}

func (m *Linear) Predict(X *mat.Dense) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	n, err := checkPredict(X, len(m.Coef))
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		v := m.Intercept
		for j, c := range m.Coef {
			v += c * X.At(i, j)
		}
		out[i] = v
	}
	return out, nil
}
