// Package linalg holds the small pieces of dense linear algebra shared by
// the regression and prediction packages.
package linalg

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// RCond is the relative cutoff for small singular values.
const RCond = 1e-12

// ErrFactorize is returned when the SVD does not converge.
var ErrFactorize = errors.New("singular value decomposition failed")

// PseudoInverse returns the Moore-Penrose inverse of a and its numerical
// rank. Singular values below RCond * sigma_max are treated as zero, so
// collinear columns get a minimum-norm solution instead of an error.
func PseudoInverse(a mat.Matrix) (*mat.Dense, int, error) {
	r, c := a.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, 0, ErrFactorize
	}
	values := svd.Values(nil)

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 0.0
	if len(values) > 0 {
		tol = RCond * values[0]
	}

	rank := 0
	inv := make([]float64, len(values))
	for i, s := range values {
		if s > tol {
			inv[i] = 1 / s
			rank++
		}
	}

	// pinv = V * diag(1/s) * U^T
	var vs mat.Dense
	vs.Apply(func(_, j int, x float64) float64 { return x * inv[j] }, &v)

	out := mat.NewDense(c, r, nil)
	out.Mul(&vs, u.T())
	return out, rank, nil
}

// LeastSquares solves min ||X b - y|| through the pseudo-inverse of X'X.
// It returns the coefficients, the (X'X)^+ matrix used for inference and
// the rank of X.
func LeastSquares(X mat.Matrix, y []float64) (*mat.VecDense, *mat.Dense, int, error) {
	n, _ := X.Dims()
	if len(y) != n {
		return nil, nil, 0, errors.New("row count of X and length of y differ")
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	bread, rank, err := PseudoInverse(&xtx)
	if err != nil {
		return nil, nil, 0, err
	}

	var xty mat.VecDense
	xty.MulVec(X.T(), mat.NewVecDense(n, append([]float64{}, y...)))

	var beta mat.VecDense
	beta.MulVec(bread, &xty)
	return &beta, bread, rank, nil
}
