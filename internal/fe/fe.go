// Package fe estimates the two-way fixed-effects model
//
//	y_it = b'x_it + a_i + g_t + e_it
//
// by OLS with country and year dummies, and reports standard errors
// clustered by country. Results describe associations in the panel.
package fe

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/dyluth/esgpanel/internal/linalg"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Spec names the dependent variable and the regressors.
type Spec struct {
	Dependent  string
	Regressors []string
}

// Coefficient is one row of the regression table.
type Coefficient struct {
	Name        string  `json:"name"`
	Estimate    float64 `json:"estimate"`
	StdErr      float64 `json:"std_err"`
	Z           float64 `json:"z"`
	P           float64 `json:"p"`
	Lower       float64 `json:"ci_lower"`
	Upper       float64 `json:"ci_upper"`
	FixedEffect bool    `json:"fixed_effect,omitempty"`
}

// Result holds the fitted model.
type Result struct {
	Spec         Spec          `json:"spec"`
	Coefficients []Coefficient `json:"coefficients"`
	N            int           `json:"n"`
	Clusters     int           `json:"clusters"`
	Periods      int           `json:"periods"`
	Rank         int           `json:"rank"`
	RSquared     float64       `json:"r_squared"`
	AdjRSquared  float64       `json:"adj_r_squared"`
	SSR          float64       `json:"ssr"`
	LogLik       float64       `json:"log_likelihood"`
	AIC          float64       `json:"aic"`
	BIC          float64       `json:"bic"`
}

// Coefficient returns the named coefficient.
func (r *Result) Coefficient(name string) (Coefficient, bool) {
	for _, c := range r.Coefficients {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}

// Regressors returns the non-fixed-effect coefficients, intercept first.
func (r *Result) Regressors() []Coefficient {
	var out []Coefficient
	for _, c := range r.Coefficients {
		if !c.FixedEffect {
			out = append(out, c)
		}
	}
	return out
}

// Errors returned by Fit
var (
	ErrTooFewClusters = errors.New("need at least two countries to cluster standard errors")
	ErrNoResidualDF   = errors.New("not enough observations for the number of parameters")
)

const intercept = "Intercept"

// z quantile for a two-sided 95% interval
const z975 = 1.959963984540054

// Fit estimates the model on the complete cases of d: rows missing the
// dependent variable or any regressor are dropped. Country and year enter
// as treatment-coded dummies with the first sorted level as the baseline.
func Fit(d *esg.Dataset, spec Spec, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	X0, y, rows, err := d.Matrix(spec.Dependent, spec.Regressors)
	if err != nil {
		return nil, fmt.Errorf("failed to build estimation sample: %w", err)
	}
	n := len(y)

	codes := levels(rows, func(r esg.Row) string { return r.CountryCode })
	years := levels(rows, func(r esg.Row) string { return strconv.Itoa(r.Year) })
	if len(codes) < 2 {
		return nil, ErrTooFewClusters
	}

	// Intercept, country dummies, year dummies, regressors
	names := []string{intercept}
	fixed := []bool{false}
	for _, c := range codes[1:] {
		names = append(names, fmt.Sprintf("C(country_code)[T.%s]", c))
		fixed = append(fixed, true)
	}
	for _, yr := range years[1:] {
		names = append(names, fmt.Sprintf("C(Year)[T.%s]", yr))
		fixed = append(fixed, true)
	}
	for _, r := range spec.Regressors {
		names = append(names, r)
		fixed = append(fixed, false)
	}
	p := len(names)

	codePos := indexOf(codes)
	yearPos := indexOf(years)
	X := mat.NewDense(n, p, nil)
	for i, r := range rows {
		X.Set(i, 0, 1)
		if j := codePos[r.CountryCode]; j > 0 {
			X.Set(i, j, 1)
		}
		if j := yearPos[strconv.Itoa(r.Year)]; j > 0 {
			X.Set(i, len(codes)+j-1, 1)
		}
		for k := range spec.Regressors {
			X.Set(i, p-len(spec.Regressors)+k, X0.At(i, k))
		}
	}

	beta, bread, rank, err := linalg.LeastSquares(X, y)
	if err != nil {
		return nil, fmt.Errorf("failed to solve normal equations: %w", err)
	}
	if n <= p {
		return nil, ErrNoResidualDF
	}

	var fitted mat.VecDense
	fitted.MulVec(X, beta)
	resid := make([]float64, n)
	ssr, mean := 0.0, 0.0
	for i := range y {
		resid[i] = y[i] - fitted.AtVec(i)
		ssr += resid[i] * resid[i]
		mean += y[i]
	}
	mean /= float64(n)
	tss := 0.0
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}

	cov := clusterCovariance(X, resid, rows, codes, bread)

	res := &Result{
		Spec:     spec,
		N:        n,
		Clusters: len(codes),
		Periods:  len(years),
		Rank:     rank,
		SSR:      ssr,
	}
	if tss > 0 {
		res.RSquared = 1 - ssr/tss
		res.AdjRSquared = 1 - float64(n-1)/float64(n-rank)*(1-res.RSquared)
	}
	nf := float64(n)
	res.LogLik = -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)
	res.AIC = -2*res.LogLik + 2*float64(rank)
	res.BIC = -2*res.LogLik + float64(rank)*math.Log(nf)

	for j, name := range names {
		b := beta.AtVec(j)
		se := math.Sqrt(math.Max(cov.At(j, j), 0))
		c := Coefficient{Name: name, Estimate: b, StdErr: se, FixedEffect: fixed[j]}
		if se > 0 {
			c.Z = b / se
			c.P = 2 * distuv.UnitNormal.Survival(math.Abs(c.Z))
		} else {
			c.Z, c.P = math.NaN(), math.NaN()
		}
		c.Lower = b - z975*se
		c.Upper = b + z975*se
		res.Coefficients = append(res.Coefficients, c)
	}

	logger.Info("Fixed-effects regression fitted",
		zap.Int("n", n),
		zap.Int("clusters", res.Clusters),
		zap.Int("periods", res.Periods),
		zap.Int("rank", rank),
		zap.Float64("r_squared", res.RSquared))

	return res, nil
}

// clusterCovariance computes the sandwich B M B with M summing the outer
// products of the per-country scores X_g'u_g, scaled by the small-sample
// factor G/(G-1) * (N-1)/(N-K). K counts every design column, including
// any that are collinear.
func clusterCovariance(X *mat.Dense, resid []float64, rows []esg.Row, codes []string, bread *mat.Dense) *mat.Dense {
	n, p := X.Dims()
	scores := make(map[string][]float64, len(codes))
	for i, r := range rows {
		s, ok := scores[r.CountryCode]
		if !ok {
			s = make([]float64, p)
			scores[r.CountryCode] = s
		}
		for j := 0; j < p; j++ {
			s[j] += X.At(i, j) * resid[i]
		}
	}

	meat := mat.NewSymDense(p, nil)
	for _, code := range codes {
		meat.SymRankOne(meat, 1, mat.NewVecDense(p, scores[code]))
	}

	var tmp, cov mat.Dense
	tmp.Mul(bread, meat)
	cov.Mul(&tmp, bread)

	g := float64(len(codes))
	scale := g / (g - 1) * float64(n-1) / float64(n-p)
	cov.Scale(scale, &cov)
	return &cov
}

func levels(rows []esg.Row, key func(esg.Row) string) []string {
	set := make(map[string]struct{})
	for _, r := range rows {
		set[key(r)] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(values []string) map[string]int {
	m := make(map[string]int, len(values))
	for i, v := range values {
		m[v] = i
	}
	return m
}
