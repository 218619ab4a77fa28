package fe

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dyluth/esgpanel/internal/esg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gonum.org/v1/gonum/mat"
)

var testSpec = Spec{
	Dependent:  "gdp_growth",
	Regressors: []string{esg.ColumnENV, esg.ColumnSOC, esg.ColumnGOV},
}

// syntheticPanel builds y = 2 ENV - SOC + 0.5 GOV + country + year + noise
// for the given number of countries and years. noise scales a fixed
// deterministic disturbance.
func syntheticPanel(countries, years int, noise float64) *esg.Dataset {
	d := &esg.Dataset{Columns: []string{"gdp_growth", esg.ColumnENV, esg.ColumnSOC, esg.ColumnGOV}}
	i := 0
	for c := 0; c < countries; c++ {
		code := fmt.Sprintf("C%02d", c)
		for t := 0; t < years; t++ {
			env := math.Sin(float64(i)*1.3 + float64(c))
			soc := math.Cos(float64(i)*0.7) + 0.1*float64(t)
			gov := math.Sin(float64(i)*0.37) * math.Cos(float64(c))
			y := 2*env - soc + 0.5*gov + float64(c)*0.8 - 0.3*float64(t) + noise*math.Sin(float64(i)*2.9)
			d.Rows = append(d.Rows, esg.Row{
				Key:    esg.Key{CountryName: "Country " + code, CountryCode: code, Year: 2000 + t},
				Region: "Test", IncomeGroup: "High income",
				Values: []float64{y, env, soc, gov},
			})
			i++
		}
	}
	return d
}

func TestFit_RecoversCoefficients(t *testing.T) {
	res, err := Fit(syntheticPanel(8, 10, 0.05), testSpec, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.Equal(t, 80, res.N)
	assert.Equal(t, 8, res.Clusters)
	assert.Equal(t, 10, res.Periods)
	// intercept + 7 country + 9 year + 3 regressors
	assert.Equal(t, 20, res.Rank)
	assert.Len(t, res.Coefficients, 20)

	want := map[string]float64{esg.ColumnENV: 2, esg.ColumnSOC: -1, esg.ColumnGOV: 0.5}
	for name, v := range want {
		c, ok := res.Coefficient(name)
		require.True(t, ok, name)
		assert.InDelta(t, v, c.Estimate, 0.05, name)
		assert.Greater(t, c.StdErr, 0.0, name)
		assert.Less(t, c.P, 0.01, name)
		assert.LessOrEqual(t, c.Lower, c.Estimate)
		assert.GreaterOrEqual(t, c.Upper, c.Estimate)
		assert.False(t, c.FixedEffect)
	}

	assert.Greater(t, res.RSquared, 0.99)
	assert.Less(t, res.AdjRSquared, res.RSquared)
	assert.InDelta(t, -2*res.LogLik+2*float64(res.Rank), res.AIC, 1e-9)
}

func TestFit_DesignOrder(t *testing.T) {
	res, err := Fit(syntheticPanel(3, 3, 0.1), testSpec, nil)
	require.NoError(t, err)

	var names []string
	for _, c := range res.Coefficients {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"Intercept",
		"C(country_code)[T.C01]", "C(country_code)[T.C02]",
		"C(Year)[T.2001]", "C(Year)[T.2002]",
		esg.ColumnENV, esg.ColumnSOC, esg.ColumnGOV,
	}, names)

	regs := res.Regressors()
	require.Len(t, regs, 4)
	assert.Equal(t, "Intercept", regs[0].Name)
}

func TestFit_StdErrScalesWithOutcome(t *testing.T) {
	d := syntheticPanel(6, 8, 0.2)
	base, err := Fit(d, testSpec, nil)
	require.NoError(t, err)

	for i := range d.Rows {
		d.Rows[i].Values[0] *= 3
	}
	scaled, err := Fit(d, testSpec, nil)
	require.NoError(t, err)

	for _, name := range testSpec.Regressors {
		a, _ := base.Coefficient(name)
		b, _ := scaled.Coefficient(name)
		assert.InDelta(t, 3*a.Estimate, b.Estimate, 1e-8)
		assert.InDelta(t, 3*a.StdErr, b.StdErr, 1e-8)
		assert.InDelta(t, a.Z, b.Z, 1e-6)
	}
	assert.InDelta(t, base.RSquared, scaled.RSquared, 1e-10)
}

func TestFit_DropsIncompleteRows(t *testing.T) {
	d := syntheticPanel(4, 6, 0.1)
	d.Rows[0].Values[1] = math.NaN()
	d.Rows[5].Values[0] = math.NaN()

	res, err := Fit(d, testSpec, nil)
	require.NoError(t, err)
	assert.Equal(t, 22, res.N)
}

func TestFit_CollinearRegressor(t *testing.T) {
	d := syntheticPanel(5, 6, 0.1)
	d.Columns = append(d.Columns, "ENV_copy")
	for i := range d.Rows {
		d.Rows[i].Values = append(d.Rows[i].Values, d.Rows[i].Values[1])
	}

	spec := Spec{Dependent: "gdp_growth", Regressors: append(append([]string{}, testSpec.Regressors...), "ENV_copy")}
	res, err := Fit(d, spec, nil)
	require.NoError(t, err)
	assert.Len(t, res.Coefficients, 1+4+5+4)
	assert.Equal(t, len(res.Coefficients)-1, res.Rank)

	// minimum-norm solution splits the effect between the copies
	a, _ := res.Coefficient(esg.ColumnENV)
	b, _ := res.Coefficient("ENV_copy")
	assert.InDelta(t, a.Estimate, b.Estimate, 1e-6)
	assert.InDelta(t, 2, a.Estimate+b.Estimate, 0.1)
}

func TestClusterCovariance_SmallSampleFactor(t *testing.T) {
	// two identical columns: rank 1, but K counts both
	X := mat.NewDense(4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	resid := []float64{1, -1, 2, 0}
	rows := []esg.Row{
		{Key: esg.Key{CountryCode: "AAA", Year: 2000}},
		{Key: esg.Key{CountryCode: "AAA", Year: 2001}},
		{Key: esg.Key{CountryCode: "BBB", Year: 2000}},
		{Key: esg.Key{CountryCode: "BBB", Year: 2001}},
	}
	bread := mat.NewDense(2, 2, []float64{1, 0, 0, 1})

	cov := clusterCovariance(X, resid, rows, []string{"AAA", "BBB"}, bread)

	// scores: AAA (0, 0), BBB (2, 2); meat[0][0] = 4
	scale := 2.0 / 1.0 * 3.0 / 2.0
	assert.InDelta(t, 4*scale, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 4*scale, cov.At(0, 1), 1e-12)
}

func TestFit_Errors(t *testing.T) {
	t.Run("single cluster", func(t *testing.T) {
		_, err := Fit(syntheticPanel(1, 10, 0.1), testSpec, nil)
		assert.ErrorIs(t, err, ErrTooFewClusters)
	})

	t.Run("no residual degrees of freedom", func(t *testing.T) {
		// 2 countries x 2 years: 4 rows, rank 4 or more
		_, err := Fit(syntheticPanel(2, 2, 0.1), testSpec, nil)
		assert.ErrorIs(t, err, ErrNoResidualDF)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := Fit(syntheticPanel(3, 3, 0.1), Spec{Dependent: "gdp_growth", Regressors: []string{"missing"}}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown column "missing"`)
	})
}

func TestSummary(t *testing.T) {
	res, err := Fit(syntheticPanel(5, 6, 0.1), testSpec, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, res.Summary(&buf))
	out := buf.String()

	assert.Contains(t, out, "Dep. Variable:")
	assert.Contains(t, out, "gdp_growth")
	assert.Contains(t, out, esg.ColumnENV)
	assert.Contains(t, out, "Intercept")
	assert.NotContains(t, out, "C(country_code)")
	assert.Contains(t, out, "8 dummies not shown")
}

func TestLaTeX(t *testing.T) {
	res, err := Fit(syntheticPanel(3, 4, 0.1), testSpec, nil)
	require.NoError(t, err)

	var short, full bytes.Buffer
	require.NoError(t, res.LaTeX(&short, false))
	require.NoError(t, res.LaTeX(&full, true))

	assert.True(t, strings.HasPrefix(short.String(), "\\begin{center}\n\\begin{tabular}"))
	assert.Contains(t, short.String(), `\textbf{ENV\_index}`)
	assert.Contains(t, short.String(), "fixed effects included")
	assert.NotContains(t, short.String(), "C(country\\_code)")

	assert.Contains(t, full.String(), `\textbf{C(country\_code)[T.C01]}`)
	assert.Contains(t, full.String(), `\textbf{C(Year)[T.2003]}`)
}

func TestWriteLaTeXFile(t *testing.T) {
	res, err := Fit(syntheticPanel(3, 4, 0.1), testSpec, nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "results", "regression", "fixed_effects_regression.tex")
	require.NoError(t, res.WriteLaTeXFile(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\\end{tabular}")
}

func TestEscapeTeX(t *testing.T) {
	assert.Equal(t, `R\&D\_expenditure`, escapeTeX("R&D_expenditure"))
	assert.Equal(t, `50\%`, escapeTeX("50%"))
}
