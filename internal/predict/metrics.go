package predict

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics are the regression scores of one prediction set.
type Metrics struct {
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Score computes RMSE, MAE and R^2 of pred against truth. R^2 is NaN when
// truth has no variance.
func Score(truth, pred []float64) Metrics {
	if len(truth) == 0 || len(truth) != len(pred) {
		return Metrics{RMSE: math.NaN(), MAE: math.NaN(), R2: math.NaN()}
	}
	var se, ae float64
	for i := range truth {
		d := truth[i] - pred[i]
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(truth))
	m := Metrics{RMSE: math.Sqrt(se / n), MAE: ae / n, R2: math.NaN()}
	if _, v := stat.PopMeanVariance(truth, nil); v > 0 {
		m.R2 = stat.RSquaredFrom(pred, truth, nil)
	}
	return m
}

// summarise returns the mean and population standard deviation of each
// metric across folds.
func summarise(folds []FoldResult) (mean, std Metrics) {
	pick := func(f func(Metrics) float64) (float64, float64) {
		xs := make([]float64, len(folds))
		for i, fr := range folds {
			xs[i] = f(fr.Metrics)
		}
		return stat.PopMeanStdDev(xs, nil)
	}
	mean.RMSE, std.RMSE = pick(func(m Metrics) float64 { return m.RMSE })
	mean.MAE, std.MAE = pick(func(m Metrics) float64 { return m.MAE })
	mean.R2, std.R2 = pick(func(m Metrics) float64 { return m.R2 })
	return mean, std
}
