package forest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scores holds held-out regression error metrics.
type Scores struct {
	RMSE float64
	MAE  float64
	R2   float64
}

// Evaluate compares predictions against observed values.
func Evaluate(observed, predicted []float64) Scores {
	if len(observed) == 0 || len(observed) != len(predicted) {
		return Scores{RMSE: math.NaN(), MAE: math.NaN(), R2: math.NaN()}
	}
	var se, ae float64
	for i := range observed {
		d := predicted[i] - observed[i]
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(observed))
	return Scores{
		RMSE: math.Sqrt(se / n),
		MAE:  ae / n,
		R2:   stat.RSquaredFrom(predicted, observed, nil),
	}
}
