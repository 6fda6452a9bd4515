package seastate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// EvalMetrics summarizes prediction error over paired samples. MAPE and R2
// are NaN when undefined: MAPE when every true value is zero, R2 when the
// true values are constant.
type EvalMetrics struct {
	// Count is the number of scored pairs.
	Count int `json:"count"`
	// RMSE is the root mean squared error.
	RMSE float64 `json:"rmse"`
	// MAE is the mean absolute error.
	MAE float64 `json:"mae"`
	// Bias is the mean signed error, predicted minus true.
	Bias float64 `json:"bias"`
	// MAPE is the mean absolute percentage error over nonzero true values.
	MAPE float64 `json:"mape"`
	// R2 is the coefficient of determination.
	R2 float64 `json:"r2"`
}

// ComputeMetrics scores predictions against true values pairwise.
func ComputeMetrics(truth, predicted []float64) (EvalMetrics, error) {
	if len(truth) != len(predicted) {
		return EvalMetrics{}, fmt.Errorf("truth/predicted length mismatch: %d vs %d", len(truth), len(predicted))
	}
	if len(truth) == 0 {
		return EvalMetrics{}, fmt.Errorf("no pairs to score")
	}

	n := float64(len(truth))
	sumSq := 0.0
	sumAbs := 0.0
	sumErr := 0.0
	sumPct := 0.0
	pctCount := 0
	for i, y := range truth {
		err := predicted[i] - y
		sumSq += err * err
		sumAbs += math.Abs(err)
		sumErr += err
		if y != 0 {
			sumPct += math.Abs(err / y)
			pctCount++
		}
	}

	m := EvalMetrics{
		Count: len(truth),
		RMSE:  math.Sqrt(sumSq / n),
		MAE:   sumAbs / n,
		Bias:  sumErr / n,
	}

	if pctCount > 0 {
		m.MAPE = 100 * sumPct / float64(pctCount)
	} else {
		m.MAPE = math.NaN()
	}

	mean := stat.Mean(truth, nil)
	ssTot := 0.0
	for _, y := range truth {
		d := y - mean
		ssTot += d * d
	}
	if ssTot > 0 {
		m.R2 = 1 - sumSq/ssTot
	} else {
		m.R2 = math.NaN()
	}

	return m, nil
}
