package svm

import (
	"fmt"
	"math/rand"
)

// CrossValidation summarises a k-fold run. Accuracy is a percentage and is
// meaningful for classification types; the error terms are meaningful for
// regression types. All three are always filled.
type CrossValidation struct {
	Folds              int
	Accuracy           float64
	MeanSquaredError   float64
	SquaredCorrelation float64
}

// CrossValidate shuffles prob with param.Seed, splits it into folds
// contiguous parts and predicts each part with a model trained on the
// others. The returned slice holds the prediction for every row in original
// order. folds larger than the row count is clamped.
func CrossValidate(prob *Problem, param *Parameter, folds int) ([]float64, error) {
	if err := CheckParameter(prob, param); err != nil {
		return nil, err
	}
	l := prob.Len()
	if folds < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", folds)
	}
	if folds > l {
		folds = l
	}

	perm := rand.New(rand.NewSource(param.Seed)).Perm(l)
	target := make([]float64, l)
	for f := 0; f < folds; f++ {
		begin, end := f*l/folds, (f+1)*l/folds
		train := make([]int, 0, l-(end-begin))
		train = append(train, perm[:begin]...)
		train = append(train, perm[end:]...)

		m, err := Train(prob.subset(train), param)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f+1, err)
		}
		for _, idx := range perm[begin:end] {
			target[idx], _ = m.Predict(prob.X[idx])
		}
	}
	return target, nil
}

// ScoreCrossValidation compares predictions against prob.Y.
func ScoreCrossValidation(prob *Problem, target []float64, folds int) CrossValidation {
	cv := CrossValidation{Folds: folds}
	l := float64(len(target))
	if l == 0 || len(target) != prob.Len() {
		return cv
	}

	var correct int
	var totalErr, sumV, sumY, sumVV, sumYY, sumVY float64
	for i, v := range target {
		y := prob.Y[i]
		if v == y {
			correct++
		}
		totalErr += (v - y) * (v - y)
		sumV += v
		sumY += y
		sumVV += v * v
		sumYY += y * y
		sumVY += v * y
	}
	cv.Accuracy = 100 * float64(correct) / l
	cv.MeanSquaredError = totalErr / l
	num := (l*sumVY - sumV*sumY) * (l*sumVY - sumV*sumY)
	den := (l*sumVV - sumV*sumV) * (l*sumYY - sumY*sumY)
	if den != 0 {
		cv.SquaredCorrelation = num / den
	}
	return cv
}
