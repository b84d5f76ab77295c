package model

import (
	"fmt"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Accuracy is the share of predictions that land on the target's side of 0.5.
func Accuracy(yTrue, yPred []float64) (float64, error) {
	if err := checkPair(yPred, yTrue); err != nil {
		return 0, err
	}
	hits := 0
	for i, p := range yPred {
		if (p > 0.5) == (yTrue[i] > 0.5) {
			hits++
		}
	}
	return float64(hits) / float64(len(yPred)), nil
}

// AUC is the area under the ROC curve of scores yPred for 0/1 targets yTrue.
// It is undefined when the targets hold a single class.
func AUC(yTrue, yPred []float64) (float64, error) {
	if err := checkPair(yPred, yTrue); err != nil {
		return 0, err
	}
	scores := make([]float64, len(yPred))
	copy(scores, yPred)
	classes := make([]bool, len(yTrue))
	pos := 0
	for i, y := range yTrue {
		classes[i] = y > 0.5
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(classes) {
		return 0, fmt.Errorf("%w: auc needs both classes", ErrUndefinedMetric)
	}
	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
