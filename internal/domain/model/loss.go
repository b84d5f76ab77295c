package model

import (
	"fmt"
	"math"
)

// LossFunc scores predictions against targets. Lower is better.
type LossFunc func(yPred, yTrue []float64) (float64, error)

// minLog bounds log terms so a saturated prediction yields a finite loss.
const minLog = -100

// BCELoss is the mean binary cross-entropy of probabilities yPred against
// 0/1 targets yTrue.
func BCELoss(yPred, yTrue []float64) (float64, error) {
	if err := checkPair(yPred, yTrue); err != nil {
		return 0, err
	}
	var sum float64
	for i, p := range yPred {
		y := yTrue[i]
		sum -= y*clampedLog(p) + (1-y)*clampedLog(1-p)
	}
	return sum / float64(len(yPred)), nil
}

func clampedLog(x float64) float64 {
	return math.Max(math.Log(x), minLog)
}

func checkPair(yPred, yTrue []float64) error {
	if len(yPred) != len(yTrue) {
		return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(yPred), len(yTrue))
	}
	if len(yPred) == 0 {
		return ErrEmptyInput
	}
	return nil
}
