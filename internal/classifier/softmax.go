package classifier

import (
	"errors"
	"math"
)

// ErrDegenerateScores is returned when scores cannot be normalized into a
// probability distribution.
var ErrDegenerateScores = errors.New("scores do not form a probability distribution")

// Softmax converts raw scores into probabilities that sum to 1.
// The maximum score is subtracted before exponentiating so large scores do
// not overflow.
func Softmax(scores []float32) ([]float64, error) {
	if len(scores) == 0 {
		return nil, ErrDegenerateScores
	}

	maxScore := math.Inf(-1)
	for _, s := range scores {
		if v := float64(s); v > maxScore {
			maxScore = v
		}
	}
	if math.IsInf(maxScore, 0) || math.IsNaN(maxScore) {
		return nil, ErrDegenerateScores
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, ErrDegenerateScores
	}

	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// argmax returns the index of the first maximum value.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
