package domain

import "math"

const (
	// MaxPoints is awarded for a correct answer within FastAnswerThresholdMs
	MaxPoints = 100

	// FastAnswerThresholdMs is the window in which a correct answer scores full points
	FastAnswerThresholdMs = 1000
)

// Points maps correctness and elapsed time to a score between 0 and MaxPoints.
// Past the fast-answer threshold the award falls off linearly and reaches zero
// at the end of the round.
func Points(correct bool, elapsedMs, roundDurationMs int64) int {
	if !correct {
		return 0
	}
	if elapsedMs <= FastAnswerThresholdMs {
		return MaxPoints
	}

	window := roundDurationMs - FastAnswerThresholdMs
	if window <= 0 {
		return 0
	}

	fraction := float64(elapsedMs-FastAnswerThresholdMs) / float64(window)
	fraction = math.Max(0, math.Min(1, fraction))

	return int(math.Round(MaxPoints * (1 - fraction)))
}
