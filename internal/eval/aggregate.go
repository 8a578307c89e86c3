package eval

// Mean averages a list of scores. An empty list averages to 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanGrade normalizes 1-5 grades into [0, 1] by averaging and dividing by
// the top grade. An empty list scores 0.
func MeanGrade(grades []int) float64 {
	if len(grades) == 0 {
		return 0
	}
	var sum int
	for _, g := range grades {
		sum += g
	}
	return float64(sum) / float64(len(grades)) / 5
}

// boolScores converts yes/no verdicts into 1/0 scores.
func boolScores(verdicts []bool) []float64 {
	out := make([]float64, len(verdicts))
	for i, v := range verdicts {
		if v {
			out[i] = 1
		}
	}
	return out
}
