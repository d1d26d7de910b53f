package utils

import (
	"strings"
)

func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimRight(e, "/")
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// WeightedMean returns the mean of values weighted by weights.
// Entries with non-positive weight are skipped. Returns ok=false when the
// total weight is not positive.
func WeightedMean(values, weights []float64) (mean float64, ok bool) {
	var sum, total float64
	for i := range values {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		sum += values[i] * weights[i]
		total += weights[i]
	}
	if total <= 0 {
		return 0, false
	}
	return sum / total, true
}
