package ml

import (
	"errors"
	"math"
	"sort"
)

func CalculateMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// CalculateStd returns the population standard deviation (ddof=0).
func CalculateStd(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// StandardizeFeature maps value to (value-mean)/std. A zero std maps every
// input to 0.
func StandardizeFeature(value, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (value - mean) / std
}

func StandardizeVector(values, means, stds []float64) ([]float64, error) {
	if len(values) != len(means) || len(values) != len(stds) {
		return nil, errors.New("values/means/stds length mismatch")
	}
	result := make([]float64, len(values))
	for i := range values {
		result[i] = StandardizeFeature(values[i], means[i], stds[i])
	}
	return result, nil
}

// DistinctSorted returns the distinct values in byte order.
func DistinctSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
