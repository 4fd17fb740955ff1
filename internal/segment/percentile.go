package segment

import (
	"math"
	"slices"
)

// Percentile returns the p-th percentile (0-100) of values using sorted-slice
// indexing: the element at floor(p/100 * n), clamped to the last element.
// The input is copied, not mutated. Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * p / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// clamp01 bounds v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// round4 rounds to 4 decimals so stored scores encode stably.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// minMaxScale maps values to the 0-100 score range by min-max normalization.
// A degenerate span (all values equal, or a single value) maps everything to
// the neutral midpoint 50.
func minMaxScale(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	for i, v := range values {
		if span == 0 {
			out[i] = 50
			continue
		}
		out[i] = (v - lo) / span * 100
	}
	return out
}

// normalize01 maps values to [0, 1] by min-max normalization, with 0.5 for a
// degenerate span. Used for per-customer feature normalization inside a run.
func normalize01(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	for i, v := range values {
		if span == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / span
	}
	return out
}
