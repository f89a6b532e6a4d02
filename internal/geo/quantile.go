package geo

import (
	"math"
	"sort"
)

// Quantile returns the q-th quantile (0..1) of values using linear
// interpolation between the two nearest order statistics. The input
// slice is not modified. Returns 0 for an empty slice.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	if q <= 0 {
		q = 0
	}
	if q >= 1 {
		q = 1
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// Percentile is Quantile with p expressed in 0..100.
func Percentile(values []float64, p float64) float64 {
	return Quantile(values, p/100)
}
