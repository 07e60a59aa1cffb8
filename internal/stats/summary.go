package stats

import (
	"math"
	"sort"
)

// Summary describes one series of per-trial latency samples. All fields
// except Count are nil when the series had no valid samples.
type Summary struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	StdDev *float64 `json:"std_dev"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	P95    *float64 `json:"p95"`
}

// Summarize reduces a series of samples to summary statistics. Nil entries
// mark failed or incomplete trials and are filtered out. The input is not
// modified and its order does not affect any result: a sorted copy backs
// all order-statistic computations.
func Summarize(samples []*float64) Summary {
	valid := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s != nil {
			valid = append(valid, *s)
		}
	}

	s := Summary{Count: len(valid)}
	if len(valid) == 0 {
		return s
	}

	sort.Float64s(valid)

	s.Mean = ptr(mean(valid))
	s.Median = ptr(median(valid))
	s.StdDev = ptr(stdDev(valid, *s.Mean))
	s.Min = ptr(valid[0])
	s.Max = ptr(valid[len(valid)-1])
	s.P95 = ptr(percentile(valid, 95))
	return s
}

func mean(sorted []float64) float64 {
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted))
}

// median averages the two middle order statistics for even counts.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdDev is the population standard deviation (divisor n, not n-1).
func stdDev(sorted []float64, mean float64) float64 {
	var sum float64
	for _, v := range sorted {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(sorted)))
}

// percentile interpolates linearly between order statistics, matching the
// conventional default of numeric libraries: rank = (p/100)*(n-1).
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := (p / 100) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func ptr(v float64) *float64 {
	return &v
}
