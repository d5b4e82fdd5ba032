package forensics

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when a player has too few valid intervals
// for distribution statistics.
var ErrInsufficientData = errors.New("insufficient data for analysis")

// ValidIntervals returns the consecutive deltas of times that fall in
// (0, maxMs].
func ValidIntervals(times []float64, maxMs float64) []float64 {
	if len(times) < 2 {
		return nil
	}
	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		delta := times[i] - times[i-1]
		if delta > 0 && delta <= maxMs {
			intervals = append(intervals, delta)
		}
	}
	return intervals
}

// RoundToBucket rounds an interval to the nearest bucket boundary.
func RoundToBucket(intervalMs, bucketMs float64) int {
	return int(math.Round(intervalMs/bucketMs) * bucketMs)
}

// ComputeIntervalStats derives the distribution summary for one player.
// It returns ErrInsufficientData when there are not more than
// th.MinIntervals intervals or their mean is zero.
func ComputeIntervalStats(intervals []float64, th *Thresholds) (*IntervalStats, error) {
	n := len(intervals)
	if n <= th.MinIntervals {
		return nil, ErrInsufficientData
	}

	var sum float64
	for _, x := range intervals {
		sum += x
	}
	avg := sum / float64(n)
	if avg <= 0 || math.IsNaN(avg) {
		return nil, ErrInsufficientData
	}

	var sq float64
	var ultraFast, veryFast, fast int
	histogram := make(map[int]int)
	for _, x := range intervals {
		d := x - avg
		sq += d * d

		if x <= th.UltraFastMs {
			ultraFast++
		}
		if x <= th.VeryFastMs {
			veryFast++
		}
		if x <= th.FastMs {
			fast++
		}
		histogram[RoundToBucket(x, th.BucketMs)]++
	}
	stddev := math.Sqrt(sq / float64(n))

	dominant, count := dominantBucket(histogram)

	return &IntervalStats{
		Count:               n,
		AvgMs:               avg,
		StddevMs:            stddev,
		CoeffVariation:      stddev / avg,
		UltraFastPct:        percent(ultraFast, n),
		VeryFastPct:         percent(veryFast, n),
		FastPct:             percent(fast, n),
		DominantIntervalMs:  dominant,
		DominantIntervalPct: percent(count, n),
		DominantCount:       count,
		Histogram:           histogram,
	}, nil
}

// dominantBucket returns the most frequent bucket. Ties go to the smallest
// bucket value.
func dominantBucket(histogram map[int]int) (bucket, count int) {
	first := true
	for b, c := range histogram {
		if first || c > count || (c == count && b < bucket) {
			bucket, count = b, c
			first = false
		}
	}
	return bucket, count
}

// BucketPct returns the share of intervals that rounded to bucket.
func (s *IntervalStats) BucketPct(bucket int) float64 {
	if s == nil || s.Count == 0 {
		return 0
	}
	return percent(s.Histogram[bucket], s.Count)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
