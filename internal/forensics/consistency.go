package forensics

// SegmentSpread splits times into th.Segments equal contiguous segments and
// returns (max-min)/mean of the per-segment mean intervals, counting only
// intervals inside (0, th.SegmentWindowMs]. ok is false when fewer than
// th.ConsistencyMinActions actions are given or fewer than th.MinSegments
// segments have any interval.
func SegmentSpread(times []float64, th *Thresholds) (spread float64, ok bool) {
	if len(times) < th.ConsistencyMinActions || th.Segments <= 0 {
		return 0, false
	}

	size := len(times) / th.Segments
	var segmentMeans []float64
	for s := 0; s < th.Segments; s++ {
		start := s * size
		intervals := ValidIntervals(times[start:start+size], th.SegmentWindowMs)
		if len(intervals) > 0 {
			segmentMeans = append(segmentMeans, mean(intervals))
		}
	}
	if len(segmentMeans) < th.MinSegments {
		return 0, false
	}

	lo, hi := segmentMeans[0], segmentMeans[0]
	for _, m := range segmentMeans[1:] {
		lo = min(lo, m)
		hi = max(hi, m)
	}
	overall := mean(segmentMeans)
	if overall <= 0 {
		return 0, false
	}
	return (hi - lo) / overall, true
}

// DetectConsistency flags players whose pace barely changes across the game.
// Only logs with more than th.ConsistencyFlagAbove actions are judged.
func DetectConsistency(times []float64, th *Thresholds) []Flag {
	if len(times) <= th.ConsistencyFlagAbove {
		return nil
	}
	spread, ok := SegmentSpread(times, th)
	if !ok {
		return nil
	}
	sev, ok := th.Consistency.Below(spread)
	if !ok {
		return nil
	}

	msg := "Low variance across game segments (%.1f%% variance)"
	if sev == SeverityHigh {
		msg = "Suspiciously consistent across game segments (%.1f%% variance)"
	}
	return []Flag{newFlag(KindSegmentConsistency, sev, spread, msg, spread*100)}
}
