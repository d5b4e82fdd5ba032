package forensics

// MaxBurstRate returns the highest action rate, in actions per second, over
// any burst in times. A burst starts at an anchor action and takes every
// following action within th.BurstWindowMs of the anchor. A burst is scored
// only when a later action moves the anchor, so the burst still open at the
// last action never counts. Bursts with fewer than th.BurstMinActions
// actions or zero duration are ignored.
func MaxBurstRate(times []float64, th *Thresholds) float64 {
	if len(times) == 0 {
		return 0
	}

	var maxRate float64
	closeBurst := func(start, end int) {
		size := end - start
		duration := times[end-1] - times[start]
		if size < th.BurstMinActions || duration <= 0 {
			return
		}
		if rate := float64(size) / (duration / 1000); rate > maxRate {
			maxRate = rate
		}
	}

	start := 0
	for i := 1; i < len(times); i++ {
		if times[i]-times[start] > th.BurstWindowMs {
			closeBurst(start, i)
			start = i
		}
	}

	return maxRate
}

// DetectBurst flags extreme short-window action rates.
func DetectBurst(times []float64, th *Thresholds) []Flag {
	rate := MaxBurstRate(times, th)
	sev, ok := th.Burst.Above(rate)
	if !ok {
		return nil
	}

	label := "Elevated"
	switch sev {
	case SeverityCritical:
		label = "Extreme"
	case SeverityHigh:
		label = "High"
	}
	return []Flag{newFlag(KindBurstRate, sev, rate, "%s burst rate: %.1f actions/sec", label, rate)}
}
