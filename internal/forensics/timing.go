package forensics

// DetectTiming flags fast-action shares and low interval variance. Each
// metric raises at most one flag, at the highest severity crossed.
func DetectTiming(s *IntervalStats, th *Thresholds) []Flag {
	if s == nil {
		return nil
	}
	var flags []Flag

	if sev, ok := th.UltraFast.Above(s.UltraFastPct); ok {
		flags = append(flags, newFlag(KindUltraFast, sev, s.UltraFastPct,
			"%.1f%% of actions at the game tick limit (<=%.0fms)", s.UltraFastPct, th.UltraFastMs))
	}
	if sev, ok := th.VeryFast.Above(s.VeryFastPct); ok {
		flags = append(flags, newFlag(KindVeryFast, sev, s.VeryFastPct,
			"%.1f%% very fast actions (<=%.0fms)", s.VeryFastPct, th.VeryFastMs))
	}
	if sev, ok := th.Fast.Above(s.FastPct); ok {
		flags = append(flags, newFlag(KindFast, sev, s.FastPct,
			"%.1f%% fast actions (<=%.0fms)", s.FastPct, th.FastMs))
	}

	if s.Count > th.CVMinIntervals {
		if sev, ok := th.CV.Below(s.CoeffVariation); ok {
			msg := "Low timing variance (CV: %.3f)"
			if sev == SeverityHigh {
				msg = "Suspiciously consistent timing (CV: %.3f)"
			}
			flags = append(flags, newFlag(KindLowVariance, sev, s.CoeffVariation, msg, s.CoeffVariation))
		}
	}

	return flags
}

// DetectPeriodicity flags concentration on one interval and heavy use of
// suspiciously round intervals.
func DetectPeriodicity(s *IntervalStats, th *Thresholds) []Flag {
	if s == nil {
		return nil
	}
	var flags []Flag

	if sev, ok := th.Dominant.Above(s.DominantIntervalPct); ok {
		f := newFlag(KindDominantInterval, sev, s.DominantIntervalPct,
			"%.1f%% of actions at a %dms interval", s.DominantIntervalPct, s.DominantIntervalMs)
		f.IntervalMs = s.DominantIntervalMs
		flags = append(flags, f)
	}

	for _, ri := range th.RoundIntervals {
		pct := s.BucketPct(ri)
		if pct > th.RoundIntervalPct {
			f := newFlag(KindRoundInterval, SeverityLow, pct,
				"%.1f%% of actions at exactly %dms (suspiciously round)", pct, ri)
			f.IntervalMs = ri
			flags = append(flags, f)
		}
	}

	return flags
}
