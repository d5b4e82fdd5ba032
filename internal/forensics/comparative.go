package forensics

// DetectComparative flags metrics that sit far above the population
// baseline. It returns nothing unless the baseline is usable. When the
// population average is zero any value above the floor is an outlier; the
// flag value is then the player's own metric instead of a ratio.
func DetectComparative(s *IntervalStats, b *Baseline, th *Thresholds) []Flag {
	if s == nil || !b.Usable(th) {
		return nil
	}
	var flags []Flag

	if s.UltraFastPct > b.AvgUltraFastPct*th.UltraFastMultiple &&
		s.UltraFastPct > th.UltraFastFloorPct {
		if b.AvgUltraFastPct > 0 {
			ratio := s.UltraFastPct / b.AvgUltraFastPct
			flags = append(flags, newFlag(KindRelativeUltraFast, th.ComparativeSeverity, ratio,
				"Ultra-fast rate %.1fx above average", ratio))
		} else {
			flags = append(flags, newFlag(KindRelativeUltraFast, th.ComparativeSeverity, s.UltraFastPct,
				"Ultra-fast rate %.1f%% where the population has none", s.UltraFastPct))
		}
	}

	if s.DominantIntervalPct > b.AvgTopIntervalPct*th.DominantMultiple &&
		s.DominantIntervalPct > th.DominantFloorPct {
		if b.AvgTopIntervalPct > 0 {
			ratio := s.DominantIntervalPct / b.AvgTopIntervalPct
			flags = append(flags, newFlag(KindRelativePeriodic, th.ComparativeSeverity, ratio,
				"Periodicity %.1fx above average", ratio))
		} else {
			flags = append(flags, newFlag(KindRelativePeriodic, th.ComparativeSeverity, s.DominantIntervalPct,
				"Periodicity %.1f%% where the population has none", s.DominantIntervalPct))
		}
	}

	return flags
}
