package forensics

import (
	"barsentry/internal/ingest"
)

// PlayerStats is everything measured for one player in one game.
type PlayerStats struct {
	TotalActions    int     `json:"totalActions"`
	TotalCommands   int     `json:"totalCommands"`
	TotalSelections int     `json:"totalSelections"`
	APM             float64 `json:"apm"`

	// IntervalStats is zero when the player had too few valid intervals.
	IntervalStats

	MaxBurstRate    float64 `json:"maxBurstRate"`
	SegmentSpread   float64 `json:"segmentSpread"`
	RapidSelections int     `json:"rapidSelections"`
}

// PlayerProfile is the scored analysis of one player's action log.
type PlayerProfile struct {
	PlayerID      int            `json:"playerId"`
	Stats         PlayerStats    `json:"stats"`
	Flags         []Flag         `json:"flags"`
	Score         int            `json:"suspicionScore"`
	Verdict       Verdict        `json:"verdict"`
	CommandCounts map[string]int `json:"commandCounts,omitempty"`

	// Sufficient is false when interval statistics could not be computed
	// and the distribution detectors were skipped.
	Sufficient bool `json:"sufficient"`
}

// APM returns actions per game minute, or 0 for a zero-length game.
func APM(actions int, durationMs int64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(actions) / (float64(durationMs) / 60000)
}

// AnalyzeLog runs every detector over one player's log and scores the result.
// baseline may be nil; the comparative detector then stays silent.
func AnalyzeLog(log *ingest.ActionLog, durationMs int64, baseline *Baseline, th *Thresholds) *PlayerProfile {
	times := log.Times()
	selections := log.SelectionEvents()

	p := &PlayerProfile{
		PlayerID:      log.PlayerID,
		CommandCounts: log.CommandCounts,
		Stats: PlayerStats{
			TotalActions:    log.Len(),
			TotalCommands:   log.Commands,
			TotalSelections: log.Selections,
			APM:             APM(log.Len(), durationMs),
			MaxBurstRate:    MaxBurstRate(times, th),
			RapidSelections: CountRapidSelections(selections, th),
		},
	}
	if spread, ok := SegmentSpread(times, th); ok {
		p.Stats.SegmentSpread = spread
	}

	flags := make([]Flag, 0)
	stats, err := ComputeIntervalStats(ValidIntervals(times, th.MaxValidIntervalMs), th)
	if err == nil {
		p.Sufficient = true
		p.Stats.IntervalStats = *stats
		flags = append(flags, DetectTiming(stats, th)...)
		flags = append(flags, DetectPeriodicity(stats, th)...)
	}
	flags = append(flags, DetectBurst(times, th)...)
	flags = append(flags, DetectConsistency(times, th)...)
	flags = append(flags, DetectSelection(selections, th)...)
	if err == nil {
		flags = append(flags, DetectComparative(stats, baseline, th)...)
	}

	p.Flags = flags
	p.Score = Score(flags)
	p.Verdict = VerdictFor(p.Score)
	return p
}
