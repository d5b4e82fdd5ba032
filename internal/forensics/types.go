// Package forensics turns a player's action timing into severity-tagged flags
// and a suspicion score.
package forensics

import (
	"fmt"
	"strings"
)

// Severity ranks a flag. The zero value is not a valid severity.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

// String returns the uppercase severity name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Weight returns the score contribution of one flag at this severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 25
	case SeverityMedium:
		return 10
	case SeverityLow:
		return 3
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	name, ok := severityNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range severityNames {
		if n == upper {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

// Category groups flags by the detector family that raised them.
type Category string

const (
	CategoryTiming      Category = "timing"
	CategoryPeriodicity Category = "periodicity"
	CategoryBurst       Category = "burst"
	CategoryConsistency Category = "consistency"
	CategorySelection   Category = "selection"
	CategoryComparative Category = "comparative"
)

// FlagKind is the closed set of conditions a detector can report.
type FlagKind string

const (
	KindUltraFast          FlagKind = "ultra_fast"
	KindVeryFast           FlagKind = "very_fast"
	KindFast               FlagKind = "fast"
	KindLowVariance        FlagKind = "low_variance"
	KindDominantInterval   FlagKind = "dominant_interval"
	KindRoundInterval      FlagKind = "round_interval"
	KindBurstRate          FlagKind = "burst_rate"
	KindSegmentConsistency FlagKind = "segment_consistency"
	KindRapidSelection     FlagKind = "rapid_selection"
	KindRelativeUltraFast  FlagKind = "relative_ultra_fast"
	KindRelativePeriodic   FlagKind = "relative_periodicity"
)

// Category returns the category every flag of this kind belongs to.
func (k FlagKind) Category() Category {
	switch k {
	case KindUltraFast, KindVeryFast, KindFast:
		return CategoryTiming
	case KindLowVariance, KindSegmentConsistency:
		return CategoryConsistency
	case KindDominantInterval, KindRoundInterval:
		return CategoryPeriodicity
	case KindBurstRate:
		return CategoryBurst
	case KindRapidSelection:
		return CategorySelection
	case KindRelativeUltraFast, KindRelativePeriodic:
		return CategoryComparative
	default:
		return ""
	}
}

// Flag is one detector finding.
type Flag struct {
	Kind     FlagKind `json:"kind"`
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Value    float64  `json:"value"`

	// IntervalMs is set for periodicity findings tied to one interval.
	IntervalMs int `json:"intervalMs,omitempty"`
}

func newFlag(kind FlagKind, sev Severity, value float64, format string, args ...any) Flag {
	return Flag{
		Kind:     kind,
		Severity: sev,
		Category: kind.Category(),
		Message:  fmt.Sprintf(format, args...),
		Value:    value,
	}
}

// IntervalStats summarizes one player's valid inter-action intervals.
type IntervalStats struct {
	Count               int     `json:"count"`
	AvgMs               float64 `json:"avgIntervalMs"`
	StddevMs            float64 `json:"stddevIntervalMs"`
	CoeffVariation      float64 `json:"coeffVariation"`
	UltraFastPct        float64 `json:"ultraFastPct"`
	VeryFastPct         float64 `json:"veryFastPct"`
	FastPct             float64 `json:"fastPct"`
	DominantIntervalMs  int     `json:"topIntervalMs"`
	DominantIntervalPct float64 `json:"topIntervalPct"`
	DominantCount       int     `json:"topIntervalCount"`

	// Histogram counts intervals per rounded bucket.
	Histogram map[int]int `json:"-"`
}

// Baseline is the population average the comparative detector measures
// against.
type Baseline struct {
	AvgAPM            float64 `json:"avgApm"`
	AvgUltraFastPct   float64 `json:"avgUltraFastPct"`
	AvgVeryFastPct    float64 `json:"avgVeryFastPct"`
	AvgFastPct        float64 `json:"avgFastPct"`
	AvgCV             float64 `json:"avgCv"`
	AvgTopIntervalPct float64 `json:"avgTopIntervalPct"`
	SampleSize        int     `json:"sampleSize"`
}

// Usable reports whether the baseline has enough samples to compare against.
func (b *Baseline) Usable(th *Thresholds) bool {
	return b != nil && b.SampleSize > th.BaselineMinSample
}
