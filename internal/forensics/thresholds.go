package forensics

// Rule maps a threshold to the severity raised when it is crossed.
type Rule struct {
	Severity Severity
	Limit    float64
}

// Ladder is a list of rules ordered from most to least severe. Only the
// first rule crossed fires.
type Ladder []Rule

// Above returns the severity of the first rule whose limit v exceeds.
func (l Ladder) Above(v float64) (Severity, bool) {
	for _, r := range l {
		if v > r.Limit {
			return r.Severity, true
		}
	}
	return 0, false
}

// Below returns the severity of the first rule whose limit v is under.
func (l Ladder) Below(v float64) (Severity, bool) {
	for _, r := range l {
		if v < r.Limit {
			return r.Severity, true
		}
	}
	return 0, false
}

// Thresholds is the single table of detector limits. Values are fixed
// contract values; DefaultThresholds returns them.
type Thresholds struct {
	// Interval sampling.
	MaxValidIntervalMs float64
	MinIntervals       int
	UltraFastMs        float64
	VeryFastMs         float64
	FastMs             float64
	BucketMs           float64

	// Timing.
	UltraFast      Ladder
	VeryFast       Ladder
	Fast           Ladder
	CVMinIntervals int
	CV             Ladder

	// Periodicity.
	Dominant         Ladder
	RoundIntervals   []int
	RoundIntervalPct float64

	// Burst.
	BurstWindowMs   float64
	BurstMinActions int
	Burst           Ladder

	// Segment consistency.
	Segments              int
	SegmentWindowMs       float64
	MinSegments           int
	ConsistencyMinActions int
	ConsistencyFlagAbove  int
	Consistency           Ladder

	// Selection.
	MinSelections       int
	RapidSelectionMs    float64
	LargeSelectionUnits int
	RapidSelection      Ladder

	// Comparative.
	BaselineMinSample   int
	UltraFastMultiple   float64
	UltraFastFloorPct   float64
	DominantMultiple    float64
	DominantFloorPct    float64
	ComparativeSeverity Severity
}

// DefaultThresholds returns the detector limits.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		MaxValidIntervalMs: 10000,
		MinIntervals:       10,
		UltraFastMs:        33,
		VeryFastMs:         50,
		FastMs:             100,
		BucketMs:           10,

		UltraFast: Ladder{
			{SeverityCritical, 10},
			{SeverityHigh, 3},
		},
		VeryFast: Ladder{
			{SeverityHigh, 15},
			{SeverityMedium, 5},
		},
		Fast: Ladder{
			{SeverityHigh, 20},
			{SeverityMedium, 10},
		},
		CVMinIntervals: 50,
		CV: Ladder{
			{SeverityHigh, 0.3},
			{SeverityLow, 0.5},
		},

		Dominant: Ladder{
			{SeverityCritical, 30},
			{SeverityHigh, 20},
			{SeverityMedium, 15},
		},
		RoundIntervals:   []int{100, 200, 250, 500, 1000},
		RoundIntervalPct: 10,

		BurstWindowMs:   500,
		BurstMinActions: 5,
		Burst: Ladder{
			{SeverityCritical, 30},
			{SeverityHigh, 20},
			{SeverityMedium, 15},
		},

		Segments:              5,
		SegmentWindowMs:       5000,
		MinSegments:           3,
		ConsistencyMinActions: 100,
		ConsistencyFlagAbove:  200,
		Consistency: Ladder{
			{SeverityHigh, 0.15},
			{SeverityLow, 0.25},
		},

		MinSelections:       10,
		RapidSelectionMs:    100,
		LargeSelectionUnits: 10,
		RapidSelection: Ladder{
			{SeverityHigh, 10},
			{SeverityMedium, 5},
		},

		BaselineMinSample:   10,
		UltraFastMultiple:   3,
		UltraFastFloorPct:   1,
		DominantMultiple:    2,
		DominantFloorPct:    10,
		ComparativeSeverity: SeverityMedium,
	}
}
