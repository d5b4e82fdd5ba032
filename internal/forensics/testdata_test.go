package forensics

import (
	"math"

	"barsentry/internal/ingest"
)

// timesFromIntervals builds cumulative timestamps starting at zero.
func timesFromIntervals(intervals []float64) []float64 {
	times := make([]float64, 0, len(intervals)+1)
	t := 0.0
	times = append(times, t)
	for _, iv := range intervals {
		t += iv
		times = append(times, t)
	}
	return times
}

// periodicIntervals returns n intervals of exactly stepMs.
func periodicIntervals(n int, stepMs float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = stepMs
	}
	return out
}

// lognormalIntervals returns n intervals drawn deterministically from the
// quantiles of a log-normal distribution, interleaved so neighbouring values
// are not sorted.
func lognormalIntervals(n int, medianMs, sigma float64) []float64 {
	quantiles := make([]float64, n)
	for i := range quantiles {
		p := (float64(i) + 0.5) / float64(n)
		z := math.Sqrt2 * math.Erfinv(2*p-1)
		quantiles[i] = medianMs * math.Exp(sigma*z)
	}
	const stride = 73
	out := make([]float64, n)
	for i := range out {
		out[i] = quantiles[(i*stride)%n]
	}
	return out
}

// tickHeavyIntervals returns 100 intervals: 40 at 25ms, the rest spread
// evenly from 210ms upward.
func tickHeavyIntervals() []float64 {
	var out []float64
	slow := 0
	for i := 0; i < 100; i++ {
		if i%5 < 2 {
			out = append(out, 25)
			continue
		}
		out = append(out, 210+float64(slow)*100)
		slow++
	}
	return out
}

func logFromTimes(playerID int, times []float64) *ingest.ActionLog {
	log := &ingest.ActionLog{PlayerID: playerID, CommandCounts: map[string]int{}}
	for _, ts := range times {
		log.Actions = append(log.Actions, ingest.ActionEvent{
			PlayerID:    playerID,
			TimestampMs: ts,
			Kind:        ingest.ActionCommand,
			CommandName: "MOVE",
		})
		log.Commands++
		log.CommandCounts["MOVE"]++
	}
	return log
}

func selectionEvents(times []float64, units int) []ingest.ActionEvent {
	out := make([]ingest.ActionEvent, len(times))
	for i, ts := range times {
		out[i] = ingest.ActionEvent{
			TimestampMs:       ts,
			Kind:              ingest.ActionSelection,
			SelectedUnitCount: units,
		}
	}
	return out
}

func kinds(flags []Flag) []FlagKind {
	out := make([]FlagKind, len(flags))
	for i, f := range flags {
		out[i] = f.Kind
	}
	return out
}

func findFlag(flags []Flag, kind FlagKind) (Flag, bool) {
	for _, f := range flags {
		if f.Kind == kind {
			return f, true
		}
	}
	return Flag{}, false
}
