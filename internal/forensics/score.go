package forensics

// Score sums the severity weights of flags.
func Score(flags []Flag) int {
	total := 0
	for _, f := range flags {
		total += f.Severity.Weight()
	}
	return total
}

// Verdict is a ranking band derived from a suspicion score.
type Verdict string

const (
	VerdictInvestigate Verdict = "investigate"
	VerdictSuspicious  Verdict = "suspicious"
	VerdictWatch       Verdict = "watch"
	VerdictMinor       Verdict = "minor"
	VerdictClean       Verdict = "clean"
)

// Score bands.
const (
	InvestigateScore = 100
	SuspiciousScore  = 50
	WatchScore       = 20
)

// VerdictFor returns the band a score falls in.
func VerdictFor(score int) Verdict {
	switch {
	case score >= InvestigateScore:
		return VerdictInvestigate
	case score >= SuspiciousScore:
		return VerdictSuspicious
	case score >= WatchScore:
		return VerdictWatch
	case score > 0:
		return VerdictMinor
	default:
		return VerdictClean
	}
}

// CountBySeverity tallies flags per severity.
func CountBySeverity(flags []Flag) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range flags {
		counts[f.Severity]++
	}
	return counts
}
