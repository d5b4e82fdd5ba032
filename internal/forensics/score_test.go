package forensics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	flags := []Flag{
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	}
	assert.Equal(t, 128, Score(flags))
	assert.Equal(t, 0, Score(nil))

	// Linear in the flag list.
	doubled := append(append([]Flag{}, flags...), flags...)
	assert.Equal(t, 256, Score(doubled))
	assert.Equal(t, 10, Score([]Flag{{Severity: SeverityMedium}}))
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		score int
		want  Verdict
	}{
		{0, VerdictClean},
		{3, VerdictMinor},
		{19, VerdictMinor},
		{20, VerdictWatch},
		{49, VerdictWatch},
		{50, VerdictSuspicious},
		{99, VerdictSuspicious},
		{100, VerdictInvestigate},
		{1000, VerdictInvestigate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerdictFor(tt.score), "score %d", tt.score)
	}
}

func TestCountBySeverity(t *testing.T) {
	counts := CountBySeverity([]Flag{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	})
	assert.Equal(t, 2, counts[SeverityHigh])
	assert.Equal(t, 1, counts[SeverityLow])
	assert.Equal(t, 0, counts[SeverityCritical])
}
