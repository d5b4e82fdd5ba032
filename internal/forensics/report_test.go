package forensics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPrintReport(t *testing.T) {
	th := DefaultThresholds()
	p := AnalyzeLog(logFromTimes(0, timesFromIntervals(periodicIntervals(60, 150))), 60000, nil, th)

	var buf bytes.Buffer
	PrintReport(&buf, ReportHeader{
		GameID:   "g-1",
		MapName:  "Glitters",
		Duration: 12 * time.Minute,
		Player:   "alpha",
		UserID:   42,
		Verified: true,
	}, p)

	out := buf.String()
	assert.Contains(t, out, "alpha (42)")
	assert.Contains(t, out, "Game:           g-1")
	assert.Contains(t, out, "verified human")
	assert.Contains(t, out, "Top interval:   150ms")
	assert.Contains(t, out, "CRITICAL")
	assert.True(t, strings.Contains(out, "SCORE: "))
}

func TestPrintReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, ReportHeader{}, nil)
	assert.Equal(t, "No profile data available\n", buf.String())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0 seconds", FormatDuration(-time.Second))
	assert.Equal(t, "1 second", FormatDuration(time.Second))
	assert.Equal(t, "1 minute, 5 seconds", FormatDuration(65*time.Second))
	assert.Equal(t, "2 hours, 1 minute", FormatDuration(121*time.Minute))
}

func TestFormatMetricBar(t *testing.T) {
	assert.Equal(t, "[##########----------]", FormatMetricBar(50, 0, 100, 20))
	assert.Equal(t, "[####]", FormatMetricBar(200, 0, 100, 4))
	assert.Equal(t, "----", FormatMetricBar(1, 5, 5, 4))
	assert.Equal(t, "", FormatMetricBar(1, 0, 1, 0))
}
