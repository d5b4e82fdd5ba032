package forensics

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ReportHeader identifies the player and game a profile belongs to.
type ReportHeader struct {
	GameID   string
	MapName  string
	Duration time.Duration
	Player   string
	UserID   int64
	Verified bool
}

// PrintReport writes a formatted player analysis to w.
func PrintReport(w io.Writer, h ReportHeader, p *PlayerProfile) {
	if p == nil {
		fmt.Fprintln(w, "No profile data available")
		return
	}

	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintf(w, "  %s (%d)\n", h.Player, h.UserID)
	fmt.Fprintln(w, strings.Repeat("=", 72))
	if h.GameID != "" {
		fmt.Fprintf(w, "Game:           %s\n", h.GameID)
	}
	if h.MapName != "" {
		fmt.Fprintf(w, "Map:            %s\n", h.MapName)
	}
	if h.Duration > 0 {
		fmt.Fprintf(w, "Duration:       %s\n", FormatDuration(h.Duration))
	}
	if h.Verified {
		fmt.Fprintln(w, "Status:         verified human")
	}

	s := p.Stats
	fmt.Fprintf(w, "Actions:        %d (%d commands, %d selections)\n",
		s.TotalActions, s.TotalCommands, s.TotalSelections)
	fmt.Fprintf(w, "APM:            %.1f\n", s.APM)
	fmt.Fprintln(w)

	if p.Sufficient {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "INTERVALS")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintf(w, "Mean:           %.1f ms (stddev %.1f)\n", s.AvgMs, s.StddevMs)
		fmt.Fprintf(w, "CV:             %.3f  %s\n", s.CoeffVariation, FormatMetricBar(s.CoeffVariation, 0, 2, 20))
		fmt.Fprintf(w, "  -> %s\n", interpretCV(s.CoeffVariation))
		fmt.Fprintf(w, "<=33ms:         %5.1f%%  %s\n", s.UltraFastPct, FormatMetricBar(s.UltraFastPct, 0, 100, 20))
		fmt.Fprintf(w, "<=50ms:         %5.1f%%  %s\n", s.VeryFastPct, FormatMetricBar(s.VeryFastPct, 0, 100, 20))
		fmt.Fprintf(w, "<=100ms:        %5.1f%%  %s\n", s.FastPct, FormatMetricBar(s.FastPct, 0, 100, 20))
		fmt.Fprintf(w, "Top interval:   %dms at %.1f%%\n", s.DominantIntervalMs, s.DominantIntervalPct)
		fmt.Fprintf(w, "  -> %s\n", interpretDominant(s.DominantIntervalPct))
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Too few valid intervals for distribution analysis.")
		fmt.Fprintln(w)
	}

	if len(p.Flags) > 0 {
		fmt.Fprintln(w, strings.Repeat("-", 72))
		fmt.Fprintln(w, "FLAGS")
		fmt.Fprintln(w, strings.Repeat("-", 72))
		for i, f := range p.Flags {
			fmt.Fprintf(w, "%d. [%s] %-8s %s: %s\n", i+1, severityMarker(f.Severity), f.Severity, f.Category, f.Message)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "SCORE: %d (%s)\n", p.Score, p.Verdict)
	fmt.Fprintln(w)
}

// FormatDuration produces a human-readable duration such as "12 minutes, 5 seconds".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0 seconds"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d %s, %d %s", hours, plural(hours, "hour"), minutes, plural(minutes, "minute"))
	}
	if minutes > 0 {
		return fmt.Sprintf("%d %s, %d %s", minutes, plural(minutes, "minute"), seconds, plural(seconds, "second"))
	}
	return fmt.Sprintf("%d %s", seconds, plural(seconds, "second"))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// FormatMetricBar produces an ASCII bar for a value in [min, max].
func FormatMetricBar(value, min, max float64, width int) string {
	if width <= 0 {
		return ""
	}
	if max <= min {
		return strings.Repeat("-", width)
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	filled := int(normalized * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}

func interpretCV(cv float64) string {
	switch {
	case cv < 0.3:
		return "Very low: machine-like regularity"
	case cv < 0.5:
		return "Low: unusually even pacing"
	case cv < 1.0:
		return "Moderate: typical human variation"
	default:
		return "High: bursty, irregular pacing"
	}
}

func interpretDominant(pct float64) string {
	switch {
	case pct > 30:
		return "Heavily concentrated on one interval (scripted?)"
	case pct > 15:
		return "Noticeable preference for one interval"
	default:
		return "No dominant rhythm"
	}
}

func severityMarker(s Severity) string {
	switch s {
	case SeverityCritical:
		return "!!!"
	case SeverityHigh:
		return " !!"
	case SeverityMedium:
		return " ! "
	case SeverityLow:
		return " i "
	default:
		return "   "
	}
}
