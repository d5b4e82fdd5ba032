// Package metrics exposes Prometheus instrumentation for analysis runs and
// the baseline store.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "barsentry"

var (
	// Analysis

	ReplaysAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Replays processed, by outcome (analyzed, skipped, failed)",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to analyze one replay, excluding the store write",
			Buckets:   prometheus.DefBuckets,
		},
	)

	PlayersAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_analyzed_total",
			Help:      "Players that passed the minimum action filter and were scored",
		},
	)

	FlagsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_total",
			Help:      "Flags raised by detectors",
		},
		[]string{"category", "severity"},
	)

	SuspicionScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "suspicion_score",
			Help:      "Distribution of per-player suspicion scores",
			Buckets:   []float64{0, 3, 10, 20, 50, 100, 200, 400},
		},
	)

	// Store

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_query_duration_seconds",
			Help:      "Duration of baseline store operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed baseline store operations",
		},
		[]string{"operation"},
	)

	WriterQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "writer_queue_depth",
			Help:      "Game writes waiting for the single store writer",
		},
	)

	BaselineSampleSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_sample_size",
			Help:      "Player-game rows in the last baseline snapshot",
		},
	)

	// Watch

	FilesDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_files_detected_total",
			Help:      "Replay documents reported stable by the watcher",
		},
	)
)

// Outcome labels for ReplaysAnalyzed.
const (
	OutcomeAnalyzed = "analyzed"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// RecordStoreOp records the duration and outcome of a store operation.
func RecordStoreOp(operation string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}

// RecordReplay counts one processed replay.
func RecordReplay(outcome string, duration time.Duration) {
	ReplaysAnalyzed.WithLabelValues(outcome).Inc()
	if outcome == OutcomeAnalyzed {
		AnalysisDuration.Observe(duration.Seconds())
	}
}

// RecordPlayer records one scored player.
func RecordPlayer(score int) {
	PlayersAnalyzed.Inc()
	SuspicionScores.Observe(float64(score))
}

// RecordFlag counts one raised flag.
func RecordFlag(category, severity string) {
	FlagsRaised.WithLabelValues(category, severity).Inc()
}
