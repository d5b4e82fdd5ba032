// Package store persists analyzed games and serves the population baseline.
// SQLite is the default backend; PostgreSQL is supported for shared stores.
package store

import (
	"errors"
	"time"

	"barsentry/internal/forensics"
)

var (
	// ErrGameExists is returned when a game is already recorded and the
	// write was not forced.
	ErrGameExists = errors.New("game already analyzed")
	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown storage driver")
	// ErrPlayerNotFound is returned when a player row does not exist.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrClosed is returned by a Writer after Close.
	ErrClosed = errors.New("store writer closed")
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Options configures Open.
type Options struct {
	Driver Driver
	// Path is the SQLite database file.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN            string
	BusyTimeout    time.Duration
	MaxConnections int
}

// GameRecord is one analyzed replay.
type GameRecord struct {
	GameID        string
	Filename      string
	MapName       string
	DurationMs    int64
	StartTime     string
	EngineVersion string
	AnalyzedAt    time.Time
}

// PlayerRecord is one player's result within a game.
type PlayerRecord struct {
	UserID         int64
	Name           string
	Skill          string
	Rank           int
	TeamID         int
	AllyTeamID     int
	Stats          forensics.PlayerStats
	Flags          []forensics.Flag
	SuspicionScore int
}

// GameWrite is everything recorded for one game in a single transaction.
type GameWrite struct {
	Game    GameRecord
	Players []PlayerRecord
}

// PlayerSummary is the per-player rollup row.
type PlayerSummary struct {
	UserID            int64
	Name              string
	FirstSeen         time.Time
	LastSeen          time.Time
	TotalGames        int
	TotalFlags        int
	AvgSuspicionScore float64
	Notes             string
}

// Suspect is a PlayerSummary ranked for review, with its strongest flags
// counted.
type Suspect struct {
	PlayerSummary
	CriticalFlags int
	HighFlags     int
}

// HistoryEntry is one game in a player's history.
type HistoryEntry struct {
	GameID         string
	MapName        string
	StartTime      string
	AnalyzedAt     time.Time
	PlayerName     string
	APM            float64
	UltraFastPct   float64
	TopIntervalMs  int
	TopIntervalPct float64
	CoeffVariation float64
	SuspicionScore int
}

// FlagRecord is one stored flag.
type FlagRecord struct {
	GameID     string
	UserID     int64
	Kind       forensics.FlagKind
	Severity   forensics.Severity
	Category   forensics.Category
	Message    string
	Value      float64
	IntervalMs int
}

// TableCounts reports row counts per table.
type TableCounts struct {
	Players     int
	Games       int
	GamePlayers int
	Flags       int
}

// Metric names a game_players column that percentiles can be computed over.
type Metric string

const (
	MetricAPM            Metric = "apm"
	MetricUltraFastPct   Metric = "ultra_fast_pct"
	MetricVeryFastPct    Metric = "very_fast_pct"
	MetricFastPct        Metric = "fast_pct"
	MetricCoeffVariation Metric = "coeff_variation"
	MetricTopIntervalPct Metric = "top_interval_pct"
	MetricMaxBurstRate   Metric = "max_burst_rate"
	MetricSuspicion      Metric = "suspicion_score"
)

// metricColumns is the closed set of columns a Metric may map to.
var metricColumns = map[Metric]string{
	MetricAPM:            "apm",
	MetricUltraFastPct:   "ultra_fast_pct",
	MetricVeryFastPct:    "very_fast_pct",
	MetricFastPct:        "fast_pct",
	MetricCoeffVariation: "coeff_variation",
	MetricTopIntervalPct: "top_interval_pct",
	MetricMaxBurstRate:   "max_burst_rate",
	MetricSuspicion:      "suspicion_score",
}

// Metrics returns every supported metric.
func Metrics() []Metric {
	return []Metric{
		MetricAPM, MetricUltraFastPct, MetricVeryFastPct, MetricFastPct,
		MetricCoeffVariation, MetricTopIntervalPct, MetricMaxBurstRate, MetricSuspicion,
	}
}

// timeLayout keeps stored timestamps lexically ordered.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
