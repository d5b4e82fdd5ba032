// Package analyzer runs the scoring pipeline over decoded replays and hands
// the results to the baseline store.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"barsentry/internal/forensics"
	"barsentry/internal/ingest"
	"barsentry/internal/logging"
	"barsentry/internal/metrics"
	"barsentry/internal/replay"
	"barsentry/internal/store"
)

// Reader is the read side of the baseline store. *store.Store implements it.
type Reader interface {
	GameExists(ctx context.Context, gameID string) (bool, error)
	Snapshot(ctx context.Context, opts store.SnapshotOptions) (*store.Snapshot, error)
}

// Recorder commits analyzed games. *store.Writer implements it.
type Recorder interface {
	Submit(ctx context.Context, gw store.GameWrite, force bool) error
}

// Options configures an Analyzer.
type Options struct {
	// Workers bounds concurrent analyses in Batch. Defaults to 1.
	Workers int
	// Force re-analyzes games that are already stored.
	Force bool
	// ExcludeSelf removes each player's own stored games from the baseline
	// they are compared against.
	ExcludeSelf bool
	// VerifiedHumans are user ids marked Verified in results.
	VerifiedHumans []int64
	// Thresholds defaults to forensics.DefaultThresholds.
	Thresholds *forensics.Thresholds
	Logger     *slog.Logger
}

// PlayerResult is one scored player together with their roster entry.
type PlayerResult struct {
	*forensics.PlayerProfile

	UserID     int64  `json:"userId"`
	Name       string `json:"name"`
	TeamID     int    `json:"teamId"`
	AllyTeamID int    `json:"allyTeamId"`
	Skill      string `json:"skill,omitempty"`
	Rank       int    `json:"rank"`
	Verified   bool   `json:"verified,omitempty"`
}

// GameResult is the outcome of analyzing one replay. When Skipped is set the
// game was already stored and only GameID and Filename are filled in.
type GameResult struct {
	GameID        string         `json:"gameId"`
	Filename      string         `json:"filename,omitempty"`
	MapName       string         `json:"mapName,omitempty"`
	DurationMs    int64          `json:"durationMs"`
	StartTime     string         `json:"startTime,omitempty"`
	EngineVersion string         `json:"engineVersion,omitempty"`
	AnalyzedAt    time.Time      `json:"analyzedAt"`
	Players       []PlayerResult `json:"players"`
	Skipped       bool           `json:"skipped,omitempty"`
}

// Flagged returns players with a non-zero score, highest first.
func (g *GameResult) Flagged() []PlayerResult {
	var out []PlayerResult
	for _, p := range g.Players {
		if p.Score > 0 {
			out = append(out, p)
		}
	}
	sortByScore(out)
	return out
}

// Analyzer scores replays. With a nil Reader and Recorder it runs dry: every
// game is analyzed, nothing is compared against a baseline or stored.
type Analyzer struct {
	reader   Reader
	recorder Recorder
	opts     Options
	th       *forensics.Thresholds
	verified map[int64]bool
	logger   *slog.Logger
}

// New returns an analyzer reading baselines from r and committing through rec.
func New(r Reader, rec Recorder, opts Options) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	th := opts.Thresholds
	if th == nil {
		th = forensics.DefaultThresholds()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	verified := make(map[int64]bool, len(opts.VerifiedHumans))
	for _, id := range opts.VerifiedHumans {
		verified[id] = true
	}
	return &Analyzer{
		reader:   r,
		recorder: rec,
		opts:     opts,
		th:       th,
		verified: verified,
		logger:   logger.With("component", "analyzer"),
	}
}

// DryRun reports whether results are discarded.
func (a *Analyzer) DryRun() bool {
	return a.recorder == nil
}

// AnalyzeFile loads and analyzes one replay document with a fresh baseline.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*GameResult, error) {
	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ctx, logger, _ := a.startRun(ctx)
	return a.analyzeFile(ctx, logger, path, snap)
}

// startRun tags ctx with a fresh run id so the store writer can log it too.
func (a *Analyzer) startRun(ctx context.Context) (context.Context, *slog.Logger, string) {
	id := uuid.NewString()
	return logging.ContextWithRunID(ctx, id), a.logger.With("run_id", id), id
}

func (a *Analyzer) analyzeFile(ctx context.Context, logger *slog.Logger, path string, snap *store.Snapshot) (*GameResult, error) {
	start := time.Now()
	doc, err := replay.Load(path)
	if err != nil {
		metrics.RecordReplay(metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}
	res, err := a.analyze(ctx, logger, doc, filepath.Base(path), snap)
	a.record(res, err, start)
	return res, err
}

// AnalyzeDocument analyzes an already decoded document. snap may be nil, in
// which case a snapshot is taken when a Reader is configured.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc *replay.Document, filename string, snap *store.Snapshot) (*GameResult, error) {
	if snap == nil {
		var err error
		if snap, err = a.snapshot(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	ctx, logger, _ := a.startRun(ctx)
	res, err := a.analyze(ctx, logger, doc, filename, snap)
	a.record(res, err, start)
	return res, err
}

func (a *Analyzer) record(res *GameResult, err error, start time.Time) {
	switch {
	case err != nil:
		metrics.RecordReplay(metrics.OutcomeFailed, time.Since(start))
	case res.Skipped:
		metrics.RecordReplay(metrics.OutcomeSkipped, time.Since(start))
	default:
		metrics.RecordReplay(metrics.OutcomeAnalyzed, time.Since(start))
	}
}

func (a *Analyzer) snapshot(ctx context.Context) (*store.Snapshot, error) {
	if a.reader == nil {
		return nil, nil
	}
	snap, err := a.reader.Snapshot(ctx, store.SnapshotOptions{
		ExcludeSelf:  a.opts.ExcludeSelf,
		ExcludeGames: a.opts.Force,
	})
	if err != nil {
		return nil, fmt.Errorf("baseline snapshot: %w", err)
	}
	return snap, nil
}

func (a *Analyzer) analyze(ctx context.Context, logger *slog.Logger, doc *replay.Document, filename string, snap *store.Snapshot) (*GameResult, error) {
	meta := doc.Meta
	if meta.GameID == "" {
		return nil, fmt.Errorf("%s: %w: missing game id", filename, replay.ErrInvalidDocument)
	}
	logger = logger.With("game_id", meta.GameID)

	if a.reader != nil && !a.opts.Force {
		exists, err := a.reader.GameExists(ctx, meta.GameID)
		if err != nil {
			return nil, err
		}
		if exists {
			logger.Info("game already analyzed", "file", filename)
			return skipped(meta.GameID, filename), nil
		}
	}

	res := &GameResult{
		GameID:        meta.GameID,
		Filename:      filename,
		MapName:       meta.Map,
		DurationMs:    meta.DurationMs,
		StartTime:     meta.StartTime,
		EngineVersion: meta.EngineVersion,
		AnalyzedAt:    time.Now().UTC(),
		Players:       make([]PlayerResult, 0),
	}

	roster := doc.Roster()
	seen := make(map[int64]bool)
	for _, log := range ingest.Qualifying(ingest.Group(doc.Events), ingest.MinActions) {
		info, ok := roster[log.PlayerID]
		if !ok {
			logger.Debug("no roster entry for player", "player_id", log.PlayerID)
			continue
		}
		if seen[info.UserID] {
			logger.Warn("duplicate user in roster", "user_id", info.UserID, "player_id", log.PlayerID)
			continue
		}
		seen[info.UserID] = true

		profile := forensics.AnalyzeLog(log, meta.DurationMs, snap.ForGame(meta.GameID, info.UserID), a.th)
		res.Players = append(res.Players, PlayerResult{
			PlayerProfile: profile,
			UserID:        info.UserID,
			Name:          info.Name,
			TeamID:        info.TeamID,
			AllyTeamID:    info.AllyTeamID,
			Skill:         info.Skill,
			Rank:          info.Rank,
			Verified:      a.verified[info.UserID],
		})

		metrics.RecordPlayer(profile.Score)
		for _, f := range profile.Flags {
			metrics.RecordFlag(string(f.Category), f.Severity.String())
		}
		logger.Debug("player scored",
			"user_id", info.UserID,
			"actions", profile.Stats.TotalActions,
			"flags", len(profile.Flags),
			"score", profile.Score)
	}

	if a.recorder != nil {
		err := a.recorder.Submit(ctx, toWrite(res), a.opts.Force)
		if errors.Is(err, store.ErrGameExists) {
			// Another analysis committed the same game first.
			logger.Info("game already analyzed", "file", filename)
			return skipped(meta.GameID, filename), nil
		}
		if err != nil {
			return nil, fmt.Errorf("store game %s: %w", meta.GameID, err)
		}
	}

	logger.Info("game analyzed",
		"file", filename,
		"map", meta.Map,
		"players", len(res.Players),
		"flagged", len(res.Flagged()))
	return res, nil
}

func skipped(gameID, filename string) *GameResult {
	return &GameResult{GameID: gameID, Filename: filename, Skipped: true}
}

func toWrite(res *GameResult) store.GameWrite {
	gw := store.GameWrite{
		Game: store.GameRecord{
			GameID:        res.GameID,
			Filename:      res.Filename,
			MapName:       res.MapName,
			DurationMs:    res.DurationMs,
			StartTime:     res.StartTime,
			EngineVersion: res.EngineVersion,
			AnalyzedAt:    res.AnalyzedAt,
		},
		Players: make([]store.PlayerRecord, 0, len(res.Players)),
	}
	for _, p := range res.Players {
		gw.Players = append(gw.Players, store.PlayerRecord{
			UserID:         p.UserID,
			Name:           p.Name,
			Skill:          p.Skill,
			Rank:           p.Rank,
			TeamID:         p.TeamID,
			AllyTeamID:     p.AllyTeamID,
			Stats:          p.Stats,
			Flags:          p.Flags,
			SuspicionScore: p.Score,
		})
	}
	return gw
}
