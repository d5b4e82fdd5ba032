package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"barsentry/internal/metrics"
)

// RecordGame writes a game, its players and their flags in one
// transaction, then recomputes the rollups of every affected player. If the
// game exists and force is false it returns ErrGameExists and writes
// nothing. With force, the previous rows for the game are replaced.
//
// RecordGame is not safe for concurrent use with itself; route writes
// through a Writer.
func (s *Store) RecordGame(ctx context.Context, w GameWrite, force bool) (err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, ErrGameExists) {
			metrics.RecordStoreOp("record_game", start, err)
		}
	}()

	if w.Game.GameID == "" {
		return fmt.Errorf("record game: empty game id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.dialect.rebind

	var existing int
	if err := tx.QueryRowContext(ctx, q("SELECT COUNT(*) FROM games WHERE game_id = ?"), w.Game.GameID).Scan(&existing); err != nil {
		return fmt.Errorf("check game: %w", err)
	}

	affected := make(map[int64]struct{})
	if existing > 0 {
		if !force {
			return ErrGameExists
		}
		previous, err := gameUserIDs(ctx, tx, q, w.Game.GameID)
		if err != nil {
			return err
		}
		for _, id := range previous {
			affected[id] = struct{}{}
		}
		if _, err := tx.ExecContext(ctx, q("DELETE FROM flags WHERE game_id = ?"), w.Game.GameID); err != nil {
			return fmt.Errorf("delete flags: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q("DELETE FROM game_players WHERE game_id = ?"), w.Game.GameID); err != nil {
			return fmt.Errorf("delete game players: %w", err)
		}
	}

	analyzedAt := w.Game.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now()
	}
	stamp := formatTime(analyzedAt)

	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO games (game_id, filename, map_name, duration_ms, start_time, analyzed_at, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (game_id) DO UPDATE SET
			filename = excluded.filename,
			map_name = excluded.map_name,
			duration_ms = excluded.duration_ms,
			start_time = excluded.start_time,
			analyzed_at = excluded.analyzed_at,
			engine_version = excluded.engine_version`),
		w.Game.GameID, w.Game.Filename, w.Game.MapName, w.Game.DurationMs,
		w.Game.StartTime, stamp, w.Game.EngineVersion,
	); err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}

	for _, p := range w.Players {
		if err := insertPlayer(ctx, tx, q, w.Game.GameID, stamp, p); err != nil {
			return fmt.Errorf("player %d: %w", p.UserID, err)
		}
		affected[p.UserID] = struct{}{}
	}

	ids := make([]int64, 0, len(affected))
	for id := range affected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := refreshRollup(ctx, tx, q, id); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertPlayer(ctx context.Context, tx *sql.Tx, q func(string) string, gameID, stamp string, p PlayerRecord) error {
	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO players (user_id, name, first_seen, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			name = excluded.name,
			last_seen = excluded.last_seen`),
		p.UserID, p.Name, stamp, stamp,
	); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}

	flagsJSON, err := json.Marshal(p.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	if string(flagsJSON) == "null" {
		flagsJSON = []byte("[]")
	}

	st := p.Stats
	if _, err := tx.ExecContext(ctx, q(`
		INSERT INTO game_players (
			game_id, user_id, player_name, skill, player_rank, team_id, ally_team_id,
			total_actions, total_commands, total_selections, apm,
			avg_interval_ms, stddev_interval_ms, coeff_variation,
			ultra_fast_pct, very_fast_pct, fast_pct,
			top_interval_ms, top_interval_pct,
			max_burst_rate, segment_spread, rapid_selections,
			suspicion_score, flags_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		gameID, p.UserID, p.Name, p.Skill, p.Rank, p.TeamID, p.AllyTeamID,
		st.TotalActions, st.TotalCommands, st.TotalSelections, st.APM,
		st.AvgMs, st.StddevMs, st.CoeffVariation,
		st.UltraFastPct, st.VeryFastPct, st.FastPct,
		st.DominantIntervalMs, st.DominantIntervalPct,
		st.MaxBurstRate, st.SegmentSpread, st.RapidSelections,
		p.SuspicionScore, string(flagsJSON),
	); err != nil {
		return fmt.Errorf("insert game player: %w", err)
	}

	for _, f := range p.Flags {
		var interval sql.NullInt64
		if f.IntervalMs != 0 {
			interval = sql.NullInt64{Int64: int64(f.IntervalMs), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, q(`
			INSERT INTO flags (game_id, user_id, kind, severity, category, message, value, interval_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			gameID, p.UserID, string(f.Kind), f.Severity.String(), string(f.Category), f.Message, f.Value, interval,
		); err != nil {
			return fmt.Errorf("insert flag: %w", err)
		}
	}

	return nil
}

func gameUserIDs(ctx context.Context, tx *sql.Tx, q func(string) string, gameID string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, q("SELECT user_id FROM game_players WHERE game_id = ?"), gameID)
	if err != nil {
		return nil, fmt.Errorf("list game players: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// refreshRollup recomputes a player's totals from their stored rows.
func refreshRollup(ctx context.Context, tx *sql.Tx, q func(string) string, userID int64) error {
	if _, err := tx.ExecContext(ctx, q(`
		UPDATE players SET
			total_games = (SELECT COUNT(*) FROM game_players WHERE user_id = ?),
			total_flags = (SELECT COUNT(*) FROM flags WHERE user_id = ?),
			avg_suspicion_score = COALESCE((SELECT AVG(suspicion_score) FROM game_players WHERE user_id = ?), 0)
		WHERE user_id = ?`),
		userID, userID, userID, userID,
	); err != nil {
		return fmt.Errorf("refresh rollup for %d: %w", userID, err)
	}
	return nil
}

// GetGame returns a stored game, or nil if it does not exist.
func (s *Store) GetGame(ctx context.Context, gameID string) (*GameRecord, error) {
	var g GameRecord
	var filename, mapName, startTime, engine sql.NullString
	var analyzedAt string

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT game_id, filename, map_name, duration_ms, start_time, analyzed_at, engine_version
		FROM games WHERE game_id = ?`), gameID,
	).Scan(&g.GameID, &filename, &mapName, &g.DurationMs, &startTime, &analyzedAt, &engine)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get game: %w", err)
	}

	g.Filename = filename.String
	g.MapName = mapName.String
	g.StartTime = startTime.String
	g.EngineVersion = engine.String
	g.AnalyzedAt = parseTime(analyzedAt)
	return &g, nil
}
