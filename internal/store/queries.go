package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"barsentry/internal/forensics"
	"barsentry/internal/metrics"
)

// GetPlayer returns a player's rollup, or nil if the player is unknown.
func (s *Store) GetPlayer(ctx context.Context, userID int64) (*PlayerSummary, error) {
	var p PlayerSummary
	var firstSeen, lastSeen string
	var notes sql.NullString

	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT user_id, name, first_seen, last_seen, total_games, total_flags, avg_suspicion_score, notes
		FROM players WHERE user_id = ?`), userID,
	).Scan(&p.UserID, &p.Name, &firstSeen, &lastSeen, &p.TotalGames, &p.TotalFlags, &p.AvgSuspicionScore, &notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player: %w", err)
	}

	p.FirstSeen = parseTime(firstSeen)
	p.LastSeen = parseTime(lastSeen)
	p.Notes = notes.String
	return &p, nil
}

// SuspiciousPlayers returns flagged players ordered by average suspicion.
func (s *Store) SuspiciousPlayers(ctx context.Context, limit int) ([]Suspect, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT p.user_id, p.name, p.first_seen, p.last_seen, p.total_games, p.total_flags,
			p.avg_suspicion_score, p.notes,
			(SELECT COUNT(*) FROM flags f WHERE f.user_id = p.user_id AND f.severity = ?),
			(SELECT COUNT(*) FROM flags f WHERE f.user_id = p.user_id AND f.severity = ?)
		FROM players p
		WHERE p.total_flags > 0
		ORDER BY p.avg_suspicion_score DESC, p.user_id
		LIMIT ?`),
		forensics.SeverityCritical.String(), forensics.SeverityHigh.String(), limit,
	)
	metrics.RecordStoreOp("suspicious_players", start, err)
	if err != nil {
		return nil, fmt.Errorf("query suspects: %w", err)
	}
	defer rows.Close()

	var out []Suspect
	for rows.Next() {
		var sp Suspect
		var firstSeen, lastSeen string
		var notes sql.NullString
		if err := rows.Scan(
			&sp.UserID, &sp.Name, &firstSeen, &lastSeen, &sp.TotalGames, &sp.TotalFlags,
			&sp.AvgSuspicionScore, &notes, &sp.CriticalFlags, &sp.HighFlags,
		); err != nil {
			return nil, fmt.Errorf("scan suspect: %w", err)
		}
		sp.FirstSeen = parseTime(firstSeen)
		sp.LastSeen = parseTime(lastSeen)
		sp.Notes = notes.String
		out = append(out, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read suspects: %w", err)
	}
	return out, nil
}

// PlayerHistory returns every stored game for a player, newest first.
func (s *Store) PlayerHistory(ctx context.Context, userID int64) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT g.game_id, g.map_name, g.start_time, g.analyzed_at, gp.player_name,
			gp.apm, gp.ultra_fast_pct, gp.top_interval_ms, gp.top_interval_pct,
			gp.coeff_variation, gp.suspicion_score
		FROM game_players gp
		JOIN games g ON g.game_id = gp.game_id
		WHERE gp.user_id = ?
		ORDER BY g.analyzed_at DESC, g.game_id`), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var mapName, startTime sql.NullString
		var analyzedAt string
		if err := rows.Scan(
			&h.GameID, &mapName, &startTime, &analyzedAt, &h.PlayerName,
			&h.APM, &h.UltraFastPct, &h.TopIntervalMs, &h.TopIntervalPct,
			&h.CoeffVariation, &h.SuspicionScore,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.MapName = mapName.String
		h.StartTime = startTime.String
		h.AnalyzedAt = parseTime(analyzedAt)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// PlayerFlags returns a player's most recent flags, newest first.
func (s *Store) PlayerFlags(ctx context.Context, userID int64, limit int) ([]FlagRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(`
		SELECT game_id, user_id, kind, severity, category, message, value, interval_ms
		FROM flags
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`), userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	var out []FlagRecord
	for rows.Next() {
		var f FlagRecord
		var kind, severity, category string
		var interval sql.NullInt64
		if err := rows.Scan(&f.GameID, &f.UserID, &kind, &severity, &category, &f.Message, &f.Value, &interval); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		sev, err := forensics.ParseSeverity(severity)
		if err != nil {
			return nil, fmt.Errorf("flag severity: %w", err)
		}
		f.Kind = forensics.FlagKind(kind)
		f.Severity = sev
		f.Category = forensics.Category(category)
		f.IntervalMs = int(interval.Int64)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}
	return out, nil
}

// MetricPercentile returns the percentage of stored player-games whose
// metric is below value. It returns 0 when nothing is stored.
func (s *Store) MetricPercentile(ctx context.Context, metric Metric, value float64) (float64, error) {
	column, ok := metricColumns[metric]
	if !ok {
		return 0, fmt.Errorf("unknown metric %q", metric)
	}

	var total int
	var below sql.NullInt64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(
		"SELECT COUNT(*), SUM(CASE WHEN "+column+" < CAST(? AS DOUBLE PRECISION) THEN 1 ELSE 0 END) FROM game_players"), value,
	).Scan(&total, &below)
	if err != nil {
		return 0, fmt.Errorf("query percentile: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(below.Int64) / float64(total) * 100, nil
}

// SetPlayerNote stores a free-text note on a player.
func (s *Store) SetPlayerNote(ctx context.Context, userID int64, note string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE players SET notes = ? WHERE user_id = ?"), note, userID)
	if err != nil {
		return fmt.Errorf("set note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set note: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, userID)
	}
	return nil
}
