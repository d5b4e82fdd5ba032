package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Migration is a versioned schema change. Up and Down may use the {{id}}
// placeholder for an auto-incrementing primary key column.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Players, games, game players and flags",
		Up:          migrationV1Up,
		Down:        migrationV1Down,
	},
	{
		Version:     2,
		Description: "Burst, segment and selection measurements on game players",
		Up:          migrationV2Up,
		Down:        migrationV2Down,
	},
	{
		Version:     3,
		Description: "Indexes for suspect and history queries",
		Up:          migrationV3Up,
		Down:        migrationV3Down,
	},
}

const migrationV1Up = `
CREATE TABLE IF NOT EXISTS players (
    user_id             BIGINT PRIMARY KEY,
    name                TEXT NOT NULL,
    first_seen          TEXT NOT NULL,
    last_seen           TEXT NOT NULL,
    total_games         INTEGER NOT NULL DEFAULT 0,
    total_flags         INTEGER NOT NULL DEFAULT 0,
    avg_suspicion_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes               TEXT
);

CREATE TABLE IF NOT EXISTS games (
    game_id         TEXT PRIMARY KEY,
    filename        TEXT,
    map_name        TEXT,
    duration_ms     BIGINT NOT NULL DEFAULT 0,
    start_time      TEXT,
    analyzed_at     TEXT NOT NULL,
    engine_version  TEXT
);

CREATE TABLE IF NOT EXISTS game_players (
    id                  {{id}},
    game_id             TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
    user_id             BIGINT NOT NULL REFERENCES players(user_id),
    player_name         TEXT NOT NULL,
    skill               TEXT,
    player_rank         INTEGER,
    team_id             INTEGER,
    ally_team_id        INTEGER,
    total_actions       INTEGER NOT NULL DEFAULT 0,
    total_commands      INTEGER NOT NULL DEFAULT 0,
    total_selections    INTEGER NOT NULL DEFAULT 0,
    apm                 DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_interval_ms     DOUBLE PRECISION NOT NULL DEFAULT 0,
    stddev_interval_ms  DOUBLE PRECISION NOT NULL DEFAULT 0,
    coeff_variation     DOUBLE PRECISION NOT NULL DEFAULT 0,
    ultra_fast_pct      DOUBLE PRECISION NOT NULL DEFAULT 0,
    very_fast_pct       DOUBLE PRECISION NOT NULL DEFAULT 0,
    fast_pct            DOUBLE PRECISION NOT NULL DEFAULT 0,
    top_interval_ms     INTEGER NOT NULL DEFAULT 0,
    top_interval_pct    DOUBLE PRECISION NOT NULL DEFAULT 0,
    suspicion_score     INTEGER NOT NULL DEFAULT 0,
    flags_json          TEXT NOT NULL DEFAULT '[]',
    UNIQUE (game_id, user_id)
);

CREATE TABLE IF NOT EXISTS flags (
    id          {{id}},
    game_id     TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
    user_id     BIGINT NOT NULL REFERENCES players(user_id),
    kind        TEXT NOT NULL,
    severity    TEXT NOT NULL,
    category    TEXT NOT NULL,
    message     TEXT NOT NULL,
    value       DOUBLE PRECISION NOT NULL DEFAULT 0,
    interval_ms INTEGER
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS flags;
DROP TABLE IF EXISTS game_players;
DROP TABLE IF EXISTS games;
DROP TABLE IF EXISTS players;
`

const migrationV2Up = `
ALTER TABLE game_players ADD COLUMN max_burst_rate DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE game_players ADD COLUMN segment_spread DOUBLE PRECISION NOT NULL DEFAULT 0;
ALTER TABLE game_players ADD COLUMN rapid_selections INTEGER NOT NULL DEFAULT 0;
`

const migrationV2Down = `
ALTER TABLE game_players DROP COLUMN rapid_selections;
ALTER TABLE game_players DROP COLUMN segment_spread;
ALTER TABLE game_players DROP COLUMN max_burst_rate;
`

const migrationV3Up = `
CREATE INDEX IF NOT EXISTS idx_game_players_user ON game_players(user_id);
CREATE INDEX IF NOT EXISTS idx_game_players_score ON game_players(suspicion_score);
CREATE INDEX IF NOT EXISTS idx_flags_user ON flags(user_id, severity);
CREATE INDEX IF NOT EXISTS idx_flags_game ON flags(game_id);
CREATE INDEX IF NOT EXISTS idx_players_score ON players(avg_suspicion_score);
`

const migrationV3Down = `
DROP INDEX IF EXISTS idx_players_score;
DROP INDEX IF EXISTS idx_flags_game;
DROP INDEX IF EXISTS idx_flags_user;
DROP INDEX IF EXISTS idx_game_players_score;
DROP INDEX IF EXISTS idx_game_players_user;
`

// MigrateDB applies all pending migrations.
func MigrateDB(db *sql.DB, d dialect) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			applied_at  BIGINT NOT NULL,
			description TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if err := execScript(tx, d.ddl(m.Up)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			d.rebind("INSERT INTO schema_migrations (version, applied_at, description) VALUES (?, ?, ?)"),
			m.Version, time.Now().UnixNano(), m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// RollbackMigration reverts the last applied migration.
func RollbackMigration(db *sql.DB, d dialect) error {
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	if currentVersion == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range migrations {
		if migrations[i].Version == currentVersion {
			migration = &migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %d not found", currentVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := execScript(tx, d.ddl(migration.Down)); err != nil {
		tx.Rollback()
		return fmt.Errorf("rollback migration %d: %w", currentVersion, err)
	}

	if _, err := tx.Exec(d.rebind("DELETE FROM schema_migrations WHERE version = ?"), currentVersion); err != nil {
		tx.Rollback()
		return fmt.Errorf("remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rollback: %w", err)
	}

	return nil
}

// execScript runs each statement of a migration script in order.
func execScript(tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// MigrationStatus describes applied and pending migrations.
type MigrationStatus struct {
	CurrentVersion int
	LatestVersion  int
	Pending        []Migration
	Applied        []AppliedMigration
}

// AppliedMigration is one row of schema_migrations.
type AppliedMigration struct {
	Version     int
	AppliedAt   time.Time
	Description string
}

// GetMigrationStatus reports which migrations are applied.
func GetMigrationStatus(db *sql.DB) (*MigrationStatus, error) {
	status := &MigrationStatus{
		LatestVersion: migrations[len(migrations)-1].Version,
	}

	rows, err := db.Query("SELECT version, applied_at, description FROM schema_migrations ORDER BY version")
	if err != nil {
		status.Pending = migrations
		return status, nil
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var am AppliedMigration
		var appliedAt int64
		var desc sql.NullString
		if err := rows.Scan(&am.Version, &appliedAt, &desc); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		am.AppliedAt = time.Unix(0, appliedAt)
		am.Description = desc.String
		status.Applied = append(status.Applied, am)
		applied[am.Version] = true

		if am.Version > status.CurrentVersion {
			status.CurrentVersion = am.Version
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if !applied[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}

	return status, nil
}

// ValidateSchema checks that all expected tables exist.
func ValidateSchema(db *sql.DB, d dialect) error {
	requiredTables := []string{
		"players",
		"games",
		"game_players",
		"flags",
		"schema_migrations",
	}

	for _, table := range requiredTables {
		var count int
		if err := db.QueryRow(d.rebind(d.tableExistsQuery()), table).Scan(&count); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if count == 0 {
			return fmt.Errorf("missing required table: %s", table)
		}
	}

	return nil
}
