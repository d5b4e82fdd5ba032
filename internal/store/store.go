package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"barsentry/internal/metrics"
)

// dialect smooths over the differences between the two backends. Queries
// are written with ? placeholders and rebound for PostgreSQL.
type dialect struct {
	driver Driver
}

func (d dialect) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) ddl(script string) string {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.driver == DriverPostgres {
		id = "BIGSERIAL PRIMARY KEY"
	}
	return strings.ReplaceAll(script, "{{id}}", id)
}

func (d dialect) tableExistsQuery() string {
	if d.driver == DriverPostgres {
		return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	}
	return "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
}

// Store is the baseline store.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the configured backend and applies pending migrations.
func Open(opts Options) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch opts.Driver {
	case DriverSQLite, "":
		opts.Driver = DriverSQLite
		db, err = openSQLite(opts)
	case DriverPostgres:
		db, err = openPostgres(opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	d := dialect{driver: opts.Driver}
	if err := MigrateDB(db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, dialect: d}, nil
}

func openSQLite(opts Options) (*sql.DB, error) {
	dir := filepath.Dir(opts.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", opts.Path, busy.Milliseconds())

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxConnections > 0 {
		db.SetMaxOpenConns(opts.MaxConnections)
	}
	return db, nil
}

func openPostgres(opts Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxConnections > 0 {
		db.SetMaxOpenConns(opts.MaxConnections)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks that the database still answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.dialect.driver
}

// MigrationStatus reports the schema version.
func (s *Store) MigrationStatus() (*MigrationStatus, error) {
	return GetMigrationStatus(s.db)
}

// Validate checks that the schema is complete.
func (s *Store) Validate() error {
	return ValidateSchema(s.db, s.dialect)
}

// GameExists reports whether gameID has already been recorded.
func (s *Store) GameExists(ctx context.Context, gameID string) (bool, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT COUNT(*) FROM games WHERE game_id = ?"), gameID).Scan(&n)
	metrics.RecordStoreOp("game_exists", start, err)
	if err != nil {
		return false, fmt.Errorf("check game: %w", err)
	}
	return n > 0, nil
}

// Counts returns the number of rows in each table.
func (s *Store) Counts(ctx context.Context) (*TableCounts, error) {
	var c TableCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM players),
			(SELECT COUNT(*) FROM games),
			(SELECT COUNT(*) FROM game_players),
			(SELECT COUNT(*) FROM flags)`,
	).Scan(&c.Players, &c.Games, &c.GamePlayers, &c.Flags)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	return &c, nil
}
