package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barsentry/internal/forensics"
	"barsentry/internal/metrics"
)

// baselineColumns are aggregated in this order by every baseline query.
const baselineColumns = `
	COUNT(*),
	COALESCE(SUM(apm), 0),
	COALESCE(SUM(ultra_fast_pct), 0),
	COALESCE(SUM(very_fast_pct), 0),
	COALESCE(SUM(fast_pct), 0),
	COALESCE(SUM(coeff_variation), 0),
	COALESCE(SUM(top_interval_pct), 0)`

// sums holds running totals over game_players rows.
type sums struct {
	n                                   int
	apm, ultra, veryFast, fast, cv, top float64
}

func (s sums) minus(o sums) sums {
	return sums{
		n:        s.n - o.n,
		apm:      s.apm - o.apm,
		ultra:    s.ultra - o.ultra,
		veryFast: s.veryFast - o.veryFast,
		fast:     s.fast - o.fast,
		cv:       s.cv - o.cv,
		top:      s.top - o.top,
	}
}

func (s sums) baseline() *forensics.Baseline {
	if s.n <= 0 {
		return &forensics.Baseline{}
	}
	n := float64(s.n)
	return &forensics.Baseline{
		AvgAPM:            s.apm / n,
		AvgUltraFastPct:   s.ultra / n,
		AvgVeryFastPct:    s.veryFast / n,
		AvgFastPct:        s.fast / n,
		AvgCV:             s.cv / n,
		AvgTopIntervalPct: s.top / n,
		SampleSize:        s.n,
	}
}

// BaselineStats averages every stored player-game row.
func (s *Store) BaselineStats(ctx context.Context) (*forensics.Baseline, error) {
	start := time.Now()
	var t sums
	err := s.db.QueryRowContext(ctx, "SELECT"+baselineColumns+" FROM game_players").
		Scan(&t.n, &t.apm, &t.ultra, &t.veryFast, &t.fast, &t.cv, &t.top)
	metrics.RecordStoreOp("baseline_stats", start, err)
	if err != nil {
		return nil, fmt.Errorf("query baseline: %w", err)
	}
	return t.baseline(), nil
}

// Snapshot is an immutable copy of the baseline aggregates, taken once per
// batch so concurrent analyses read a consistent population.
type Snapshot struct {
	total       sums
	byUser      map[int64]sums
	byGame      map[string]map[int64]sums
	excludeSelf bool
	takenAt     time.Time
}

// SnapshotOptions selects which per-row detail a snapshot keeps.
type SnapshotOptions struct {
	// ExcludeSelf removes the subject player's own rows from the baseline.
	ExcludeSelf bool
	// ExcludeGames keeps per-game rows so ForGame can drop a game that is
	// being re-analyzed. Only needed when stored games are replaced.
	ExcludeGames bool
}

// Snapshot captures population totals, plus per-player and per-game totals
// as opts requires.
func (s *Store) Snapshot(ctx context.Context, opts SnapshotOptions) (*Snapshot, error) {
	start := time.Now()
	snap, err := s.snapshot(ctx, opts)
	metrics.RecordStoreOp("baseline_snapshot", start, err)
	if err != nil {
		return nil, err
	}
	metrics.BaselineSampleSize.Set(float64(snap.total.n))
	return snap, nil
}

func (s *Store) snapshot(ctx context.Context, opts SnapshotOptions) (*Snapshot, error) {
	snap := &Snapshot{
		byUser:      make(map[int64]sums),
		byGame:      make(map[string]map[int64]sums),
		excludeSelf: opts.ExcludeSelf,
		takenAt:     time.Now(),
	}

	// One read transaction keeps the totals and per-row detail consistent.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	t := &snap.total
	if err := tx.QueryRowContext(ctx, "SELECT"+baselineColumns+" FROM game_players").
		Scan(&t.n, &t.apm, &t.ultra, &t.veryFast, &t.fast, &t.cv, &t.top); err != nil {
		return nil, fmt.Errorf("query baseline totals: %w", err)
	}

	if opts.ExcludeSelf {
		err := scanGrouped(ctx, tx, "SELECT '', user_id,"+baselineColumns+" FROM game_players GROUP BY user_id",
			func(_ string, id int64, u sums) { snap.byUser[id] = u })
		if err != nil {
			return nil, fmt.Errorf("query player totals: %w", err)
		}
	}

	if opts.ExcludeGames {
		err := scanGrouped(ctx, tx, "SELECT game_id, user_id,"+baselineColumns+" FROM game_players GROUP BY game_id, user_id",
			func(gameID string, id int64, u sums) {
				rows := snap.byGame[gameID]
				if rows == nil {
					rows = make(map[int64]sums)
					snap.byGame[gameID] = rows
				}
				rows[id] = u
			})
		if err != nil {
			return nil, fmt.Errorf("query game totals: %w", err)
		}
	}

	return snap, nil
}

func scanGrouped(ctx context.Context, tx *sql.Tx, query string, fn func(gameID string, userID int64, u sums)) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var gameID string
		var id int64
		var u sums
		if err := rows.Scan(&gameID, &id, &u.n, &u.apm, &u.ultra, &u.veryFast, &u.fast, &u.cv, &u.top); err != nil {
			return err
		}
		fn(gameID, id, u)
	}
	return rows.Err()
}

// For returns the baseline to compare userID against.
func (s *Snapshot) For(userID int64) *forensics.Baseline {
	return s.ForGame("", userID)
}

// ForGame returns the baseline to compare userID against when scoring
// gameID. Rows already stored for gameID are left out when the snapshot
// kept per-game detail.
func (s *Snapshot) ForGame(gameID string, userID int64) *forensics.Baseline {
	if s == nil {
		return nil
	}
	total := s.total
	var self sums
	if s.excludeSelf {
		self = s.byUser[userID]
	}
	for id, row := range s.byGame[gameID] {
		total = total.minus(row)
		if s.excludeSelf && id == userID {
			self = self.minus(row)
		}
	}
	return total.minus(self).baseline()
}

// SampleSize is the number of rows in the whole population.
func (s *Snapshot) SampleSize() int {
	if s == nil {
		return 0
	}
	return s.total.n
}

// TakenAt reports when the snapshot was read.
func (s *Snapshot) TakenAt() time.Time {
	return s.takenAt
}
