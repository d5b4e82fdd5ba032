package analyzer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"barsentry/internal/replay"
)

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path string
	Game *GameResult
	Err  error
}

// BatchSummary reports a completed batch. Results are in input order.
type BatchSummary struct {
	RunID    string
	Results  []FileResult
	Analyzed int
	Skipped  int
	Failed   int
	Elapsed  time.Duration
}

// Batch analyzes paths concurrently. Every file is compared against one
// baseline snapshot taken before the first analysis starts. A failing file
// is recorded in its FileResult and does not stop the others; the returned
// error is non-nil only when the snapshot fails or ctx is canceled.
func (a *Analyzer) Batch(ctx context.Context, paths []string) (*BatchSummary, error) {
	start := time.Now()
	ctx, logger, runID := a.startRun(ctx)

	snap, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("batch started",
		"files", len(paths),
		"workers", a.opts.Workers,
		"baseline_sample", snap.SampleSize(),
		"dry_run", a.DryRun())

	summary := &BatchSummary{
		RunID:   runID,
		Results: make([]FileResult, len(paths)),
	}

	var g errgroup.Group
	g.SetLimit(a.opts.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := a.analyzeFile(ctx, logger, path, snap)
			if err != nil {
				logger.Error("analysis failed", "file", path, "error", err)
			}
			summary.Results[i] = FileResult{Path: path, Game: res, Err: err}
			return nil
		})
	}
	g.Wait()

	for _, r := range summary.Results {
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.Game == nil:
			// never started
		case r.Game.Skipped:
			summary.Skipped++
		default:
			summary.Analyzed++
		}
	}
	summary.Elapsed = time.Since(start)

	logger.Info("batch finished",
		"analyzed", summary.Analyzed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// Collect expands files and directories into the replay documents they
// contain, sorted and without duplicates. Directories are walked
// recursively; hidden files and directories are ignored.
func Collect(paths []string, extensions []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && replay.IsDocument(path, extensions) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Strings(out)
	return out, nil
}

func sortByScore(players []PlayerResult) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].Score > players[j].Score
	})
}
