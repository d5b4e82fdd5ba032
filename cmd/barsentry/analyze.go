package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"barsentry/internal/analyzer"
	"barsentry/internal/forensics"
	"barsentry/internal/health"
	"barsentry/internal/metrics"
	"barsentry/internal/store"
	"barsentry/internal/supervisor"
	"barsentry/internal/watcher"
)

func (e *env) analyzerOptions() analyzer.Options {
	ac := e.cfg.Analysis
	return analyzer.Options{
		Workers:        ac.Workers,
		Force:          ac.Force,
		ExcludeSelf:    ac.BaselineExcludeSelf,
		VerifiedHumans: ac.VerifiedHumans,
		Logger:         e.logger.Logger,
	}
}

// startWriter runs a store writer until the returned stop func is called.
func (e *env) startWriter(ctx context.Context) (*store.Writer, func()) {
	w := store.NewWriter(e.store, e.logger.Logger, e.cfg.Storage.WriterQueue)
	wctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Serve(wctx) }()
	return w, func() {
		w.Close()
		cancel()
		<-done
	}
}

func cmdAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	force := fs.Bool("force", false, "Re-analyze games that are already stored")
	dryRun := fs.Bool("dry-run", false, "Score without reading or updating the baseline")
	workers := fs.Int("workers", 0, "Concurrent analyses (default from config)")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	all := fs.Bool("all", false, "Report every player, not only flagged ones")

	e, err := setup(fs, args, false)
	if err != nil {
		return err
	}
	defer e.Close()

	if fs.NArg() < 1 {
		return fmt.Errorf("usage: barsentry analyze [-force] [-dry-run] [-workers n] [-json] <path>...")
	}
	paths, err := analyzer.Collect(fs.Args(), e.cfg.Analysis.Extensions)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no replay documents found in %v", fs.Args())
	}

	opts := e.analyzerOptions()
	opts.Force = opts.Force || *force
	if *workers > 0 {
		opts.Workers = *workers
	}

	var a *analyzer.Analyzer
	if *dryRun {
		a = analyzer.New(nil, nil, opts)
	} else {
		if err := e.openStore(); err != nil {
			return err
		}
		w, stop := e.startWriter(ctx)
		defer stop()
		a = analyzer.New(e.store, w, opts)
	}

	summary, err := a.Batch(ctx, paths)
	if summary == nil {
		return err
	}

	if *asJSON {
		if werr := writeSummaryJSON(os.Stdout, summary); werr != nil {
			return werr
		}
	} else {
		writeSummaryText(os.Stdout, summary, *all)
	}

	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d replays failed", summary.Failed, len(paths))
	}
	return nil
}

type fileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type summaryJSON struct {
	RunID    string                 `json:"runId"`
	Analyzed int                    `json:"analyzed"`
	Skipped  int                    `json:"skipped"`
	Failed   int                    `json:"failed"`
	Elapsed  string                 `json:"elapsed"`
	Games    []*analyzer.GameResult `json:"games"`
	Errors   []fileError            `json:"errors,omitempty"`
}

func writeSummaryJSON(w io.Writer, s *analyzer.BatchSummary) error {
	out := summaryJSON{
		RunID:    s.RunID,
		Analyzed: s.Analyzed,
		Skipped:  s.Skipped,
		Failed:   s.Failed,
		Elapsed:  s.Elapsed.Round(time.Millisecond).String(),
		Games:    make([]*analyzer.GameResult, 0, len(s.Results)),
	}
	for _, r := range s.Results {
		switch {
		case r.Err != nil:
			out.Errors = append(out.Errors, fileError{Path: r.Path, Error: r.Err.Error()})
		case r.Game != nil:
			out.Games = append(out.Games, r.Game)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeSummaryText(w io.Writer, s *analyzer.BatchSummary, all bool) {
	for _, r := range s.Results {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "FAILED  %s: %v\n", r.Path, r.Err)
		case r.Game == nil:
		case r.Game.Skipped:
			fmt.Fprintf(w, "SKIP    %s (%s already analyzed)\n", r.Path, r.Game.GameID)
		default:
			writeGameText(w, r.Game, all)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Analyzed: %d  Skipped: %d  Failed: %d  (%s)\n",
		s.Analyzed, s.Skipped, s.Failed, s.Elapsed.Round(time.Millisecond))
}

func writeGameText(w io.Writer, g *analyzer.GameResult, all bool) {
	flagged := g.Flagged()
	fmt.Fprintf(w, "OK      %s  %s  %d players, %d flagged\n",
		g.GameID, g.MapName, len(g.Players), len(flagged))

	players := flagged
	if all {
		players = g.Players
	}
	for _, p := range players {
		fmt.Fprintln(w)
		forensics.PrintReport(w, forensics.ReportHeader{
			GameID:   g.GameID,
			MapName:  g.MapName,
			Duration: time.Duration(g.DurationMs) * time.Millisecond,
			Player:   p.Name,
			UserID:   p.UserID,
			Verified: p.Verified,
		}, p.PlayerProfile)
	}
}

func cmdWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	e, err := setup(fs, args, true)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg
	paths := fs.Args()
	if len(paths) == 0 {
		paths = cfg.Watch.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("usage: barsentry watch <dir>... (or set watch.paths)")
	}

	logger := e.logger.Logger
	writer := store.NewWriter(e.store, logger, cfg.Storage.WriterQueue)
	a := analyzer.New(e.store, writer, e.analyzerOptions())
	w := watcher.New(watcher.Config{
		Paths:        paths,
		Extensions:   cfg.Analysis.Extensions,
		Stability:    cfg.Watch.Debounce(),
		PollInterval: cfg.Watch.PollInterval(),
		ScanExisting: cfg.Watch.ScanExisting,
		Logger:       logger,
	})
	follower := analyzer.NewFollower(a, w.Events(), func(g *analyzer.GameResult) {
		if !g.Skipped {
			writeGameText(os.Stdout, g, false)
		}
	})

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{})
	tree.AddStorage(writer)
	tree.AddIngest(w)
	tree.AddIngest(follower)
	if cfg.Metrics.Enabled {
		checker := health.NewChecker()
		checker.RegisterFunc("database", true, health.DatabaseCheck(e.store.Ping))
		checker.RegisterFunc("write_queue", false, health.QueueCheck(writer.Pending))
		checker.RegisterFunc("watch_paths", false, health.PathsCheck(func() []string { return paths }))
		checker.SetReady(true)
		tree.AddOps(metrics.NewServer(cfg.Metrics.ListenAddr, checker.Mount))
		logger.Info("metrics endpoint enabled", "addr", cfg.Metrics.ListenAddr)
	}

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logger.Warn("services did not stop in time", "count", len(report))
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("watch stopped")
		return nil
	}
	return err
}
