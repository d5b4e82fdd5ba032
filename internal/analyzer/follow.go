package analyzer

import (
	"context"
	"log/slog"

	"barsentry/internal/watcher"
)

// Follower analyzes replay documents as the watcher reports them. It
// implements suture.Service.
type Follower struct {
	analyzer *Analyzer
	events   <-chan watcher.Event
	onResult func(*GameResult)
}

// NewFollower returns a service feeding events into a. onResult, if set, is
// called for every game that was analyzed or skipped.
func NewFollower(a *Analyzer, events <-chan watcher.Event, onResult func(*GameResult)) *Follower {
	return &Follower{analyzer: a, events: events, onResult: onResult}
}

// Serve analyzes files one at a time until ctx is canceled. Each file gets a
// fresh baseline snapshot so games recorded earlier in the session count.
func (f *Follower) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-f.events:
			f.handle(ctx, ev)
		}
	}
}

func (f *Follower) handle(ctx context.Context, ev watcher.Event) {
	a := f.analyzer
	ctx, logger, _ := a.startRun(ctx)
	logger.Info("new replay detected", "file", ev.Path, "size", ev.Size)

	snap, err := a.snapshot(ctx)
	if err != nil {
		logger.Error("baseline snapshot failed", "error", err)
		return
	}
	res, err := a.analyzeFile(ctx, logger, ev.Path, snap)
	if err != nil {
		logger.Error("analysis failed", "file", ev.Path, "error", err)
		return
	}
	for _, p := range res.Flagged() {
		logger.Warn("player flagged",
			slog.Int64("user_id", p.UserID),
			slog.String("name", p.Name),
			slog.Int("score", p.Score),
			slog.String("verdict", string(p.Verdict)),
			slog.Bool("verified", p.Verified))
	}
	if f.onResult != nil {
		f.onResult(res)
	}
}

// String implements fmt.Stringer for supervisor logs.
func (f *Follower) String() string {
	return "replay-follower"
}
