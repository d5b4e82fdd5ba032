package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/thejerf/suture/v4"

	"barsentry/internal/logging"
	"barsentry/internal/metrics"
)

// Request states. A queued request is claimed by the writer or abandoned by
// its submitter, never both.
const (
	requestQueued int32 = iota
	requestClaimed
	requestAbandoned
)

type writeRequest struct {
	write GameWrite
	force bool
	runID string
	state atomic.Int32
	done  chan error
}

func (r *writeRequest) claim() bool {
	return r.state.CompareAndSwap(requestQueued, requestClaimed)
}

func (r *writeRequest) abandon() bool {
	return r.state.CompareAndSwap(requestQueued, requestAbandoned)
}

// Writer owns every mutation of the baseline store. Analyses running
// concurrently submit finished games to it; it applies them one at a time.
// Writer implements suture.Service.
type Writer struct {
	store    *Store
	logger   *slog.Logger
	requests chan *writeRequest

	closeOnce sync.Once
	quit      chan struct{}
}

// NewWriter returns a writer for s. queue bounds how many submissions may
// wait before Submit blocks.
func NewWriter(s *Store, logger *slog.Logger, queue int) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if queue < 0 {
		queue = 0
	}
	return &Writer{
		store:    s,
		logger:   logger.With("component", "store-writer"),
		requests: make(chan *writeRequest, queue),
		quit:     make(chan struct{}),
	}
}

// Serve applies submitted writes until ctx is canceled or Close is called.
func (w *Writer) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.quit:
			w.drain()
			return suture.ErrDoNotRestart
		case req := <-w.requests:
			metrics.WriterQueueDepth.Set(float64(len(w.requests)))
			logger := w.logger.With("game_id", req.write.Game.GameID)
			if req.runID != "" {
				logger = logger.With("run_id", req.runID)
			}
			if !req.claim() {
				logger.Debug("write abandoned by submitter")
				continue
			}
			err := w.store.RecordGame(ctx, req.write, req.force)
			switch {
			case err == nil:
				logger.Debug("game recorded", "players", len(req.write.Players), "force", req.force)
			case errors.Is(err, ErrGameExists):
				logger.Debug("game already recorded")
			default:
				logger.Error("record game failed", "error", err)
			}
			req.done <- err
		}
	}
}

// drain rejects writes still queued at Close.
func (w *Writer) drain() {
	for {
		select {
		case req := <-w.requests:
			if req.claim() {
				req.done <- ErrClosed
			}
		default:
			metrics.WriterQueueDepth.Set(0)
			return
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Writer) String() string {
	return "store-writer"
}

// Pending reports how many writes are queued and the queue capacity.
func (w *Writer) Pending() (pending, capacity int) {
	return len(w.requests), cap(w.requests)
}

// Submit queues a game write and waits until it is committed or rejected.
// It returns ErrGameExists when the game was recorded in the meantime and
// force is false. If ctx ends before the writer picks the request up, the
// write is dropped and ctx.Err() is returned; once picked up, Submit waits
// for the commit so its result always matches the store.
func (w *Writer) Submit(ctx context.Context, gw GameWrite, force bool) error {
	req := &writeRequest{
		write: gw,
		force: force,
		runID: logging.RunIDFromContext(ctx),
		done:  make(chan error, 1),
	}

	select {
	case <-w.quit:
		return ErrClosed
	default:
	}

	select {
	case w.requests <- req:
		metrics.WriterQueueDepth.Set(float64(len(w.requests)))
	case <-w.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		if req.abandon() {
			return ctx.Err()
		}
		return <-req.done
	}
}

// Close stops the writer. Writes already being applied finish; later
// Submits return ErrClosed.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
}
