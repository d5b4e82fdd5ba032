// Package watcher reports replay documents once they have finished being
// written.
package watcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"barsentry/internal/metrics"
)

// Event is a replay document that stopped changing.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Config configures a Watcher.
type Config struct {
	Paths []string
	// Extensions limits reported files, e.g. ".json". Empty accepts all.
	Extensions []string
	// Stability is how long size and modification time must stay unchanged.
	Stability time.Duration
	// PollInterval is how often pending files are checked.
	PollInterval time.Duration
	// ScanExisting reports files already present when watching starts.
	ScanExisting bool
	Logger       *slog.Logger
}

// pending is a file that changed and has not yet settled.
type pending struct {
	size     int64
	modTime  time.Time
	changeAt time.Time
}

// Watcher monitors directories for new or rewritten replay documents.
// Watcher implements suture.Service.
type Watcher struct {
	cfg    Config
	logger *slog.Logger
	events chan Event

	mu      sync.Mutex
	pending map[string]*pending
	emitted map[string][32]byte
}

// New creates a watcher. Nothing is watched until Serve runs.
func New(cfg Config) *Watcher {
	if cfg.Stability <= 0 {
		cfg.Stability = 2 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger.With("component", "watcher"),
		events:  make(chan Event, 100),
		pending: make(map[string]*pending),
		emitted: make(map[string][32]byte),
	}
}

// Events returns the channel of settled files. It is never closed, so it
// survives service restarts.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Serve watches the configured paths until ctx is canceled.
func (w *Watcher) Serve(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsWatcher.Close()

	for _, path := range w.cfg.Paths {
		if err := w.add(fsWatcher, path); err != nil {
			return err
		}
	}
	w.logger.Info("watching for replays",
		"paths", w.cfg.Paths,
		"stability", w.cfg.Stability)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify event channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.track(event.Name, time.Now())

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify error channel closed")
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (w *Watcher) String() string {
	return "replay-watcher"
}

func (w *Watcher) add(fsWatcher *fsnotify.Watcher, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	if !info.IsDir() {
		// Single files are watched through their directory.
		if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		if w.cfg.ScanExisting {
			w.track(absPath, time.Now())
		}
		return nil
	}

	if err := fsWatcher.Add(absPath); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if !w.cfg.ScanExisting {
		return nil
	}
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return fmt.Errorf("scan %s: %w", path, err)
	}
	now := time.Now()
	for _, entry := range entries {
		if !entry.IsDir() {
			w.track(filepath.Join(absPath, entry.Name()), now)
		}
	}
	return nil
}

// accepts reports whether path is a replay the watcher should report.
func (w *Watcher) accepts(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	if len(w.cfg.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, e := range w.cfg.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// track records a change to path. Directories and foreign files are ignored.
func (w *Watcher) track(path string, now time.Time) {
	if !w.accepts(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	w.pending[path] = &pending{size: info.Size(), modTime: info.ModTime(), changeAt: now}
	w.mu.Unlock()
}

// checkStableFiles reports files whose size and modification time have not
// changed for the stability window. Hashing happens without the lock held.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.cfg.Stability)

	var settled []string
	w.mu.Lock()
	for path, p := range w.pending {
		info, err := os.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size || !info.ModTime().Equal(p.modTime) {
			p.size, p.modTime, p.changeAt = info.Size(), info.ModTime(), now
			continue
		}
		if p.changeAt.Before(threshold) {
			settled = append(settled, path)
		}
	}
	w.mu.Unlock()

	for _, path := range settled {
		hash, size, err := HashFile(path)
		if err != nil {
			w.logger.Warn("hash replay failed", "file", path, "error", err)
			continue
		}

		w.mu.Lock()
		p, ok := w.pending[path]
		if !ok || p.size != size {
			// Changed while hashing; let it settle again.
			w.mu.Unlock()
			continue
		}
		if prev, seen := w.emitted[path]; seen && prev == hash {
			delete(w.pending, path)
			w.mu.Unlock()
			continue
		}
		w.mu.Unlock()

		select {
		case w.events <- Event{Path: path, Hash: hash, Size: size, Timestamp: now}:
			metrics.FilesDetected.Inc()
			w.mu.Lock()
			delete(w.pending, path)
			w.emitted[path] = hash
			w.mu.Unlock()
		default:
			// Consumer is behind; retry on the next tick.
		}
	}
}

// HashFile computes the SHA-256 of a file by streaming it.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// WatchedPaths returns the configured paths.
func (w *Watcher) WatchedPaths() []string {
	return w.cfg.Paths
}

// TrackedFiles returns how many files are waiting to settle.
func (w *Watcher) TrackedFiles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
