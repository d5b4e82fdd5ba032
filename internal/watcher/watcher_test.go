package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "game.json")
	content := []byte(`{"meta":{"gameId":"g"}}`)

	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	hash1, size1, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if size1 != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size1)
	}

	hash2, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("second HashFile failed: %v", err)
	}
	if hash1 != hash2 {
		t.Error("same file should produce same hash")
	}

	if err := os.WriteFile(testFile, []byte("different content"), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}
	hash3, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("third HashFile failed: %v", err)
	}
	if hash1 == hash3 {
		t.Error("different content should produce different hash")
	}
}

func TestHashFileNotFound(t *testing.T) {
	_, _, err := HashFile("/nonexistent/file.json")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestAccepts(t *testing.T) {
	w := New(Config{Extensions: []string{".json"}})

	tests := []struct {
		path string
		want bool
	}{
		{"/r/game.json", true},
		{"/r/GAME.JSON", true},
		{"/r/game.sdfz", false},
		{"/r/.game.json", false},
		{"/r/game", false},
	}
	for _, tt := range tests {
		if got := w.accepts(tt.path); got != tt.want {
			t.Errorf("accepts(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}

	all := New(Config{})
	if !all.accepts("/r/game.sdfz") {
		t.Error("empty extension list should accept any file")
	}
}

func startWatcher(t *testing.T, cfg Config) *Watcher {
	t.Helper()
	if cfg.Stability == 0 {
		cfg.Stability = 50 * time.Millisecond
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	w := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give Serve time to register the watches.
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func expectNoEvent(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for %s", ev.Path)
	case <-time.After(wait):
	}
}

func TestWatcherReportsNewFile(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Config{Paths: []string{dir}, Extensions: []string{".json"}})

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".partial.json"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "game.json")
	if err := os.WriteFile(target, []byte(`{"meta":{}}`), 0600); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, w)
	if ev.Path != target {
		t.Errorf("expected %s, got %s", target, ev.Path)
	}
	if ev.Size != int64(len(`{"meta":{}}`)) {
		t.Errorf("unexpected size %d", ev.Size)
	}
	expectNoEvent(t, w, 200*time.Millisecond)

	if w.TrackedFiles() != 0 {
		t.Errorf("expected no pending files, got %d", w.TrackedFiles())
	}
}

func TestWatcherSkipsIdenticalRewrite(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, Config{Paths: []string{dir}})

	target := filepath.Join(dir, "game.json")
	content := []byte(`{"meta":{"gameId":"g"}}`)
	if err := os.WriteFile(target, content, 0600); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w)

	if err := os.WriteFile(target, content, 0600); err != nil {
		t.Fatal(err)
	}
	expectNoEvent(t, w, 300*time.Millisecond)

	if err := os.WriteFile(target, []byte(`{"meta":{"gameId":"h"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, w)
}

func TestWatcherScanExisting(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.json")
	if err := os.WriteFile(existing, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, Config{Paths: []string{dir}, ScanExisting: true})
	ev := waitEvent(t, w)
	if ev.Path != existing {
		t.Errorf("expected %s, got %s", existing, ev.Path)
	}
}

func TestWatcherMissingPath(t *testing.T) {
	w := New(Config{Paths: []string{"/nonexistent/replays"}})
	if err := w.Serve(context.Background()); err == nil {
		t.Error("expected error for missing path")
	}
	if w.String() != "replay-watcher" {
		t.Errorf("unexpected name %q", w.String())
	}
}
