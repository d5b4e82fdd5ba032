package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"verbose", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestLevelString(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		level, err := ParseLevel(name)
		if err != nil {
			t.Fatal(err)
		}
		if got := LevelString(level); got != name {
			t.Errorf("LevelString(%v) = %q, want %q", level, got, name)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("expected default level Info, got %v", cfg.Level)
	}
	if cfg.Output != "stderr" {
		t.Errorf("expected default output stderr, got %s", cfg.Output)
	}
	if cfg.Component != "barsentry" {
		t.Errorf("expected component barsentry, got %s", cfg.Component)
	}
	if !strings.Contains(cfg.FilePath, "barsentry") {
		t.Errorf("unexpected default log path %s", cfg.FilePath)
	}
}

func newBufferLogger(t *testing.T, format Format) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.Format = format
	cfg.Writer = &buf
	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestJSONFormat(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON)
	l.Info("game analyzed", "game_id", "abc", "players", 8)

	entry := decodeLine(t, buf)
	if entry["msg"] != "game analyzed" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["component"] != "barsentry" {
		t.Errorf("unexpected component %v", entry["component"])
	}
	if entry["players"] != float64(8) {
		t.Errorf("unexpected players %v", entry["players"])
	}
}

func TestLoggerWithRunID(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON)
	l.WithRunID("run-1").Info("batch started")

	if entry := decodeLine(t, buf); entry["run_id"] != "run-1" {
		t.Errorf("expected run_id run-1, got %v", entry["run_id"])
	}
}

func TestLoggerWithComponent(t *testing.T) {
	l, buf := newBufferLogger(t, FormatText)
	l.WithComponent("store").Info("migrated")

	if !strings.Contains(buf.String(), "component=store") {
		t.Errorf("expected component=store in %q", buf.String())
	}
}

func TestRunIDContext(t *testing.T) {
	ctx := ContextWithRunID(context.Background(), "run-42")
	if got := RunIDFromContext(ctx); got != "run-42" {
		t.Errorf("expected run-42, got %q", got)
	}
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty run id, got %q", got)
	}
	//nolint:staticcheck // nil context is handled explicitly
	if got := RunIDFromContext(nil); got != "" {
		t.Errorf("expected empty run id for nil context, got %q", got)
	}
}

func TestLoggerWithContext(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON)

	if l.WithContext(context.Background()) != l {
		t.Error("context without run id should return the same logger")
	}

	ctx := ContextWithRunID(context.Background(), "run-7")
	l.WithContext(ctx).Warn("slow game")
	if entry := decodeLine(t, buf); entry["run_id"] != "run-7" {
		t.Errorf("expected run_id run-7, got %v", entry["run_id"])
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"db_password", true},
		{"dsn", true},
		{"storage_dsn", true},
		{"api_token", true},
		{"game_id", false},
		{"user_id", false},
		{"score", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			if got := shouldRedact(test.key); got != test.expected {
				t.Errorf("shouldRedact(%q) = %v, want %v", test.key, got, test.expected)
			}
		})
	}
}

func TestRedactedOutput(t *testing.T) {
	l, buf := newBufferLogger(t, FormatJSON)
	l.Info("opening store", "dsn", "postgres://u:secret@db/bar")

	if strings.Contains(buf.String(), "secret@db") {
		t.Errorf("DSN leaked into log: %s", buf.String())
	}
	if entry := decodeLine(t, buf); entry["dsn"] != "[REDACTED]" {
		t.Errorf("expected redacted dsn, got %v", entry["dsn"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: LevelWarn, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record missing")
	}
}

func TestLoggerFileOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "file"
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "barsentry.log")

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("to file")
	if err := l.Sync(); err != nil {
		t.Errorf("Sync failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file missing record: %q", data)
	}
}

func TestFileRotatorEmptyPath(t *testing.T) {
	if _, err := NewFileRotator(&Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFileRotatorRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		FilePath:   filepath.Join(dir, "barsentry.log"),
		MaxSize:    1,
		MaxBackups: 2,
		Compress:   true,
	}

	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatalf("NewFileRotator failed: %v", err)
	}

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	r.openedOn = clock

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 4; i++ {
		clock = clock.Add(time.Second)
		if _, err := r.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	files := r.LogFiles()
	if files[0] != cfg.FilePath {
		t.Errorf("expected current file first, got %s", files[0])
	}
	rotated := files[1:]
	if len(rotated) != 2 {
		t.Fatalf("expected 2 retained backups, got %v", rotated)
	}
	for _, f := range rotated {
		if !strings.HasSuffix(f, ".gz") {
			t.Errorf("expected compressed backup, got %s", f)
		}
	}

	gzFile, err := os.Open(rotated[0])
	if err != nil {
		t.Fatal(err)
	}
	defer gzFile.Close()
	zr, err := gzip.NewReader(gzFile)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	n, err := io.Copy(io.Discard, zr)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(chunk)) {
		t.Errorf("expected %d bytes in backup, got %d", len(chunk), n)
	}
}

func TestFileRotatorDailyRotation(t *testing.T) {
	cfg := &Config{FilePath: filepath.Join(t.TempDir(), "barsentry.log"), MaxSize: 100}
	r, err := NewFileRotator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	clock := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	r.openedOn = clock

	if _, err := r.Write([]byte("day one\n")); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	if _, err := r.Write([]byte("day two\n")); err != nil {
		t.Fatal(err)
	}

	if got := len(r.LogFiles()); got != 2 {
		t.Errorf("expected one rotated file, got %d files", got-1)
	}
	data, err := os.ReadFile(cfg.FilePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "day two\n" {
		t.Errorf("unexpected current file contents %q", data)
	}
}
