package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"ERROR":   LevelError,
		"none":    LevelNone,
		"bogus":   LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloop.log")

	l, err := New(LevelInfo, path, "task")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Info("started iteration %d", 3)
	l.Debug("should be filtered")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "started iteration 3") {
		t.Errorf("log output missing info line: %q", out)
	}
	if !strings.Contains(out, "[task]") {
		t.Errorf("log output missing prefix: %q", out)
	}
	if strings.Contains(out, "should be filtered") {
		t.Errorf("debug line should have been filtered: %q", out)
	}
}

func TestWithPrefixChains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloop.log")

	l, err := New(LevelDebug, path, "task")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.WithPrefix("executor").Debug("dispatching")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "[task:executor]") {
		t.Errorf("chained prefix missing: %q", string(data))
	}
}

func TestDiscardIsSafe(t *testing.T) {
	l := Discard()
	l.Info("dropped")
	l.Error("dropped too")
	if err := l.Close(); err != nil {
		t.Errorf("Close on discard logger: %v", err)
	}
}

func TestSlogAdapter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentloop.log")

	l, err := New(LevelDebug, path, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	s := slog.New(NewSlogHandler(l))
	s.With("tool", "read_file").WithGroup("turn").Info("executed", "iteration", 2)

	data, _ := os.ReadFile(path)
	out := string(data)
	if !strings.Contains(out, "executed") {
		t.Fatalf("slog record not forwarded: %q", out)
	}
	if !strings.Contains(out, "tool=read_file") {
		t.Errorf("slog attrs not formatted: %q", out)
	}
	if !strings.Contains(out, "turn.iteration=2") {
		t.Errorf("slog group prefix not applied: %q", out)
	}
}
