package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetupWritesDatedFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, err := Setup("debug", dir, &console)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Debug("step executed", "step", "type")

	path := filepath.Join(dir, "sgbd-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "step=type") {
		t.Errorf("log file missing record: %q", data)
	}
	if !strings.Contains(console.String(), "step executed") {
		t.Errorf("console missing record: %q", console.String())
	}
}

func TestSetupWithoutConsole(t *testing.T) {
	logger, err := Setup("info", t.TempDir(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("quiet")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
