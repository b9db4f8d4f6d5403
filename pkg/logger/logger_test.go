package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.Colorize = false
	cfg.ShowTime = false
	cfg.Output = &buf
	return New(cfg), &buf
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newTestLogger(WARN)

	log.Infof("hidden %d", 1)
	log.Warnf("shown %d", 2)
	log.Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO entry should be filtered at WARN level, got %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Errorf("expected WARN entry, got %q", out)
	}
	if !strings.Contains(out, "[ERROR] also shown") {
		t.Errorf("expected ERROR entry, got %q", out)
	}
}

func TestFatalCallsExit(t *testing.T) {
	log, buf := newTestLogger(DEBUG)
	code := -1
	log.exit = func(c int) { code = c }

	log.Fatalf("boom")

	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(buf.String(), "[FATAL] boom") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestFileOutputIsPlain(t *testing.T) {
	log, _ := newTestLogger(DEBUG)
	log.SetColorize(true)

	f, err := OpenLogFile(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("OpenLogFile: %v", err)
	}
	log.AddFileOutput(f)
	log.Infof("to file")
	f.Close()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if strings.Contains(string(data), "\033[") {
		t.Errorf("file output should not carry color codes: %q", data)
	}
	if !strings.Contains(string(data), "[INFO] to file") {
		t.Errorf("missing entry in file: %q", data)
	}
}

func TestLevelFromMode(t *testing.T) {
	tests := []struct {
		mode int
		want LogLevel
	}{
		{0, FATAL},
		{1, ERROR},
		{2, WARN},
		{3, INFO},
		{4, DEBUG},
		{9, INFO},
	}
	for _, tt := range tests {
		if got := LevelFromMode(tt.mode); got != tt.want {
			t.Errorf("LevelFromMode(%d) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, ok := ParseLevel("warning"); !ok || lvl != WARN {
		t.Errorf("ParseLevel(warning) = %v, %v", lvl, ok)
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Error("ParseLevel should reject unknown names")
	}
}
