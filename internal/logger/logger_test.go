package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return parseLines(t, content)
}

func parseLines(t *testing.T, content []byte) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewDefaultLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024,
		MaxBackups:  3,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevels(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024 * 1024,
		MaxBackups:  3,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true))
	logger.Error("error message", errors.New("test error"), Float64("rate", 3.14))
	logger.Close()

	entries := readLines(t, logPath)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantLevels := []string{"debug", "info", "warn", "error"}
	wantMsgs := []string{"debug message", "info message", "warn message", "error message"}
	for i, e := range entries {
		if e["level"] != wantLevels[i] {
			t.Errorf("entry %d: level = %v, want %s", i, e["level"], wantLevels[i])
		}
		if e["message"] != wantMsgs[i] {
			t.Errorf("entry %d: message = %v, want %s", i, e["message"], wantMsgs[i])
		}
	}

	if entries[0]["key"] != "value" {
		t.Error("String field not found")
	}
	if entries[1]["count"] != float64(42) {
		t.Error("Int field not found")
	}
	if entries[2]["flag"] != true {
		t.Error("Bool field not found")
	}
	if entries[3]["rate"] != 3.14 {
		t.Error("Float64 field not found")
	}
	if entries[3]["error"] != "test error" {
		t.Error("Error not found in log")
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", nil)

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Error("Debug and Info should be filtered out")
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Error("Warn and Error should be present")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	logger.Debug("debug before")
	logger.SetLevel(LevelError)
	logger.Debug("debug after")
	logger.Info("info after")
	logger.Warn("warn after")
	logger.Error("error after", nil)

	out := buf.String()
	if !strings.Contains(out, "debug before") {
		t.Error("Debug before level change should be present")
	}
	for _, filtered := range []string{"debug after", "info after", "warn after"} {
		if strings.Contains(out, filtered) {
			t.Errorf("%q should be filtered", filtered)
		}
	}
	if !strings.Contains(out, "error after") {
		t.Error("Error after level change should be present")
	}
}

func TestWithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&buf, LevelDebug)
	child := parent.With(String("orderId", "o-1"), Int("fileIndex", 2))

	child.Info("child entry")
	parent.SetLevel(LevelWarn)
	child.Info("suppressed")

	entries := parseLines(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["orderId"] != "o-1" || entries[0]["fileIndex"] != float64(2) {
		t.Errorf("child fields missing: %v", entries[0])
	}
}

func TestLogRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 100,
		MaxBackups:  3,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	for i := 0; i < 20; i++ {
		logger.Info("This is a test message that should trigger log rotation eventually")
	}
	logger.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Backup log file was not created after rotation")
	}
	if _, err := os.Stat(logPath + ".5"); !os.IsNotExist(err) {
		t.Error("Backups beyond MaxBackups should be removed")
	}
}

func TestFieldTypes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, LevelDebug)

	logger.Info("test fields",
		String("str", "hello"),
		Int("int", 42),
		Int64("int64", 1<<40),
		Float64("float", 3.14159),
		Bool("bool", true),
		Err(errors.New("sample error")),
		Any("any", map[string]int{"a": 1}),
	)

	entries := parseLines(t, buf.Bytes())
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["str"] != "hello" {
		t.Error("String field not formatted correctly")
	}
	if e["int"] != float64(42) {
		t.Error("Int field not formatted correctly")
	}
	if e["int64"] != float64(1<<40) {
		t.Error("Int64 field not formatted correctly")
	}
	if e["float"] != 3.14159 {
		t.Error("Float64 field not formatted correctly")
	}
	if e["bool"] != true {
		t.Error("Bool field not formatted correctly")
	}
	if e["error"] != "sample error" {
		t.Error("Err field not formatted correctly")
	}
	if m, ok := e["any"].(map[string]interface{}); !ok || m["a"] != float64(1) {
		t.Error("Any field not formatted correctly")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "global.log")

	if err := Init(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024 * 1024,
		MaxBackups:  3,
		Level:       LevelDebug,
	}); err != nil {
		t.Fatalf("Failed to initialize global logger: %v", err)
	}

	Debug("global debug")
	Info("global info")
	Warn("global warn")
	Error("global error", errors.New("global test error"))
	With(String("scope", "child")).Info("global child")
	Close()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	out := string(content)
	for _, msg := range []string{"global debug", "global info", "global warn", "global error", "global child"} {
		if !strings.Contains(out, msg) {
			t.Errorf("%q not found", msg)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	SetGlobalLogger(nil)

	l := GetLogger()
	if l == nil {
		t.Fatal("GetLogger should never return nil")
	}
	l.Info("discarded")
	l.With(String("k", "v")).Error("discarded", errors.New("x"))
	if err := l.Close(); err != nil {
		t.Errorf("noop Close returned %v", err)
	}
}
