package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "hello", 10, "hello"},
		{"controls", "a\nb\tc\rd", 0, `a\nb\tc\rd`},
		{"escape byte", "x\x1by", 0, `x\x1by`},
		{"truncate runes", "héllo wörld", 5, "héllo..."},
		{"exact length", "abc", 3, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in, tt.max); got != tt.want {
				t.Fatalf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFileLoggerWritesStructuredLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	logger, closer, err := New(Options{FileLogging: true, Path: path, Verbose: true})
	if err != nil {
		t.Fatalf("Expected file logger, got %v", err)
	}
	logger.Debug("drag granted", "frame", "main")
	if err := closer.Close(); err != nil {
		t.Fatalf("Expected close to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file, got %v", err)
	}
	line := bytes.TrimSpace(data)
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", line, err)
	}
	if entry["frame"] != "main" {
		t.Fatalf("Expected frame field, got %+v", entry)
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.log")
	w, err := openRotating(path, 16)
	if err != nil {
		t.Fatalf("Expected writer, got %v", err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		if _, err := w.Write([]byte(strings.Repeat("x", 10))); err != nil {
			t.Fatalf("Expected write to succeed, got %v", err)
		}
	}
	for n := 1; n <= maxArchives; n++ {
		if _, err := os.Stat(archiveName(path, n)); err != nil {
			t.Fatalf("Expected archive %d, got %v", n, err)
		}
	}
	if _, err := os.Stat(archiveName(path, maxArchives+1)); !os.IsNotExist(err) {
		t.Fatalf("Expected at most %d archives, got %v", maxArchives, err)
	}
	st, err := os.Stat(path)
	if err != nil || st.Size() != 10 {
		t.Fatalf("Expected current log to hold the last write, got %v %v", st, err)
	}
}
