package runtimeinit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rectcopy/src/config"
)

func TestBootstrapConsole(t *testing.T) {
	t.Setenv("ENABLE_FILE_LOGGING", "false")
	t.Setenv("MIN_DRAG_PX", "4")
	var buf bytes.Buffer
	ctx, rt, err := Bootstrap(context.Background(), Options{Verbose: true, LogWriter: &buf})
	if err != nil {
		t.Fatalf("Expected bootstrap, got %v", err)
	}
	defer rt.Close()
	if rt.Config.MinDragSize != 4 {
		t.Fatalf("Expected MinDragSize 4, got %v", rt.Config.MinDragSize)
	}
	if ctx == nil || rt.Logger == nil {
		t.Fatal("Expected a logger")
	}
	if !strings.Contains(buf.String(), "runtime ready") {
		t.Fatalf("Expected debug output, got %q", buf.String())
	}
}

func TestBootstrapFileLogging(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "rectcopy.log")
	envPath := filepath.Join(dir, "test.env")
	content := "ENABLE_FILE_LOGGING=true\nLOG_FILE=" + logPath + "\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("Expected env file, got %v", err)
	}
	// unset so the env file is not shadowed; Setenv restores them afterwards
	for _, k := range []string{"ENABLE_FILE_LOGGING", "LOG_FILE"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	_, rt, err := Bootstrap(context.Background(), Options{
		LoadOptions: config.LoadOptions{EnvPathOverride: envPath},
		Verbose:     true,
	})
	if err != nil {
		t.Fatalf("Expected bootstrap, got %v", err)
	}
	rt.Logger.Info("hello file")
	if err := rt.Close(); err != nil {
		t.Fatalf("Expected close, got %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Expected log file, got %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("Expected the message in the log file, got %q", data)
	}
}
