package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"

	"rectcopy/src/geom"
	"rectcopy/src/session"
)

const samplePage = `<html><body><p>Hello world</p><p>Second line</p></body></html>`

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RECTCOPY_ENV", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("ENABLE_FILE_LOGGING", "false")
}

func TestParseRect(t *testing.T) {
	tests := []struct {
		in      string
		want    geom.Rect
		wantErr bool
	}{
		{in: "0,0,10,20", want: geom.FromXYWH(0, 0, 10, 20)},
		{in: " 1.5, 2 ,3,4", want: geom.FromXYWH(1.5, 2, 3, 4)},
		{in: "1,2,3", wantErr: true},
		{in: "a,b,c,d", wantErr: true},
		{in: "0,0,-1,5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRect(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected err=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr {
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Fatalf("Rect mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestParseViewport(t *testing.T) {
	tests := []struct {
		in      string
		w, h    float64
		wantErr bool
	}{
		{in: "800x600", w: 800, h: 600},
		{in: "1024X768", w: 1024, h: 768},
		{in: "800", wantErr: true},
		{in: "0x600", wantErr: true},
		{in: "axb", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			w, h, err := parseViewport(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected err=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && (w != tt.w || h != tt.h) {
				t.Fatalf("Expected %vx%v, got %vx%v", tt.w, tt.h, w, h)
			}
		})
	}
}

func TestNormalizeLegacyArgs(t *testing.T) {
	got := normalizeLegacyArgs([]string{"rectcopy-cli", "-html", "page.html", "-rect=0,0,1,1", "-json", "--verbose"})
	want := []string{"rectcopy-cli", "--html", "page.html", "--rect=0,0,1,1", "--json", "--verbose"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Args mismatch (-want +got):\n%s", diff)
	}
}

func TestRunHTMLFromStdin(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	err := runWithArgs(context.Background(),
		[]string{"rectcopy-cli", "--html", "-", "--rect", "0,0,200,70", "--viewport", "800x600"},
		strings.NewReader(samplePage), &stdout, &stderr)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got := stdout.String(); got != "Hello world\nSecond line\n" {
		t.Fatalf("Expected both lines, got %q", got)
	}
}

func TestRunHTMLFileJSON(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(samplePage), 0o644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	var stdout, stderr bytes.Buffer
	err := runWithArgs(context.Background(),
		[]string{"rectcopy-cli", "-html", path, "-rect", "0,0,200,40", "-json"},
		nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("Expected valid JSON, got %v\n%s", err, stdout.String())
	}
	if res.Text != "Hello world" || res.Source != path || res.Frame != "main" {
		t.Fatalf("Unexpected result %+v", res)
	}
	if res.CharCount != len("Hello world") || len(res.Fragments) == 0 {
		t.Fatalf("Expected count and fragments, got %+v", res)
	}
}

func TestRunJSONEmptyArea(t *testing.T) {
	isolateEnv(t)
	var stdout, stderr bytes.Buffer
	err := runWithArgs(context.Background(),
		[]string{"rectcopy-cli", "--html", "-", "--rect", "600,500,50,50", "--json"},
		strings.NewReader(samplePage), &stdout, &stderr)
	if err != nil {
		t.Fatalf("Expected an empty result to succeed, got %v", err)
	}
	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("Expected valid JSON, got %v\n%s", err, stdout.String())
	}
	if res.Text != "" || res.CharCount != 0 || len(res.Fragments) != 0 {
		t.Fatalf("Expected an empty result, got %+v", res)
	}
	if diff := cmp.Diff(geom.FromXYWH(600, 500, 50, 50), res.Rect); diff != "" {
		t.Fatalf("Rect mismatch (-want +got):\n%s", diff)
	}
}

func TestRunErrors(t *testing.T) {
	isolateEnv(t)
	tests := []struct {
		name string
		args []string
		want error
		msg  string
	}{
		{name: "no source", args: []string{"--rect", "0,0,10,10"}, msg: "html"},
		{name: "both sources", args: []string{"--html", "-", "--url", "about:blank", "--rect", "0,0,10,10"}, msg: "html"},
		{name: "missing rect", args: []string{"--html", "-"}, msg: "rect"},
		{name: "unknown frame", args: []string{"--html", "-", "--rect", "0,0,10,10", "--frame", "nope"}, msg: "frame"},
		{name: "scroll with url", args: []string{"--url", "about:blank", "--rect", "0,0,10,10", "--scroll", "0,5"}, msg: "--scroll"},
		{name: "too small", args: []string{"--html", "-", "--rect", "0,0,2,40"}, want: session.ErrSelectionTooSmall},
		{name: "empty area", args: []string{"--html", "-", "--rect", "600,500,50,50"}, want: session.ErrNoText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"rectcopy-cli"}, tt.args...)
			err := runWithArgs(context.Background(), args, strings.NewReader(samplePage), &stdout, &stderr)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
			if tt.msg != "" && !strings.Contains(err.Error(), tt.msg) {
				t.Fatalf("Expected error mentioning %q, got %v", tt.msg, err)
			}
			if stdout.Len() != 0 {
				t.Fatalf("Expected no output, got %q", stdout.String())
			}
		})
	}
}
