package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"rectcopy/src/clipboard"
	"rectcopy/src/geom"
)

type recordingTarget struct {
	texts    []string
	failures []error
	err      error
}

func (r *recordingTarget) OnSuccess(text string) error {
	if r.err != nil {
		return r.err
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingTarget) OnFailure(err error) error {
	r.failures = append(r.failures, err)
	return nil
}

func extractText(text string, err error) ExtractFunc {
	return func(context.Context, geom.Rect) (string, error) { return text, err }
}

func TestExecute(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		sel      SelectFunc
		extract  ExtractFunc
		targetFn func() *recordingTarget
		wantErr  error
		wantText string
	}{
		{
			name:     "success",
			sel:      FixedRect(geom.FromXYWH(0, 0, 100, 20)),
			extract:  extractText("hello", nil),
			wantText: "hello",
		},
		{
			name: "cancelled",
			sel: func(context.Context) (geom.Rect, bool, error) {
				return geom.Rect{}, true, nil
			},
			extract: extractText("hello", nil),
			wantErr: ErrSelectionCancelled,
		},
		{
			name:    "select error",
			sel:     func(context.Context) (geom.Rect, bool, error) { return geom.Rect{}, false, boom },
			extract: extractText("hello", nil),
			wantErr: boom,
		},
		{
			name:    "click",
			sel:     FixedRect(geom.FromXYWH(10, 10, 2, 50)),
			extract: extractText("hello", nil),
			wantErr: ErrSelectionTooSmall,
		},
		{
			name:    "no text",
			sel:     FixedRect(geom.FromXYWH(0, 0, 100, 20)),
			extract: extractText("", nil),
			wantErr: ErrNoText,
		},
		{
			name:    "extract error",
			sel:     FixedRect(geom.FromXYWH(0, 0, 100, 20)),
			extract: extractText("", boom),
			wantErr: boom,
		},
		{
			name:     "delivery error",
			sel:      FixedRect(geom.FromXYWH(0, 0, 100, 20)),
			extract:  extractText("hello", nil),
			targetFn: func() *recordingTarget { return &recordingTarget{err: boom} },
			wantErr:  boom,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{}
			if tt.targetFn != nil {
				target = tt.targetFn()
			}
			res, err := Execute(context.Background(), Options{Select: tt.sel, Extract: tt.extract, Target: target})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				if len(target.failures) != 1 || !errors.Is(target.failures[0], tt.wantErr) {
					t.Fatalf("Expected the target to see %v, got %v", tt.wantErr, target.failures)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected success, got %v", err)
			}
			if res.Text != tt.wantText || len(target.texts) != 1 || target.texts[0] != tt.wantText {
				t.Fatalf("Expected %q delivered, got %+v %v", tt.wantText, res, target.texts)
			}
		})
	}
}

func TestExecuteDeadline(t *testing.T) {
	slow := func(ctx context.Context, _ geom.Rect) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	_, err := Execute(context.Background(), Options{
		Select:   FixedRect(geom.FromXYWH(0, 0, 10, 10)),
		Extract:  slow,
		Target:   &recordingTarget{},
		Deadline: 10 * time.Millisecond,
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
}

func TestExecuteRequiresCollaborators(t *testing.T) {
	if _, err := Execute(context.Background(), Options{}); err == nil {
		t.Fatal("Expected an error without collaborators")
	}
}

func TestTargets(t *testing.T) {
	var buf bytes.Buffer
	mem := &clipboard.Memory{}
	ts := Targets{StdoutTarget{Writer: &buf}, ClipboardTarget{Sink: mem}}
	if err := ts.OnSuccess("two\nlines"); err != nil {
		t.Fatalf("Expected delivery, got %v", err)
	}
	if buf.String() != "two\nlines\n" {
		t.Fatalf("Expected stdout text, got %q", buf.String())
	}
	if last, ok := mem.Last(); !ok || last != "two\nlines" {
		t.Fatalf("Expected clipboard text, got %q", last)
	}
	if err := ts.OnFailure(errors.New("x")); err != nil {
		t.Fatalf("Expected nil, got %v", err)
	}
}
