// Package session is the one-shot pipeline behind the CLI: take a
// rectangle, apply the accidental-click policy, extract and deliver.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"pkt.systems/pslog"

	"rectcopy/src/clipboard"
	"rectcopy/src/geom"
	"rectcopy/src/logutil"
)

var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrSelectionTooSmall  = errors.New("selection too small")
	ErrNoText             = errors.New("no text found")
)

// DefaultMinDragSize matches the resident's accidental-click threshold.
const DefaultMinDragSize = 2.0

// SelectFunc produces the selection rectangle, or cancelled=true.
type SelectFunc func(ctx context.Context) (rect geom.Rect, cancelled bool, err error)

// ExtractFunc returns the text inside rect.
type ExtractFunc func(ctx context.Context, rect geom.Rect) (string, error)

// ResultTarget receives the outcome.
type ResultTarget interface {
	OnSuccess(text string) error
	OnFailure(err error) error
}

type Options struct {
	Select      SelectFunc
	Extract     ExtractFunc
	Target      ResultTarget
	MinDragSize float64
	Deadline    time.Duration
}

type Result struct {
	Rect geom.Rect
	Text string
}

// Execute runs one selection through to its target. The target is told
// about every failure, including cancellation and empty results.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Select == nil {
		return Result{}, errors.New("Select is required")
	}
	if opts.Extract == nil {
		return Result{}, errors.New("Extract is required")
	}
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}
	logger := pslog.Ctx(ctx)
	fail := func(err error) (Result, error) {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	rect, cancelled, err := opts.Select(ctx)
	if err != nil {
		return fail(fmt.Errorf("select: %w", err))
	}
	if cancelled {
		return fail(ErrSelectionCancelled)
	}
	minDrag := opts.MinDragSize
	if !(minDrag > 0) {
		minDrag = DefaultMinDragSize
	}
	if rect.Width <= minDrag || rect.Height <= minDrag {
		logger.Debug("selection too small", "width", rect.Width, "height", rect.Height)
		return fail(ErrSelectionTooSmall)
	}

	jobCtx := ctx
	if opts.Deadline > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, opts.Deadline)
		defer cancel()
	}
	text, err := opts.Extract(jobCtx, rect)
	if err != nil {
		return fail(fmt.Errorf("extract: %w", err))
	}
	if text == "" {
		logger.Info("no text found", "rect", rect.String())
		return fail(ErrNoText)
	}
	if err := opts.Target.OnSuccess(text); err != nil {
		return fail(fmt.Errorf("deliver: %w", err))
	}
	logger.Info("text delivered", "chars", len([]rune(text)), "text", logutil.Sanitize(text, 60))
	return Result{Rect: rect, Text: text}, nil
}

// FixedRect selects r without user interaction.
func FixedRect(r geom.Rect) SelectFunc {
	return func(context.Context) (geom.Rect, bool, error) { return r, false, nil }
}

// ClipboardTarget writes the text to a clipboard sink, the system
// clipboard when Sink is nil.
type ClipboardTarget struct {
	Sink clipboard.Sink
}

func (t ClipboardTarget) OnSuccess(text string) error {
	sink := t.Sink
	if sink == nil {
		sink = clipboard.System{}
	}
	return sink.Write(text)
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

// StdoutTarget prints the text.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(text string) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// Targets fans out to several targets. OnSuccess stops at the first error.
type Targets []ResultTarget

func (ts Targets) OnSuccess(text string) error {
	for _, t := range ts {
		if err := t.OnSuccess(text); err != nil {
			return err
		}
	}
	return nil
}

func (ts Targets) OnFailure(err error) error {
	var errs []error
	for _, t := range ts {
		errs = append(errs, t.OnFailure(err))
	}
	return errors.Join(errs...)
}
