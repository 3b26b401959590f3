// Package frame runs the per-frame selection state machine.
//
// A Controller consumes mouse input and coordinator messages for one frame
// document. It is not safe for concurrent use; a Host owns one Controller
// and serialises everything that reaches it.
package frame

import (
	"context"
	"fmt"
	"time"

	"pkt.systems/pslog"

	"rectcopy/src/clipboard"
	"rectcopy/src/dom"
	"rectcopy/src/extract"
	"rectcopy/src/geom"
	"rectcopy/src/logutil"
	"rectcopy/src/messages"
	"rectcopy/src/overlay"
	"rectcopy/src/popup"
)

// MinDragSize is the accidental-click threshold. A drag whose width or
// height does not exceed it is cancelled.
const MinDragSize = 2.0

// Status messages and how long they stay up.
const (
	MsgCopied          = "Text Copied!"
	MsgNoText          = "No text found"
	MsgCopyFailed      = "Copy Failed!"
	MsgExtractFailed   = "Extraction failed"
	shortStatus        = 1500 * time.Millisecond
	longStatus         = 3000 * time.Millisecond
	defaultHostBacklog = 64
)

// State is the controller state.
type State int

const (
	Idle State = iota
	AwaitingGrant
	Dragging
	Suppressed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingGrant:
		return "awaiting-grant"
	case Dragging:
		return "dragging"
	case Suppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Button numbers follow the global hook's numbering.
type Button int

const (
	ButtonLeft   Button = 1
	ButtonRight  Button = 2
	ButtonMiddle Button = 3
)

// Coordinator is the frame's view of the tab coordinator.
type Coordinator interface {
	RequestStart(ctx context.Context) (bool, error)
	ReportEnd()
	ReportCancel()
}

// Extractor turns a selection rectangle into text.
type Extractor interface {
	Extract(ctx context.Context, sel geom.Rect) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, sel geom.Rect) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, sel geom.Rect) (string, error) {
	return f(ctx, sel)
}

// StaticDocument extracts from a document that does not change.
func StaticDocument(doc dom.Document, opts extract.Options) Extractor {
	engine := extract.New(doc, opts)
	return ExtractorFunc(func(_ context.Context, sel geom.Rect) (string, error) {
		return engine.Extract(sel)
	})
}

// Session is the drag in progress.
type Session struct {
	Anchor  geom.Point
	Current geom.Rect
}

// Result describes a finished drag.
type Result struct {
	Frame     messages.FrameID
	Rect      geom.Rect
	Text      string
	Delivered bool
	Err       error
}

// Options configures a Controller. Nil collaborators fall back to no-op or
// log-only implementations.
type Options struct {
	ID          messages.FrameID
	Coordinator Coordinator
	Extractor   Extractor
	Sink        clipboard.Sink
	Notifier    popup.Notifier
	Feedback    overlay.Feedback
	Logger      pslog.Logger
	MinDragSize float64
	Available   bool
}

// Controller is the state machine of one frame.
type Controller struct {
	id      messages.FrameID
	coord   Coordinator
	ext     Extractor
	sink    clipboard.Sink
	notify  popup.Notifier
	fb      overlay.Feedback
	log     pslog.Logger
	minDrag float64

	state     State
	available bool
	session   *Session
}

// NewController creates a controller in the Idle state.
func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	c := &Controller{
		id:        opts.ID,
		coord:     opts.Coordinator,
		ext:       opts.Extractor,
		sink:      opts.Sink,
		notify:    opts.Notifier,
		fb:        opts.Feedback,
		log:       logger.With("frame", opts.ID),
		minDrag:   opts.MinDragSize,
		available: opts.Available,
	}
	if c.notify == nil {
		c.notify = popup.Log{Logger: c.log}
	}
	if c.fb == nil {
		c.fb = overlay.Nop{}
	}
	if c.sink == nil {
		c.sink = clipboard.System{}
	}
	if !(c.minDrag > 0) {
		c.minDrag = MinDragSize
	}
	return c
}

func (c *Controller) ID() messages.FrameID { return c.id }
func (c *Controller) State() State         { return c.state }
func (c *Controller) Available() bool      { return c.available }

// Session returns the drag in progress.
func (c *Controller) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// MouseDown starts a drag when the left button is pressed in an available,
// idle frame and the coordinator grants the lock.
func (c *Controller) MouseDown(ctx context.Context, b Button, p geom.Point) {
	if b != ButtonLeft || !c.available || c.state != Idle || c.coord == nil {
		return
	}
	c.state = AwaitingGrant
	ok, err := c.coord.RequestStart(ctx)
	switch {
	case err != nil:
		c.log.Warn("start request failed", "err", err)
		c.state = Idle
		return
	case !ok:
		c.log.Debug("start denied")
		c.state = Idle
		return
	}
	c.state = Dragging
	c.session = &Session{Anchor: p, Current: geom.FromPoints(p, p)}
	c.fb.ShowBox(c.session.Current, overlay.Selecting)
	c.log.Debug("drag started", "x", p.X, "y", p.Y)
}

// MouseMove updates the drag box.
func (c *Controller) MouseMove(p geom.Point) {
	if c.state != Dragging || c.session == nil {
		return
	}
	c.session.Current = geom.FromPoints(c.session.Anchor, p)
	c.fb.ShowBox(c.session.Current, overlay.Selecting)
}

// MouseUp finishes the drag: extract, deliver, report. The returned bool is
// false when no drag was in progress or the drag was too small.
func (c *Controller) MouseUp(ctx context.Context, p geom.Point) (Result, bool) {
	if c.state != Dragging || c.session == nil {
		return Result{}, false
	}
	rect := geom.FromPoints(c.session.Anchor, p)
	if rect.Width <= c.minDrag || rect.Height <= c.minDrag {
		c.log.Debug("selection too small", "width", rect.Width, "height", rect.Height)
		c.abort(true)
		return Result{}, false
	}

	c.fb.ShowBox(rect, overlay.Processing)
	res := Result{Frame: c.id, Rect: rect}
	text, err := c.extract(ctx, rect)
	switch {
	case err != nil:
		res.Err = err
		c.log.Error("extraction failed", "err", err)
		c.notify.Show(MsgExtractFailed, longStatus, true)
		c.fb.Flash(overlay.Failed)
	case text == "":
		c.log.Info("no text found", "rect", rect.String())
		c.notify.Show(MsgNoText, shortStatus, true)
		c.fb.HideBox()
	default:
		res.Text = text
		if err := c.sink.Write(text); err != nil {
			res.Err = err
			c.log.Error("copy failed", "err", err)
			c.notify.Show(MsgCopyFailed+" "+err.Error(), longStatus, true)
			c.fb.Flash(overlay.Failed)
			break
		}
		res.Delivered = true
		c.log.Info("text copied", "chars", len([]rune(text)), "text", logutil.Sanitize(text, 60))
		c.notify.Show(MsgCopied, shortStatus, false)
		c.fb.Flash(overlay.Copied)
	}

	c.state = Idle
	c.session = nil
	c.coord.ReportEnd()
	return res, true
}

func (c *Controller) extract(ctx context.Context, rect geom.Rect) (text string, err error) {
	if c.ext == nil {
		return "", fmt.Errorf("frame %s has no document", c.id)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panic: %v", r)
		}
	}()
	return c.ext.Extract(ctx, rect)
}

// Cancel abandons a drag in progress and reports it. It is a no-op when
// nothing is in progress.
func (c *Controller) Cancel() {
	c.abort(true)
}

func (c *Controller) abort(report bool) {
	if c.state == Dragging {
		c.fb.HideBox()
		c.session = nil
		c.state = Idle
		c.log.Debug("drag cancelled", "report", report)
		if report && c.coord != nil {
			c.coord.ReportCancel()
		}
	}
}

// Receive applies a coordinator message.
func (c *Controller) Receive(msg messages.Message) {
	switch m := msg.(type) {
	case messages.SetAvailability:
		c.available = m.Available
		c.fb.SetActive(m.Available)
		if !m.Available {
			// the coordinator already dropped the lock
			c.abort(false)
		}
		if c.state == Suppressed {
			c.state = Idle
		}
	case messages.SuppressOthers:
		if m.OwningFrame != c.id && c.state == Idle {
			c.state = Suppressed
		}
	default:
		c.log.Debug("ignoring message", "type", msg.Type())
	}
}
