// Package extract turns a rectangle drawn over a rendered frame into the
// text it visually encloses. Reading order comes from line-box geometry,
// never from DOM order.
package extract

import (
	"errors"
	"fmt"

	"pkt.systems/pslog"

	"rectcopy/src/dom"
	"rectcopy/src/geom"
)

const (
	// DefaultLineBreakThreshold is the overlap, in viewport units, that two
	// vertically adjacent fragments may have and still start a new line.
	DefaultLineBreakThreshold = 5.0
	// DefaultCaretEpsilon insets the intersection corners before hit testing
	// so the probe does not land exactly on a glyph boundary.
	DefaultCaretEpsilon = 0.1
	// spaceGap is the horizontal gap above which same-line fragments are
	// joined by a space.
	spaceGap = 1.0
)

// ErrNoDocument is returned by Extract when the engine has no document.
var ErrNoDocument = errors.New("extract: no document")

// Options tunes the engine. Zero values select the defaults.
type Options struct {
	LineBreakThreshold float64
	CaretEpsilon       float64
	Logger             pslog.Logger
}

// Fragment is a cleaned, single-line piece of text tied to the line box it
// was cut from.
type Fragment struct {
	Text string    `json:"text"`
	Rect geom.Rect `json:"rect"`
}

// Engine extracts text from one frame's document.
type Engine struct {
	doc  dom.Document
	opts Options
}

// New returns an engine over doc.
func New(doc dom.Document, opts Options) *Engine {
	if !(opts.LineBreakThreshold > 0) {
		opts.LineBreakThreshold = DefaultLineBreakThreshold
	}
	if !(opts.CaretEpsilon > 0) {
		opts.CaretEpsilon = DefaultCaretEpsilon
	}
	return &Engine{doc: doc, opts: opts}
}

// Extract returns the text inside sel, one visual line per output line.
// An empty string with a nil error means no text was found; a non-nil
// error means the call itself failed.
func (e *Engine) Extract(sel geom.Rect) (text string, err error) {
	if e == nil || e.doc == nil {
		return "", ErrNoDocument
	}
	defer func() {
		if r := recover(); r != nil {
			e.warn("extraction panicked", "panic", fmt.Sprint(r), "rect", sel.String())
			text, err = "", fmt.Errorf("extract: recovered from panic: %v", r)
		}
	}()
	frags := e.collect(sel)
	if len(frags) == 0 {
		return "", nil
	}
	return Merge(frags, e.opts.LineBreakThreshold), nil
}

// Fragments returns the ordered fragments Extract would merge.
func (e *Engine) Fragments(sel geom.Rect) []Fragment {
	if e == nil || e.doc == nil {
		return nil
	}
	return Order(e.collect(sel))
}

func (e *Engine) collect(sel geom.Rect) []Fragment {
	if sel.Degenerate() {
		return nil
	}
	c := collector{
		doc:     e.doc,
		sel:     sel,
		epsilon: e.opts.CaretEpsilon,
		bounds:  e.doc.Viewport(),
		seen:    map[string]bool{},
	}
	for _, leaf := range e.doc.Leaves() {
		c.visit(leaf)
	}
	e.debug("fragments collected", "rect", sel.String(), "fragments", len(c.out), "fallbacks", c.fallbacks)
	return c.out
}

func (e *Engine) debug(msg string, keyvals ...any) {
	if l := e.opts.Logger; l != nil {
		l.Debug(msg, keyvals...)
	}
}

func (e *Engine) warn(msg string, keyvals ...any) {
	if l := e.opts.Logger; l != nil {
		l.Warn(msg, keyvals...)
	}
}
