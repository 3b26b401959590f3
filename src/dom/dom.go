// Package dom is the rendered-document model the extraction engine works
// against: elements with computed style and bounds, text leaves with their
// line boxes, and a caret hit test over those boxes.
//
// Backends (htmllayout, cdpsnap) build a Tree; tests build one by hand.
package dom

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"rectcopy/src/geom"
)

// Style is the subset of computed style the visibility filter reads, as
// computed-style strings. Empty fields mean unknown.
type Style struct {
	Display    string
	Visibility string
	Opacity    string
}

// DefaultStyle is the style of an element nothing is known about.
func DefaultStyle() Style {
	return Style{Display: "inline", Visibility: "visible", Opacity: "1"}
}

// Transparent reports whether the computed opacity is zero.
func (s Style) Transparent() bool {
	if s.Opacity == "" {
		return false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Opacity), 64)
	return err == nil && v == 0
}

// Element is a rendered element.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Style    Style
	Parent   *Element
	Bounds   geom.Rect // viewport coordinates
	Selected bool      // option elements
	Disabled bool      // form controls

	children []Node
}

// Node is an element or a text leaf.
type Node interface {
	parent() *Element
}

func (e *Element) parent() *Element { return e.Parent }
func (t *Text) parent() *Element    { return t.Parent }

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil || e.Attrs == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// HasClass reports whether the class attribute contains name.
func (e *Element) HasClass(name string) bool {
	cls, ok := e.Attr("class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(cls) {
		if c == name {
			return true
		}
	}
	return false
}

// Closest returns e or its nearest ancestor with the given tag.
func (e *Element) Closest(tag string) *Element {
	for n := e; n != nil; n = n.Parent {
		if n.Tag == tag {
			return n
		}
	}
	return nil
}

// Children returns the child nodes in document order.
func (e *Element) Children() []Node { return e.children }

// TextContent concatenates the values of every text leaf under e in
// document order.
func (e *Element) TextContent() string {
	var b strings.Builder
	e.appendText(&b)
	return b.String()
}

func (e *Element) appendText(b *strings.Builder) {
	for _, c := range e.children {
		switch n := c.(type) {
		case *Text:
			b.WriteString(n.Value)
		case *Element:
			n.appendText(b)
		}
	}
}

// LineBox is one visual line of a text leaf. Start and End are rune offsets
// into the leaf's Value; Advances, when present, holds one width per rune.
type LineBox struct {
	Rect     geom.Rect
	Start    int
	End      int
	Advances []float64
}

// Text is a text-bearing leaf.
type Text struct {
	Value  string
	Parent *Element
	Boxes  []LineBox
}

// Len returns the number of runes in Value.
func (t *Text) Len() int { return utf8.RuneCountInString(t.Value) }

// Slice returns the runes in [start, end) of Value, clamped to bounds.
func (t *Text) Slice(start, end int) string {
	r := []rune(t.Value)
	if start < 0 {
		start = 0
	}
	if end > len(r) {
		end = len(r)
	}
	if start >= end {
		return ""
	}
	return string(r[start:end])
}

// Caret is a resolved position inside a text leaf.
type Caret struct {
	Node   *Text
	Offset int
}

// Document is what the extraction engine needs from a rendered frame.
type Document interface {
	// Viewport is the visible area of the frame in its own coordinates.
	Viewport() geom.Rect
	// Leaves returns every text leaf in document order.
	Leaves() []*Text
	// ComputedStyle returns the element's computed style.
	ComputedStyle(el *Element) Style
	// CaretAt resolves a viewport point to a caret, or reports false.
	CaretAt(p geom.Point) (Caret, bool)
}
