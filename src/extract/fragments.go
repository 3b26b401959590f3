package extract

import (
	"fmt"
	"strings"

	"rectcopy/src/dom"
	"rectcopy/src/geom"
)

type collector struct {
	doc     dom.Document
	sel     geom.Rect
	epsilon float64
	bounds  geom.Rect
	seen    map[string]bool
	out     []Fragment

	fallbacks int
}

func (c *collector) visit(leaf *dom.Text) {
	if leaf == nil || strings.TrimSpace(leaf.Value) == "" {
		return
	}
	if !visible(c.doc, leaf) {
		return
	}
	produced := false
	for _, box := range leaf.Boxes {
		if c.clip(leaf, box) {
			produced = true
		}
	}
	if !produced {
		c.optionFallback(leaf)
	}
}

// clip cuts the part of leaf that box and the selection share and records
// it. It reports whether a fragment was recorded.
func (c *collector) clip(leaf *dom.Text, box dom.LineBox) bool {
	if box.Rect.Degenerate() || !box.Rect.Intersects(c.sel) {
		return false
	}
	in := box.Rect.Intersection(c.sel)
	if in.Degenerate() {
		return false
	}

	probe := in.Inset(c.epsilon)
	start := c.resolve(leaf, probe.TopLeft(), 0)
	end := c.resolve(leaf, probe.BottomRight(), leaf.Len())
	if start > end {
		start, end = end, start
	}
	return c.add(Clean(leaf.Slice(start, end)), box.Rect)
}

// resolve hit-tests p and returns the caret offset inside leaf, or fallback
// when the probe misses or lands in another leaf.
func (c *collector) resolve(leaf *dom.Text, p geom.Point, fallback int) int {
	if !c.bounds.Degenerate() {
		p = c.bounds.Clamp(p)
	}
	caret, ok := c.doc.CaretAt(p)
	if !ok || caret.Node != leaf {
		return fallback
	}
	return caret.Offset
}

// optionFallback handles form controls: a native select paints its value
// without exposing per-glyph hit testing, so the whole option text is taken
// with the control's box when the control is under the selection.
func (c *collector) optionFallback(leaf *dom.Text) {
	opt := selectedOption(leaf)
	if opt == nil {
		return
	}
	control := opt.Closest("select")
	if control == nil || control.Bounds.Degenerate() || !control.Bounds.Intersects(c.sel) {
		return
	}
	if c.add(Clean(opt.TextContent()), control.Bounds) {
		c.fallbacks++
	}
}

func (c *collector) add(text string, rect geom.Rect) bool {
	if text == "" {
		return false
	}
	key := fmt.Sprintf("%.2f:%.2f:%.2f:%.2f|%s", rect.Left, rect.Top, rect.Right, rect.Bottom, text)
	if c.seen[key] {
		return false
	}
	c.seen[key] = true
	c.out = append(c.out, Fragment{Text: text, Rect: rect})
	return true
}

// Clean collapses every run of newlines, tabs and carriage returns into one
// space and trims surrounding whitespace.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
