package dom

import (
	"rectcopy/src/geom"
)

// MainFrameID names the top-level frame when the backend has no id of its own.
const MainFrameID = "main"

// Frame is one rendering context of a page. Bounds is where the frame's
// viewport sits inside its parent's viewport; it is zero-origin for the
// main frame.
type Frame struct {
	ID       string
	ParentID string
	URL      string
	Bounds   geom.Rect
	Doc      *Tree
}

// Page is every frame of one tab, main frame first.
type Page struct {
	Frames []*Frame
}

// Main returns the top-level frame, or nil for an empty page.
func (p *Page) Main() *Frame {
	if p == nil || len(p.Frames) == 0 {
		return nil
	}
	return p.Frames[0]
}

// Frame returns the frame with the given id.
func (p *Page) Frame(id string) *Frame {
	if p == nil {
		return nil
	}
	for _, f := range p.Frames {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// Origin returns the absolute offset of f's viewport inside the main
// frame's viewport.
func (p *Page) Origin(f *Frame) geom.Point {
	var o geom.Point
	seen := map[string]bool{}
	for f != nil && f.ParentID != "" && !seen[f.ID] {
		seen[f.ID] = true
		o = o.Add(f.Bounds.Left, f.Bounds.Top)
		f = p.Frame(f.ParentID)
	}
	return o
}

// FrameAt returns the deepest frame whose viewport contains the top-level
// point p, together with p in that frame's own coordinates.
func (p *Page) FrameAt(pt geom.Point) (*Frame, geom.Point) {
	best := p.Main()
	if best == nil {
		return nil, pt
	}
	depth := 0
	for _, f := range p.Frames[1:] {
		o := p.Origin(f)
		area := geom.FromXYWH(o.X, o.Y, f.Bounds.Width, f.Bounds.Height)
		if !area.Contains(pt) {
			continue
		}
		if d := p.depth(f); d > depth {
			best, depth = f, d
		}
	}
	o := p.Origin(best)
	return best, geom.Point{X: pt.X - o.X, Y: pt.Y - o.Y}
}

func (p *Page) depth(f *Frame) int {
	d := 0
	seen := map[string]bool{}
	for f != nil && f.ParentID != "" && !seen[f.ID] {
		seen[f.ID] = true
		d++
		f = p.Frame(f.ParentID)
	}
	return d
}
