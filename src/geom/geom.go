// Package geom holds the viewport geometry shared by the extraction engine,
// the layout backends and the frame controllers.
package geom

import (
	"fmt"
	"math"
)

// Point is a position in viewport coordinates.
type Point struct {
	X, Y float64
}

// Add returns p shifted by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Rect is an axis-aligned rectangle in viewport coordinates. Width and
// Height are kept in sync with the edges by the constructors; a Rect built
// by hand must satisfy Right >= Left and Bottom >= Top.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FromEdges builds a rectangle from its four edges, normalising inverted
// edges.
func FromEdges(left, top, right, bottom float64) Rect {
	if right < left {
		left, right = right, left
	}
	if bottom < top {
		top, bottom = bottom, top
	}
	return Rect{
		Top:    top,
		Left:   left,
		Bottom: bottom,
		Right:  right,
		Width:  right - left,
		Height: bottom - top,
	}
}

// FromXYWH builds a rectangle from an origin and a size. Negative sizes
// collapse to zero.
func FromXYWH(x, y, w, h float64) Rect {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Rect{Top: y, Left: x, Bottom: y + h, Right: x + w, Width: w, Height: h}
}

// FromPoints returns the rectangle spanned by a drag anchor and the current
// pointer position, in whichever direction the drag went.
func FromPoints(a, b Point) Rect {
	return FromEdges(math.Min(a.X, b.X), math.Min(a.Y, b.Y), math.Max(a.X, b.X), math.Max(a.Y, b.Y))
}

// Degenerate reports whether r has no area. NaN sizes count as degenerate.
func (r Rect) Degenerate() bool {
	return !(r.Width > 0) || !(r.Height > 0)
}

// Intersects reports whether r and o overlap. Rectangles that only share an
// edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return !(o.Left >= r.Right || o.Right <= r.Left || o.Top >= r.Bottom || o.Bottom <= r.Top)
}

// Intersection returns the overlap of r and o. The result may be degenerate;
// callers check Degenerate before using it.
func (r Rect) Intersection(o Rect) Rect {
	top := math.Max(r.Top, o.Top)
	left := math.Max(r.Left, o.Left)
	bottom := math.Min(r.Bottom, o.Bottom)
	right := math.Min(r.Right, o.Right)
	return Rect{
		Top:    top,
		Left:   left,
		Bottom: bottom,
		Right:  right,
		Width:  right - left,
		Height: bottom - top,
	}
}

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return FromEdges(math.Min(r.Left, o.Left), math.Min(r.Top, o.Top), math.Max(r.Right, o.Right), math.Max(r.Bottom, o.Bottom))
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{
		Top:    r.Top + dy,
		Left:   r.Left + dx,
		Bottom: r.Bottom + dy,
		Right:  r.Right + dx,
		Width:  r.Width,
		Height: r.Height,
	}
}

// Inset shrinks r by d on every side. An axis smaller than 2d collapses to
// its centre line.
func (r Rect) Inset(d float64) Rect {
	cx, cy := (r.Left+r.Right)/2, (r.Top+r.Bottom)/2
	return FromEdges(
		math.Min(r.Left+d, cx), math.Min(r.Top+d, cy),
		math.Max(r.Right-d, cx), math.Max(r.Bottom-d, cy),
	)
}

// TopLeft returns the top-left corner.
func (r Rect) TopLeft() Point { return Point{X: r.Left, Y: r.Top} }

// BottomRight returns the bottom-right corner.
func (r Rect) BottomRight() Point { return Point{X: r.Right, Y: r.Bottom} }

// Clamp returns p moved inside r.
func (r Rect) Clamp(p Point) Point {
	return Point{
		X: math.Min(math.Max(p.X, r.Left), r.Right),
		Y: math.Min(math.Max(p.Y, r.Top), r.Bottom),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.1f,%.1f %.1fx%.1f]", r.Left, r.Top, r.Width, r.Height)
}
