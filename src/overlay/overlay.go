// Package overlay draws selection feedback on top of a frame.
package overlay

import (
	"rectcopy/src/geom"
)

// Color is a drag box border colour.
type Color string

const (
	Selecting  Color = "#007bff"
	Processing Color = "orange"
	Copied     Color = "lightgreen"
	Failed     Color = "red"
)

// Feedback is the visible side of a frame's selection state. Calls come
// from the frame's own goroutine only.
type Feedback interface {
	// ShowBox shows or moves the drag box, in frame viewport coordinates.
	ShowBox(r geom.Rect, c Color)
	// HideBox removes the drag box immediately.
	HideBox()
	// Flash recolours the current box and removes it shortly after.
	Flash(c Color)
	// SetActive switches the selection cursor on or off.
	SetActive(active bool)
}

// Nop is a Feedback that draws nothing.
type Nop struct{}

func (Nop) ShowBox(geom.Rect, Color) {}
func (Nop) HideBox()                 {}
func (Nop) Flash(Color)              {}
func (Nop) SetActive(bool)           {}
