package browser

import (
	"rectcopy/src/geom"
)

const metricsScript = `({
	screenX: window.screenX,
	screenY: window.screenY,
	outerWidth: window.outerWidth,
	outerHeight: window.outerHeight,
	innerWidth: window.innerWidth,
	innerHeight: window.innerHeight,
	devicePixelRatio: window.devicePixelRatio || 1
})`

// WindowMetrics is the browser window geometry in CSS pixels.
type WindowMetrics struct {
	ScreenX          float64 `json:"screenX"`
	ScreenY          float64 `json:"screenY"`
	OuterWidth       float64 `json:"outerWidth"`
	OuterHeight      float64 `json:"outerHeight"`
	InnerWidth       float64 `json:"innerWidth"`
	InnerHeight      float64 `json:"innerHeight"`
	DevicePixelRatio float64 `json:"devicePixelRatio"`
}

// ViewportOrigin is the screen position of the viewport's top-left corner,
// in CSS pixels. The side borders are assumed equal and the browser chrome
// sits above the viewport.
func (m WindowMetrics) ViewportOrigin() geom.Point {
	border := max((m.OuterWidth-m.InnerWidth)/2, 0)
	return geom.Point{
		X: m.ScreenX + border,
		Y: m.ScreenY + max(m.OuterHeight-m.InnerHeight-border, 0),
	}
}

// ToViewport maps a point in physical screen pixels into the viewport.
func (m WindowMetrics) ToViewport(screen geom.Point) geom.Point {
	dpr := m.DevicePixelRatio
	if !(dpr > 0) {
		dpr = 1
	}
	o := m.ViewportOrigin()
	return geom.Point{X: screen.X/dpr - o.X, Y: screen.Y/dpr - o.Y}
}

// ToScreen maps a viewport rectangle back into physical screen pixels.
func (m WindowMetrics) ToScreen(r geom.Rect) geom.Rect {
	dpr := m.DevicePixelRatio
	if !(dpr > 0) {
		dpr = 1
	}
	o := m.ViewportOrigin()
	return geom.FromXYWH((r.Left+o.X)*dpr, (r.Top+o.Y)*dpr, r.Width*dpr, r.Height*dpr)
}

// Viewport is the viewport rectangle in its own coordinates.
func (m WindowMetrics) Viewport() geom.Rect {
	return geom.FromXYWH(0, 0, m.InnerWidth, m.InnerHeight)
}
