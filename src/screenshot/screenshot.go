// Package screenshot saves debug captures of finished selections.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/kbinani/screenshot"
	"pkt.systems/pslog"

	"rectcopy/src/geom"
)

// DefaultMargin is how many pixels of context are kept around a selection.
const DefaultMargin = 16

var outlineColor = color.RGBA{R: 0x00, G: 0x7b, B: 0xff, A: 0xff}

// Region represents a screen region to capture
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FromRect rounds r outwards to whole pixels.
func FromRect(r geom.Rect) Region {
	x0, y0 := int(math.Floor(r.Left)), int(math.Floor(r.Top))
	x1, y1 := int(math.Ceil(r.Right)), int(math.Ceil(r.Bottom))
	return Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Region) bounds() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// VirtualBounds returns the union of all active displays.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// CaptureRegion captures a specific region of the screen as PNG.
func CaptureRegion(region Region) ([]byte, error) {
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	img, err := screenshot.CaptureRect(region.bounds())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	return encode(img)
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Recorder writes a PNG of each selection, with some surrounding context
// and the selection outlined, into Dir.
type Recorder struct {
	Dir    string
	Margin int
	Logger pslog.Logger

	// grab and bounds default to the screen; tests replace them.
	grab   func(image.Rectangle) (*image.RGBA, error)
	bounds func() (image.Rectangle, error)
	now    func() time.Time
}

// NewRecorder returns a recorder writing into dir.
func NewRecorder(dir string, logger pslog.Logger) *Recorder {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Recorder{
		Dir:    dir,
		Margin: DefaultMargin,
		Logger: logger.With("component", "screenshot"),
		grab:   screenshot.CaptureRect,
		bounds: VirtualBounds,
		now:    time.Now,
	}
}

// Record captures sel, given in screen pixels, and returns the file path.
func (r *Recorder) Record(sel geom.Rect) (string, error) {
	region := FromRect(sel)
	if region.Width <= 0 || region.Height <= 0 {
		return "", fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	area := region.bounds().Inset(-r.Margin)
	if screen, err := r.bounds(); err == nil {
		area = area.Intersect(screen)
	}
	if area.Empty() {
		return "", fmt.Errorf("selection %v is off screen", region.bounds())
	}
	img, err := r.grab(area)
	if err != nil {
		return "", fmt.Errorf("failed to capture region: %w", err)
	}
	outline(img, region.bounds().Sub(area.Min))
	data, err := encode(img)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	name := fmt.Sprintf("selection-%s.png", r.now().Format("20060102-150405.000"))
	path := filepath.Join(r.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	r.Logger.Debug("selection captured", "path", path, "x", region.X, "y", region.Y, "width", region.Width, "height", region.Height)
	return path, nil
}

// outline draws a one pixel border just inside r, in image-local
// coordinates relative to the image origin.
func outline(img *image.RGBA, r image.Rectangle) {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, outlineColor)
		img.SetRGBA(x, r.Max.Y-1, outlineColor)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, outlineColor)
		img.SetRGBA(r.Max.X-1, y, outlineColor)
	}
}
