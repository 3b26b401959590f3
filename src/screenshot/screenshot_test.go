package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rectcopy/src/geom"
)

func TestFromRect(t *testing.T) {
	tests := []struct {
		name string
		in   geom.Rect
		want Region
	}{
		{"integral", geom.FromXYWH(10, 20, 30, 40), Region{X: 10, Y: 20, Width: 30, Height: 40}},
		{"fractional rounds outwards", geom.FromXYWH(10.5, 20.2, 30, 40), Region{X: 10, Y: 20, Width: 31, Height: 41}},
		{"empty", geom.FromXYWH(5, 5, 0, 0), Region{X: 5, Y: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromRect(tt.in); got != tt.want {
				t.Fatalf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestCaptureRegionRejectsEmpty(t *testing.T) {
	if _, err := CaptureRegion(Region{}); err == nil {
		t.Fatal("Expected error for invalid region dimensions")
	}
}

func TestOutline(t *testing.T) {
	img := image.NewRGBA(image.Rect(100, 100, 110, 110))
	outline(img, image.Rect(2, 2, 6, 6))
	if got := img.RGBAAt(102, 102); got != outlineColor {
		t.Fatalf("Expected outline at the corner, got %v", got)
	}
	if got := img.RGBAAt(105, 103); got != outlineColor {
		t.Fatalf("Expected outline on the right edge, got %v", got)
	}
	if got := img.RGBAAt(103, 103); got != (color.RGBA{}) {
		t.Fatalf("Expected the interior untouched, got %v", got)
	}
}

func TestRecorder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	r := NewRecorder(dir, nil)
	var grabbed image.Rectangle
	r.grab = func(area image.Rectangle) (*image.RGBA, error) {
		grabbed = area
		return image.NewRGBA(area), nil
	}
	r.bounds = func() (image.Rectangle, error) { return image.Rect(0, 0, 200, 200), nil }
	r.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	path, err := r.Record(geom.FromXYWH(5, 50, 40, 20))
	if err != nil {
		t.Fatalf("Expected capture, got %v", err)
	}
	// the margin is clipped at the screen edge
	if want := image.Rect(0, 34, 61, 86); grabbed != want {
		t.Fatalf("Expected capture area %v, got %v", want, grabbed)
	}
	if filepath.Base(path) != "selection-20240506-070809.000.png" {
		t.Fatalf("Unexpected file name %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected file, got %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Expected PNG, got %v", err)
	}
	if b := img.Bounds(); b.Dx() != 61 || b.Dy() != 52 {
		t.Fatalf("Expected 61x52 image, got %v", b)
	}

	if _, err := r.Record(geom.FromXYWH(500, 500, 10, 10)); err == nil {
		t.Fatal("Expected an off-screen selection to fail")
	}
}
