package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const iconSize = 16

var (
	// selection outline colours for the two availability states
	enabledColor  = color.RGBA{R: 0x00, G: 0x7b, B: 0xff, A: 0xff}
	disabledColor = color.RGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xff}

	iconOnce sync.Once
	iconOn   []byte
	iconOff  []byte
)

// Icon returns the tray icon as PNG bytes: a dashed selection rectangle,
// blue when selection is enabled and grey otherwise.
func Icon(enabled bool) []byte {
	iconOnce.Do(func() {
		iconOn = renderIcon(enabledColor)
		iconOff = renderIcon(disabledColor)
	})
	if enabled {
		return iconOn
	}
	return iconOff
}

func renderIcon(c color.RGBA) []byte {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	dash := func(i int) bool { return i%4 != 3 }
	for i := 2; i < iconSize-2; i++ {
		if !dash(i) {
			continue
		}
		img.SetRGBA(i, 2, c)
		img.SetRGBA(i, iconSize-3, c)
		img.SetRGBA(2, i, c)
		img.SetRGBA(iconSize-3, i, c)
	}
	// text lines inside the selection
	for x := 5; x < iconSize-5; x++ {
		img.SetRGBA(x, 6, color.RGBA{A: 0xff})
		img.SetRGBA(x, 9, color.RGBA{A: 0xff})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
