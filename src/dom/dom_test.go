package dom

import (
	"testing"

	"rectcopy/src/geom"
)

func visible() Style { return Style{Display: "block", Visibility: "visible", Opacity: "1"} }

func TestCaretAtSnapsToCharacterBoundary(t *testing.T) {
	tree := NewTree(geom.FromXYWH(0, 0, 200, 100))
	p := tree.AddElement(nil, "p", visible())
	leaf := tree.AddText(p, "hello", LineBox{Rect: geom.FromXYWH(10, 10, 50, 16), Start: 0, End: 5})

	tests := []struct {
		name string
		x    float64
		want int
	}{
		{"left edge", 10.1, 0},
		{"inside first glyph before midpoint", 14, 0},
		{"past first midpoint", 16, 1},
		{"middle", 35, 3},
		{"right edge", 59.9, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := tree.CaretAt(geom.Point{X: tt.x, Y: 15})
			if !ok {
				t.Fatal("Expected caret resolution")
			}
			if c.Node != leaf {
				t.Fatalf("Expected caret in leaf %q, got %+v", leaf.Value, c.Node)
			}
			if c.Offset != tt.want {
				t.Fatalf("Expected offset %d, got %d", tt.want, c.Offset)
			}
		})
	}

	if _, ok := tree.CaretAt(geom.Point{X: 100, Y: 90}); ok {
		t.Fatal("Expected no resolution outside any line box")
	}
}

func TestCaretAtPrefersLaterLeaf(t *testing.T) {
	tree := NewTree(geom.FromXYWH(0, 0, 200, 100))
	tree.AddText(nil, "under", LineBox{Rect: geom.FromXYWH(0, 0, 50, 16), Start: 0, End: 5})
	over := tree.AddText(nil, "over", LineBox{Rect: geom.FromXYWH(0, 0, 40, 16), Start: 0, End: 4})

	c, ok := tree.CaretAt(geom.Point{X: 5, Y: 5})
	if !ok || c.Node != over {
		t.Fatalf("Expected caret in the painted-over leaf, got %+v ok=%v", c, ok)
	}
}

func TestCaretAtUsesAdvances(t *testing.T) {
	tree := NewTree(geom.FromXYWH(0, 0, 200, 100))
	tree.AddText(nil, "a中b", LineBox{
		Rect:     geom.FromXYWH(0, 0, 32, 16),
		Start:    0,
		End:      3,
		Advances: []float64{8, 16, 8},
	})
	c, ok := tree.CaretAt(geom.Point{X: 17, Y: 8})
	if !ok {
		t.Fatal("Expected caret resolution")
	}
	if c.Offset != 2 {
		t.Fatalf("Expected offset 2 after the wide glyph midpoint, got %d", c.Offset)
	}
}

func TestTextContentAndSlice(t *testing.T) {
	tree := NewTree(geom.FromXYWH(0, 0, 100, 100))
	sel := tree.AddElement(nil, "select", visible())
	opt := tree.AddElement(sel, "option", visible())
	tree.AddText(opt, " First ")
	b := tree.AddElement(opt, "b", visible())
	tree.AddText(b, "Bold")
	tree.AddText(opt, "!")

	if got := opt.TextContent(); got != " First Bold!" {
		t.Fatalf("Expected text content %q, got %q", " First Bold!", got)
	}
	if opt.Closest("select") != sel {
		t.Fatal("Expected Closest to find the select")
	}

	leaf := tree.Leaves()[1]
	if got := leaf.Slice(1, 10); got != "old" {
		t.Fatalf("Expected clamped slice %q, got %q", "old", got)
	}
	if got := leaf.Slice(3, 1); got != "" {
		t.Fatalf("Expected empty slice for inverted range, got %q", got)
	}
}

func TestPageFrameAt(t *testing.T) {
	page := &Page{Frames: []*Frame{
		{ID: "main", Doc: NewTree(geom.FromXYWH(0, 0, 800, 600))},
		{ID: "outer", ParentID: "main", Bounds: geom.FromXYWH(100, 100, 400, 300)},
		{ID: "inner", ParentID: "outer", Bounds: geom.FromXYWH(50, 50, 100, 100)},
	}}

	tests := []struct {
		name      string
		pt        geom.Point
		wantFrame string
		wantLocal geom.Point
	}{
		{"main area", geom.Point{X: 10, Y: 10}, "main", geom.Point{X: 10, Y: 10}},
		{"outer frame", geom.Point{X: 120, Y: 130}, "outer", geom.Point{X: 20, Y: 30}},
		{"nested frame", geom.Point{X: 160, Y: 170}, "inner", geom.Point{X: 10, Y: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, local := page.FrameAt(tt.pt)
			if f.ID != tt.wantFrame {
				t.Fatalf("Expected frame %s, got %s", tt.wantFrame, f.ID)
			}
			if local != tt.wantLocal {
				t.Fatalf("Expected local point %+v, got %+v", tt.wantLocal, local)
			}
		})
	}
}
