package htmllayout

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"rectcopy/src/dom"
	"rectcopy/src/extract"
	"rectcopy/src/geom"
)

func layout(t *testing.T, src string, opts Options) *dom.Page {
	t.Helper()
	page, err := ParseString(src, opts)
	if err != nil {
		t.Fatalf("Expected layout to succeed, got %v", err)
	}
	return page
}

func boxes(leaf *dom.Text) []geom.Rect {
	var out []geom.Rect
	for _, b := range leaf.Boxes {
		out = append(out, b.Rect)
	}
	return out
}

func leafWith(t *testing.T, doc *dom.Tree, value string) *dom.Text {
	t.Helper()
	for _, l := range doc.Leaves() {
		if l.Value == value {
			return l
		}
	}
	t.Fatalf("Expected a leaf with value %q", value)
	return nil
}

func elementByID(root *dom.Element, id string) *dom.Element {
	if v, _ := root.Attr("id"); v == id {
		return root
	}
	for _, c := range root.Children() {
		if el, ok := c.(*dom.Element); ok {
			if found := elementByID(el, id); found != nil {
				return found
			}
		}
	}
	return nil
}

func extractText(t *testing.T, doc dom.Document, sel geom.Rect) string {
	t.Helper()
	got, err := extract.New(doc, extract.Options{}).Extract(sel)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	return got
}

func TestParagraphUsesDefaultMargins(t *testing.T) {
	page := layout(t, "<p>Hello world</p>", Options{})
	leaf := leafWith(t, page.Main().Doc, "Hello world")

	want := []geom.Rect{geom.FromXYWH(8, 16, 88, 16)}
	if diff := cmp.Diff(want, boxes(leaf)); diff != "" {
		t.Fatalf("Line boxes mismatch (-want +got):\n%s", diff)
	}
	if vp := page.Main().Doc.Viewport(); vp != geom.FromXYWH(0, 0, 1280, 800) {
		t.Fatalf("Expected default viewport, got %s", vp)
	}
}

func TestWordWrap(t *testing.T) {
	page := layout(t, `<body style="margin:0"><div style="width:80px">alpha   beta
		gamma</div></body>`, Options{})
	leaf := leafWith(t, page.Main().Doc, "alpha beta gamma")

	want := []dom.LineBox{
		{Rect: geom.FromXYWH(0, 0, 88, 16), Start: 0, End: 11, Advances: []float64{8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8}},
		{Rect: geom.FromXYWH(0, 16, 40, 16), Start: 11, End: 16, Advances: []float64{8, 8, 8, 8, 8}},
	}
	if diff := cmp.Diff(want, leaf.Boxes); diff != "" {
		t.Fatalf("Line boxes mismatch (-want +got):\n%s", diff)
	}
}

func TestWideRunesTakeTwoCells(t *testing.T) {
	page := layout(t, `<body style="margin:0">a中b</body>`, Options{})
	leaf := leafWith(t, page.Main().Doc, "a中b")

	if diff := cmp.Diff([]float64{8, 16, 8}, leaf.Boxes[0].Advances); diff != "" {
		t.Fatalf("Advances mismatch (-want +got):\n%s", diff)
	}
	if w := leaf.Boxes[0].Rect.Width; w != 32 {
		t.Fatalf("Expected width 32, got %v", w)
	}
}

func TestInlineElementsAndBreaks(t *testing.T) {
	page := layout(t, `<body style="margin:0"><p style="margin:0"><span id="s">ab</span> <b>cd</b><br>ef</p></body>`, Options{})
	doc := page.Main().Doc

	span := elementByID(doc.Root(), "s")
	if span == nil {
		t.Fatal("Expected span element")
	}
	if span.Bounds != geom.FromXYWH(0, 0, 16, 16) {
		t.Fatalf("Expected span bounds from its text, got %s", span.Bounds)
	}
	if got := boxes(leafWith(t, doc, "cd")); got[0] != geom.FromXYWH(24, 0, 16, 16) {
		t.Fatalf("Expected cd after the collapsed space, got %s", got[0])
	}
	if got := boxes(leafWith(t, doc, "ef")); got[0] != geom.FromXYWH(0, 16, 16, 16) {
		t.Fatalf("Expected ef on the next line, got %s", got[0])
	}
	if got := extractText(t, doc, geom.FromXYWH(0, 0, 200, 40)); got != "ab cd\nef" {
		t.Fatalf("Expected %q, got %q", "ab cd\nef", got)
	}
}

func TestHiddenContentHasNoBoxes(t *testing.T) {
	src := `<html><head><title>Title</title><style>p{}</style></head>
	<body style="margin:0">
	<div hidden>attr hidden</div>
	<span style="display:none">display none</span>
	<script>var x = 1;</script>
	<div style="visibility:hidden"><span>invisible</span></div>
	<p style="margin:0">shown</p>
	</body></html>`
	page := layout(t, src, Options{})
	doc := page.Main().Doc

	for _, v := range []string{"Title", "attr hidden", "display none", "var x = 1;"} {
		if leaf := leafWith(t, doc, v); len(leaf.Boxes) != 0 {
			t.Fatalf("Expected %q to have no line boxes, got %v", v, boxes(leaf))
		}
	}
	if leaf := leafWith(t, doc, "invisible"); leaf.Parent.Style.Visibility != "hidden" {
		t.Fatalf("Expected visibility to inherit, got %+v", leaf.Parent.Style)
	}
	if got := extractText(t, doc, geom.FromXYWH(0, 0, 400, 200)); got != "shown" {
		t.Fatalf("Expected only visible text, got %q", got)
	}
}

func TestAbsolutePositioning(t *testing.T) {
	src := `<body style="margin:0">
	<div style="position:absolute;left:100px;top:200px">Far</div>
	<div>Near</div>
	<div style="position:relative;margin-left:300px">Box<span style="position:absolute;left:10px;top:40px">Inner</span></div>
	</body>`
	page := layout(t, src, Options{})
	doc := page.Main().Doc

	tests := []struct {
		value string
		want  geom.Rect
	}{
		{"Far", geom.FromXYWH(100, 200, 24, 16)},
		{"Near", geom.FromXYWH(0, 0, 32, 16)},
		{"Box", geom.FromXYWH(300, 16, 24, 16)},
		{"Inner", geom.FromXYWH(310, 56, 40, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got := boxes(leafWith(t, doc, tt.value))
			if len(got) != 1 || got[0] != tt.want {
				t.Fatalf("Expected %s, got %v", tt.want, got)
			}
		})
	}
	if got := extractText(t, doc, geom.FromXYWH(0, 0, 400, 300)); got != "Near\nBox\nInner\nFar" {
		t.Fatalf("Expected visual order, got %q", got)
	}
}

func TestScrollShiftsIntoViewport(t *testing.T) {
	page := layout(t, "<p>Hello world</p>", Options{Scroll: geom.Point{X: 4, Y: 10}})
	leaf := leafWith(t, page.Main().Doc, "Hello world")
	if got := leaf.Boxes[0].Rect; got != geom.FromXYWH(4, 6, 88, 16) {
		t.Fatalf("Expected scrolled box, got %s", got)
	}
}

func TestPreformattedText(t *testing.T) {
	page := layout(t, "<body style=\"margin:0\"><pre style=\"margin:0\">a  b\ncd</pre></body>", Options{})
	leaf := leafWith(t, page.Main().Doc, "a  b\ncd")

	want := []geom.Rect{geom.FromXYWH(0, 0, 32, 16), geom.FromXYWH(0, 16, 16, 16)}
	if diff := cmp.Diff(want, boxes(leaf)); diff != "" {
		t.Fatalf("Line boxes mismatch (-want +got):\n%s", diff)
	}
}

func TestTableCellsAreSpaced(t *testing.T) {
	page := layout(t, `<body style="margin:0"><table><tr><td>A</td><td>B</td></tr><tr><td>C</td><td>D</td></tr></table></body>`, Options{})
	if got := extractText(t, page.Main().Doc, geom.FromXYWH(0, 0, 200, 100)); got != "A B\nC D" {
		t.Fatalf("Expected a two by two grid, got %q", got)
	}
}

func TestSelectShowsChosenOption(t *testing.T) {
	src := `<body style="margin:0"><select id="pick" disabled>
	<option>One</option>
	<option selected style="visibility:hidden;opacity:0">  Second choice </option>
	</select></body>`
	page := layout(t, src, Options{})
	doc := page.Main().Doc

	sel := elementByID(doc.Root(), "pick")
	if sel == nil || !sel.Disabled {
		t.Fatalf("Expected a disabled select, got %+v", sel)
	}
	if sel.Bounds != geom.FromXYWH(0, 0, 128, 16) {
		t.Fatalf("Expected select sized to the longest option, got %s", sel.Bounds)
	}
	if got := extractText(t, doc, geom.FromXYWH(0, 0, 200, 30)); got != "Second choice" {
		t.Fatalf("Expected the selected option's text, got %q", got)
	}
}

func TestSelectDefaultsToFirstOption(t *testing.T) {
	page := layout(t, `<select><optgroup label="g"><option>First</option><option>Other</option></optgroup></select>`, Options{})
	var selected []string
	for _, l := range page.Main().Doc.Leaves() {
		if l.Parent.Tag == "option" && l.Parent.Selected {
			selected = append(selected, l.Value)
		}
	}
	if diff := cmp.Diff([]string{"First"}, selected); diff != "" {
		t.Fatalf("Selected options mismatch (-want +got):\n%s", diff)
	}
}

func TestSrcdocIframeBecomesChildFrame(t *testing.T) {
	src := `<body style="margin:0"><p style="margin:0">Top</p>` +
		`<iframe width="200" height="100" srcdoc="<body style='margin:0'>Inner text</body>"></iframe></body>`
	page := layout(t, src, Options{})

	if len(page.Frames) != 2 {
		t.Fatalf("Expected two frames, got %d", len(page.Frames))
	}
	child := page.Frames[1]
	if child.ID != "frame-1" || child.ParentID != dom.MainFrameID {
		t.Fatalf("Expected frame-1 under main, got %+v", child)
	}
	if child.Bounds != geom.FromXYWH(0, 16, 200, 100) {
		t.Fatalf("Expected frame bounds below the paragraph, got %s", child.Bounds)
	}
	if vp := child.Doc.Viewport(); vp != geom.FromXYWH(0, 0, 200, 100) {
		t.Fatalf("Expected frame viewport sized to the iframe, got %s", vp)
	}

	f, local := page.FrameAt(geom.Point{X: 10, Y: 20})
	if f != child || local != (geom.Point{X: 10, Y: 4}) {
		t.Fatalf("Expected point inside frame-1 at (10,4), got %s %+v", f.ID, local)
	}
	if got := extractText(t, child.Doc, geom.FromXYWH(0, 0, 200, 100)); got != "Inner text" {
		t.Fatalf("Expected frame text, got %q", got)
	}
	// Selection never crosses frame boundaries.
	if got := extractText(t, page.Main().Doc, geom.FromXYWH(0, 0, 400, 200)); got != "Top" {
		t.Fatalf("Expected only main frame text, got %q", got)
	}
}
