package htmllayout

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/width"

	"rectcopy/src/dom"
	"rectcopy/src/geom"
)

// flow is the inline cursor of one block container, in document
// coordinates.
type flow struct {
	left, right float64
	y           float64 // top of the current line
	x           float64
	empty       bool // nothing placed on the current line yet
	space       bool // the last placed rune was a collapsible space
}

func newFlow(left, right, y float64) *flow {
	return &flow{left: left, right: right, y: y, x: left, empty: true}
}

// breakLine ends the current line if anything is on it.
func (f *flow) breakLine(lineHeight float64) {
	if !f.empty {
		f.y += lineHeight
	}
	f.x, f.empty, f.space = f.left, true, false
}

// forceBreak ends the current line even when it is empty, as <br> does.
func (f *flow) forceBreak(lineHeight float64) {
	f.y += lineHeight
	f.x, f.empty, f.space = f.left, true, false
}

// frameLayout lays out one frame's document into its dom.Tree.
type frameLayout struct {
	l      *layouter
	frame  *dom.Frame
	tree   *dom.Tree
	scroll geom.Point
	// origins of positioned ancestors, innermost last
	containers []geom.Point
	// elements laid out as boxes; the rest take their children's bounds
	boxed map[*dom.Element]bool
}

// rect converts a document-space box into viewport coordinates.
func (fl *frameLayout) rect(x, y, w, h float64) geom.Rect {
	return geom.FromXYWH(x-fl.scroll.X, y-fl.scroll.Y, w, h)
}

func (fl *frameLayout) advance(r rune) float64 {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2 * fl.l.opts.CharWidth
	}
	return fl.l.opts.CharWidth
}

func (fl *frameLayout) advances(rs []rune) ([]float64, float64) {
	out := make([]float64, len(rs))
	var sum float64
	for i, r := range rs {
		out[i] = fl.advance(r)
		sum += out[i]
	}
	return out, sum
}

// children lays out every child of n under parent into f.
func (fl *frameLayout) children(n *html.Node, parent *dom.Element, cs computed, f *flow) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			fl.text(parent, c.Data, cs, f)
		case html.ElementNode:
			fl.element(c, parent, cs, f)
		}
	}
}

func (fl *frameLayout) element(n *html.Node, parent *dom.Element, pcs computed, f *flow) {
	lh := fl.l.opts.LineHeight
	cs := defaults(n, pcs, lh)
	if st, ok := attr(n, "style"); ok {
		applyInline(&cs, st)
	}
	el := fl.tree.AddElement(parent, n.Data, dom.Style{Display: cs.display, Visibility: cs.visibility, Opacity: cs.opacity})
	el.Attrs = attrs(n)
	_, el.Disabled = attr(n, "disabled")

	if cs.display == "none" {
		fl.skeleton(n, el, cs)
		return
	}

	switch n.Data {
	case "br":
		f.forceBreak(lh)
		return
	case "select":
		fl.selectControl(n, el, cs, f)
		return
	case "input", "textarea":
		fl.atomic(el, fl.inputWidth(n), lh, f)
		fl.skeleton(n, el, cs)
		return
	case "img":
		w, h := dimension(n, "width", 0), dimension(n, "height", 0)
		fl.blockAtomic(el, cs.width.or(w), cs.height.or(h), f)
		return
	case "iframe":
		fl.iframe(n, el, cs, f)
		return
	}

	switch {
	case cs.position == "absolute" || cs.position == "fixed":
		fl.absolute(n, el, cs, f)
	case cs.display == "block" || cs.display == "list-item" || cs.display == "flex" || cs.display == "grid" || cs.display == "table" || cs.display == "table-row":
		fl.block(n, el, cs, f)
	case cs.display == "table-cell":
		fl.children(n, el, cs, f)
		// cells are separated by two character widths
		f.x += 2 * fl.l.opts.CharWidth
		f.space = true
	default:
		fl.children(n, el, cs, f)
	}
}

// block lays out n as a block box stacked in f.
func (fl *frameLayout) block(n *html.Node, el *dom.Element, cs computed, f *flow) {
	lh := fl.l.opts.LineHeight
	f.breakLine(lh)
	x := f.left + cs.margin[edgeLeft]
	y := f.y + cs.margin[edgeTop]
	w := cs.width.or(f.right - x - cs.margin[edgeRight])

	bottomY := fl.blockContent(n, el, cs, x, y, w)
	f.y = bottomY + cs.margin[edgeBottom]
	f.x, f.empty, f.space = f.left, true, false
}

// absolute lays out n out of flow at its left/top offsets from the nearest
// positioned ancestor.
func (fl *frameLayout) absolute(n *html.Node, el *dom.Element, cs computed, f *flow) {
	origin := fl.containers[len(fl.containers)-1]
	if cs.position == "fixed" {
		origin = fl.scroll
	}
	x := origin.X + cs.left.or(f.x-origin.X) + cs.margin[edgeLeft]
	y := origin.Y + cs.top.or(f.y-origin.Y) + cs.margin[edgeTop]
	w := cs.width.or(f.right - x)
	fl.blockContent(n, el, cs, x, y, w)
}

// blockContent lays out n's children inside the border box at (x, y) of
// width w and returns the box's bottom edge.
func (fl *frameLayout) blockContent(n *html.Node, el *dom.Element, cs computed, x, y, w float64) float64 {
	lh := fl.l.opts.LineHeight
	inner := newFlow(x+cs.padding[edgeLeft], x+w-cs.padding[edgeRight], y+cs.padding[edgeTop])
	positioned := cs.position == "relative" || cs.position == "absolute" || cs.position == "fixed"
	if positioned {
		fl.containers = append(fl.containers, geom.Point{X: x, Y: y})
	}
	fl.children(n, el, cs, inner)
	if positioned {
		fl.containers = fl.containers[:len(fl.containers)-1]
	}
	inner.breakLine(lh)
	bottomY := inner.y + cs.padding[edgeBottom]
	if cs.height.set {
		bottomY = y + cs.height.v
	}
	el.Bounds = fl.rect(x, y, w, bottomY-y)
	fl.boxed[el] = true
	return bottomY
}

// atomic places an inline replaced box of the given size on the line.
func (fl *frameLayout) atomic(el *dom.Element, w, h float64, f *flow) {
	if !f.empty && f.x+w > f.right {
		f.breakLine(fl.l.opts.LineHeight)
	}
	el.Bounds = fl.rect(f.x, f.y, w, h)
	fl.boxed[el] = true
	f.x += w
	f.empty, f.space = false, false
}

// blockAtomic stacks a replaced box of the given size.
func (fl *frameLayout) blockAtomic(el *dom.Element, w, h float64, f *flow) {
	f.breakLine(fl.l.opts.LineHeight)
	el.Bounds = fl.rect(f.left, f.y, w, h)
	fl.boxed[el] = true
	f.y += h
}

func (fl *frameLayout) inputWidth(n *html.Node) float64 {
	size := dimension(n, "size", 20)
	if n.Data == "textarea" {
		size = dimension(n, "cols", 20)
	}
	return (size + 1) * fl.l.opts.CharWidth
}

// selectControl renders a collapsed select: one line tall, wide enough for
// its longest option. Option text is kept in the tree without line boxes
// because the control paints it, not the text layout.
func (fl *frameLayout) selectControl(n *html.Node, el *dom.Element, cs computed, f *flow) {
	var opts []*dom.Element
	longest := 0
	var walk func(n *html.Node, parent *dom.Element, pcs computed)
	walk = func(n *html.Node, parent *dom.Element, pcs computed) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.Data != "option" && c.Data != "optgroup") {
				continue
			}
			ccs := defaults(c, pcs, fl.l.opts.LineHeight)
			if st, ok := attr(c, "style"); ok {
				applyInline(&ccs, st)
			}
			child := fl.tree.AddElement(parent, c.Data, dom.Style{Display: "block", Visibility: ccs.visibility, Opacity: ccs.opacity})
			child.Attrs = attrs(c)
			_, child.Disabled = attr(c, "disabled")
			if c.Data == "optgroup" {
				walk(c, child, ccs)
				continue
			}
			_, child.Selected = attr(c, "selected")
			label := strings.TrimSpace(collapse(textOf(c)))
			if lbl, ok := attr(c, "label"); ok && label == "" {
				label = lbl
			}
			if cnt := len([]rune(label)); cnt > longest {
				longest = cnt
			}
			fl.tree.AddText(child, textOf(c))
			opts = append(opts, child)
		}
	}
	walk(n, el, cs)

	// The last option marked selected wins; with none marked the first
	// option shows.
	chosen := -1
	for i, o := range opts {
		if o.Selected {
			chosen = i
		}
	}
	for i, o := range opts {
		o.Selected = i == chosen || (chosen < 0 && i == 0)
	}
	fl.atomic(el, float64(longest+3)*fl.l.opts.CharWidth, fl.l.opts.LineHeight, f)
}

// iframe stacks the frame's box and lays out a srcdoc document as a child
// frame. Frames loaded from src have no content here.
func (fl *frameLayout) iframe(n *html.Node, el *dom.Element, cs computed, f *flow) {
	w := cs.width.or(dimension(n, "width", 300))
	h := cs.height.or(dimension(n, "height", 150))
	fl.blockAtomic(el, w, h, f)
	if cs.visibility != "visible" {
		return
	}
	src, ok := attr(n, "srcdoc")
	if !ok {
		return
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		fl.l.warn("srcdoc parse failed", "frame", fl.frame.ID, "err", err)
		return
	}
	fl.l.frameCount++
	child := &dom.Frame{
		ID:       fmt.Sprintf("frame-%d", fl.l.frameCount),
		ParentID: fl.frame.ID,
		URL:      "about:srcdoc",
		Bounds:   el.Bounds,
	}
	if name, ok := attr(n, "name"); ok && name != "" {
		child.ID = name
	}
	fl.l.layoutFrame(doc, child, geom.Point{}, w, h)
}

// text places a text node on f, wrapping at word boundaries.
func (fl *frameLayout) text(parent *dom.Element, raw string, cs computed, f *flow) {
	if cs.whiteSpace == "pre" || cs.whiteSpace == "pre-wrap" {
		fl.preText(parent, raw, f)
		return
	}
	s := collapse(raw)
	if f.empty || f.space {
		s = strings.TrimPrefix(s, " ")
	}
	if s == "" {
		return
	}
	runes := []rune(s)
	leaf := fl.tree.AddText(parent, s)

	start, startX := 0, f.x
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] != ' ' {
			j++
		}
		_, wordW := fl.advances(runes[i:j])
		if j > i && !f.empty && f.x+wordW > f.right {
			if i > start {
				leaf.Boxes = append(leaf.Boxes, fl.box(runes, start, i, startX, f.y))
			}
			f.breakLine(fl.l.opts.LineHeight)
			start, startX = i, f.x
		}
		k := j
		for k < len(runes) && runes[k] == ' ' {
			k++
		}
		_, w := fl.advances(runes[i:k])
		f.x += w
		if j > i {
			f.empty = false
		}
		f.space = k > j
		i = k
	}
	if len(runes) > start {
		leaf.Boxes = append(leaf.Boxes, fl.box(runes, start, len(runes), startX, f.y))
	}
}

// preText places preformatted text: spaces are kept and only newlines
// break lines.
func (fl *frameLayout) preText(parent *dom.Element, raw string, f *flow) {
	runes := []rune(strings.ReplaceAll(raw, "\r\n", "\n"))
	if len(runes) == 0 {
		return
	}
	leaf := fl.tree.AddText(parent, string(runes))
	start, startX := 0, f.x
	for i, r := range runes {
		if r != '\n' {
			f.x += fl.advance(r)
			f.empty = false
			continue
		}
		if i > start {
			leaf.Boxes = append(leaf.Boxes, fl.box(runes, start, i, startX, f.y))
		}
		f.forceBreak(fl.l.opts.LineHeight)
		start, startX = i+1, f.x
	}
	if len(runes) > start {
		leaf.Boxes = append(leaf.Boxes, fl.box(runes, start, len(runes), startX, f.y))
	}
	f.space = false
}

func (fl *frameLayout) box(runes []rune, start, end int, x, y float64) dom.LineBox {
	adv, w := fl.advances(runes[start:end])
	return dom.LineBox{
		Rect:     fl.rect(x, y, w, fl.l.opts.LineHeight),
		Start:    start,
		End:      end,
		Advances: adv,
	}
}

// skeleton adds n's descendants to the tree without layout, for content
// that does not render.
func (fl *frameLayout) skeleton(n *html.Node, parent *dom.Element, pcs computed) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if strings.TrimSpace(c.Data) != "" {
				fl.tree.AddText(parent, c.Data)
			}
		case html.ElementNode:
			cs := defaults(c, pcs, fl.l.opts.LineHeight)
			if st, ok := attr(c, "style"); ok {
				applyInline(&cs, st)
			}
			el := fl.tree.AddElement(parent, c.Data, dom.Style{Display: cs.display, Visibility: cs.visibility, Opacity: cs.opacity})
			el.Attrs = attrs(c)
			fl.skeleton(c, el, cs)
		}
	}
}

// fillBounds gives inline elements the union of their content's boxes.
func (fl *frameLayout) fillBounds(el *dom.Element) geom.Rect {
	var u geom.Rect
	add := func(r geom.Rect) {
		switch {
		case r.Degenerate():
		case u.Degenerate():
			u = r
		default:
			u = u.Union(r)
		}
	}
	for _, c := range el.Children() {
		switch c := c.(type) {
		case *dom.Element:
			add(fl.fillBounds(c))
		case *dom.Text:
			for _, b := range c.Boxes {
				add(b.Rect)
			}
		}
	}
	if !fl.boxed[el] {
		el.Bounds = u
	}
	return el.Bounds
}

// collapse turns every run of white space into a single space.
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func dimension(n *html.Node, key string, def float64) float64 {
	v, ok := attr(n, key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil || f < 0 {
		return def
	}
	return f
}
