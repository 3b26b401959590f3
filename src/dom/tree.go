package dom

import (
	"rectcopy/src/geom"
)

// Tree is the concrete Document built by the layout backends.
type Tree struct {
	root     *Element
	leaves   []*Text
	viewport geom.Rect
}

// NewTree returns a tree with an "html" root element and the given viewport.
func NewTree(viewport geom.Rect) *Tree {
	return &Tree{
		root:     &Element{Tag: "html", Style: Style{Display: "block", Visibility: "visible", Opacity: "1"}, Bounds: viewport},
		viewport: viewport,
	}
}

// Root returns the document element.
func (t *Tree) Root() *Element { return t.root }

// SetViewport replaces the viewport rectangle.
func (t *Tree) SetViewport(r geom.Rect) { t.viewport = r }

// AddElement appends a new element under parent (the root when parent is
// nil) and returns it. Children must be added in document order.
func (t *Tree) AddElement(parent *Element, tag string, style Style) *Element {
	if parent == nil {
		parent = t.root
	}
	el := &Element{Tag: tag, Style: style, Parent: parent}
	parent.children = append(parent.children, el)
	return el
}

// AddText appends a text leaf under parent and registers it in document
// order.
func (t *Tree) AddText(parent *Element, value string, boxes ...LineBox) *Text {
	if parent == nil {
		parent = t.root
	}
	leaf := &Text{Value: value, Parent: parent, Boxes: boxes}
	parent.children = append(parent.children, leaf)
	t.leaves = append(t.leaves, leaf)
	return leaf
}

// Viewport implements Document.
func (t *Tree) Viewport() geom.Rect { return t.viewport }

// Leaves implements Document.
func (t *Tree) Leaves() []*Text { return t.leaves }

// ComputedStyle implements Document.
func (t *Tree) ComputedStyle(el *Element) Style {
	if el == nil {
		return DefaultStyle()
	}
	return el.Style
}

// CaretAt implements Document. Later leaves paint over earlier ones, so the
// search runs in reverse document order and the first line box containing p
// wins. Within the box p.X snaps to the nearest character boundary.
func (t *Tree) CaretAt(p geom.Point) (Caret, bool) {
	for i := len(t.leaves) - 1; i >= 0; i-- {
		leaf := t.leaves[i]
		for _, box := range leaf.Boxes {
			if box.Rect.Degenerate() || !box.Rect.Contains(p) {
				continue
			}
			return Caret{Node: leaf, Offset: box.offsetAt(p.X)}, true
		}
	}
	return Caret{}, false
}

func (b LineBox) offsetAt(x float64) int {
	n := b.End - b.Start
	if n <= 0 {
		return b.Start
	}
	advances := b.Advances
	if len(advances) != n {
		advances = make([]float64, n)
		w := b.Rect.Width / float64(n)
		for i := range advances {
			advances[i] = w
		}
	}
	edge := b.Rect.Left
	for i, adv := range advances {
		if x < edge+adv/2 {
			return b.Start + i
		}
		edge += adv
	}
	return b.End
}
