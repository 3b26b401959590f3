// Package cdpsnap turns a Chrome DevTools DOMSnapshot into a dom.Page: one
// dom.Tree per frame document with the computed styles the visibility
// filter reads and the post-layout text boxes the caret hit test runs on.
package cdpsnap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/chromedp/cdproto/domsnapshot"
	"github.com/chromedp/chromedp"
	"pkt.systems/pslog"

	"rectcopy/src/dom"
	"rectcopy/src/geom"
)

// ComputedStyles is the style list passed to CaptureSnapshot. Layout style
// arrays are read back positionally in this order.
var ComputedStyles = []string{"display", "visibility", "opacity"}

const (
	nodeElement          = 1
	nodeText             = 3
	nodeDocument         = 9
	nodeDocumentFragment = 11
)

// ErrEmptySnapshot is returned when the snapshot holds no documents.
var ErrEmptySnapshot = errors.New("cdpsnap: snapshot has no documents")

// Options tunes the conversion.
type Options struct {
	// Viewport size of the main frame. When zero the document content size
	// is used.
	ViewportWidth  float64
	ViewportHeight float64
	Logger         pslog.Logger
}

// Capture returns an action that snapshots the current page and stores the
// converted result in page.
func Capture(page **dom.Page, opts Options) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		docs, strs, err := domsnapshot.CaptureSnapshot(ComputedStyles).Do(ctx)
		if err != nil {
			return fmt.Errorf("capture snapshot: %w", err)
		}
		p, err := Convert(docs, strs, opts)
		if err != nil {
			return err
		}
		*page = p
		return nil
	})
}

// Convert builds a page from CaptureSnapshot output. The first document is
// the main frame; other documents become frames parented to the document
// owning their frame element.
func Convert(docs []*domsnapshot.DocumentSnapshot, strs []string, opts Options) (*dom.Page, error) {
	if len(docs) == 0 {
		return nil, ErrEmptySnapshot
	}
	c := &converter{strs: strs, opts: opts}

	// Locate every frame owner before building trees: a child document's
	// viewport is its owner element's box.
	owners := map[int]owner{}
	for di, d := range docs {
		if d == nil || d.Nodes == nil || d.Nodes.ContentDocumentIndex == nil {
			continue
		}
		rare := d.Nodes.ContentDocumentIndex
		for k, node := range rare.Index {
			if k < len(rare.Value) {
				owners[int(rare.Value[k])] = owner{doc: di, node: int(node)}
			}
		}
	}

	page := &dom.Page{}
	ids := make([]string, len(docs))
	for di, d := range docs {
		if d == nil {
			continue
		}
		ids[di] = c.str(d.FrameID)
		switch {
		case ids[di] != "":
		case di == 0:
			ids[di] = dom.MainFrameID
		default:
			ids[di] = fmt.Sprintf("doc-%d", di)
		}
	}
	for di, d := range docs {
		if d == nil {
			continue
		}
		frame := &dom.Frame{ID: ids[di], URL: c.str(d.DocumentURL)}
		vw, vh := opts.ViewportWidth, opts.ViewportHeight
		if di == 0 {
			if !(vw > 0) {
				vw = d.ContentWidth
			}
			if !(vh > 0) {
				vh = d.ContentHeight
			}
		} else {
			o, ok := owners[di]
			if !ok || o.doc >= len(docs) || docs[o.doc] == nil {
				c.debug("skipping orphan document", "document", di, "url", frame.URL)
				continue
			}
			frame.ParentID = ids[o.doc]
			frame.Bounds = c.ownerBounds(docs[o.doc], o.node)
			vw, vh = frame.Bounds.Width, frame.Bounds.Height
		}
		frame.Doc = c.tree(d, geom.FromXYWH(0, 0, vw, vh))
		page.Frames = append(page.Frames, frame)
	}
	c.debug("snapshot converted", "documents", len(docs), "frames", len(page.Frames))
	return page, nil
}

type owner struct {
	doc, node int
}

type converter struct {
	strs []string
	opts Options
}

func (c *converter) str(i domsnapshot.StringIndex) string {
	if i < 0 || int(i) >= len(c.strs) {
		return ""
	}
	return c.strs[i]
}

// ownerBounds returns the viewport rectangle of the frame element at node.
func (c *converter) ownerBounds(d *domsnapshot.DocumentSnapshot, node int) geom.Rect {
	if d.Layout == nil {
		return geom.Rect{}
	}
	for li, ni := range d.Layout.NodeIndex {
		if int(ni) == node && li < len(d.Layout.Bounds) {
			return toViewport(d, d.Layout.Bounds[li])
		}
	}
	return geom.Rect{}
}

// toViewport converts a document-space snapshot rectangle into viewport
// coordinates.
func toViewport(d *domsnapshot.DocumentSnapshot, r domsnapshot.Rectangle) geom.Rect {
	if len(r) < 4 {
		return geom.Rect{}
	}
	return geom.FromXYWH(r[0]-d.ScrollOffsetX, r[1]-d.ScrollOffsetY, r[2], r[3])
}

// layoutInfo is what the layout table knows about one node.
type layoutInfo struct {
	indexes []int
	style   dom.Style
	bounds  geom.Rect
	text    string
	hasTxt  bool
}

func (c *converter) tree(d *domsnapshot.DocumentSnapshot, viewport geom.Rect) *dom.Tree {
	tree := dom.NewTree(viewport)
	nodes := d.Nodes
	if nodes == nil {
		return tree
	}

	layout := map[int]*layoutInfo{}
	if l := d.Layout; l != nil {
		for li, ni := range l.NodeIndex {
			if info, seen := layout[int(ni)]; seen {
				// continuation of an already seen node: only its text boxes count
				info.indexes = append(info.indexes, li)
				continue
			}
			info := &layoutInfo{indexes: []int{li}}
			if li < len(l.Styles) {
				info.style = c.style(l.Styles[li])
			}
			if li < len(l.Bounds) {
				info.bounds = toViewport(d, l.Bounds[li])
			}
			if li < len(l.Text) && l.Text[li] >= 0 {
				info.text, info.hasTxt = c.str(l.Text[li]), true
			}
			layout[int(ni)] = info
		}
	}
	boxes := c.textBoxes(d)

	selected := map[int]bool{}
	if nodes.OptionSelected != nil {
		for _, i := range nodes.OptionSelected.Index {
			selected[int(i)] = true
		}
	}

	// Nodes arrive in pre-order, so a parent is always mapped before its
	// children.
	elements := make([]*dom.Element, len(nodes.ParentIndex))
	for i := range nodes.ParentIndex {
		kind := at(nodes.NodeType, i)
		parentIdx := int(nodes.ParentIndex[i])
		var parent *dom.Element
		if parentIdx >= 0 && parentIdx < i {
			parent = elements[parentIdx]
		}

		switch kind {
		case nodeDocument:
			elements[i] = tree.Root()
		case nodeDocumentFragment:
			// shadow roots are transparent
			elements[i] = parent
		case nodeElement:
			if parent == nil {
				continue
			}
			tag := strings.ToLower(c.nameOf(nodes, i))
			info := layout[i]
			style := dom.Style{}
			if info != nil {
				style = info.style
			}
			var el *dom.Element
			if tag == "html" && parent == tree.Root() {
				el = tree.Root()
				el.Style = style
			} else {
				el = tree.AddElement(parent, tag, style)
			}
			el.Attrs = c.attributes(nodes, i)
			_, el.Disabled = el.Attrs["disabled"]
			el.Selected = selected[i]
			if info != nil {
				el.Bounds = info.bounds
			}
			elements[i] = el
		case nodeText:
			if parent == nil {
				continue
			}
			value := c.valueOf(nodes, i)
			info := layout[i]
			if info != nil && info.hasTxt && info.text != "" {
				value = info.text
			}
			leaf := tree.AddText(parent, value)
			if info != nil {
				var tbs []textBox
				for _, li := range info.indexes {
					tbs = append(tbs, boxes[li]...)
				}
				leaf.Boxes = lineBoxes(value, tbs)
			}
		}
	}
	return tree
}

func (c *converter) style(idx domsnapshot.ArrayOfStrings) dom.Style {
	var st dom.Style
	for k, si := range idx {
		v := c.str(domsnapshot.StringIndex(si))
		switch k {
		case 0:
			st.Display = v
		case 1:
			st.Visibility = v
		case 2:
			st.Opacity = v
		}
	}
	return st
}

func (c *converter) nameOf(n *domsnapshot.NodeTreeSnapshot, i int) string {
	if i < len(n.NodeName) {
		return c.str(n.NodeName[i])
	}
	return ""
}

func (c *converter) valueOf(n *domsnapshot.NodeTreeSnapshot, i int) string {
	if i < len(n.NodeValue) {
		return c.str(n.NodeValue[i])
	}
	return ""
}

func (c *converter) attributes(n *domsnapshot.NodeTreeSnapshot, i int) map[string]string {
	if i >= len(n.Attributes) || len(n.Attributes[i]) == 0 {
		return nil
	}
	flat := n.Attributes[i]
	m := make(map[string]string, len(flat)/2)
	for k := 0; k+1 < len(flat); k += 2 {
		m[c.str(domsnapshot.StringIndex(flat[k]))] = c.str(domsnapshot.StringIndex(flat[k+1]))
	}
	return m
}

// textBox is one post-layout box in UTF-16 units.
type textBox struct {
	rect          geom.Rect
	start, length int
}

// textBoxes groups the text box table by owning layout index.
func (c *converter) textBoxes(d *domsnapshot.DocumentSnapshot) map[int][]textBox {
	out := map[int][]textBox{}
	tb := d.TextBoxes
	if tb == nil {
		return out
	}
	for k, li := range tb.LayoutIndex {
		if k >= len(tb.Bounds) || k >= len(tb.Start) || k >= len(tb.Length) {
			break
		}
		out[int(li)] = append(out[int(li)], textBox{
			rect:   toViewport(d, tb.Bounds[k]),
			start:  int(tb.Start[k]),
			length: int(tb.Length[k]),
		})
	}
	return out
}

// lineBoxes converts UTF-16 text boxes over value into rune-indexed line
// boxes with advances spread evenly across each box.
func lineBoxes(value string, boxes []textBox) []dom.LineBox {
	if len(boxes) == 0 {
		return nil
	}
	units := utf16Offsets(value)
	out := make([]dom.LineBox, 0, len(boxes))
	for _, b := range boxes {
		start := runeOffset(units, b.start)
		end := runeOffset(units, b.start+b.length)
		if end <= start || b.rect.Degenerate() {
			continue
		}
		n := end - start
		adv := make([]float64, n)
		for i := range adv {
			adv[i] = b.rect.Width / float64(n)
		}
		out = append(out, dom.LineBox{Rect: b.rect, Start: start, End: end, Advances: adv})
	}
	return out
}

// utf16Offsets returns the UTF-16 offset of every rune boundary in s,
// including the end.
func utf16Offsets(s string) []int {
	out := make([]int, 0, len(s)+1)
	u := 0
	for _, r := range s {
		out = append(out, u)
		if n := utf16.RuneLen(r); n > 0 {
			u += n
		} else {
			u++
		}
	}
	return append(out, u)
}

// runeOffset maps a UTF-16 offset to the first rune boundary at or after it.
func runeOffset(units []int, u int) int {
	return min(sort.SearchInts(units, u), len(units)-1)
}

func at(s []int64, i int) int64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

func (c *converter) debug(msg string, keyvals ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Debug(msg, keyvals...)
	}
}
