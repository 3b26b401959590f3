// Package htmllayout lays out an HTML document deterministically, without a
// browser, and returns it as a dom.Page. Every glyph is CharWidth wide
// (twice that for East Asian wide runes) and every line LineHeight tall, so
// the geometry of a page is predictable enough to test extraction against
// and to run the offline CLI on saved pages.
//
// Supported: block and inline flow with word wrapping, <br>, preformatted
// text, the user-agent display:none set and the hidden attribute, inline
// style declarations for display, visibility, opacity, position
// (absolute, fixed, relative), left, top, width, height, margin and
// padding, collapsed <select> controls and <iframe srcdoc> child frames.
package htmllayout

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/net/html"
	"pkt.systems/pslog"

	"rectcopy/src/dom"
	"rectcopy/src/geom"
)

const (
	DefaultCharWidth      = 8.0
	DefaultLineHeight     = 16.0
	DefaultViewportWidth  = 1280.0
	DefaultViewportHeight = 800.0
)

// Options controls the synthetic layout. Zero values select the defaults.
type Options struct {
	ViewportWidth  float64
	ViewportHeight float64
	// Scroll is the main frame's scroll offset in document coordinates.
	Scroll     geom.Point
	CharWidth  float64
	LineHeight float64
	Logger     pslog.Logger
}

func (o Options) withDefaults() Options {
	if !(o.ViewportWidth > 0) {
		o.ViewportWidth = DefaultViewportWidth
	}
	if !(o.ViewportHeight > 0) {
		o.ViewportHeight = DefaultViewportHeight
	}
	if !(o.CharWidth > 0) {
		o.CharWidth = DefaultCharWidth
	}
	if !(o.LineHeight > 0) {
		o.LineHeight = DefaultLineHeight
	}
	return o
}

// Parse reads an HTML document from r and lays it out.
func Parse(r io.Reader, opts Options) (*dom.Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return Layout(doc, opts), nil
}

// ParseString lays out the HTML document in s.
func ParseString(s string, opts Options) (*dom.Page, error) {
	return Parse(strings.NewReader(s), opts)
}

// ParseFile lays out the HTML document stored at path.
func ParseFile(path string, opts Options) (*dom.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return Parse(f, opts)
}

// Layout lays out a parsed document. The main frame comes first in the
// returned page, followed by srcdoc frames in document order.
func Layout(doc *html.Node, opts Options) *dom.Page {
	l := &layouter{opts: opts.withDefaults(), page: &dom.Page{}}
	main := &dom.Frame{ID: dom.MainFrameID, URL: "about:blank"}
	l.layoutFrame(doc, main, l.opts.Scroll, l.opts.ViewportWidth, l.opts.ViewportHeight)
	l.debug("layout finished", "frames", len(l.page.Frames), "leaves", len(main.Doc.Leaves()))
	return l.page
}

type layouter struct {
	opts       Options
	page       *dom.Page
	frameCount int
}

// layoutFrame lays out doc into a new tree for frame and appends the frame
// to the page. Child frames found on the way are appended after it.
func (l *layouter) layoutFrame(doc *html.Node, frame *dom.Frame, scroll geom.Point, w, h float64) {
	frame.Doc = dom.NewTree(geom.FromXYWH(0, 0, w, h))
	l.page.Frames = append(l.page.Frames, frame)

	fl := &frameLayout{
		l:          l,
		frame:      frame,
		tree:       frame.Doc,
		scroll:     scroll,
		containers: []geom.Point{{}},
		boxed:      map[*dom.Element]bool{},
	}
	root := frame.Doc.Root()
	rootStyle := computed{display: "block", visibility: "visible", opacity: "1", position: "static"}
	f := newFlow(0, w, 0)

	htmlNode := findElement(doc, "html")
	if htmlNode == nil {
		fl.children(doc, root, rootStyle, f)
	} else {
		root.Attrs = attrs(htmlNode)
		fl.children(htmlNode, root, rootStyle, f)
	}
	f.breakLine(l.opts.LineHeight)
	fl.boxed[root] = true
	root.Bounds = fl.rect(0, 0, w, f.y)
	fl.fillBounds(root)
}

func (l *layouter) debug(msg string, keyvals ...any) {
	if l.opts.Logger != nil {
		l.opts.Logger.Debug(msg, keyvals...)
	}
}

func (l *layouter) warn(msg string, keyvals ...any) {
	if l.opts.Logger != nil {
		l.opts.Logger.Warn(msg, keyvals...)
	}
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
