package extract

import (
	"strings"

	"rectcopy/src/dom"
)

// OverlayIDPrefix marks elements rectcopy injects into the page (drag box,
// status toast). Their text is never part of a selection.
const OverlayIDPrefix = "__rectcopy"

// nonRendering tags never paint their text.
var nonRendering = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"title":    true,
}

// Class names sites use to keep text for screen readers while hiding it
// from sighted users.
var screenReaderOnly = []string{
	"sr-only",
	"visually-hidden",
	"visuallyhidden",
	"screen-reader-text",
	"screenreader-only",
	"a11y-hidden",
}

func isDecoration(el *dom.Element) bool {
	id, ok := el.Attr("id")
	return ok && strings.HasPrefix(id, OverlayIDPrefix)
}

// selectedOption returns the option element directly containing leaf when
// that option is selected.
func selectedOption(leaf *dom.Text) *dom.Element {
	if p := leaf.Parent; p != nil && p.Tag == "option" && p.Selected {
		return p
	}
	return nil
}

// visible walks leaf's ancestors and reports whether its text can be on
// screen. A selected option and its owning select tolerate
// visibility:hidden and opacity:0, since a collapsed or disabled select
// paints the value itself while the option's own style says hidden.
// Ancestors above the select are checked normally.
func visible(doc dom.Document, leaf *dom.Text) bool {
	tolerant := selectedOption(leaf) != nil
	for el := leaf.Parent; el != nil; el = el.Parent {
		if nonRendering[el.Tag] {
			return false
		}
		if isDecoration(el) {
			return false
		}
		for _, cls := range screenReaderOnly {
			if el.HasClass(cls) {
				return false
			}
		}
		st := doc.ComputedStyle(el)
		if st.Display == "none" {
			return false
		}
		if !tolerant && (st.Visibility == "hidden" || st.Visibility == "collapse" || st.Transparent()) {
			return false
		}
		if el.Tag == "select" {
			tolerant = false
		}
	}
	return true
}
