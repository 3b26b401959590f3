package htmllayout

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// length is a CSS pixel value that may be unset.
type length struct {
	v   float64
	set bool
}

func (l length) or(def float64) float64 {
	if l.set {
		return l.v
	}
	return def
}

// edges holds top, right, bottom, left.
type edges [4]float64

const (
	edgeTop = iota
	edgeRight
	edgeBottom
	edgeLeft
)

type computed struct {
	display    string
	visibility string
	opacity    string
	position   string
	whiteSpace string

	left, top     length
	width, height length
	margin        edges
	padding       edges
}

var blockTags = map[string]bool{
	"html": true, "body": true, "div": true, "p": true, "section": true,
	"article": true, "header": true, "footer": true, "nav": true, "main": true,
	"aside": true, "form": true, "blockquote": true, "pre": true, "ul": true,
	"ol": true, "li": true, "dl": true, "dt": true, "dd": true, "table": true,
	"tr": true, "thead": true, "tbody": true, "tfoot": true, "figure": true,
	"figcaption": true, "address": true, "hr": true, "fieldset": true,
	"details": true, "summary": true, "center": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true,
}

// noneTags are display:none in the user-agent stylesheet.
var noneTags = map[string]bool{
	"head": true, "script": true, "style": true, "title": true,
	"template": true, "meta": true, "link": true, "base": true,
	"datalist": true, "param": true,
}

// spacedTags get half a line of vertical margin.
var spacedTags = map[string]bool{
	"p": true, "ul": true, "ol": true, "dl": true, "blockquote": true,
	"pre": true, "figure": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true,
}

// defaults returns the user-agent style of n before inline styles apply.
func defaults(n *html.Node, parent computed, lineHeight float64) computed {
	cs := computed{
		display:    "inline",
		visibility: parent.visibility,
		opacity:    "1",
		position:   "static",
		whiteSpace: parent.whiteSpace,
	}
	if cs.visibility == "" {
		cs.visibility = "visible"
	}
	switch {
	case noneTags[n.Data]:
		cs.display = "none"
	case blockTags[n.Data]:
		cs.display = "block"
	case n.Data == "td" || n.Data == "th":
		cs.display = "table-cell"
	case n.Data == "select" || n.Data == "input" || n.Data == "textarea" || n.Data == "button":
		cs.display = "inline-block"
	}
	if _, ok := attr(n, "hidden"); ok {
		cs.display = "none"
	}
	if spacedTags[n.Data] {
		cs.margin[edgeTop] = lineHeight / 2
		cs.margin[edgeBottom] = lineHeight / 2
	}
	switch n.Data {
	case "body":
		cs.margin = edges{8, 8, 8, 8}
	case "ul", "ol":
		cs.padding[edgeLeft] = 40
	case "blockquote":
		cs.margin[edgeLeft], cs.margin[edgeRight] = 40, 40
	case "pre":
		cs.whiteSpace = "pre"
	}
	return cs
}

// applyInline overlays the declarations of a style attribute.
func applyInline(cs *computed, decl string) {
	for _, part := range strings.Split(decl, ";") {
		name, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "!important"))
		switch name {
		case "display":
			cs.display = strings.ToLower(value)
		case "visibility":
			cs.visibility = strings.ToLower(value)
		case "opacity":
			cs.opacity = value
		case "position":
			cs.position = strings.ToLower(value)
		case "white-space":
			cs.whiteSpace = strings.ToLower(value)
		case "left":
			cs.left = parseLength(value)
		case "top":
			cs.top = parseLength(value)
		case "width":
			cs.width = parseLength(value)
		case "height":
			cs.height = parseLength(value)
		case "margin":
			cs.margin = parseEdges(value, cs.margin)
		case "padding":
			cs.padding = parseEdges(value, cs.padding)
		case "margin-top", "margin-right", "margin-bottom", "margin-left":
			setEdge(&cs.margin, strings.TrimPrefix(name, "margin-"), value)
		case "padding-top", "padding-right", "padding-bottom", "padding-left":
			setEdge(&cs.padding, strings.TrimPrefix(name, "padding-"), value)
		}
	}
}

func setEdge(e *edges, side, value string) {
	l := parseLength(value)
	if !l.set {
		return
	}
	switch side {
	case "top":
		e[edgeTop] = l.v
	case "right":
		e[edgeRight] = l.v
	case "bottom":
		e[edgeBottom] = l.v
	case "left":
		e[edgeLeft] = l.v
	}
}

// parseEdges reads the one to four value shorthand.
func parseEdges(value string, prev edges) edges {
	var vs []float64
	for _, f := range strings.Fields(value) {
		l := parseLength(f)
		if !l.set {
			return prev
		}
		vs = append(vs, l.v)
	}
	switch len(vs) {
	case 1:
		return edges{vs[0], vs[0], vs[0], vs[0]}
	case 2:
		return edges{vs[0], vs[1], vs[0], vs[1]}
	case 3:
		return edges{vs[0], vs[1], vs[2], vs[1]}
	case 4:
		return edges{vs[0], vs[1], vs[2], vs[3]}
	}
	return prev
}

// parseLength accepts unitless numbers and px values.
func parseLength(s string) length {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return length{}
	}
	return length{v: v, set: true}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrs(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	m := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		m[a.Key] = a.Val
	}
	return m
}
