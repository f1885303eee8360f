// internal/dompage/parse.go
package dompage

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parse builds a Page from an HTML document. pageURL anchors the
// same-origin decision for embedded frames; it may be empty for fixtures
// without frames.
//
// Two authoring conventions make the invisible parts of a page expressible
// in plain HTML, matching how live snapshots are serialized:
//   - <template shadowrootmode="open|closed"> as the first template child of
//     an element becomes that element's shadow subtree (declarative shadow
//     DOM).
//   - <iframe srcdoc="..."> carries its embedded document inline; an iframe
//     whose src points at a different origin is cross-origin and unreadable.
func Parse(rawHTML, pageURL string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	var origin string
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			origin = u.Host
		}
	}

	page := &Page{}
	b := &builder{page: page, origin: origin}
	root := &Element{Tag: "#document", page: page}
	b.buildChildren(doc, root)
	page.Root = root
	return page, nil
}

type builder struct {
	page   *Page
	origin string
}

func (b *builder) buildChildren(src *html.Node, dst *Element) {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if t := strings.TrimSpace(c.Data); t != "" {
				dst.text = append(dst.text, t)
			}
		case html.ElementNode:
			b.buildElement(c, dst)
		}
	}
}

func (b *builder) buildElement(n *html.Node, parent *Element) {
	tag := strings.ToLower(n.Data)

	// A declarative shadow template attaches to its parent instead of
	// occupying a slot in the child list.
	if tag == "template" && getAttr(n, "shadowrootmode") != "" {
		if parent.ShadowRoot != nil {
			return // an element has at most one shadow root
		}
		shadow := &Element{Tag: "#shadow-root", shadowHost: parent, page: b.page}
		b.buildChildren(n, shadow)
		parent.ShadowRoot = shadow
		return
	}

	e := &Element{
		Tag:    tag,
		Attrs:  make(map[string]string, len(n.Attr)),
		Parent: parent,
		page:   b.page,
	}
	for _, a := range n.Attr {
		e.Attrs[strings.ToLower(a.Key)] = a.Val
	}
	parent.Children = append(parent.Children, e)

	if e.HasAttr("autofocus") && b.page.focused == nil {
		b.page.focused = e
	}

	if tag == "iframe" {
		b.attachFrame(e)
		return
	}

	b.buildChildren(n, e)
}

// attachFrame resolves the iframe's embedded document, or marks it
// cross-origin when the script would not be allowed to read it.
func (b *builder) attachFrame(e *Element) {
	if srcdoc := e.Attr("srcdoc"); srcdoc != "" {
		frame, err := Parse(srcdoc, "")
		if err != nil {
			return
		}
		e.FrameDocument = frame.Root
		reparent(frame.Root, b.page)
		return
	}

	src := e.Attr("src")
	if src == "" {
		e.FrameDocument = &Element{Tag: "#document", page: b.page}
		return
	}
	u, err := url.Parse(src)
	if err != nil || (u.IsAbs() && u.Host != b.origin) {
		e.CrossOrigin = true
		return
	}
	// Same-origin frame whose content was not captured in the snapshot:
	// readable but empty.
	e.FrameDocument = &Element{Tag: "#document", page: b.page}
}

// reparent points a subtree's page references at the enclosing page so
// focus tracking works across frame boundaries.
func reparent(root *Element, page *Page) {
	root.page = page
	for _, c := range root.Children {
		reparent(c, page)
	}
	if root.ShadowRoot != nil {
		reparent(root.ShadowRoot, page)
	}
	if root.FrameDocument != nil {
		reparent(root.FrameDocument, page)
	}
}

func getAttr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
