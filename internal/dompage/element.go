// internal/dompage/element.go
package dompage

import (
	"strings"
)

// The dompage package models exactly as much of a host page as the
// classifier and injector need: an element tree with shadow subtrees,
// embedded frame documents, bubbling events, file selection, and focus.
// Pages are built from HTML fixtures (Parse) or from a live DOM snapshot.

// File is one synthetic selected file on an upload control.
type File struct {
	Name string
	Type string
	Data []byte
}

// Event is a dispatched DOM event.
type Event struct {
	Type    string
	Bubbles bool
	Target  *Element
}

// Listener observes events during dispatch.
type Listener func(Event)

// Element is one node of the harness DOM.
type Element struct {
	Tag   string
	Attrs map[string]string

	Parent   *Element
	Children []*Element

	// text holds this element's direct text chunks in document order.
	text []string

	// ShadowRoot is the shadow-attached subtree of this element, if any.
	// It is not part of the normal child structure and traversals must
	// opt in to it, mirroring real shadow DOM.
	ShadowRoot *Element
	// shadowHost points back from a shadow root to its host element.
	shadowHost *Element

	// FrameDocument is the embedded document of an iframe element. It is
	// nil for cross-origin frames, which cannot be read.
	FrameDocument *Element
	CrossOrigin   bool

	// Value holds the current text content of editable targets.
	Value string
	// Files is the control's selected file list.
	Files []File

	listeners map[string][]Listener

	// inlineChange is invoked when a direct inline change handler is
	// called, distinct from the dispatched event path. Hosts that only
	// wire logic to the attribute ignore dispatched events entirely.
	inlineChange      func(Event)
	inlineChangeCalls int

	page *Page
}

// Page owns one element tree plus per-page state that does not belong to a
// single element.
type Page struct {
	Root    *Element
	focused *Element
}

// Attr returns the value of an attribute, case-insensitively, or "".
func (e *Element) Attr(name string) string {
	if e == nil || e.Attrs == nil {
		return ""
	}
	return e.Attrs[strings.ToLower(name)]
}

// HasAttr reports whether the attribute is present at all.
func (e *Element) HasAttr(name string) bool {
	if e == nil || e.Attrs == nil {
		return false
	}
	_, ok := e.Attrs[strings.ToLower(name)]
	return ok
}

// ID and Name are the identifier attributes the classifier scores on.
func (e *Element) ID() string   { return e.Attr("id") }
func (e *Element) Name() string { return e.Attr("name") }

// IsUploadControl reports whether the element is a file-selection input.
func (e *Element) IsUploadControl() bool {
	return e.Tag == "input" && strings.EqualFold(e.Attr("type"), "file")
}

// IsTextTarget reports whether the element can receive pasted text: a
// textarea, a texty input, or a contenteditable element.
func (e *Element) IsTextTarget() bool {
	switch e.Tag {
	case "textarea":
		return true
	case "input":
		t := strings.ToLower(e.Attr("type"))
		return t == "" || t == "text" || t == "search" || t == "email" || t == "url"
	}
	if e.HasAttr("contenteditable") && !strings.EqualFold(e.Attr("contenteditable"), "false") {
		return true
	}
	return false
}

// TextContent concatenates the subtree's text, like DOM textContent.
// Shadow subtrees and frame documents do not contribute.
func (e *Element) TextContent() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	e.appendText(&sb)
	return sb.String()
}

func (e *Element) appendText(sb *strings.Builder) {
	for _, t := range e.text {
		sb.WriteString(t)
		sb.WriteByte(' ')
	}
	for _, c := range e.Children {
		c.appendText(sb)
	}
}

// Descendants walks this element's subtree in document order, without
// crossing shadow or frame boundaries. Return false from fn to stop.
func (e *Element) Descendants(fn func(*Element) bool) {
	for _, c := range e.Children {
		if !fn(c) {
			return
		}
		c.Descendants(fn)
	}
}

// AddEventListener registers a listener for an event type.
func (e *Element) AddEventListener(eventType string, l Listener) {
	if e.listeners == nil {
		e.listeners = make(map[string][]Listener)
	}
	e.listeners[eventType] = append(e.listeners[eventType], l)
}

// Dispatch delivers the event to the element's own listeners and, when the
// event bubbles, to every ancestor's listeners so delegated handlers see it.
// Bubbling crosses a shadow boundary through the host element, as composed
// events do.
func (e *Element) Dispatch(ev Event) {
	ev.Target = e
	for node := e; node != nil; node = node.bubbleParent() {
		for _, l := range node.listeners[ev.Type] {
			l(ev)
		}
		if !ev.Bubbles {
			return
		}
	}
}

func (e *Element) bubbleParent() *Element {
	if e.Parent != nil {
		return e.Parent
	}
	// A shadow root's parent chain continues at its host.
	if e.shadowHost != nil {
		return e.shadowHost
	}
	return nil
}

// SetInlineChange installs the page-provided inline change handler, the
// equivalent of an onchange attribute with script behind it.
func (e *Element) SetInlineChange(fn func(Event)) {
	e.inlineChange = fn
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	if _, ok := e.Attrs["onchange"]; !ok {
		e.Attrs["onchange"] = "handleChange(event)"
	}
}

// HasInlineChange reports whether the element declares a direct change
// handler.
func (e *Element) HasInlineChange() bool {
	return e.HasAttr("onchange")
}

// InvokeInlineChange calls the inline handler directly.
func (e *Element) InvokeInlineChange(ev Event) {
	ev.Target = e
	e.inlineChangeCalls++
	if e.inlineChange != nil {
		e.inlineChange(ev)
	}
}

// InlineChangeCalls counts direct inline handler invocations. Test hook.
func (e *Element) InlineChangeCalls() int { return e.inlineChangeCalls }

// Focus makes this element the page's focused element.
func (e *Element) Focus() {
	if e.page != nil {
		e.page.focused = e
	}
}

// Focused returns the currently focused element, or nil.
func (p *Page) Focused() *Element { return p.focused }

// Documents returns every readable document root on the page in document
// order: the main document, then each shadow subtree, then each same-origin
// frame document (recursively, since frames can nest shadows and more
// frames). Cross-origin frames are skipped; that coverage gap is accepted,
// not an error.
func (p *Page) Documents() []*Element {
	var docs []*Element
	collectDocuments(p.Root, &docs)
	return docs
}

func collectDocuments(root *Element, docs *[]*Element) {
	if root == nil {
		return
	}
	*docs = append(*docs, root)
	root.Descendants(func(e *Element) bool {
		if e.ShadowRoot != nil {
			collectDocuments(e.ShadowRoot, docs)
		}
		if e.FrameDocument != nil && !e.CrossOrigin {
			collectDocuments(e.FrameDocument, docs)
		}
		return true
	})
}
