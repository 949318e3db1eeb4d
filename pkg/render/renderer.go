package render

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/vango-dev/fiber/pkg/vdom"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Pretty enables pretty-printed HTML output with indentation.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces if not specified.
	Indent string

	// IncludeHIDs adds a data-hid attribute to every element so the output
	// can be matched against recorded patches.
	IncludeHIDs bool
}

// Renderer serialises committed VNode trees to HTML.
type Renderer struct {
	config RendererConfig
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// ToHTML renders the children of a container, or a single node, as
// compact HTML.
func ToHTML(node *vdom.VNode) string {
	s, _ := NewRenderer(RendererConfig{}).RenderToString(node)
	return s
}

// RenderToString renders a VNode tree to an HTML string.
func (r *Renderer) RenderToString(node *vdom.VNode) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToWriter(&buf, node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToWriter streams a VNode tree to the given writer.
func (r *Renderer) RenderToWriter(w io.Writer, node *vdom.VNode) error {
	ew := &errWriter{w: w}
	r.renderNode(ew, node, 0, r.config.Pretty)
	return ew.err
}

// errWriter keeps the first write error and drops everything after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) WriteString(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

// renderNode dispatches rendering based on node kind. In pretty mode every
// node occupies its own lines.
func (r *Renderer) renderNode(w *errWriter, node *vdom.VNode, depth int, pretty bool) {
	if node == nil {
		return
	}
	switch node.Kind {
	case vdom.KindRoot:
		for _, child := range node.Children {
			r.renderNode(w, child, depth, pretty)
		}
	case vdom.KindElement:
		r.renderElement(w, node, depth, pretty)
	case vdom.KindText:
		if pretty {
			r.writeIndent(w, depth)
		}
		w.WriteString(escapeHTML(node.Text))
		if pretty {
			w.WriteString("\n")
		}
	default:
		if w.err == nil {
			w.err = fmt.Errorf("render: unknown node kind %v", node.Kind)
		}
	}
}

// renderElement renders an HTML element with its attributes and children.
func (r *Renderer) renderElement(w *errWriter, node *vdom.VNode, depth int, pretty bool) {
	tag := node.Tag

	if pretty {
		r.writeIndent(w, depth)
	}
	w.WriteString("<" + tag)
	r.renderAttributes(w, node)
	if r.config.IncludeHIDs && node.HID != "" {
		w.WriteString(` data-hid="` + escapeAttr(node.HID) + `"`)
	}
	w.WriteString(">")

	if isVoidElement(tag) {
		if pretty {
			w.WriteString("\n")
		}
		return
	}

	// Newline after opening tag only when a block element holds elements.
	block := pretty && !isInlineElement(tag) && hasElementChild(node)
	if block {
		w.WriteString("\n")
		if node.Text != "" {
			r.writeIndent(w, depth+1)
			w.WriteString(escapeHTML(node.Text) + "\n")
		}
	} else {
		w.WriteString(escapeHTML(node.Text))
	}

	for _, child := range node.Children {
		r.renderNode(w, child, depth+1, block)
	}

	if block {
		r.writeIndent(w, depth)
	}
	w.WriteString("</" + tag + ">")
	if pretty {
		w.WriteString("\n")
	}
}

func hasElementChild(node *vdom.VNode) bool {
	for _, c := range node.Children {
		if c.Kind == vdom.KindElement {
			return true
		}
	}
	return false
}

// renderAttributes renders attributes in sorted order for deterministic
// output. Event handlers are listed as data-on-* markers.
func (r *Renderer) renderAttributes(w *errWriter, node *vdom.VNode) {
	attrs := node.Attrs()
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := attrs[key]
		name := key
		switch key {
		case "className":
			name = "class"
		case "htmlFor":
			name = "for"
		}
		if value == "" && vdom.IsBooleanAttr(name) {
			w.WriteString(" " + name)
			continue
		}
		w.WriteString(" " + name + `="` + escapeAttr(value) + `"`)
	}

	var events []string
	for key := range node.Props {
		if len(key) > 2 && strings.EqualFold(key[:2], "on") {
			events = append(events, strings.ToLower(key[2:]))
		}
	}
	sort.Strings(events)
	for _, ev := range events {
		w.WriteString(" data-on-" + ev + `="true"`)
	}
}

// writeIndent writes indentation for pretty printing.
func (r *Renderer) writeIndent(w *errWriter, depth int) {
	w.WriteString(strings.Repeat(r.config.Indent, depth))
}
