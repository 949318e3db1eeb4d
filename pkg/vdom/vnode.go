package vdom

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement VKind = iota // <div>, <button>, etc.
	KindText                 // Plain text node
	KindRoot                 // Host container
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindRoot:
		return "Root"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k VKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *VKind) UnmarshalText(b []byte) error {
	for c := KindElement; c <= KindRoot; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("vdom: unknown node kind %q", b)
}

// VNode is a committed host node.
type VNode struct {
	Kind     VKind    // Node type
	Tag      string   // Element tag name (e.g., "div")
	Props    Props    // Attributes, without children
	Children []*VNode // Attached child nodes
	Parent   *VNode   // nil while detached
	Text     string   // For KindText, or text content set on an element
	HID      string   // Host ID, assigned on creation
	Focused  bool
}

// Props holds attributes. Values that are funcs are event handlers and
// never leave the server.
type Props map[string]any

// IsInteractive returns true if this node has event handlers.
func (v *VNode) IsInteractive() bool {
	return v != nil && v.Kind == KindElement && hasHandlers(v.Props)
}

func hasHandlers(p Props) bool {
	for key := range p {
		if isEventHandler(key) {
			return true
		}
	}
	return false
}

// Attrs returns the string attributes of an element, without event
// handlers.
func (v *VNode) Attrs() map[string]string {
	if v == nil || len(v.Props) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(v.Props))
	for key, value := range v.Props {
		if value == nil || isEventHandler(key) || strings.HasPrefix(key, "_") {
			continue
		}
		if s, ok := attrValueToString(key, value); ok {
			attrs[key] = s
		}
	}
	return attrs
}

// TextContent returns the concatenated text of the subtree.
func (v *VNode) TextContent() string {
	if v == nil {
		return ""
	}
	if v.Kind == KindText {
		return v.Text
	}
	var b strings.Builder
	b.WriteString(v.Text)
	for _, c := range v.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// Index returns the position of child among v's children, or -1.
func (v *VNode) Index(child *VNode) int {
	return slices.Index(v.Children, child)
}

// Clone returns a deep copy of the subtree. The copy is detached.
func (v *VNode) Clone() *VNode {
	if v == nil {
		return nil
	}
	c := *v
	c.Parent = nil
	if v.Props != nil {
		c.Props = make(Props, len(v.Props))
		for k, val := range v.Props {
			c.Props[k] = val
		}
	}
	c.Children = make([]*VNode, len(v.Children))
	for i, child := range v.Children {
		c.Children[i] = child.Clone()
		c.Children[i].Parent = &c
	}
	return &c
}

func (v *VNode) detach() {
	p := v.Parent
	if p == nil {
		return
	}
	if i := p.Index(v); i >= 0 {
		p.Children = slices.Delete(p.Children, i, i+1)
	}
	v.Parent = nil
}

func (v *VNode) appendChild(child *VNode) {
	child.detach()
	child.Parent = v
	v.Children = append(v.Children, child)
}

func (v *VNode) insertBefore(child, before *VNode) bool {
	child.detach()
	i := v.Index(before)
	if i < 0 {
		return false
	}
	child.Parent = v
	v.Children = slices.Insert(v.Children, i, child)
	return true
}

// nodeJSON is the wire form of a VNode.
type nodeJSON struct {
	Kind     VKind             `json:"kind"`
	Tag      string            `json:"tag,omitempty"`
	HID      string            `json:"hid,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Events   []string          `json:"events,omitempty"`
	Text     string            `json:"text,omitempty"`
	Focused  bool              `json:"focused,omitempty"`
	Children []*VNode          `json:"children,omitempty"`
}

// MarshalJSON encodes the subtree. Event handlers are listed by name.
func (v *VNode) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		Kind:     v.Kind,
		Tag:      v.Tag,
		HID:      v.HID,
		Attrs:    v.Attrs(),
		Text:     v.Text,
		Focused:  v.Focused,
		Children: v.Children,
	}
	for key := range v.Props {
		if isEventHandler(key) {
			out.Events = append(out.Events, strings.ToLower(key[2:]))
		}
	}
	sort.Strings(out.Events)
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON. Decoded event
// handlers are placeholders: their keys are present with the value true.
func (v *VNode) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*v = VNode{
		Kind:     in.Kind,
		Tag:      in.Tag,
		HID:      in.HID,
		Text:     in.Text,
		Focused:  in.Focused,
		Children: in.Children,
	}
	if len(in.Attrs)+len(in.Events) > 0 {
		v.Props = make(Props, len(in.Attrs)+len(in.Events))
		for key, val := range in.Attrs {
			v.Props[key] = val
		}
		for _, ev := range in.Events {
			v.Props["on"+ev] = true
		}
	}
	for _, c := range v.Children {
		c.Parent = v
	}
	return nil
}
