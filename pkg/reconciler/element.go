package reconciler

import (
	"iter"
)

// Node is anything a component may render: nil, a bool (renders nothing),
// a string or number (text), an *Element, a *Portal, a []Node or an
// iter.Seq[Node].
type Node = any

// Props holds element properties. Children live under the "children" key.
type Props map[string]any

// Children returns the children stored in p.
func (p Props) Children() Node {
	if p == nil {
		return nil
	}
	return p["children"]
}

// Get returns the value stored under key, or nil.
func (p Props) Get(key string) any {
	if p == nil {
		return nil
	}
	return p[key]
}

// Element describes one node of the declarative tree.
type Element struct {
	// Type is a host tag (string), a *FunctionType, a *ClassType,
	// Fragment or Suspense.
	Type any

	// Key identifies the element among its siblings. Empty means unkeyed.
	Key string

	// Ref receives the public instance once the element is committed.
	Ref *Ref

	Props Props
}

// Ref is a mutable box that is filled during the layout pass and cleared
// when the owning node is detached.
type Ref struct {
	Current any
}

// Portal renders its children into a different host container.
type Portal struct {
	Key       string
	Container any
	Children  Node
}

// FragmentType is the element type of Fragment.
type FragmentType struct{}

// SuspenseType is the element type of Suspense.
type SuspenseType struct{}

var (
	// Fragment groups children without adding a host node.
	Fragment = FragmentType{}

	// Suspense shows the "fallback" prop while any descendant is suspended.
	Suspense = SuspenseType{}
)

// CreateElement builds an element. Extra arguments become the children.
// The "key" prop, when a string, becomes the element key.
func CreateElement(typ any, props Props, children ...Node) *Element {
	el := &Element{Type: typ, Props: Props{}}
	for k, v := range props {
		switch k {
		case "key":
			if s, ok := v.(string); ok {
				el.Key = s
			}
		case "ref":
			if r, ok := v.(*Ref); ok {
				el.Ref = r
			}
		default:
			el.Props[k] = v
		}
	}
	switch len(children) {
	case 0:
	case 1:
		el.Props["children"] = children[0]
	default:
		el.Props["children"] = children
	}
	return el
}

// CreatePortal renders children into container.
func CreatePortal(children Node, container any, key string) *Portal {
	return &Portal{Key: key, Container: container, Children: children}
}

// Seq adapts a sequence of nodes into a child iterator.
func Seq(nodes ...Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		for _, n := range nodes {
			if !yield(n) {
				return
			}
		}
	}
}

// RenderFunc renders a function component.
type RenderFunc func(h *Hooks, props Props) (Node, error)

// FunctionType is a function component. Use a single value per component:
// the reconciler compares types by pointer.
type FunctionType struct {
	Name   string
	Render RenderFunc
}

// Func declares a function component.
func Func(name string, render RenderFunc) *FunctionType {
	return &FunctionType{Name: name, Render: render}
}

// ClassType is a stateful component whose instance survives across renders.
type ClassType struct {
	Name string

	// New constructs an instance. The updater lets it schedule its own
	// updates with SetState and ForceUpdate.
	New func(props Props, u *Updater) Instance

	// DerivedStateFromProps, if set, returns a partial state computed from
	// the next props. Nil means no change.
	DerivedStateFromProps func(props Props, state any) any

	// DerivedStateFromError, if set, turns the component into an error
	// boundary and returns the partial state to render after a descendant
	// failed.
	DerivedStateFromError func(err error) any
}

// Class declares a class component.
func Class(name string, ctor func(props Props, u *Updater) Instance) *ClassType {
	return &ClassType{Name: name, New: ctor}
}

// componentName returns a readable name for an element type.
func componentName(typ any) string {
	switch t := typ.(type) {
	case string:
		return t
	case *FunctionType:
		if t.Name != "" {
			return t.Name
		}
		return "Anonymous"
	case *ClassType:
		if t.Name != "" {
			return t.Name
		}
		return "AnonymousClass"
	case FragmentType:
		return "Fragment"
	case SuspenseType:
		return "Suspense"
	}
	return "Unknown"
}
