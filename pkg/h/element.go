package h

import (
	"iter"

	"github.com/vango-dev/fiber/pkg/reconciler"
)

// Attr represents a single attribute or event handler.
type Attr struct {
	Key   string
	Value any
}

// IsEmpty returns true if this is an empty/nil attribute.
func (a Attr) IsEmpty() bool {
	return a.Key == ""
}

// attr creates an Attr with the given key and value.
func attr(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// El creates an element for a host tag or a component type.
// Arguments can be: nil, Attr, []Attr, reconciler.Props or any child node.
func El(typ any, args ...any) *reconciler.Element {
	props := reconciler.Props{}
	var children []reconciler.Node

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// Ignore nil (allows conditional attributes)
			continue

		case Attr:
			if !v.IsEmpty() {
				props[v.Key] = v.Value
			}

		case []Attr:
			for _, a := range v {
				if !a.IsEmpty() {
					props[a.Key] = a.Value
				}
			}

		case reconciler.Props:
			for k, val := range v {
				props[k] = val
			}

		case *reconciler.Element:
			if v != nil {
				children = append(children, v)
			}

		case []*reconciler.Element:
			for _, child := range v {
				if child != nil {
					children = append(children, child)
				}
			}

		default:
			// Text, portals, node slices and iterators pass through.
			children = append(children, v)
		}
	}

	return reconciler.CreateElement(typ, props, children...)
}

// C places a component.
func C(component any, args ...any) *reconciler.Element {
	return El(component, args...)
}

// Fragment groups children without a wrapper element.
func Fragment(args ...any) *reconciler.Element {
	return El(reconciler.Fragment, args...)
}

// Suspense shows fallback while any child is suspended.
func Suspense(fallback reconciler.Node, args ...any) *reconciler.Element {
	return El(reconciler.Suspense, append([]any{attr("fallback", fallback)}, args...)...)
}

// Portal renders children into another host container.
func Portal(container any, key string, children ...reconciler.Node) *reconciler.Portal {
	var c reconciler.Node
	switch len(children) {
	case 0:
	case 1:
		c = children[0]
	default:
		c = children
	}
	return reconciler.CreatePortal(c, container, key)
}

// Seq turns an iterator of nodes into a child.
func Seq(seq iter.Seq[reconciler.Node]) reconciler.Node {
	return seq
}
