package h

import (
	"fmt"

	"github.com/vango-dev/fiber/pkg/reconciler"
)

// Text creates a text node.
func Text(content string) reconciler.Node {
	return content
}

// Textf creates a formatted text node.
func Textf(format string, args ...any) reconciler.Node {
	return fmt.Sprintf(format, args...)
}

// If returns the node if condition is true, nil otherwise.
func If(condition bool, node reconciler.Node) reconciler.Node {
	if condition {
		return node
	}
	return nil
}

// IfElse returns the first node if condition is true, the second otherwise.
func IfElse(condition bool, ifTrue, ifFalse reconciler.Node) reconciler.Node {
	if condition {
		return ifTrue
	}
	return ifFalse
}

// When is like If but with lazy evaluation.
// The function is only called if condition is true.
func When(condition bool, fn func() reconciler.Node) reconciler.Node {
	if condition {
		return fn()
	}
	return nil
}

// Case represents a case in a Switch statement.
type Case[T comparable] struct {
	Value     T
	Node      reconciler.Node
	IsDefault bool
}

// Case_ creates a case for Switch.
func Case_[T comparable](value T, node reconciler.Node) Case[T] {
	return Case[T]{Value: value, Node: node}
}

// Default creates a default case for Switch.
func Default[T comparable](node reconciler.Node) Case[T] {
	return Case[T]{Node: node, IsDefault: true}
}

// Switch returns the node for the matching case value.
// If no case matches and there's a default, the default node is returned.
func Switch[T comparable](value T, cases ...Case[T]) reconciler.Node {
	for _, c := range cases {
		if !c.IsDefault && c.Value == value {
			return c.Node
		}
	}
	for _, c := range cases {
		if c.IsDefault {
			return c.Node
		}
	}
	return nil
}

// Range maps a slice to child nodes.
func Range[T any](items []T, fn func(item T, index int) reconciler.Node) []reconciler.Node {
	result := make([]reconciler.Node, 0, len(items))
	for i, item := range items {
		if node := fn(item, i); node != nil {
			result = append(result, node)
		}
	}
	return result
}

// Repeat creates n nodes using the given function.
func Repeat(n int, fn func(i int) reconciler.Node) []reconciler.Node {
	if n <= 0 {
		return nil
	}
	result := make([]reconciler.Node, 0, n)
	for i := range n {
		if node := fn(i); node != nil {
			result = append(result, node)
		}
	}
	return result
}
