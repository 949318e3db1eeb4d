// Package h builds reconciler elements.
//
// Elements are created using variadic factory functions. Arguments can be
// attributes (Attr), event handlers, or children: strings, numbers,
// elements, portals, slices and iterators of nodes.
//
//	h.Ul(h.Class("todo"),
//	    h.Range(items, func(it Item, _ int) reconciler.Node {
//	        return h.Li(h.Key(it.ID), it.Title)
//	    }),
//	)
//
// Components are placed with C, Suspense boundaries with Suspense.
package h
