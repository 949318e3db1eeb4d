// Package vdom is an in-memory host for the reconciler.
//
// VNode is a committed host node: elements, text and root containers. Host
// implements reconciler.HostConfig over VNode trees and records every
// mutation of an attached tree as a Patch, so a commit can be replayed on a
// remote copy of the tree.
//
// # Patches
//
// Nodes are addressed by host IDs (HID) handed out by an HIDGenerator when
// the node is created. Inserting a fresh subtree produces one InsertNode
// patch that carries a snapshot of the subtree; moving an attached node
// produces MoveNode. Attribute changes are diffed in PrepareUpdate, so
// the render phase decides what changes and the commit phase only applies
// it.
//
//	host := vdom.NewHost(sched)
//	r := reconciler.New(host, sched)
//	root := r.CreateContainer(host.NewContainer(), reconciler.LegacyRoot)
//	r.UpdateContainer(h.Div(h.Text("hi")), root, nil)
//	patches := host.TakePatches()
package vdom
