// Package reconciler implements an incremental, interruptible tree
// reconciler.
//
// Components describe a tree of Elements. A Renderer turns each
// description into a tree of Fibers, diffs it against the committed tree,
// and applies the difference to a host through a HostConfig. Work is split
// into two phases:
//
//   - Render: fibers are begun and completed one at a time. On a concurrent
//     root the loop yields back to the Scheduler between fibers, and work
//     at a higher priority can interrupt and restart it. Render never
//     touches the committed host tree.
//   - Commit: the list of effects collected during render is applied in
//     three passes (snapshot, mutation, layout). Commit is synchronous and
//     cannot be interrupted.
//
// Each update carries an expiration time (see package expiration). Updates
// at the same time are batched into one render; lower priority updates are
// skipped and rebased on top of higher priority ones so the final state is
// the same as if every update had been applied in order.
//
// Errors returned or panicked by components are routed to the nearest
// error boundary, a class component that implements DidCatcher or whose
// type sets DerivedStateFromError. Errors no boundary captures unmount the
// root and are returned from the call that flushed the work. Components
// may also return a SuspendError to wait on a Wakeable; the nearest
// Suspense element shows its fallback until it resolves.
//
// A minimal program:
//
//	sched := scheduler.New()
//	r := reconciler.New(host, sched)
//	root := r.CreateContainer(container, reconciler.LegacyRoot)
//	if _, err := r.UpdateContainer(reconciler.CreateElement("div", nil, "hi"), root, nil); err != nil {
//		log.Fatal(err)
//	}
//
// A Renderer and every Root it creates belong to a single goroutine.
package reconciler
