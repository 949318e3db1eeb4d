package reconciler

import (
	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// CreateContainer creates an empty root bound to a host container.
func (r *Renderer) CreateContainer(container any, tag RootTag) *Root {
	return newRoot(container, tag)
}

// UpdateContainer schedules element as the new content of root at a time
// derived from the current priority, and returns that time. On a legacy
// root, or inside FlushSync, the update is committed before returning.
// callback runs once the update is committed.
func (r *Renderer) UpdateContainer(element Node, root *Root, callback func()) (expiration.Time, error) {
	if root == nil || root.Current == nil {
		panic(ferrors.Violation("F010", "UpdateContainer"))
	}
	currentTime := r.requestCurrentTime()
	t := r.computeExpirationForFiber(currentTime, root.Current, nil)
	return t, r.UpdateContainerAtExpirationTime(element, root, t, callback)
}

// UpdateContainerAtExpirationTime is UpdateContainer with an explicit
// expiration time.
func (r *Renderer) UpdateContainerAtExpirationTime(element Node, root *Root, t expiration.Time, callback func()) error {
	if root == nil || root.Current == nil {
		panic(ferrors.Violation("F010", "UpdateContainerAtExpirationTime"))
	}
	u := createUpdate(t, nil)
	u.Payload = &rootState{element: element}
	if callback != nil {
		u.Callback = func() error {
			callback()
			return nil
		}
	}

	if err := r.flushPassiveEffects(); err != nil {
		r.reportError(err)
	}
	enqueueUpdate(root.Current, u)
	return r.entryResult(r.scheduleUpdateOnFiber(root.Current, t))
}

// UpdateContainerUnique schedules element in an async batch of its own.
// The time is lower than any earlier unique time from this renderer, so
// the update never coalesces with another one and commits separately.
func (r *Renderer) UpdateContainerUnique(element Node, root *Root, callback func()) (expiration.Time, error) {
	if root == nil || root.Current == nil {
		panic(ferrors.Violation("F010", "UpdateContainerUnique"))
	}
	t := r.uniqueAsync.ComputeUniqueAsync(r.requestCurrentTime())
	return t, r.UpdateContainerAtExpirationTime(element, root, t, callback)
}

// BatchedUpdates runs fn and renders the updates it schedules together.
func (r *Renderer) BatchedUpdates(fn func()) error {
	prev := r.executionContext
	r.executionContext |= batchedContext
	func() {
		defer func() {
			r.executionContext = prev
		}()
		fn()
	}()
	var err error
	if r.executionContext == noContext {
		err = r.flushSyncCallbackQueue()
	}
	return r.entryResult(err)
}

// DiscreteUpdates runs fn at user-blocking priority, as for a discrete
// input event.
func (r *Renderer) DiscreteUpdates(fn func()) error {
	prev := r.executionContext
	r.executionContext |= eventContext
	func() {
		defer func() {
			r.executionContext = prev
		}()
		r.sched.RunWithPriority(scheduler.UserBlockingPriority, fn)
	}()
	var err error
	if r.executionContext == noContext {
		err = r.flushSyncCallbackQueue()
	}
	return r.entryResult(err)
}

// DeferredUpdates runs fn at normal priority.
func (r *Renderer) DeferredUpdates(fn func()) {
	r.sched.RunWithPriority(scheduler.NormalPriority, fn)
}

// FlushSync runs fn at immediate priority and commits all synchronous
// work before returning. It panics when called from render or commit.
func (r *Renderer) FlushSync(fn func()) error {
	if r.executionContext&(renderContext|commitContext) != noContext {
		panic(ferrors.Violation("F003", "FlushSync inside render or commit"))
	}
	prev := r.executionContext
	r.executionContext |= batchedContext
	func() {
		defer func() {
			r.executionContext = prev
		}()
		if fn != nil {
			r.sched.RunWithPriority(scheduler.ImmediatePriority, fn)
		}
	}()
	return r.entryResult(r.flushSyncCallbackQueue())
}

// FlushPassiveEffects runs pending passive effects now instead of waiting
// for their scheduled task.
func (r *Renderer) FlushPassiveEffects() error {
	return r.entryResult(r.flushPassiveEffects())
}

// PublicRootInstance returns the public instance of the root's first
// child: the host node, the class instance, or nil.
func (r *Renderer) PublicRootInstance(root *Root) any {
	child := root.Current.Child
	if child == nil {
		return nil
	}
	switch child.Tag {
	case HostComponent:
		return r.host.GetPublicInstance(child.StateNode)
	case ClassComponent:
		return child.StateNode.(*classInstance).inst
	}
	return child.StateNode
}
