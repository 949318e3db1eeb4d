package reconciler

import (
	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

// completeUnitOfWork completes unit and walks up until it finds a sibling
// to begin next. The completed subtree's effects are appended to the
// parent's effect list on the way. If something in the chain errors,
// r.wip is left at the failing fiber.
func (r *Renderer) completeUnitOfWork(unit *Fiber) (*Fiber, error) {
	r.wip = unit
	for {
		f := r.wip
		current := f.Alternate
		returnFiber := f.Return

		if f.EffectTag&Incomplete == 0 {
			var next *Fiber
			err := guard(func() error {
				next = r.completeWork(current, f)
				return nil
			})
			if err != nil {
				return nil, err
			}
			r.resetChildExpirationTime(f)
			if next != nil {
				return next, nil
			}

			if returnFiber != nil && returnFiber.EffectTag&Incomplete == 0 {
				if returnFiber.FirstEffect == nil {
					returnFiber.FirstEffect = f.FirstEffect
				}
				if f.LastEffect != nil {
					if returnFiber.LastEffect != nil {
						returnFiber.LastEffect.NextEffect = f.FirstEffect
					}
					returnFiber.LastEffect = f.LastEffect
				}
				// A fiber's own effect goes after its children's.
				if f.EffectTag > PerformedWork {
					if returnFiber.LastEffect != nil {
						returnFiber.LastEffect.NextEffect = f
					} else {
						returnFiber.FirstEffect = f
					}
					returnFiber.LastEffect = f
				}
			}
		} else {
			// f threw. Restore the stacks and see if it is the boundary.
			if next := r.unwindWork(f); next != nil {
				next.EffectTag &= HostEffectMask
				return next, nil
			}
			if returnFiber != nil {
				returnFiber.FirstEffect = nil
				returnFiber.LastEffect = nil
				returnFiber.EffectTag |= Incomplete
			}
		}

		if f.Sibling != nil {
			return f.Sibling, nil
		}
		r.wip = returnFiber
		if returnFiber == nil {
			break
		}
	}

	if r.exitStatus == StatusRendering {
		r.exitStatus = StatusCompleted
	}
	return nil, nil
}

// completeWork creates or diffs the host node of f. It returns a fiber
// only if completing produced new work.
func (r *Renderer) completeWork(current, f *Fiber) *Fiber {
	switch f.Tag {
	case FunctionComponent, ClassComponent, FragmentNode:
	case HostRoot, HostPortal:
		r.popContainer()
	case HostComponent:
		r.completeHostComponent(current, f)
	case HostText:
		text, _ := f.PendingProps.(string)
		if current != nil && f.StateNode != nil {
			if old, _ := current.MemoizedProps.(string); old != text {
				f.EffectTag |= UpdateEffect
			}
		} else {
			f.StateNode = r.host.CreateTextInstance(text, r.rootContainer())
		}
	case SuspenseComponent:
		nextDidTimeout := f.MemoizedState != nil
		prevDidTimeout := current != nil && current.MemoizedState != nil
		if nextDidTimeout && !prevDidTimeout && f.Mode&ConcurrentMode != 0 {
			if current == nil {
				r.renderDidSuspend()
			} else {
				r.renderDidSuspendDelayIfPossible()
			}
		}
		if nextDidTimeout || prevDidTimeout {
			f.EffectTag |= UpdateEffect
		}
	default:
		panic(ferrors.Violation("F006", "%v", f.Tag))
	}
	return nil
}

func (r *Renderer) completeHostComponent(current, f *Fiber) {
	typ := f.Type.(string)
	newProps, _ := f.PendingProps.(Props)

	if current != nil && f.StateNode != nil {
		oldProps, _ := current.MemoizedProps.(Props)
		if !objectIs(oldProps, newProps) {
			f.updatePayload = r.host.PrepareUpdate(f.StateNode, typ, oldProps, newProps)
			if f.updatePayload != nil {
				f.EffectTag |= UpdateEffect
			}
		}
		if current.Ref != f.Ref {
			f.EffectTag |= RefEffect
		}
		return
	}

	inst := r.host.CreateInstance(typ, newProps, r.rootContainer())
	r.appendAllChildren(inst, f)
	if r.host.FinalizeInitialChildren(inst, typ, newProps) {
		f.EffectTag |= UpdateEffect
	}
	f.StateNode = inst
	if f.Ref != nil {
		f.EffectTag |= RefEffect
	}
}

// appendAllChildren attaches the nearest host descendants of f to parent.
// Portals keep their children in their own container.
func (r *Renderer) appendAllChildren(parent any, f *Fiber) {
	node := f.Child
	for node != nil {
		switch {
		case node.Tag == HostComponent || node.Tag == HostText:
			r.host.AppendInitialChild(parent, node.StateNode)
		case node.Tag == HostPortal:
		case node.Child != nil:
			node.Child.Return = node
			node = node.Child
			continue
		}
		if node == f {
			return
		}
		for node.Sibling == nil {
			if node.Return == nil || node.Return == f {
				return
			}
			node = node.Return
		}
		node.Sibling.Return = node.Return
		node = node.Sibling
	}
}

// resetChildExpirationTime recomputes the highest pending time below f.
func (r *Renderer) resetChildExpirationTime(f *Fiber) {
	if r.renderExpirationTime != expiration.Never && f.ChildExpirationTime == expiration.Never {
		// Hidden children keep their deferred work.
		return
	}
	next := expiration.NoWork
	for child := f.Child; child != nil; child = child.Sibling {
		next = max(next, child.ExpirationTime, child.ChildExpirationTime)
	}
	f.ChildExpirationTime = next
}
