package reconciler

import (
	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

type suspenseState struct{}

// beginWork renders one fiber and returns its first child, or nil when
// the fiber has nothing left to render below it.
func (r *Renderer) beginWork(current, wip *Fiber, renderTime expiration.Time) (*Fiber, error) {
	updateTime := wip.ExpirationTime

	if current != nil {
		switch {
		case !objectIs(current.MemoizedProps, wip.PendingProps):
			r.didReceiveUpdate = true
		case updateTime < renderTime:
			// Nothing to do on this fiber at this level.
			r.didReceiveUpdate = false
			switch wip.Tag {
			case HostRoot:
				r.pushContainer(wip.StateNode.(*Root).Container)
			case HostPortal:
				r.pushContainer(wip.StateNode.(*portalState).container)
			}
			return r.bailoutOnAlreadyFinishedWork(current, wip, renderTime), nil
		default:
			r.didReceiveUpdate = false
		}
	} else {
		r.didReceiveUpdate = false
	}

	wip.ExpirationTime = expiration.NoWork

	switch wip.Tag {
	case FunctionComponent:
		props, _ := wip.PendingProps.(Props)
		return r.updateFunctionComponent(current, wip, wip.Type.(*FunctionType), props, renderTime)
	case ClassComponent:
		props, _ := wip.PendingProps.(Props)
		return r.updateClassComponent(current, wip, wip.Type.(*ClassType), props, renderTime)
	case HostRoot:
		return r.updateHostRoot(current, wip, renderTime), nil
	case HostComponent:
		return r.updateHostComponent(current, wip, renderTime), nil
	case HostText:
		// Text is a leaf; its content is handled in completeWork.
		return nil, nil
	case FragmentNode:
		r.reconcileChildren(current, wip, wip.PendingProps, renderTime)
		return wip.Child, nil
	case HostPortal:
		return r.updatePortalComponent(current, wip, renderTime), nil
	case SuspenseComponent:
		return r.updateSuspenseComponent(current, wip, renderTime), nil
	}
	panic(ferrors.Violation("F006", "%v", wip.Tag))
}

func (r *Renderer) reconcileChildren(current, wip *Fiber, next Node, renderTime expiration.Time) {
	if current == nil {
		// Mounting: no side effects are tracked for the new children, the
		// whole subtree is placed together.
		c := &childReconciler{r: r, track: false, t: renderTime}
		wip.Child = c.reconcileChildFibers(wip, nil, next)
		return
	}
	c := &childReconciler{r: r, track: true, t: renderTime}
	wip.Child = c.reconcileChildFibers(wip, current.Child, next)
}

// bailoutOnAlreadyFinishedWork reuses the committed children. It returns
// nil if none of them has work either.
func (r *Renderer) bailoutOnAlreadyFinishedWork(current, wip *Fiber, renderTime expiration.Time) *Fiber {
	if wip.ChildExpirationTime < renderTime {
		return nil
	}
	cloneChildFibers(current, wip)
	return wip.Child
}

func markRef(current, wip *Fiber) {
	if (current == nil && wip.Ref != nil) || (current != nil && current.Ref != wip.Ref) {
		wip.EffectTag |= RefEffect
	}
}

func (r *Renderer) updateFunctionComponent(current, wip *Fiber, fn *FunctionType, props Props, renderTime expiration.Time) (*Fiber, error) {
	next, err := r.renderWithHooks(current, wip, fn, props, renderTime)
	if err != nil {
		return nil, err
	}
	if current != nil && !r.didReceiveUpdate {
		bailoutHooks(current, wip, renderTime)
		return r.bailoutOnAlreadyFinishedWork(current, wip, renderTime), nil
	}
	wip.EffectTag |= PerformedWork
	r.reconcileChildren(current, wip, next, renderTime)
	return wip.Child, nil
}

// bailoutHooks keeps the committed effects when a function component
// rendered without any state or props change.
func bailoutHooks(current, wip *Fiber, renderTime expiration.Time) {
	wip.hookEffects = current.hookEffects
	wip.EffectTag &^= Passive | UpdateEffect
	if current.ExpirationTime <= renderTime {
		current.ExpirationTime = expiration.NoWork
	}
}

func (r *Renderer) updateClassComponent(current, wip *Fiber, ctype *ClassType, props Props, renderTime expiration.Time) (*Fiber, error) {
	var (
		shouldUpdate bool
		err          error
	)
	switch {
	case wip.StateNode == nil:
		if _, err = r.constructClassInstance(wip, ctype, props); err != nil {
			return nil, err
		}
		if err = r.mountClassInstance(wip, ctype, props, renderTime); err != nil {
			return nil, err
		}
		shouldUpdate = true
	case current == nil:
		shouldUpdate, err = r.resumeMountClassInstance(wip, ctype, props, renderTime)
	default:
		shouldUpdate, err = r.updateClassInstance(current, wip, ctype, props, renderTime)
	}
	if err != nil {
		return nil, err
	}
	return r.finishClassComponent(current, wip, ctype, shouldUpdate, renderTime)
}

func (r *Renderer) finishClassComponent(current, wip *Fiber, ctype *ClassType, shouldUpdate bool, renderTime expiration.Time) (*Fiber, error) {
	markRef(current, wip)

	didCapture := wip.EffectTag&DidCapture != 0
	if !shouldUpdate && !didCapture {
		return r.bailoutOnAlreadyFinishedWork(current, wip, renderTime), nil
	}

	ci := wip.StateNode.(*classInstance)
	var next Node
	if didCapture && ctype.DerivedStateFromError == nil {
		// Nothing to render until DidCatch schedules an update; unmount
		// the children in the meantime.
		next = nil
	} else {
		err := guard(func() error {
			var err error
			next, err = ci.inst.Render(ci.props, ci.state)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	wip.EffectTag |= PerformedWork
	if current != nil && didCapture {
		// Never reuse children across an error: delete the old set, then
		// mount the new one.
		c := &childReconciler{r: r, track: true, t: renderTime}
		wip.Child = c.reconcileChildFibers(wip, current.Child, nil)
		wip.Child = c.reconcileChildFibers(wip, nil, next)
	} else {
		r.reconcileChildren(current, wip, next, renderTime)
	}
	wip.MemoizedState = ci.state
	return wip.Child, nil
}

func (r *Renderer) updateHostRoot(current, wip *Fiber, renderTime expiration.Time) *Fiber {
	r.pushContainer(wip.StateNode.(*Root).Container)

	prevChildren := wip.MemoizedState.(*rootState).element
	cloneUpdateQueue(current, wip)
	r.processUpdateQueue(wip, nil, renderTime)
	nextChildren := wip.MemoizedState.(*rootState).element

	if objectIs(prevChildren, nextChildren) {
		return r.bailoutOnAlreadyFinishedWork(current, wip, renderTime)
	}
	r.reconcileChildren(current, wip, nextChildren, renderTime)
	return wip.Child
}

func (r *Renderer) updateHostComponent(current, wip *Fiber, renderTime expiration.Time) *Fiber {
	typ := wip.Type.(string)
	nextProps, _ := wip.PendingProps.(Props)
	var prevProps Props
	if current != nil {
		prevProps, _ = current.MemoizedProps.(Props)
	}

	nextChildren := nextProps.Children()
	if r.host.ShouldSetTextContent(typ, nextProps) {
		// The host renders the text itself; no HostText child.
		nextChildren = nil
	} else if current != nil && r.host.ShouldSetTextContent(typ, prevProps) {
		wip.EffectTag |= ContentReset
	}

	markRef(current, wip)
	r.reconcileChildren(current, wip, nextChildren, renderTime)
	return wip.Child
}

func (r *Renderer) updatePortalComponent(current, wip *Fiber, renderTime expiration.Time) *Fiber {
	r.pushContainer(wip.StateNode.(*portalState).container)
	next := wip.PendingProps
	if current == nil {
		// Portals are placed by their children, so track them even on mount.
		c := &childReconciler{r: r, track: true, t: renderTime}
		wip.Child = c.reconcileChildFibers(wip, nil, next)
		return wip.Child
	}
	r.reconcileChildren(current, wip, next, renderTime)
	return wip.Child
}

// updateSuspenseComponent renders either the primary children or the
// fallback. Each set is wrapped in its own keyed fragment so switching
// between them replaces one with the other.
func (r *Renderer) updateSuspenseComponent(current, wip *Fiber, renderTime expiration.Time) *Fiber {
	props, _ := wip.PendingProps.(Props)

	showFallback := wip.EffectTag&DidCapture != 0
	wip.EffectTag &^= DidCapture

	var child *Element
	if showFallback {
		wip.MemoizedState = &suspenseState{}
		child = &Element{Type: Fragment, Key: "fallback", Props: Props{"children": props.Get("fallback")}}
	} else {
		wip.MemoizedState = nil
		child = &Element{Type: Fragment, Key: "primary", Props: Props{"children": props.Children()}}
	}
	r.reconcileChildren(current, wip, child, renderTime)
	return wip.Child
}
