package reconciler

import (
	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// commitRoot applies root.FinishedWork to the host at immediate priority
// and schedules its passive effects.
func (r *Renderer) commitRoot(root *Root) error {
	var err error
	r.sched.RunWithPriority(scheduler.ImmediatePriority, func() {
		err = r.commitRootImpl(root)
	})
	if r.pendingPassiveRoot != nil && r.passiveTask == nil {
		r.passiveTask = r.sched.ScheduleCallback(scheduler.NormalPriority,
			scheduler.JobFunc(func(bool) (scheduler.Job, error) {
				r.passiveTask = nil
				return nil, r.flushPassiveEffects()
			}))
	}
	return err
}

func (r *Renderer) commitRootImpl(root *Root) error {
	if err := r.flushPassiveEffects(); err != nil {
		r.reportError(err)
	}
	if r.executionContext&(renderContext|commitContext) != noContext {
		panic(ferrors.Violation("F003", "commitRoot"))
	}

	finishedWork := root.FinishedWork
	t := root.FinishedExpirationTime
	if finishedWork == nil {
		return nil
	}
	root.FinishedWork = nil
	root.FinishedExpirationTime = expiration.NoWork
	if finishedWork == root.Current {
		panic(ferrors.Violation("F003", "committing the current tree again"))
	}

	start := r.sched.Now()
	r.observer.CommitStarted(root, t)

	// A commit always runs to completion, so the root callback is done.
	root.CallbackNode = nil
	root.CallbackExpirationTime = expiration.NoWork

	root.markFinishedTimeRange(t, max(finishedWork.ExpirationTime, finishedWork.ChildExpirationTime))

	if root == r.wipRoot {
		r.wipRoot = nil
		r.wip = nil
		r.renderExpirationTime = expiration.NoWork
	}

	// The root's own effect, if any, goes last.
	var firstEffect *Fiber
	if finishedWork.EffectTag > PerformedWork {
		if finishedWork.LastEffect != nil {
			finishedWork.LastEffect.NextEffect = finishedWork
			firstEffect = finishedWork.FirstEffect
		} else {
			firstEffect = finishedWork
		}
	} else {
		firstEffect = finishedWork.FirstEffect
	}

	r.effectCount = 0
	if firstEffect != nil {
		r.commitPasses(root, finishedWork, firstEffect)
		r.sched.RequestPaint()
	} else {
		root.Current = finishedWork
	}

	if r.rootDoesHavePassiveEffects {
		r.rootDoesHavePassiveEffects = false
		r.pendingPassiveRoot = root
	} else {
		// Nothing else will read the effect list; unlink it.
		for e := firstEffect; e != nil; {
			next := e.NextEffect
			e.NextEffect = nil
			e = next
		}
	}

	remaining := root.FirstPendingTime
	if remaining != expiration.NoWork {
		currentTime := r.requestCurrentTime()
		r.scheduleCallbackForRoot(root, expiration.InferPriority(currentTime, remaining), remaining)
	} else {
		r.failedLegacyBoundaries = nil
	}

	if remaining == expiration.Sync {
		if root == r.rootWithNestedUpdates {
			r.nestedUpdateCount++
		} else {
			r.nestedUpdateCount = 0
			r.rootWithNestedUpdates = root
		}
	} else {
		r.nestedUpdateCount = 0
	}

	r.observer.CommitFinished(root, t, r.effectCount, r.sched.Now()-start)

	if r.hasUncaughtError {
		err := r.firstUncaughtError
		r.hasUncaughtError = false
		r.firstUncaughtError = nil
		return err
	}
	// Layout effects may have scheduled sync work.
	return r.flushSyncCallbackQueue()
}

// commitPasses runs the snapshot, mutation and layout passes over the
// effect list. The finished tree becomes current once all three are done.
func (r *Renderer) commitPasses(root *Root, finishedWork, firstEffect *Fiber) {
	prev := r.executionContext
	r.executionContext |= commitContext
	defer func() {
		r.executionContext = prev
		r.nextEffect = nil
	}()

	r.nextEffect = firstEffect
	r.runCommitPass(r.commitBeforeMutationEffects)

	r.host.PrepareForCommit(root.Container)
	r.nextEffect = firstEffect
	r.runCommitPass(r.commitMutationEffects)
	r.host.ResetAfterCommit(root.Container)

	r.nextEffect = firstEffect
	r.runCommitPass(r.commitLayoutEffects)

	root.Current = finishedWork
}

// runCommitPass runs pass until the effect list is exhausted. An effect
// that fails is captured and skipped; the rest still run.
func (r *Renderer) runCommitPass(pass func() error) {
	for r.nextEffect != nil {
		if err := guard(pass); err != nil {
			failed := r.nextEffect
			if failed == nil {
				panic(ferrors.Violation("F003", "commit error outside of an effect"))
			}
			r.captureCommitPhaseError(failed, err)
			r.nextEffect = failed.NextEffect
		}
	}
}

func (r *Renderer) commitBeforeMutationEffects() error {
	for r.nextEffect != nil {
		e := r.nextEffect
		if e.EffectTag&Snapshot != 0 && e.Tag == ClassComponent && e.Alternate != nil {
			if err := commitSnapshot(e.Alternate, e); err != nil {
				return err
			}
		}
		r.nextEffect = e.NextEffect
	}
	return nil
}

func commitSnapshot(current, finished *Fiber) error {
	ci := finished.StateNode.(*classInstance)
	st, ok := ci.inst.(SnapshotTaker)
	if !ok {
		return nil
	}
	prevProps, _ := current.MemoizedProps.(Props)
	prevState := current.MemoizedState
	ci.props, _ = finished.MemoizedProps.(Props)
	ci.state = finished.MemoizedState
	snapshot, err := st.SnapshotBeforeUpdate(prevProps, prevState)
	if err != nil {
		return err
	}
	ci.snapshot = snapshot
	return nil
}

func (r *Renderer) commitMutationEffects() error {
	for r.nextEffect != nil {
		e := r.nextEffect
		tag := e.EffectTag

		if tag&ContentReset != 0 {
			r.host.ResetTextContent(e.StateNode)
		}
		if tag&RefEffect != 0 && e.Alternate != nil {
			commitDetachRef(e.Alternate)
		}

		switch tag & (Placement | UpdateEffect | Deletion) {
		case Placement:
			r.commitPlacement(e)
			e.EffectTag &^= Placement
		case PlacementAndUpdate:
			r.commitPlacement(e)
			e.EffectTag &^= Placement
			if err := r.commitWork(e.Alternate, e); err != nil {
				return err
			}
		case UpdateEffect:
			if err := r.commitWork(e.Alternate, e); err != nil {
				return err
			}
		case Deletion:
			r.commitDeletion(e)
		}
		r.effectCount++
		r.nextEffect = e.NextEffect
	}
	return nil
}

func (r *Renderer) commitLayoutEffects() error {
	for r.nextEffect != nil {
		e := r.nextEffect
		tag := e.EffectTag
		if tag&Passive != 0 {
			r.rootDoesHavePassiveEffects = true
		}
		if tag&(UpdateEffect|Callback) != 0 {
			if err := r.commitLifeCycles(e.Alternate, e); err != nil {
				return err
			}
		}
		if tag&RefEffect != 0 {
			r.commitAttachRef(e)
		}
		r.nextEffect = e.NextEffect
	}
	return nil
}

// hostParent finds the host node or container that f's host nodes live in.
func hostParent(f *Fiber) (parentFiber *Fiber, parent any, isContainer bool) {
	for p := f.Return; p != nil; p = p.Return {
		switch p.Tag {
		case HostComponent:
			return p, p.StateNode, false
		case HostRoot:
			return p, p.StateNode.(*Root).Container, true
		case HostPortal:
			return p, p.StateNode.(*portalState).container, true
		}
	}
	panic(ferrors.Violation("F009", "%s", f.Name()))
}

func isHostParent(f *Fiber) bool {
	return f.Tag == HostComponent || f.Tag == HostRoot || f.Tag == HostPortal
}

// hostSibling returns the host node that f's nodes must be inserted
// before, or nil to append. Siblings that are themselves being placed are
// not stable and are skipped.
func hostSibling(f *Fiber) any {
	node := f
siblings:
	for {
		for node.Sibling == nil {
			if node.Return == nil || isHostParent(node.Return) {
				return nil
			}
			node = node.Return
		}
		node.Sibling.Return = node.Return
		node = node.Sibling

		for node.Tag != HostComponent && node.Tag != HostText {
			if node.EffectTag&Placement != 0 || node.Child == nil || node.Tag == HostPortal {
				// Not stable, or its nodes live elsewhere.
				continue siblings
			}
			node.Child.Return = node
			node = node.Child
		}
		if node.EffectTag&Placement == 0 {
			return node.StateNode
		}
	}
}

// commitPlacement inserts every top-level host node of f into its parent.
func (r *Renderer) commitPlacement(f *Fiber) {
	parentFiber, parent, isContainer := hostParent(f)
	if parentFiber.EffectTag&ContentReset != 0 {
		// Clear the old text before inserting, or it would wipe the new nodes.
		r.host.ResetTextContent(parent)
		parentFiber.EffectTag &^= ContentReset
	}
	before := hostSibling(f)

	node := f
	for {
		switch {
		case node.Tag == HostComponent || node.Tag == HostText:
			switch {
			case before != nil && isContainer:
				r.host.InsertInContainerBefore(parent, node.StateNode, before)
			case before != nil:
				r.host.InsertBefore(parent, node.StateNode, before)
			case isContainer:
				r.host.AppendChildToContainer(parent, node.StateNode)
			default:
				r.host.AppendChild(parent, node.StateNode)
			}
		case node.Tag == HostPortal:
			// Portal children are placed into the portal container.
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

func (r *Renderer) commitWork(current, finished *Fiber) error {
	switch finished.Tag {
	case FunctionComponent:
		return commitHookEffects(finished, hookLayout|hookHasEffect, true)
	case HostComponent:
		if finished.StateNode == nil {
			return nil
		}
		payload := finished.updatePayload
		finished.updatePayload = nil
		if payload == nil {
			return nil
		}
		newProps, _ := finished.MemoizedProps.(Props)
		oldProps := newProps
		if current != nil {
			oldProps, _ = current.MemoizedProps.(Props)
		}
		r.host.CommitUpdate(finished.StateNode, payload, finished.Type.(string), oldProps, newProps)
	case HostText:
		newText, _ := finished.MemoizedProps.(string)
		oldText := newText
		if current != nil {
			oldText, _ = current.MemoizedProps.(string)
		}
		r.host.CommitTextUpdate(finished.StateNode, oldText, newText)
	case SuspenseComponent:
		if finished.MemoizedState != nil {
			r.globalMostRecentFallbackTime = r.sched.Now()
		}
	}
	return nil
}

// commitDeletion removes the host nodes of f and unmounts its subtree.
func (r *Renderer) commitDeletion(f *Fiber) {
	r.unmountHostComponents(f)
	detachFiber(f)
}

func (r *Renderer) unmountHostComponents(current *Fiber) {
	node := current
	var (
		parent      any
		isContainer bool
		parentFound bool
	)
	for {
		if !parentFound {
			_, parent, isContainer = hostParent(node)
			parentFound = true
		}

		switch node.Tag {
		case HostComponent, HostText:
			r.commitNestedUnmounts(node)
			if isContainer {
				r.host.RemoveChildFromContainer(parent, node.StateNode)
			} else {
				r.host.RemoveChild(parent, node.StateNode)
			}
		case HostPortal:
			if node.Child != nil {
				// Inside the portal its container is the parent.
				parent = node.StateNode.(*portalState).container
				isContainer = true
				node.Child.Return = node
				node = node.Child
				continue
			}
		default:
			r.commitUnmount(node)
			if node.Child != nil {
				node.Child.Return = node
				node = node.Child
				continue
			}
		}

		if node == current {
			return
		}
		for node.Sibling == nil {
			if node.Return == nil || node.Return == current {
				return
			}
			node = node.Return
			if node.Tag == HostPortal {
				// Leaving the portal; look the parent up again.
				parentFound = false
			}
		}
		node.Sibling.Return = node.Return
		node = node.Sibling
	}
}

// commitNestedUnmounts runs unmount hooks for the subtree of a host node
// that is about to be removed as a whole.
func (r *Renderer) commitNestedUnmounts(root *Fiber) {
	node := root
	for {
		r.commitUnmount(node)
		// Portals unmount their own children in commitUnmount.
		if node.Child != nil && node.Tag != HostPortal {
			node.Child.Return = node
			node = node.Child
			continue
		}
		if node == root {
			return
		}
		for node.Sibling == nil {
			if node.Return == nil || node.Return == root {
				return
			}
			node = node.Return
		}
		node.Sibling.Return = node.Return
		node = node.Sibling
	}
}

func (r *Renderer) commitUnmount(current *Fiber) {
	switch current.Tag {
	case FunctionComponent:
		if err := commitHookEffects(current, 0, true); err != nil {
			r.captureCommitPhaseError(current, err)
		}
	case ClassComponent:
		commitDetachRef(current)
		ci, ok := current.StateNode.(*classInstance)
		if !ok {
			return
		}
		wu, ok := ci.inst.(WillUnmounter)
		if !ok {
			return
		}
		ci.props, _ = current.MemoizedProps.(Props)
		ci.state = current.MemoizedState
		if err := guard(wu.WillUnmount); err != nil {
			r.captureCommitPhaseError(current, err)
		}
	case HostComponent:
		commitDetachRef(current)
	case HostPortal:
		r.unmountHostComponents(current)
	}
}

// detachFiber cuts a deleted fiber loose so the subtree can be collected
// and late updates to it are dropped.
func detachFiber(f *Fiber) {
	for _, x := range []*Fiber{f, f.Alternate} {
		if x == nil {
			continue
		}
		x.Return = nil
		x.Child = nil
		x.MemoizedState = nil
		x.UpdateQueue = nil
		x.hookEffects = nil
	}
}

func (r *Renderer) commitLifeCycles(current, finished *Fiber) error {
	switch finished.Tag {
	case FunctionComponent:
		return commitHookEffects(finished, hookLayout|hookHasEffect, false)

	case ClassComponent:
		ci := finished.StateNode.(*classInstance)
		ci.props, _ = finished.MemoizedProps.(Props)
		ci.state = finished.MemoizedState
		if finished.EffectTag&UpdateEffect != 0 {
			if current == nil {
				if dm, ok := ci.inst.(DidMounter); ok {
					if err := dm.DidMount(); err != nil {
						return err
					}
				}
			} else if du, ok := ci.inst.(DidUpdater); ok {
				prevProps, _ := current.MemoizedProps.(Props)
				if err := du.DidUpdate(prevProps, current.MemoizedState, ci.snapshot); err != nil {
					return err
				}
			}
		}
		if q := finished.UpdateQueue; q != nil {
			return commitUpdateQueue(q)
		}

	case HostRoot:
		if q := finished.UpdateQueue; q != nil {
			return commitUpdateQueue(q)
		}

	case HostComponent:
		if current == nil && finished.EffectTag&UpdateEffect != 0 {
			props, _ := finished.MemoizedProps.(Props)
			r.host.CommitMount(finished.StateNode, finished.Type.(string), props)
		}
	}
	return nil
}

func (r *Renderer) commitAttachRef(f *Fiber) {
	ref := f.Ref
	if ref == nil {
		return
	}
	switch f.Tag {
	case HostComponent:
		ref.Current = r.host.GetPublicInstance(f.StateNode)
	case ClassComponent:
		ref.Current = f.StateNode.(*classInstance).inst
	default:
		ref.Current = f.StateNode
	}
}

func commitDetachRef(current *Fiber) {
	if ref := current.Ref; ref != nil {
		ref.Current = nil
	}
}

// flushPassiveEffects runs the pending passive effects of the last commit.
func (r *Renderer) flushPassiveEffects() error {
	root := r.pendingPassiveRoot
	if root == nil {
		return nil
	}
	r.pendingPassiveRoot = nil
	if r.passiveTask != nil {
		r.sched.CancelCallback(r.passiveTask)
		r.passiveTask = nil
	}
	if r.executionContext&(renderContext|commitContext) != noContext {
		panic(ferrors.Violation("F003", "flushPassiveEffects"))
	}

	prev := r.executionContext
	r.executionContext |= commitContext
	func() {
		defer func() {
			r.executionContext = prev
		}()
		for e := root.Current.FirstEffect; e != nil; {
			if e.EffectTag&Passive != 0 && e.Tag == FunctionComponent {
				err := commitHookEffects(e, hookPassive|hookHasEffect, true)
				if cerr := commitHookEffects(e, hookPassive|hookHasEffect, false); err == nil {
					err = cerr
				}
				if err != nil {
					r.captureCommitPhaseError(e, err)
				}
			}
			next := e.NextEffect
			e.NextEffect = nil
			e = next
		}
	}()
	return r.flushSyncCallbackQueue()
}

// captureCommitPhaseError routes an error raised while committing source
// to the nearest boundary in the committed tree, at Sync.
func (r *Renderer) captureCommitPhaseError(source *Fiber, err error) {
	captured := createCapturedValue(err, source)
	if source.Tag == HostRoot {
		r.captureOnRoot(source, captured)
		return
	}
	for f := source.Return; f != nil; f = f.Return {
		switch f.Tag {
		case HostRoot:
			r.captureOnRoot(f, captured)
			return
		case ClassComponent:
			if r.canCatch(f) {
				enqueueUpdate(f, r.createClassErrorUpdate(f, captured, expiration.Sync))
				r.scheduleCaptured(f)
				return
			}
		}
	}
}

func (r *Renderer) captureOnRoot(rootFiber *Fiber, captured *capturedValue) {
	enqueueUpdate(rootFiber, r.createRootErrorUpdate(captured, expiration.Sync))
	r.scheduleCaptured(rootFiber)
}

func (r *Renderer) scheduleCaptured(f *Fiber) {
	root := r.markUpdateTimeFromFiberToRoot(f, expiration.Sync)
	if root != nil {
		r.scheduleCallbackForRoot(root, scheduler.ImmediatePriority, expiration.Sync)
	}
}
