package reconciler

import (
	"errors"

	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

// throwException marks the nearest boundary above source that can handle
// err. Suspensions go to the closest Suspense boundary with a fallback;
// other errors go to the closest class boundary, or the root.
func (r *Renderer) throwException(root *Root, returnFiber, source *Fiber, status stepStatus, err error, renderTime expiration.Time) {
	// The source did not complete.
	source.EffectTag |= Incomplete
	source.FirstEffect = nil
	source.LastEffect = nil

	if status == stepSuspended {
		var se *SuspendError
		if errors.As(err, &se) && se.Wakeable != nil {
			if r.throwSuspense(root, returnFiber, source, se.Wakeable, renderTime) {
				return
			}
			err = ferrors.New("F020").
				WithSubject("%s", source.Name()).
				WithComponentStack(componentStack(source)).
				Wrap(err)
		}
	}

	r.renderDidError()
	captured := createCapturedValue(err, source)
	for wip := returnFiber; wip != nil; wip = wip.Return {
		switch wip.Tag {
		case HostRoot:
			wip.EffectTag |= ShouldCapture
			wip.ExpirationTime = renderTime
			enqueueCapturedUpdate(wip, r.createRootErrorUpdate(captured, renderTime))
			return
		case ClassComponent:
			if wip.EffectTag&DidCapture == 0 && r.canCatch(wip) {
				wip.EffectTag |= ShouldCapture
				wip.ExpirationTime = renderTime
				enqueueCapturedUpdate(wip, r.createClassErrorUpdate(wip, captured, renderTime))
				return
			}
		}
	}
}

// throwSuspense attaches listeners for w and marks the nearest Suspense
// boundary. It reports false if no boundary can show a fallback.
func (r *Renderer) throwSuspense(root *Root, returnFiber, source *Fiber, w Wakeable, renderTime expiration.Time) bool {
	for wip := returnFiber; wip != nil; wip = wip.Return {
		if wip.Tag != SuspenseComponent || !shouldCaptureSuspense(wip) {
			continue
		}

		key := retryKey{boundary: wip, wakeable: w}
		if _, ok := r.retryCache[key]; !ok {
			r.retryCache[key] = struct{}{}
			boundary := wip
			w.Then(func() {
				r.retryTimedOutBoundary(boundary, w)
			})
		}
		r.attachPingListener(root, renderTime, w)

		wip.EffectTag |= ShouldCapture
		wip.ExpirationTime = renderTime
		return true
	}
	return false
}

// attachPingListener re-renders root at t once w resolves, unless the
// boundary retry already took care of it.
func (r *Renderer) attachPingListener(root *Root, t expiration.Time, w Wakeable) {
	if root.pingCache == nil {
		root.pingCache = make(map[pingKey]struct{})
	}
	key := pingKey{wakeable: w, t: t}
	if _, ok := root.pingCache[key]; ok {
		return
	}
	root.pingCache[key] = struct{}{}
	w.Then(func() {
		r.pingSuspendedRoot(root, w, t)
	})
}

// shouldCaptureSuspense reports whether a Suspense fiber can show its
// fallback. A boundary that already shows the fallback cannot.
func shouldCaptureSuspense(f *Fiber) bool {
	if f.MemoizedState != nil {
		return false
	}
	props, _ := f.MemoizedProps.(Props)
	_, ok := props["fallback"]
	return ok
}

func (r *Renderer) canCatch(f *Fiber) bool {
	ctype, ok := f.Type.(*ClassType)
	if !ok {
		return false
	}
	if ctype.DerivedStateFromError != nil {
		return true
	}
	ci, _ := f.StateNode.(*classInstance)
	if ci == nil {
		return false
	}
	if _, ok := ci.inst.(DidCatcher); !ok {
		return false
	}
	_, failed := r.failedLegacyBoundaries[ci]
	return !failed
}

func (r *Renderer) markLegacyBoundaryFailed(ci *classInstance) {
	if r.failedLegacyBoundaries == nil {
		r.failedLegacyBoundaries = make(map[*classInstance]struct{})
	}
	r.failedLegacyBoundaries[ci] = struct{}{}
}

// createRootErrorUpdate unmounts the whole tree and reports the error once
// the empty tree commits.
func (r *Renderer) createRootErrorUpdate(captured *capturedValue, t expiration.Time) *Update {
	u := createUpdate(t, nil)
	u.Tag = CaptureUpdate
	u.Payload = &rootState{}
	u.Callback = func() error {
		r.onUncaught(captured)
		return nil
	}
	return u
}

func (r *Renderer) createClassErrorUpdate(f *Fiber, captured *capturedValue, t expiration.Time) *Update {
	u := createUpdate(t, nil)
	u.Tag = CaptureUpdate

	ctype := f.Type.(*ClassType)
	if derive := ctype.DerivedStateFromError; derive != nil {
		err := captured.err
		u.Payload = StateFunc(func(any, Props) any {
			return derive(err)
		})
	}

	ci, _ := f.StateNode.(*classInstance)
	u.Callback = func() error {
		r.logger.Warn("reconciler: error captured by boundary",
			"boundary", f.Name(),
			"source", captured.where.Name(),
			"error", captured.err,
		)
		if ci == nil {
			return nil
		}
		dc, ok := ci.inst.(DidCatcher)
		if !ok {
			return nil
		}
		if ctype.DerivedStateFromError == nil {
			// Without derived state the boundary re-renders from DidCatch;
			// a second error in the same batch must go further up.
			r.markLegacyBoundaryFailed(ci)
		}
		return dc.DidCatch(captured.err, captured.info)
	}
	return u
}

func (r *Renderer) onUncaught(captured *capturedValue) {
	err := &UncaughtError{Err: captured.err, ComponentStack: captured.info.ComponentStack}
	r.logger.Error("reconciler: uncaught error", "error", captured.err, "source", captured.where.Name())
	if r.onUncaughtError != nil {
		r.onUncaughtError(err)
	}
	if !r.hasUncaughtError {
		r.hasUncaughtError = true
		r.firstUncaughtError = err
	}
}

// unwindWork pops the stacks pushed by f and, if f captured an error,
// flips ShouldCapture to DidCapture and returns f to be rendered again.
func (r *Renderer) unwindWork(f *Fiber) *Fiber {
	switch f.Tag {
	case ClassComponent, SuspenseComponent:
		if f.EffectTag&ShouldCapture != 0 {
			f.EffectTag = f.EffectTag&^ShouldCapture | DidCapture
			return f
		}
	case HostRoot:
		r.popContainer()
		if f.EffectTag&DidCapture != 0 {
			panic(ferrors.Violation("F011", "root %p", f))
		}
		f.EffectTag = f.EffectTag&^ShouldCapture | DidCapture
		return f
	case HostPortal:
		r.popContainer()
	}
	return nil
}

// unwindInterruptedWork pops the stacks of a fiber whose render is being
// thrown away.
func (r *Renderer) unwindInterruptedWork(f *Fiber) {
	switch f.Tag {
	case HostRoot, HostPortal:
		r.popContainer()
	}
}
