package reconciler

import (
	"github.com/vango-dev/fiber/pkg/expiration"
)

// Instance is a class component instance.
type Instance interface {
	Render(props Props, state any) (Node, error)
}

// The optional lifecycle interfaces below are detected on the instance.
type (
	// InitialStater provides the state before the first render.
	InitialStater interface {
		InitialState(props Props) any
	}

	// UpdateDecider can skip a re-render.
	UpdateDecider interface {
		ShouldUpdate(oldProps, newProps Props, oldState, newState any) bool
	}

	// SnapshotTaker captures host information before mutations. The value
	// is passed to DidUpdate.
	SnapshotTaker interface {
		SnapshotBeforeUpdate(prevProps Props, prevState any) (any, error)
	}

	DidMounter interface {
		DidMount() error
	}

	DidUpdater interface {
		DidUpdate(prevProps Props, prevState any, snapshot any) error
	}

	WillUnmounter interface {
		WillUnmount() error
	}

	// DidCatcher turns the component into an error boundary. Without
	// DerivedStateFromError on its type it unmounts its children after an
	// error and will not catch again until the root finishes its work.
	DidCatcher interface {
		DidCatch(err error, info ErrorInfo) error
	}
)

// classInstance is the StateNode of a class fiber.
type classInstance struct {
	inst     Instance
	updater  *Updater
	props    Props
	state    any
	snapshot any
}

// Updater schedules updates on behalf of a class instance.
type Updater struct {
	r     *Renderer
	fiber *Fiber
}

func (u *Updater) enqueue(tag UpdateTag, payload any, callback func()) {
	if u.fiber == nil {
		return
	}
	r, fiber := u.r, u.fiber
	currentTime := r.requestCurrentTime()
	t := r.computeExpirationForFiber(currentTime, fiber, nil)

	update := createUpdate(t, nil)
	update.Tag = tag
	update.Payload = payload
	if callback != nil {
		update.Callback = func() error {
			callback()
			return nil
		}
	}

	enqueueUpdate(fiber, update)
	if err := r.scheduleUpdateOnFiber(fiber, t); err != nil {
		r.reportError(err)
	}
}

// SetState merges partial into the state. partial may be a StateFunc.
// callback, if not nil, runs after the update is committed.
func (u *Updater) SetState(partial any, callback func()) {
	u.enqueue(UpdateState, partial, callback)
}

// ReplaceState replaces the state.
func (u *Updater) ReplaceState(state any, callback func()) {
	u.enqueue(ReplaceState, state, callback)
}

// ForceUpdate re-renders the component even if ShouldUpdate would refuse.
func (u *Updater) ForceUpdate(callback func()) {
	u.enqueue(ForceUpdate, nil, callback)
}

func (r *Renderer) applyDerivedStateFromProps(wip *Fiber, ctype *ClassType, props Props) {
	prev := wip.MemoizedState
	partial := ctype.DerivedStateFromProps(props, prev)
	state := prev
	if partial != nil {
		state = mergeState(prev, partial)
	}
	wip.MemoizedState = state

	// Once the update queue is empty, persist the derived state onto the
	// base state.
	if q := wip.UpdateQueue; q != nil && wip.ExpirationTime == expiration.NoWork {
		q.BaseState = state
	}
}

func (r *Renderer) constructClassInstance(wip *Fiber, ctype *ClassType, props Props) (*classInstance, error) {
	u := &Updater{r: r}
	ci := &classInstance{updater: u}
	err := guard(func() error {
		ci.inst = ctype.New(props, u)
		if is, ok := ci.inst.(InitialStater); ok {
			wip.MemoizedState = is.InitialState(props)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.fiber = wip
	wip.StateNode = ci
	return ci, nil
}

func (r *Renderer) mountClassInstance(wip *Fiber, ctype *ClassType, props Props, renderTime expiration.Time) error {
	ci := wip.StateNode.(*classInstance)
	initializeUpdateQueue(wip)
	r.processUpdateQueue(wip, props, renderTime)

	if ctype.DerivedStateFromProps != nil {
		if err := guard(func() error {
			r.applyDerivedStateFromProps(wip, ctype, props)
			return nil
		}); err != nil {
			return err
		}
	}

	ci.props = props
	ci.state = wip.MemoizedState
	if _, ok := ci.inst.(DidMounter); ok {
		wip.EffectTag |= UpdateEffect
	}
	return nil
}

// resumeMountClassInstance re-renders an instance that was created during
// this render but never committed, e.g. a boundary that just captured.
func (r *Renderer) resumeMountClassInstance(wip *Fiber, ctype *ClassType, props Props, renderTime expiration.Time) (bool, error) {
	ci := wip.StateNode.(*classInstance)
	r.processUpdateQueue(wip, props, renderTime)
	if ctype.DerivedStateFromProps != nil {
		if err := guard(func() error {
			r.applyDerivedStateFromProps(wip, ctype, props)
			return nil
		}); err != nil {
			return false, err
		}
	}
	ci.props = props
	ci.state = wip.MemoizedState
	if _, ok := ci.inst.(DidMounter); ok {
		wip.EffectTag |= UpdateEffect
	}
	return true, nil
}

func (r *Renderer) updateClassInstance(current, wip *Fiber, ctype *ClassType, newProps Props, renderTime expiration.Time) (bool, error) {
	ci := wip.StateNode.(*classInstance)

	cloneUpdateQueue(current, wip)

	oldProps, _ := wip.MemoizedProps.(Props)
	oldState := wip.MemoizedState
	r.processUpdateQueue(wip, newProps, renderTime)
	newState := wip.MemoizedState

	currentProps := current.MemoizedProps
	currentState := current.MemoizedState
	markUnchanged := func() {
		// The lifecycles still fire if an earlier render of this same
		// commit changed props or state.
		if !objectIs(oldProps, currentProps) || !objectIs(oldState, currentState) {
			if _, ok := ci.inst.(DidUpdater); ok {
				wip.EffectTag |= UpdateEffect
			}
			if _, ok := ci.inst.(SnapshotTaker); ok {
				wip.EffectTag |= Snapshot
			}
		}
	}

	if objectIs(oldProps, newProps) && objectIs(oldState, newState) && !r.hasForceUpdate {
		markUnchanged()
		return false, nil
	}

	if ctype.DerivedStateFromProps != nil {
		if err := guard(func() error {
			r.applyDerivedStateFromProps(wip, ctype, newProps)
			return nil
		}); err != nil {
			return false, err
		}
		newState = wip.MemoizedState
	}

	shouldUpdate := r.hasForceUpdate
	if !shouldUpdate {
		shouldUpdate = true
		if d, ok := ci.inst.(UpdateDecider); ok {
			if err := guard(func() error {
				shouldUpdate = d.ShouldUpdate(oldProps, newProps, oldState, newState)
				return nil
			}); err != nil {
				return false, err
			}
		}
	}

	if shouldUpdate {
		if _, ok := ci.inst.(DidUpdater); ok {
			wip.EffectTag |= UpdateEffect
		}
		if _, ok := ci.inst.(SnapshotTaker); ok {
			wip.EffectTag |= Snapshot
		}
	} else {
		markUnchanged()
		// Memoize the props and state even though the component is not
		// re-rendered.
		wip.MemoizedProps = newProps
		wip.MemoizedState = newState
	}

	ci.props = newProps
	ci.state = newState
	return shouldUpdate, nil
}
