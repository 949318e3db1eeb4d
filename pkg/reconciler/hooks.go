package reconciler

import (
	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
)

// HookType identifies a hook for order validation.
type HookType uint8

const (
	HookState HookType = iota + 1
	HookReducer
	HookRef
	HookMemo
	HookEffect
	HookLayoutEffect
)

// String returns a human-readable name for the hook type.
func (t HookType) String() string {
	switch t {
	case HookState:
		return "UseState"
	case HookReducer:
		return "UseReducer"
	case HookRef:
		return "UseRef"
	case HookMemo:
		return "UseMemo"
	case HookEffect:
		return "UseEffect"
	case HookLayoutEffect:
		return "UseLayoutEffect"
	}
	return "Unknown"
}

// Reducer computes the next state from an action.
type Reducer func(state, action any) any

// EffectFunc runs after commit and may return a cleanup that runs before
// the next invocation or on unmount.
type EffectFunc func() (cleanup func(), err error)

type hook struct {
	typ           HookType
	memoizedState any

	baseState any
	// baseQueue points at the last update of a circular list.
	baseQueue *Update
	queue     *hookQueue

	next *hook
}

type hookQueue struct {
	// pending points at the last update of a circular list.
	pending  *Update
	dispatch func(action any)

	lastRenderedReducer Reducer
	lastRenderedState   any

	// basic queues belong to UseState; only they use eager state.
	basic bool
}

type hookEffectTag uint8

const (
	hookHasEffect hookEffectTag = 1 << iota
	hookLayout
	hookPassive
)

type hookEffect struct {
	tag     hookEffectTag
	create  EffectFunc
	destroy func()
	deps    []any
	next    *hookEffect
}

type memoState struct {
	value any
	deps  []any
}

// Hooks is handed to a function component for the duration of one render.
// It must not be retained or used after the component returns.
type Hooks struct {
	r          *Renderer
	fiber      *Fiber
	current    *Fiber
	renderTime expiration.Time

	isMount     bool
	currentHook *hook
	wipHook     *hook
	index       int
	active      bool
}

func basicStateReducer(state, action any) any {
	if fn, ok := action.(func(any) any); ok {
		return fn(state)
	}
	return action
}

// renderWithHooks calls a function component with a fresh hook context.
func (r *Renderer) renderWithHooks(current, wip *Fiber, fn *FunctionType, props Props, renderTime expiration.Time) (Node, error) {
	h := &Hooks{
		r:          r,
		fiber:      wip,
		current:    current,
		renderTime: renderTime,
		isMount:    current == nil || current.MemoizedState == nil,
		active:     true,
	}
	wip.MemoizedState = nil
	wip.hookEffects = nil

	var children Node
	err := guard(func() error {
		var err error
		children, err = fn.Render(h, props)
		return err
	})
	h.active = false
	if err != nil {
		return nil, err
	}

	if !h.isMount {
		var remaining *hook
		if h.currentHook == nil {
			remaining, _ = current.MemoizedState.(*hook)
		} else {
			remaining = h.currentHook.next
		}
		if remaining != nil {
			panic(ferrors.Violation("F008", "%s rendered fewer hooks than expected (missing %s at index %d)",
				fn.Name, remaining.typ, h.index).WithComponentStack(componentStack(wip)))
		}
	}
	return children, nil
}

func (h *Hooks) checkActive(t HookType) {
	if h == nil || !h.active {
		panic(ferrors.Violation("F002", "%s", t))
	}
}

func (h *Hooks) mountHook(t HookType) *hook {
	h.checkActive(t)
	hk := &hook{typ: t}
	if h.wipHook == nil {
		h.fiber.MemoizedState = hk
	} else {
		h.wipHook.next = hk
	}
	h.wipHook = hk
	h.index++
	return hk
}

// updateHook clones the next hook of the current fiber.
func (h *Hooks) updateHook(t HookType) *hook {
	h.checkActive(t)
	var next *hook
	if h.currentHook == nil {
		next, _ = h.current.MemoizedState.(*hook)
	} else {
		next = h.currentHook.next
	}
	if next == nil {
		panic(ferrors.Violation("F008", "extra %s hook at index %d", t, h.index).
			WithComponentStack(componentStack(h.fiber)))
	}
	if next.typ != t {
		panic(ferrors.Violation("F008", "index %d: expected %s, got %s", h.index, next.typ, t).
			WithComponentStack(componentStack(h.fiber)))
	}
	h.currentHook = next

	hk := &hook{
		typ:           t,
		memoizedState: next.memoizedState,
		baseState:     next.baseState,
		baseQueue:     next.baseQueue,
		queue:         next.queue,
	}
	if h.wipHook == nil {
		h.fiber.MemoizedState = hk
	} else {
		h.wipHook.next = hk
	}
	h.wipHook = hk
	h.index++
	return hk
}

func (h *Hooks) useReducer(t HookType, reducer Reducer, initial any) (any, func(any)) {
	if h.isMount {
		hk := h.mountHook(t)
		hk.memoizedState = initial
		hk.baseState = initial
		q := &hookQueue{
			lastRenderedReducer: reducer,
			lastRenderedState:   initial,
			basic:               t == HookState,
		}
		hk.queue = q
		r, fiber := h.r, h.fiber
		q.dispatch = func(action any) {
			r.dispatchAction(fiber, q, action)
		}
		return initial, q.dispatch
	}

	hk := h.updateHook(t)
	q := hk.queue
	q.lastRenderedReducer = reducer
	current := h.currentHook

	baseQueue := current.baseQueue
	if pending := q.pending; pending != nil {
		// Merge the pending ring into the base ring.
		if baseQueue != nil {
			baseFirst := baseQueue.Next
			pendingFirst := pending.Next
			baseQueue.Next = pendingFirst
			pending.Next = baseFirst
		}
		current.baseQueue = pending
		baseQueue = pending
		q.pending = nil
	}

	if baseQueue != nil {
		first := baseQueue.Next
		newState := current.baseState

		var newBaseState any
		var newBaseFirst, newBaseLast *Update

		u := first
		for {
			if u.ExpirationTime < h.renderTime {
				c := u.clone(u.ExpirationTime)
				if newBaseLast == nil {
					newBaseFirst = c
					newBaseState = newState
				} else {
					newBaseLast.Next = c
				}
				newBaseLast = c
				if u.ExpirationTime > h.fiber.ExpirationTime {
					h.fiber.ExpirationTime = u.ExpirationTime
				}
			} else {
				if newBaseLast != nil {
					c := u.clone(expiration.Sync)
					newBaseLast.Next = c
					newBaseLast = c
				}
				h.r.markRenderEventTimeAndConfig(u.ExpirationTime, u.SuspenseConfig)
				if u.EagerReducer != nil && q.basic {
					newState = u.EagerState
				} else {
					newState = reducer(newState, u.Payload)
				}
			}
			u = u.Next
			if u == nil || u == first {
				break
			}
		}

		if newBaseLast == nil {
			newBaseState = newState
		} else {
			newBaseLast.Next = newBaseFirst
		}

		if !objectIs(newState, hk.memoizedState) {
			h.r.didReceiveUpdate = true
		}

		hk.memoizedState = newState
		hk.baseState = newBaseState
		hk.baseQueue = newBaseLast
		q.lastRenderedState = newState
	}

	return hk.memoizedState, q.dispatch
}

// dispatchAction enqueues a hook update and schedules the owning fiber.
func (r *Renderer) dispatchAction(fiber *Fiber, q *hookQueue, action any) {
	currentTime := r.requestCurrentTime()
	t := r.computeExpirationForFiber(currentTime, fiber, nil)

	u := &Update{ExpirationTime: t, Payload: action}
	appendPending(&q.pending, u)

	alternate := fiber.Alternate
	if fiber.ExpirationTime == expiration.NoWork &&
		(alternate == nil || alternate.ExpirationTime == expiration.NoWork) &&
		q.basic && !r.isRendering(fiber) {
		// The queue is empty, so the next state can be computed now. If it
		// equals the current state the update needs no render at all.
		reducer := q.lastRenderedReducer
		current := q.lastRenderedState
		var eager any
		err := guard(func() error {
			eager = reducer(current, action)
			return nil
		})
		if err == nil {
			u.EagerReducer = reducer
			u.EagerState = eager
			if objectIs(eager, current) {
				return
			}
		}
	}

	if err := r.scheduleUpdateOnFiber(fiber, t); err != nil {
		r.reportError(err)
	}
}

func (h *Hooks) pushEffect(tag hookEffectTag, create EffectFunc, destroy func(), deps []any) *hookEffect {
	e := &hookEffect{tag: tag, create: create, destroy: destroy, deps: deps}
	last := h.fiber.hookEffects
	if last == nil {
		e.next = e
	} else {
		e.next = last.next
		last.next = e
	}
	h.fiber.hookEffects = e
	return e
}

func (h *Hooks) useEffect(t HookType, fiberTag EffectTag, hookTag hookEffectTag, create EffectFunc, deps []any) {
	if h.isMount {
		hk := h.mountHook(t)
		h.fiber.EffectTag |= fiberTag
		hk.memoizedState = h.pushEffect(hookHasEffect|hookTag, create, nil, deps)
		return
	}

	hk := h.updateHook(t)
	prev := h.currentHook.memoizedState.(*hookEffect)
	if depsEqual(deps, prev.deps) {
		hk.memoizedState = h.pushEffect(hookTag, create, prev.destroy, deps)
		return
	}
	h.fiber.EffectTag |= fiberTag
	hk.memoizedState = h.pushEffect(hookHasEffect|hookTag, create, prev.destroy, deps)
}

// UseEffect schedules fn to run after the commit, at normal priority.
// A nil deps slice runs it after every commit; an empty one runs it once.
func (h *Hooks) UseEffect(fn EffectFunc, deps []any) {
	h.useEffect(HookEffect, UpdateEffect|Passive, hookPassive, fn, deps)
}

// UseLayoutEffect runs fn synchronously in the layout pass of the commit.
func (h *Hooks) UseLayoutEffect(fn EffectFunc, deps []any) {
	h.useEffect(HookLayoutEffect, UpdateEffect, hookLayout, fn, deps)
}

// UseRef returns a Ref that keeps its identity across renders.
func (h *Hooks) UseRef(initial any) *Ref {
	if h.isMount {
		hk := h.mountHook(HookRef)
		ref := &Ref{Current: initial}
		hk.memoizedState = ref
		return ref
	}
	return h.updateHook(HookRef).memoizedState.(*Ref)
}

// UseReducer returns the current state and a dispatch function.
func (h *Hooks) UseReducer(reducer Reducer, initial any) (any, func(action any)) {
	return h.useReducer(HookReducer, reducer, initial)
}

// UseMemo returns compute's result, recomputing it only when deps change.
func (h *Hooks) UseMemo(compute func() any, deps []any) any {
	if h.isMount {
		hk := h.mountHook(HookMemo)
		v := compute()
		hk.memoizedState = &memoState{value: v, deps: deps}
		return v
	}
	hk := h.updateHook(HookMemo)
	prev := hk.memoizedState.(*memoState)
	if depsEqual(deps, prev.deps) {
		return prev.value
	}
	v := compute()
	hk.memoizedState = &memoState{value: v, deps: deps}
	return v
}

// Setter updates a UseState value.
type Setter[T any] struct {
	dispatch func(any)
}

// Set replaces the state with v.
func (s Setter[T]) Set(v T) {
	s.dispatch(v)
}

// Update replaces the state with fn applied to the latest queued state.
func (s Setter[T]) Update(fn func(T) T) {
	s.dispatch(func(prev any) any {
		return fn(as[T](prev))
	})
}

// UseState returns the current state and its setter.
func UseState[T any](h *Hooks, initial T) (T, Setter[T]) {
	v, dispatch := h.useReducer(HookState, basicStateReducer, initial)
	return as[T](v), Setter[T]{dispatch: dispatch}
}

// UseReducer is the typed form of Hooks.UseReducer.
func UseReducer[S, A any](h *Hooks, reducer func(S, A) S, initial S) (S, func(A)) {
	v, dispatch := h.useReducer(HookReducer, func(state, action any) any {
		return reducer(as[S](state), as[A](action))
	}, initial)
	return as[S](v), func(a A) { dispatch(a) }
}

// UseMemo is the typed form of Hooks.UseMemo.
func UseMemo[T any](h *Hooks, compute func() T, deps []any) T {
	return as[T](h.UseMemo(func() any { return compute() }, deps))
}

func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// commitHookEffects runs the destroy (unmount) or create (mount) half of
// every effect on f whose tag contains all bits of tag. Every effect runs;
// the first error is returned.
func commitHookEffects(f *Fiber, tag hookEffectTag, unmount bool) error {
	last := f.hookEffects
	if last == nil {
		return nil
	}
	var firstErr error
	first := last.next
	e := first
	for {
		if e.tag&tag == tag {
			var err error
			if unmount {
				destroy := e.destroy
				e.destroy = nil
				if destroy != nil {
					err = guard(func() error {
						destroy()
						return nil
					})
				}
			} else {
				create := e.create
				err = guard(func() error {
					cleanup, err := create()
					e.destroy = cleanup
					return err
				})
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
		e = e.next
		if e == first {
			break
		}
	}
	return firstErr
}
