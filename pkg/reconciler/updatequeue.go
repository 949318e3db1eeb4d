package reconciler

import (
	"maps"

	"github.com/vango-dev/fiber/pkg/expiration"
)

// UpdateTag says how an update's payload combines with the prior state.
type UpdateTag uint8

const (
	// UpdateState merges a partial state into the previous state.
	UpdateState UpdateTag = iota
	// ReplaceState replaces the previous state.
	ReplaceState
	// ForceUpdate re-renders even if the state is unchanged.
	ForceUpdate
	// CaptureUpdate is enqueued on an error boundary that captured an
	// error.
	CaptureUpdate
)

// StateFunc computes the next (partial) state from the previous one.
type StateFunc func(prev any, props Props) any

// Update is a pending change to a fiber's state.
type Update struct {
	ExpirationTime expiration.Time
	SuspenseConfig *expiration.SuspenseConfig

	Tag UpdateTag

	// Payload is a value, a StateFunc, or a hook action.
	Payload any

	// Callback runs in the layout pass once the update is committed.
	Callback func() error

	// EagerReducer and EagerState cache a state computed at dispatch time.
	// EagerState is valid only when EagerReducer is set.
	EagerReducer Reducer
	EagerState   any

	Next *Update
}

func createUpdate(t expiration.Time, cfg *expiration.SuspenseConfig) *Update {
	return &Update{ExpirationTime: t, SuspenseConfig: cfg, Tag: UpdateState}
}

func (u *Update) clone(t expiration.Time) *Update {
	return &Update{
		ExpirationTime: t,
		SuspenseConfig: u.SuspenseConfig,
		Tag:            u.Tag,
		Payload:        u.Payload,
		Callback:       u.Callback,
		EagerReducer:   u.EagerReducer,
		EagerState:     u.EagerState,
	}
}

// sharedQueue is shared by a fiber and its alternate so that an update
// scheduled on either is seen by both.
type sharedQueue struct {
	// pending points at the last update of a circular list.
	pending *Update
}

// UpdateQueue holds the updates of a class component or root.
type UpdateQueue struct {
	// BaseState is the state before the first skipped update.
	BaseState any

	firstBaseUpdate *Update
	lastBaseUpdate  *Update
	shared          *sharedQueue

	// effects are applied updates with callbacks, run at commit.
	effects []*Update
}

func initializeUpdateQueue(f *Fiber) {
	f.UpdateQueue = &UpdateQueue{
		BaseState: f.MemoizedState,
		shared:    &sharedQueue{},
	}
}

// cloneUpdateQueue gives wip its own queue object. The update nodes and
// the shared pending list are not copied.
func cloneUpdateQueue(current, wip *Fiber) {
	q := wip.UpdateQueue
	if current == nil || current.UpdateQueue != q {
		return
	}
	wip.UpdateQueue = &UpdateQueue{
		BaseState:       q.BaseState,
		firstBaseUpdate: q.firstBaseUpdate,
		lastBaseUpdate:  q.lastBaseUpdate,
		shared:          q.shared,
		effects:         q.effects,
	}
}

// enqueueUpdate appends u to the fiber's pending list. It is a no-op for
// an unmounted fiber.
func enqueueUpdate(f *Fiber, u *Update) {
	q := f.UpdateQueue
	if q == nil {
		return
	}
	appendPending(&q.shared.pending, u)
}

// appendPending appends u to the circular list whose last node is *last.
func appendPending(last **Update, u *Update) {
	if *last == nil {
		u.Next = u
	} else {
		u.Next = (*last).Next
		(*last).Next = u
	}
	*last = u
}

// enqueueCapturedUpdate appends a captured update directly to the base list
// of the work-in-progress queue. The base list is copied so the current
// queue is left untouched.
func enqueueCapturedUpdate(wip *Fiber, u *Update) {
	q := wip.UpdateQueue
	var first, last *Update
	for n := q.firstBaseUpdate; n != nil; n = n.Next {
		c := n.clone(n.ExpirationTime)
		if last == nil {
			first = c
		} else {
			last.Next = c
		}
		last = c
	}
	u.Next = nil
	if last == nil {
		first = u
	} else {
		last.Next = u
	}
	last = u
	wip.UpdateQueue = &UpdateQueue{
		BaseState:       q.BaseState,
		firstBaseUpdate: first,
		lastBaseUpdate:  last,
		shared:          q.shared,
		effects:         append([]*Update(nil), q.effects...),
	}
}

// processUpdateQueue applies every update with sufficient priority to the
// queue's base state. Skipped updates, and every update after the first
// skipped one, stay in the base list so they can be rebased later.
func (r *Renderer) processUpdateQueue(wip *Fiber, props Props, renderTime expiration.Time) {
	q := wip.UpdateQueue
	r.hasForceUpdate = false

	first := q.firstBaseUpdate
	last := q.lastBaseUpdate

	if pending := q.shared.pending; pending != nil {
		q.shared.pending = nil

		lastPending := pending
		firstPending := lastPending.Next
		lastPending.Next = nil
		if last == nil {
			first = firstPending
		} else {
			last.Next = firstPending
		}
		last = lastPending

		// Keep the pending updates on the current queue as well, so an
		// interrupted render does not lose them.
		if current := wip.Alternate; current != nil {
			if cq := current.UpdateQueue; cq != nil && cq != q && cq.lastBaseUpdate != last {
				if cq.lastBaseUpdate == nil {
					cq.firstBaseUpdate = firstPending
				} else {
					cq.lastBaseUpdate.Next = firstPending
				}
				cq.lastBaseUpdate = lastPending
			}
		}
	}

	if first == nil {
		return
	}

	newState := q.BaseState
	newExpirationTime := expiration.NoWork

	var newBaseState any
	var newFirst, newLast *Update

	for u := first; u != nil; {
		if u.ExpirationTime < renderTime {
			// Insufficient priority. Skip it; it becomes the new base.
			c := u.clone(u.ExpirationTime)
			if newLast == nil {
				newFirst = c
				newBaseState = newState
			} else {
				newLast.Next = c
			}
			newLast = c
			if u.ExpirationTime > newExpirationTime {
				newExpirationTime = u.ExpirationTime
			}
		} else {
			if newLast != nil {
				// A prior update was skipped, so this one is replayed on
				// the next pass too. Sync is never skipped. The callback
				// is already queued for this commit.
				c := u.clone(expiration.Sync)
				c.Callback = nil
				newLast.Next = c
				newLast = c
			}

			r.markRenderEventTimeAndConfig(u.ExpirationTime, u.SuspenseConfig)
			newState = r.getStateFromUpdate(wip, u, newState, props)
			if u.Callback != nil {
				wip.EffectTag |= Callback
				q.effects = append(q.effects, u)
			}
		}

		u = u.Next
		if u == nil {
			// An update may have been scheduled from inside a state
			// function. Keep going with it.
			pending := q.shared.pending
			if pending == nil {
				break
			}
			q.shared.pending = nil
			u = pending.Next
			pending.Next = nil
			last.Next = u
			last = pending
		}
	}

	if newLast == nil {
		newBaseState = newState
	}
	q.BaseState = newBaseState
	q.firstBaseUpdate = newFirst
	q.lastBaseUpdate = newLast

	// Everything left in the queue is skipped work; record its priority
	// on the fiber.
	wip.ExpirationTime = newExpirationTime
	wip.MemoizedState = newState
}

func (r *Renderer) getStateFromUpdate(wip *Fiber, u *Update, prev any, props Props) any {
	switch u.Tag {
	case ReplaceState:
		return resolvePayload(u.Payload, prev, props)
	case CaptureUpdate:
		wip.EffectTag = wip.EffectTag&^ShouldCapture | DidCapture
		fallthrough
	case UpdateState:
		partial := resolvePayload(u.Payload, prev, props)
		if partial == nil {
			return prev
		}
		return mergeState(prev, partial)
	case ForceUpdate:
		r.hasForceUpdate = true
		return prev
	}
	return prev
}

func resolvePayload(payload any, prev any, props Props) any {
	switch fn := payload.(type) {
	case StateFunc:
		return fn(prev, props)
	case func(any, Props) any:
		return fn(prev, props)
	}
	return payload
}

// mergeState shallow-merges map states. Any other partial state replaces
// the previous one.
func mergeState(prev, partial any) any {
	pm, ok1 := prev.(map[string]any)
	nm, ok2 := partial.(map[string]any)
	if !ok1 || !ok2 {
		return partial
	}
	merged := make(map[string]any, len(pm)+len(nm))
	maps.Copy(merged, pm)
	maps.Copy(merged, nm)
	return merged
}

// commitUpdateQueue runs the callbacks of committed updates. The first
// callback error is returned; later callbacks still run.
func commitUpdateQueue(q *UpdateQueue) error {
	effects := q.effects
	q.effects = nil
	var firstErr error
	for _, u := range effects {
		cb := u.Callback
		if cb == nil {
			continue
		}
		u.Callback = nil
		if err := guard(cb); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
