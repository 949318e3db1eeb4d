package reconciler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/fiber/pkg/expiration"
)

func appendLetter(s string) StateFunc {
	return func(prev any, _ Props) any {
		return prev.(string) + s
	}
}

func newQueueFiber(state any) *Fiber {
	f := newFiber(ClassComponent, nil, "", NoMode)
	f.MemoizedState = state
	initializeUpdateQueue(f)
	return f
}

func enqueueAt(f *Fiber, t expiration.Time, payload any) *Update {
	u := createUpdate(t, nil)
	u.Payload = payload
	enqueueUpdate(f, u)
	return u
}

func TestProcessUpdateQueueRebasesSkippedUpdates(t *testing.T) {
	const (
		low  = expiration.Time(1000)
		high = expiration.Time(2000)
	)
	r := &Renderer{latestProcessedTime: expiration.Sync, latestSuspenseTimeout: expiration.Sync}
	f := newQueueFiber("")

	enqueueAt(f, low, appendLetter("A"))
	enqueueAt(f, high, appendLetter("B"))
	enqueueAt(f, low, appendLetter("C"))
	enqueueAt(f, high, appendLetter("D"))

	r.processUpdateQueue(f, nil, high)
	assert.Equal(t, "BD", f.MemoizedState)
	assert.Equal(t, low, f.ExpirationTime)
	assert.Equal(t, "", f.UpdateQueue.BaseState)

	r.processUpdateQueue(f, nil, low)
	assert.Equal(t, "ABCD", f.MemoizedState)
	assert.Equal(t, expiration.NoWork, f.ExpirationTime)
	assert.Equal(t, "ABCD", f.UpdateQueue.BaseState)
	assert.Nil(t, f.UpdateQueue.firstBaseUpdate)
}

func TestProcessUpdateQueueMergesMaps(t *testing.T) {
	r := &Renderer{latestProcessedTime: expiration.Sync, latestSuspenseTimeout: expiration.Sync}
	f := newQueueFiber(map[string]any{"a": 1, "b": 2})

	enqueueAt(f, expiration.Sync, map[string]any{"b": 3})
	r.processUpdateQueue(f, nil, expiration.Sync)

	assert.Equal(t, map[string]any{"a": 1, "b": 3}, f.MemoizedState)
}

func TestProcessUpdateQueueReplaceAndForce(t *testing.T) {
	r := &Renderer{latestProcessedTime: expiration.Sync, latestSuspenseTimeout: expiration.Sync}
	f := newQueueFiber(map[string]any{"a": 1})

	u := enqueueAt(f, expiration.Sync, map[string]any{"z": 0})
	u.Tag = ReplaceState
	force := enqueueAt(f, expiration.Sync, nil)
	force.Tag = ForceUpdate

	r.processUpdateQueue(f, nil, expiration.Sync)
	assert.Equal(t, map[string]any{"z": 0}, f.MemoizedState)
	assert.True(t, r.hasForceUpdate)
}

func TestProcessUpdateQueueKeepsPendingOnCurrent(t *testing.T) {
	r := &Renderer{latestProcessedTime: expiration.Sync, latestSuspenseTimeout: expiration.Sync}
	current := newQueueFiber("")
	enqueueAt(current, expiration.Sync, appendLetter("A"))

	wip := createWorkInProgress(current, nil, expiration.Sync)
	cloneUpdateQueue(current, wip)
	r.processUpdateQueue(wip, nil, expiration.Sync)
	require.Equal(t, "A", wip.MemoizedState)

	// The render was thrown away: the current queue must still replay A.
	retry := createWorkInProgress(current, nil, expiration.Sync)
	cloneUpdateQueue(current, retry)
	r.processUpdateQueue(retry, nil, expiration.Sync)
	assert.Equal(t, "A", retry.MemoizedState)
}

func TestCommitUpdateQueueRunsEveryCallback(t *testing.T) {
	r := &Renderer{latestProcessedTime: expiration.Sync, latestSuspenseTimeout: expiration.Sync}
	f := newQueueFiber("")

	var ran []string
	first := enqueueAt(f, expiration.Sync, appendLetter("A"))
	first.Callback = func() error {
		ran = append(ran, "A")
		panic("boom")
	}
	second := enqueueAt(f, expiration.Sync, appendLetter("B"))
	second.Callback = func() error {
		ran = append(ran, "B")
		return nil
	}

	r.processUpdateQueue(f, nil, expiration.Sync)
	assert.NotZero(t, f.EffectTag&Callback)

	err := commitUpdateQueue(f.UpdateQueue)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.Equal(t, []string{"A", "B"}, ran)
	assert.Empty(t, f.UpdateQueue.effects)
}
