package reconciler

import (
	"github.com/vango-dev/fiber/pkg/expiration"
)

// RootTag selects the update semantics of a root.
type RootTag uint8

const (
	// LegacyRoot renders every update synchronously.
	LegacyRoot RootTag = iota

	// ConcurrentRoot renders by priority and may be interrupted.
	ConcurrentRoot
)

func (t RootTag) String() string {
	if t == ConcurrentRoot {
		return "concurrent"
	}
	return "legacy"
}

// Root is the top of a reconciled tree, bound to one host container.
type Root struct {
	Tag       RootTag
	Container any

	// Current is the committed HostRoot fiber.
	Current *Fiber

	// FinishedWork is a completed work-in-progress tree waiting to be
	// committed.
	FinishedWork           *Fiber
	FinishedExpirationTime expiration.Time

	// FirstPendingTime and LastPendingTime bound the pending work.
	FirstPendingTime expiration.Time
	LastPendingTime  expiration.Time

	// PingTime is the time of the most recent ping of suspended work.
	PingTime expiration.Time

	CallbackNode           *callbackNode
	CallbackExpirationTime expiration.Time

	// TimeoutHandle is the host timer that will commit a suspended tree.
	TimeoutHandle any

	pingCache map[pingKey]struct{}
}

type pingKey struct {
	wakeable Wakeable
	t        expiration.Time
}

type rootState struct {
	element Node
}

func newRoot(container any, tag RootTag) *Root {
	root := &Root{Tag: tag, Container: container}
	current := createHostRootFiber(tag)
	root.Current = current
	current.StateNode = root
	current.MemoizedState = &rootState{}
	initializeUpdateQueue(current)
	return root
}

func (root *Root) markPendingTimeRange(t expiration.Time) {
	if t > root.FirstPendingTime {
		root.FirstPendingTime = t
	}
	if root.LastPendingTime == expiration.NoWork || t < root.LastPendingTime {
		root.LastPendingTime = t
	}
}

// markFinishedTimeRange shrinks the pending range after a commit.
func (root *Root) markFinishedTimeRange(finishedTime, remaining expiration.Time) {
	root.FirstPendingTime = remaining
	if remaining < root.LastPendingTime {
		root.LastPendingTime = remaining
	}
	if finishedTime <= root.PingTime {
		root.PingTime = expiration.NoWork
	}
}

// HasPendingWork reports whether the root has uncommitted updates.
func (root *Root) HasPendingWork() bool {
	return root.FirstPendingTime != expiration.NoWork
}
