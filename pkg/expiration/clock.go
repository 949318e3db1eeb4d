package expiration

import (
	"fmt"
	"time"

	"github.com/vango-dev/fiber/pkg/scheduler"
)

// SuspenseConfig delays the commit of a loading state.
type SuspenseConfig struct {
	// Timeout is how long an update may stay suspended before its fallback
	// must be shown.
	Timeout time.Duration

	// BusyDelay is how long to wait before showing a busy indicator.
	BusyDelay time.Duration

	// BusyMinDuration is the minimum time a busy indicator stays visible.
	BusyMinDuration time.Duration
}

// Request carries everything ComputeForFiber needs to pick a time.
type Request struct {
	// CurrentTime is the (possibly event-cached) current time.
	CurrentTime Time

	// Concurrent is false for legacy roots, which always update synchronously.
	Concurrent bool

	// Priority is the scheduler priority active when the update was issued.
	Priority scheduler.Priority

	// Suspense is the optional delay policy of the update.
	Suspense *SuspenseConfig

	// Rendering is true when the update is issued from inside render.
	Rendering bool

	// RenderTime is the expiration time of the in-progress render, or NoWork
	// if no root is being worked on.
	RenderTime Time
}

// ComputeForFiber returns the expiration time for an update described by req.
//
// It panics on an unknown priority, which is a caller bug.
func ComputeForFiber(req Request) Time {
	if !req.Concurrent {
		return Sync
	}
	if req.Rendering {
		// Use whatever time we're already rendering.
		return req.RenderTime
	}

	var t Time
	if req.Suspense != nil {
		timeout := req.Suspense.Timeout
		if timeout <= 0 {
			timeout = LowPriorityExpirationMs * time.Millisecond
		}
		t = ComputeSuspense(req.CurrentTime, timeout)
	} else {
		switch req.Priority {
		case scheduler.ImmediatePriority:
			t = Sync
		case scheduler.UserBlockingPriority:
			t = ComputeInteractive(req.CurrentTime)
		case scheduler.NormalPriority, scheduler.LowPriority:
			t = ComputeAsync(req.CurrentTime)
		case scheduler.IdlePriority:
			t = Never
		default:
			panic(fmt.Sprintf("expiration: unexpected priority %v", req.Priority))
		}
	}

	// Never update at the same time that is already rendering; move the
	// update into a separate batch.
	if req.RenderTime != NoWork && t == req.RenderTime {
		t--
	}
	return t
}

// Clock remembers the last unique async time it handed out.
// The zero value is ready to use.
type Clock struct {
	lastUniqueAsync Time
}

// ComputeUniqueAsync returns an async expiration time strictly lower than
// any value previously returned by this clock, so that separate calls never
// coalesce into one batch.
func (c *Clock) ComputeUniqueAsync(currentTime Time) Time {
	result := ComputeAsync(currentTime)
	if c.lastUniqueAsync != NoWork && result >= c.lastUniqueAsync {
		result = c.lastUniqueAsync - 1
	}
	c.lastUniqueAsync = result
	return result
}
