package reconciler

import (
	"time"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// Observer receives lifecycle notifications from a Renderer. Calls happen
// on the renderer's goroutine and must not re-enter it.
type Observer interface {
	RenderStarted(root *Root, t expiration.Time, sync bool)
	RenderYielded(root *Root, t expiration.Time)
	RenderFinished(root *Root, t expiration.Time, status Status)
	Restarted(root *Root, t expiration.Time)
	CommitStarted(root *Root, t expiration.Time)
	CommitFinished(root *Root, t expiration.Time, effects int, d time.Duration)
	UpdateScheduled(root *Root, p scheduler.Priority, t expiration.Time)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) RenderStarted(*Root, expiration.Time, bool)                 {}
func (NopObserver) RenderYielded(*Root, expiration.Time)                       {}
func (NopObserver) RenderFinished(*Root, expiration.Time, Status)              {}
func (NopObserver) Restarted(*Root, expiration.Time)                           {}
func (NopObserver) CommitStarted(*Root, expiration.Time)                       {}
func (NopObserver) CommitFinished(*Root, expiration.Time, int, time.Duration)  {}
func (NopObserver) UpdateScheduled(*Root, scheduler.Priority, expiration.Time) {}

var _ Observer = NopObserver{}
