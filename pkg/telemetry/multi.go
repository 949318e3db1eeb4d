package telemetry

import (
	"time"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

type multi []reconciler.Observer

// Multi returns an observer that forwards every notification to each of
// observers in order. Nil observers are skipped.
func Multi(observers ...reconciler.Observer) reconciler.Observer {
	var m multi
	for _, o := range observers {
		if o == nil {
			continue
		}
		if inner, ok := o.(multi); ok {
			m = append(m, inner...)
			continue
		}
		m = append(m, o)
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

func (m multi) RenderStarted(root *reconciler.Root, t expiration.Time, sync bool) {
	for _, o := range m {
		o.RenderStarted(root, t, sync)
	}
}

func (m multi) RenderYielded(root *reconciler.Root, t expiration.Time) {
	for _, o := range m {
		o.RenderYielded(root, t)
	}
}

func (m multi) RenderFinished(root *reconciler.Root, t expiration.Time, status reconciler.Status) {
	for _, o := range m {
		o.RenderFinished(root, t, status)
	}
}

func (m multi) Restarted(root *reconciler.Root, t expiration.Time) {
	for _, o := range m {
		o.Restarted(root, t)
	}
}

func (m multi) CommitStarted(root *reconciler.Root, t expiration.Time) {
	for _, o := range m {
		o.CommitStarted(root, t)
	}
}

func (m multi) CommitFinished(root *reconciler.Root, t expiration.Time, effects int, d time.Duration) {
	for _, o := range m {
		o.CommitFinished(root, t, effects, d)
	}
}

func (m multi) UpdateScheduled(root *reconciler.Root, p scheduler.Priority, t expiration.Time) {
	for _, o := range m {
		o.UpdateScheduled(root, p, t)
	}
}
