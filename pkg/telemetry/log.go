package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// LogObserver logs renderer lifecycle events. Render slices and commits are
// logged at debug level; restarts and errored renders at info and warn.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns a LogObserver writing to logger, or to
// slog.Default() when logger is nil.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger.With("component", "reconciler")}
}

func (o *LogObserver) RenderStarted(root *reconciler.Root, t expiration.Time, sync bool) {
	o.debug("render started", "root", root.Tag, "expiration", t, "sync", sync)
}

func (o *LogObserver) RenderYielded(root *reconciler.Root, t expiration.Time) {
	o.debug("render yielded", "root", root.Tag, "expiration", t)
}

func (o *LogObserver) RenderFinished(root *reconciler.Root, t expiration.Time, status reconciler.Status) {
	if status == reconciler.StatusErrored {
		o.logger.Warn("render finished with errors", "root", root.Tag, "expiration", t)
		return
	}
	o.debug("render finished", "root", root.Tag, "expiration", t, "status", status)
}

func (o *LogObserver) Restarted(root *reconciler.Root, t expiration.Time) {
	o.logger.Info("render restarted", "root", root.Tag, "expiration", t)
}

func (o *LogObserver) CommitStarted(root *reconciler.Root, t expiration.Time) {
	o.debug("commit started", "root", root.Tag, "expiration", t)
}

func (o *LogObserver) CommitFinished(root *reconciler.Root, t expiration.Time, effects int, d time.Duration) {
	o.debug("commit finished", "root", root.Tag, "expiration", t, "effects", effects, "duration", d)
}

func (o *LogObserver) UpdateScheduled(root *reconciler.Root, p scheduler.Priority, t expiration.Time) {
	o.debug("update scheduled", "root", root.Tag, "priority", p, "expiration", t)
}

// debug skips building the record when debug logging is off; render slices
// are frequent.
func (o *LogObserver) debug(msg string, args ...any) {
	if !o.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	o.logger.Debug(msg, args...)
}

var _ reconciler.Observer = (*LogObserver)(nil)
