package reconciler

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

// DefaultNestedUpdateLimit bounds how many synchronous re-renders a commit
// may trigger before the renderer gives up.
const DefaultNestedUpdateLimit = 50

// DefaultFallbackThrottle is the minimum time between two suspense fallback
// commits.
const DefaultFallbackThrottle = 500 * time.Millisecond

// Status is the outcome of the most recent render of a root.
type Status uint8

const (
	StatusIdle Status = iota
	StatusRendering
	StatusErrored
	StatusSuspended
	StatusSuspendedWithDelay
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRendering:
		return "rendering"
	case StatusErrored:
		return "errored"
	case StatusSuspended:
		return "suspended"
	case StatusSuspendedWithDelay:
		return "suspended-with-delay"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type executionContext uint8

const (
	noContext      executionContext = 0
	batchedContext executionContext = 1 << iota
	eventContext
	renderContext
	commitContext
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for warnings and uncaught errors.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver installs hooks into the render and commit lifecycle.
func WithObserver(o Observer) Option {
	return func(r *Renderer) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithNestedUpdateLimit overrides DefaultNestedUpdateLimit.
func WithNestedUpdateLimit(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.nestedUpdateLimit = n
		}
	}
}

// WithFallbackThrottle overrides DefaultFallbackThrottle.
func WithFallbackThrottle(d time.Duration) Option {
	return func(r *Renderer) {
		r.fallbackThrottle = d
	}
}

// WithUncaughtErrorHandler is called for every error that escapes all
// boundaries, in addition to it being returned to the caller.
func WithUncaughtErrorHandler(fn func(error)) Option {
	return func(r *Renderer) {
		r.onUncaughtError = fn
	}
}

// Renderer owns all reconciliation state for the roots it creates. A
// Renderer is not safe for concurrent use; drive it from one goroutine,
// for example a scheduler.Loop.
type Renderer struct {
	host     HostConfig
	sched    Scheduler
	logger   *slog.Logger
	observer Observer

	nestedUpdateLimit int
	fallbackThrottle  time.Duration
	onUncaughtError   func(error)

	executionContext executionContext

	// The root and fiber being worked on.
	wipRoot              *Root
	wip                  *Fiber
	renderExpirationTime expiration.Time
	renderingFiber       *Fiber
	exitStatus           Status
	lastExitStatus       Status

	// Lowest update time processed during the render, and the suspense
	// config that came with the lowest one.
	latestProcessedTime   expiration.Time
	latestSuspenseTimeout expiration.Time
	canSuspendUsingConfig *expiration.SuspenseConfig
	hasPendingPing        bool

	didReceiveUpdate bool
	hasForceUpdate   bool
	currentEventTime expiration.Time
	uniqueAsync      expiration.Clock

	containerStack []any

	syncQueue           []*callbackNode
	immediateQueueTask  *scheduler.Task
	isFlushingSyncQueue bool

	nextEffect                 *Fiber
	effectCount                int
	rootDoesHavePassiveEffects bool
	pendingPassiveRoot         *Root
	passiveTask                *scheduler.Task

	// Boundaries that only implement DidCatch may catch once per commit.
	failedLegacyBoundaries map[*classInstance]struct{}
	hasUncaughtError       bool
	firstUncaughtError     error

	nestedUpdateCount     int
	rootWithNestedUpdates *Root

	globalMostRecentFallbackTime time.Duration
	retryCache                   map[retryKey]struct{}

	deferredErrs []error
}

type retryKey struct {
	boundary *Fiber
	wakeable Wakeable
}

// New returns a renderer that mutates host through config and schedules
// its work on sched.
func New(host HostConfig, sched Scheduler, opts ...Option) *Renderer {
	r := &Renderer{
		host:              host,
		sched:             sched,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:          NopObserver{},
		nestedUpdateLimit: DefaultNestedUpdateLimit,
		fallbackThrottle:  DefaultFallbackThrottle,
		retryCache:        make(map[retryKey]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status reports the exit status of the most recently finished render.
func (r *Renderer) Status() Status {
	if r.wip != nil {
		return StatusRendering
	}
	return r.lastExitStatus
}

// PendingError returns, and clears, errors raised by updates scheduled
// outside of any renderer entry point.
func (r *Renderer) PendingError() error {
	if len(r.deferredErrs) == 0 {
		return nil
	}
	err := errors.Join(r.deferredErrs...)
	r.deferredErrs = nil
	return err
}

// reportError records an error that has no caller to return to.
func (r *Renderer) reportError(err error) {
	if err == nil {
		return
	}
	// Uncaught errors were already logged where they were raised.
	var uncaught *UncaughtError
	if !errors.As(err, &uncaught) {
		r.logger.Error("reconciler: error outside of an entry point", "error", err)
	}
	r.deferredErrs = append(r.deferredErrs, err)
}

// entryResult joins err with anything reported since the last entry point.
func (r *Renderer) entryResult(err error) error {
	if pending := r.PendingError(); pending != nil {
		return errors.Join(err, pending)
	}
	return err
}

func (r *Renderer) isRendering(f *Fiber) bool {
	rf := r.renderingFiber
	return rf != nil && (f == rf || f.Alternate == rf)
}

func (r *Renderer) nowMs() int64 {
	return r.sched.Now().Milliseconds()
}

func (r *Renderer) pushContainer(c any) {
	r.containerStack = append(r.containerStack, c)
}

func (r *Renderer) popContainer() {
	if n := len(r.containerStack); n > 0 {
		r.containerStack[n-1] = nil
		r.containerStack = r.containerStack[:n-1]
	}
}

func (r *Renderer) rootContainer() any {
	if n := len(r.containerStack); n > 0 {
		return r.containerStack[n-1]
	}
	return nil
}
