package reconciler

import (
	"errors"
	"runtime/debug"
	"time"

	ferrors "github.com/vango-dev/fiber/internal/errors"
	"github.com/vango-dev/fiber/pkg/expiration"
	"github.com/vango-dev/fiber/pkg/scheduler"
)

type taskPhase uint8

const (
	phaseRender taskPhase = iota
	phaseCommit
)

// rootTask is one unit of root work handed to the scheduler. Running it
// either finishes the root or returns the next task as a continuation.
type rootTask struct {
	r              *Renderer
	root           *Root
	expirationTime expiration.Time
	phase          taskPhase
}

func (t *rootTask) Run(didTimeout bool) (scheduler.Job, error) {
	next, err := t.r.runRootCallback(t, didTimeout)
	if next == nil {
		return nil, err
	}
	return next, err
}

// callbackNode is the handle a root keeps on its scheduled work.
type callbackNode struct {
	task      *scheduler.Task
	job       *rootTask
	cancelled bool
}

func (r *Renderer) newTask(root *Root, t expiration.Time) *rootTask {
	return &rootTask{r: r, root: root, expirationTime: t}
}

func (r *Renderer) commitTask(root *Root) *rootTask {
	return &rootTask{r: r, root: root, expirationTime: root.FinishedExpirationTime, phase: phaseCommit}
}

func (r *Renderer) requestCurrentTime() expiration.Time {
	if r.executionContext&(renderContext|commitContext) != noContext {
		return expiration.FromDuration(r.sched.Now())
	}
	if r.currentEventTime != expiration.NoWork {
		// Updates issued from the same event share a start time.
		return r.currentEventTime
	}
	r.currentEventTime = expiration.FromDuration(r.sched.Now())
	return r.currentEventTime
}

func (r *Renderer) computeExpirationForFiber(currentTime expiration.Time, f *Fiber, cfg *expiration.SuspenseConfig) expiration.Time {
	renderTime := expiration.NoWork
	if r.wipRoot != nil {
		renderTime = r.renderExpirationTime
	}
	p := r.sched.CurrentPriority()
	if p == scheduler.NoPriority {
		p = scheduler.NormalPriority
	}
	return expiration.ComputeForFiber(expiration.Request{
		CurrentTime: currentTime,
		Concurrent:  f.Mode&ConcurrentMode != 0,
		Priority:    p,
		Suspense:    cfg,
		Rendering:   r.executionContext&renderContext != noContext,
		RenderTime:  renderTime,
	})
}

func (r *Renderer) markRenderEventTimeAndConfig(t expiration.Time, cfg *expiration.SuspenseConfig) {
	if t < r.latestProcessedTime && t > expiration.Never {
		r.latestProcessedTime = t
	}
	if cfg != nil && t < r.latestSuspenseTimeout && t > expiration.Never {
		r.latestSuspenseTimeout = t
		r.canSuspendUsingConfig = cfg
	}
}

// scheduleUpdateOnFiber marks f and its ancestors as having work at t and
// makes sure the root has a callback. Sync work issued outside any batch
// is flushed before returning.
func (r *Renderer) scheduleUpdateOnFiber(f *Fiber, t expiration.Time) error {
	r.checkForNestedUpdates()

	root := r.markUpdateTimeFromFiberToRoot(f, t)
	if root == nil {
		r.logger.Debug(ErrRootUnmounted.Error(), "component", f.Name())
		return nil
	}
	root.PingTime = expiration.NoWork

	p := r.sched.CurrentPriority()
	r.observer.UpdateScheduled(root, p, t)
	if t == expiration.Sync {
		r.scheduleCallbackForRoot(root, scheduler.ImmediatePriority, t)
		if r.executionContext == noContext {
			return r.flushSyncCallbackQueue()
		}
		return nil
	}
	r.scheduleCallbackForRoot(root, p, t)
	return nil
}

func (r *Renderer) checkForNestedUpdates() {
	if r.nestedUpdateCount > r.nestedUpdateLimit {
		r.nestedUpdateCount = 0
		r.rootWithNestedUpdates = nil
		panic(ferrors.Violation("F004", "more than %d nested synchronous updates", r.nestedUpdateLimit))
	}
}

// markUpdateTimeFromFiberToRoot bubbles t up the return path and returns
// the root, or nil if f is no longer mounted.
func (r *Renderer) markUpdateTimeFromFiberToRoot(f *Fiber, t expiration.Time) *Root {
	if f.ExpirationTime < t {
		f.ExpirationTime = t
	}
	alternate := f.Alternate
	if alternate != nil && alternate.ExpirationTime < t {
		alternate.ExpirationTime = t
	}

	var root *Root
	if f.Return == nil && f.Tag == HostRoot {
		root = f.StateNode.(*Root)
	} else {
		for node := f.Return; node != nil; node = node.Return {
			alternate = node.Alternate
			if node.ChildExpirationTime < t {
				node.ChildExpirationTime = t
			}
			if alternate != nil && alternate.ChildExpirationTime < t {
				alternate.ChildExpirationTime = t
			}
			if node.Return == nil && node.Tag == HostRoot {
				root = node.StateNode.(*Root)
				break
			}
		}
	}
	if root != nil {
		root.markPendingTimeRange(t)
	}
	return root
}

// scheduleCallbackForRoot keeps at most one callback per root, at the
// highest pending expiration time.
func (r *Renderer) scheduleCallbackForRoot(root *Root, p scheduler.Priority, t expiration.Time) {
	if root.CallbackExpirationTime >= t {
		return
	}
	if root.CallbackNode != nil {
		r.cancelCallbackNode(root.CallbackNode)
	}
	root.CallbackExpirationTime = t

	node := &callbackNode{job: r.newTask(root, t)}
	if t == expiration.Sync {
		r.scheduleSyncCallback(node)
	} else {
		var opts []scheduler.CallbackOption
		if t != expiration.Never {
			timeout := time.Duration(expiration.ToMs(t))*time.Millisecond - r.sched.Now()
			opts = append(opts, scheduler.WithTimeout(timeout))
		}
		node.task = r.sched.ScheduleCallback(p, node.job, opts...)
	}
	root.CallbackNode = node
}

func (r *Renderer) cancelCallbackNode(n *callbackNode) {
	n.cancelled = true
	if n.task != nil {
		r.sched.CancelCallback(n.task)
	}
}

func (r *Renderer) runRootCallback(task *rootTask, isSync bool) (*rootTask, error) {
	root := task.root
	prev := root.CallbackNode
	var (
		next *rootTask
		err  error
	)
	if task.phase == phaseCommit {
		err = r.commitRoot(root)
	} else {
		next, err = r.renderRoot(root, task.expirationTime, isSync)
	}
	if next == nil && prev == root.CallbackNode {
		root.CallbackNode = nil
		root.CallbackExpirationTime = expiration.NoWork
	}
	return next, err
}

func (r *Renderer) scheduleSyncCallback(node *callbackNode) {
	first := len(r.syncQueue) == 0
	r.syncQueue = append(r.syncQueue, node)
	if first {
		r.immediateQueueTask = r.sched.ScheduleCallback(scheduler.ImmediatePriority,
			scheduler.JobFunc(func(bool) (scheduler.Job, error) {
				r.immediateQueueTask = nil
				return nil, r.flushSyncCallbackQueueImpl()
			}))
	}
}

func (r *Renderer) flushSyncCallbackQueue() error {
	if r.immediateQueueTask != nil {
		r.sched.CancelCallback(r.immediateQueueTask)
		r.immediateQueueTask = nil
	}
	return r.flushSyncCallbackQueueImpl()
}

func (r *Renderer) flushSyncCallbackQueueImpl() (err error) {
	if r.isFlushingSyncQueue || len(r.syncQueue) == 0 {
		return nil
	}
	r.isFlushingSyncQueue = true
	defer func() {
		r.isFlushingSyncQueue = false
	}()

	r.sched.RunWithPriority(scheduler.ImmediatePriority, func() {
		for len(r.syncQueue) > 0 {
			node := r.syncQueue[0]
			r.syncQueue[0] = nil
			r.syncQueue = r.syncQueue[1:]

			for task := node.job; task != nil && !node.cancelled; {
				task, err = r.runRootCallback(task, true)
				if err != nil {
					return
				}
			}
		}
	})
	if len(r.syncQueue) == 0 {
		r.syncQueue = nil
	} else if r.immediateQueueTask == nil {
		// An error stopped the flush; finish the rest on the next tick.
		r.immediateQueueTask = r.sched.ScheduleCallback(scheduler.ImmediatePriority,
			scheduler.JobFunc(func(bool) (scheduler.Job, error) {
				r.immediateQueueTask = nil
				return nil, r.flushSyncCallbackQueueImpl()
			}))
	}
	return err
}

func (r *Renderer) prepareFreshStack(root *Root, t expiration.Time) {
	root.FinishedWork = nil
	root.FinishedExpirationTime = expiration.NoWork
	if root.TimeoutHandle != nil {
		// The pending fallback commit is stale now that there is new work.
		r.host.CancelTimeout(root.TimeoutHandle)
		root.TimeoutHandle = nil
	}

	if r.wip != nil {
		if r.wipRoot != nil {
			r.observer.Restarted(r.wipRoot, r.renderExpirationTime)
		}
		for f := r.wip.Return; f != nil; f = f.Return {
			r.unwindInterruptedWork(f)
		}
	}
	clear(r.containerStack)
	r.containerStack = r.containerStack[:0]

	r.wipRoot = root
	r.wip = createWorkInProgress(root.Current, nil, t)
	r.renderExpirationTime = t
	r.exitStatus = StatusRendering
	r.latestProcessedTime = expiration.Sync
	r.latestSuspenseTimeout = expiration.Sync
	r.canSuspendUsingConfig = nil
	r.hasPendingPing = false
}

// renderRoot renders root at t. isSync disables yielding, and for async
// callbacks reports that the scheduler timed the task out.
func (r *Renderer) renderRoot(root *Root, t expiration.Time, isSync bool) (*rootTask, error) {
	if r.executionContext&(renderContext|commitContext) != noContext {
		panic(ferrors.Violation("F003", "renderRoot"))
	}

	if root.FirstPendingTime < t {
		// Another callback already flushed this level.
		return nil, nil
	}
	if isSync && root.FinishedExpirationTime == t {
		// Already rendered at this level; commit without rendering again.
		return r.commitTask(root), nil
	}

	if err := r.flushPassiveEffects(); err != nil {
		r.reportError(err)
	}

	if root != r.wipRoot || t != r.renderExpirationTime {
		r.prepareFreshStack(root, t)
	} else if r.exitStatus == StatusSuspendedWithDelay {
		if r.hasPendingPing {
			r.prepareFreshStack(root, t)
		} else if last := root.LastPendingTime; last < t {
			return r.newTask(root, last), nil
		}
	}

	if r.wip != nil {
		if isSync {
			if t != expiration.Sync {
				// Expired async work: render everything that has expired in
				// one batch.
				if now := r.requestCurrentTime(); now < t {
					return r.newTask(root, now), nil
				}
			}
		} else {
			r.currentEventTime = expiration.NoWork
		}

		r.observer.RenderStarted(root, t, isSync)
		fatal := r.workUntilDone(root, isSync)
		if fatal != nil {
			r.prepareFreshStack(root, t)
			r.wipRoot, r.wip = nil, nil
			r.lastExitStatus = StatusErrored
			err := &UncaughtError{Err: fatal}
			r.logger.Error("reconciler: root failed to render", "error", fatal)
			if r.onUncaughtError != nil {
				r.onUncaughtError(err)
			}
			return nil, err
		}
		if r.wip != nil {
			r.observer.RenderYielded(root, t)
			return r.newTask(root, t), nil
		}
	}

	root.FinishedWork = root.Current.Alternate
	root.FinishedExpirationTime = t
	r.wipRoot = nil
	r.lastExitStatus = r.exitStatus
	r.observer.RenderFinished(root, t, r.exitStatus)

	return r.finishRender(root, t, isSync)
}

// workUntilDone runs the work loop, routing thrown errors to boundaries,
// until the tree is complete or the loop yields. It returns an error only
// when nothing can capture it.
func (r *Renderer) workUntilDone(root *Root, isSync bool) error {
	prev := r.executionContext
	r.executionContext |= renderContext
	defer func() {
		r.executionContext = prev
		r.renderingFiber = nil
	}()

	for {
		var (
			status stepStatus
			err    error
		)
		if isSync {
			status, err = r.workLoopSync()
		} else {
			status, err = r.workLoop()
		}
		if err == nil {
			return nil
		}
		if fatal := r.handleThrow(root, status, err); fatal != nil {
			return fatal
		}
	}
}

func (r *Renderer) finishRender(root *Root, t expiration.Time, isSync bool) (*rootTask, error) {
	switch r.exitStatus {
	case StatusRendering:
		panic(ferrors.Violation("F005", "render finished while still in progress"))

	case StatusErrored:
		if last := root.LastPendingTime; last < t {
			// Lower priority work may resolve the error.
			return r.newTask(root, last), nil
		}
		if !isSync {
			// Try once more synchronously before committing the error state.
			r.prepareFreshStack(root, t)
			r.scheduleSyncCallback(&callbackNode{job: r.newTask(root, t)})
			return nil, nil
		}
		return r.commitTask(root), nil

	case StatusSuspended:
		noNewUpdates := r.latestProcessedTime == expiration.Sync
		if noNewUpdates && !isSync {
			if r.hasPendingPing {
				r.prepareFreshStack(root, t)
				return r.newTask(root, t), nil
			}
			if last := root.LastPendingTime; last < t {
				return r.newTask(root, last), nil
			}
			wait := r.globalMostRecentFallbackTime + r.fallbackThrottle - r.sched.Now()
			if wait > 10*time.Millisecond {
				r.scheduleTimeoutCommit(root, wait)
				return nil, nil
			}
		}
		return r.commitTask(root), nil

	case StatusSuspendedWithDelay:
		if !isSync {
			if r.hasPendingPing {
				r.prepareFreshStack(root, t)
				return r.newTask(root, t), nil
			}
			if last := root.LastPendingTime; last < t {
				return r.newTask(root, last), nil
			}
			var waitMs int64
			switch {
			case r.latestSuspenseTimeout != expiration.Sync:
				waitMs = expiration.ToMs(r.latestSuspenseTimeout) - r.nowMs()
			case r.latestProcessedTime == expiration.Sync:
				// Nothing was processed; this is a mount, commit the fallback now.
				waitMs = 0
			default:
				eventMs := inferTimeFromExpirationTime(r.latestProcessedTime, nil)
				nowMs := r.nowMs()
				untilExpiration := expiration.ToMs(t) - nowMs
				elapsed := max(nowMs-eventMs, 0)
				waitMs = min(jnd(elapsed)-elapsed, untilExpiration)
			}
			if waitMs > 10 {
				r.scheduleTimeoutCommit(root, time.Duration(waitMs)*time.Millisecond)
				return nil, nil
			}
		}
		return r.commitTask(root), nil

	case StatusCompleted:
		if !isSync && r.latestProcessedTime != expiration.Sync && r.canSuspendUsingConfig != nil {
			wait := r.msUntilSuspenseLoadingDelay(r.latestProcessedTime, r.canSuspendUsingConfig)
			if wait > 10 {
				r.scheduleTimeoutCommit(root, time.Duration(wait)*time.Millisecond)
				return nil, nil
			}
		}
		return r.commitTask(root), nil
	}
	panic(ferrors.Violation("F005", "exit status %d", r.exitStatus))
}

func (r *Renderer) scheduleTimeoutCommit(root *Root, d time.Duration) {
	root.TimeoutHandle = r.host.ScheduleTimeout(func() {
		root.TimeoutHandle = nil
		if err := r.commitRoot(root); err != nil {
			r.reportError(err)
		}
	}, d)
}

// inferTimeFromExpirationTime recovers the approximate event time that
// produced an async expiration time.
func inferTimeFromExpirationTime(t expiration.Time, cfg *expiration.SuspenseConfig) int64 {
	timeout := int64(expiration.LowPriorityExpirationMs)
	if cfg != nil && cfg.Timeout > 0 {
		timeout = cfg.Timeout.Milliseconds()
	}
	return expiration.ToMs(t) - timeout
}

func (r *Renderer) msUntilSuspenseLoadingDelay(latest expiration.Time, cfg *expiration.SuspenseConfig) int64 {
	busyMin := cfg.BusyMinDuration.Milliseconds()
	if busyMin <= 0 {
		return 0
	}
	busyDelay := cfg.BusyDelay.Milliseconds()
	elapsed := r.nowMs() - inferTimeFromExpirationTime(latest, cfg)
	if elapsed <= busyDelay {
		// The busy indicator was never shown.
		return 0
	}
	return busyDelay + busyMin - elapsed
}

// jnd returns how long a suspended update may wait for its data, given
// how long ago the update happened.
func jnd(elapsed int64) int64 {
	switch {
	case elapsed < 120:
		return 120
	case elapsed < 480:
		return 480
	case elapsed < 1080:
		return 1080
	case elapsed < 1920:
		return 1920
	case elapsed < 3000:
		return 3000
	case elapsed < 4320:
		return 4320
	}
	return ((elapsed + 1959) / 1960) * 1960
}

type stepStatus uint8

const (
	stepNext stepStatus = iota
	stepComplete
	stepSuspended
	stepErrored
)

func (r *Renderer) workLoopSync() (stepStatus, error) {
	for r.wip != nil {
		if status, err := r.performUnitOfWork(r.wip); err != nil {
			return status, err
		}
	}
	return stepNext, nil
}

func (r *Renderer) workLoop() (stepStatus, error) {
	for r.wip != nil && !r.sched.ShouldYield() {
		if status, err := r.performUnitOfWork(r.wip); err != nil {
			return status, err
		}
	}
	return stepNext, nil
}

func (r *Renderer) performUnitOfWork(unit *Fiber) (stepStatus, error) {
	next, status, err := r.beginStep(unit.Alternate, unit)
	if err != nil {
		return status, err
	}
	unit.MemoizedProps = unit.PendingProps
	if status == stepComplete {
		next, err = r.completeUnitOfWork(unit)
		if err != nil {
			return stepErrored, err
		}
	}
	r.wip = next
	return status, nil
}

// beginStep runs beginWork, classifying its outcome. Panics from component
// or host code become errors; contract violations keep unwinding.
func (r *Renderer) beginStep(current, wip *Fiber) (next *Fiber, status stepStatus, err error) {
	defer func() {
		r.renderingFiber = nil
		if rec := recover(); rec != nil {
			if ferrors.IsContract(rec) {
				panic(rec)
			}
			next, status, err = nil, stepErrored, &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()

	r.renderingFiber = wip
	next, err = r.beginWork(current, wip, r.renderExpirationTime)
	if err != nil {
		var se *SuspendError
		if errors.As(err, &se) {
			return nil, stepSuspended, err
		}
		return nil, stepErrored, err
	}
	if next == nil {
		return nil, stepComplete, nil
	}
	return next, stepNext, nil
}

// handleThrow hands err, raised by r.wip, to the nearest boundary and
// resumes from there. It returns err back if the root itself failed.
func (r *Renderer) handleThrow(root *Root, status stepStatus, err error) error {
	for {
		source := r.wip
		if source == nil || source.Return == nil {
			return err
		}
		r.throwException(root, source.Return, source, status, err, r.renderExpirationTime)

		next, cerr := r.completeUnitOfWork(source)
		if cerr == nil {
			r.wip = next
			return nil
		}
		// Completing the boundary failed too; r.wip is the new source.
		status, err = stepErrored, cerr
	}
}

func (r *Renderer) renderDidSuspend() {
	if r.exitStatus == StatusRendering {
		r.exitStatus = StatusSuspended
	}
}

func (r *Renderer) renderDidSuspendDelayIfPossible() {
	if r.exitStatus == StatusRendering || r.exitStatus == StatusSuspended {
		r.exitStatus = StatusSuspendedWithDelay
	}
}

func (r *Renderer) renderDidError() {
	if r.exitStatus != StatusCompleted {
		r.exitStatus = StatusErrored
	}
}

// pingSuspendedRoot is called when a wakeable that suspended root at t
// resolves.
func (r *Renderer) pingSuspendedRoot(root *Root, w Wakeable, t expiration.Time) {
	delete(root.pingCache, pingKey{wakeable: w, t: t})

	if r.wipRoot == root && r.renderExpirationTime == t {
		// Pinged at the level being rendered. Restart if the tree is going
		// to be thrown away anyway, otherwise remember the ping.
		throttled := r.exitStatus == StatusSuspended &&
			r.latestProcessedTime == expiration.Sync &&
			r.sched.Now()-r.globalMostRecentFallbackTime < r.fallbackThrottle
		if r.exitStatus == StatusSuspendedWithDelay || throttled {
			r.prepareFreshStack(root, t)
		} else {
			r.hasPendingPing = true
		}
		return
	}

	if root.LastPendingTime < t {
		return
	}
	if root.PingTime != expiration.NoWork && root.PingTime < t {
		return
	}
	root.PingTime = t
	if root.FinishedExpirationTime == t {
		// Drop the pending fallback commit and render again.
		root.FinishedExpirationTime = expiration.NoWork
		root.FinishedWork = nil
	}
	currentTime := r.requestCurrentTime()
	r.scheduleCallbackForRoot(root, expiration.InferPriority(currentTime, t), t)
	r.flushIfIdle()
}

// retryTimedOutBoundary schedules a boundary showing its fallback to try
// its primary children again.
func (r *Renderer) retryTimedOutBoundary(boundary *Fiber, w Wakeable) {
	delete(r.retryCache, retryKey{boundary: boundary, wakeable: w})

	currentTime := r.requestCurrentTime()
	t := r.computeExpirationForFiber(currentTime, boundary, nil)
	root := r.markUpdateTimeFromFiberToRoot(boundary, t)
	if root == nil {
		return
	}
	r.scheduleCallbackForRoot(root, expiration.InferPriority(currentTime, t), t)
	r.flushIfIdle()
}

// flushIfIdle flushes sync work scheduled from outside any entry point,
// reporting the result since there is no caller to return it to.
func (r *Renderer) flushIfIdle() {
	if r.executionContext == noContext {
		if err := r.flushSyncCallbackQueue(); err != nil {
			r.reportError(err)
		}
	}
}
