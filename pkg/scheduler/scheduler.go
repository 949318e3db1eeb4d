package scheduler

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// DefaultFrameBudget is how long a frame runs before ShouldYield reports true.
const DefaultFrameBudget = 5 * time.Millisecond

// ErrReentrantFlush is returned when a flush is started from inside a job.
var ErrReentrantFlush = errors.New("scheduler: flush called from inside a running job")

// Job is a unit of scheduled work. A Job that is interrupted returns a
// continuation, which keeps the task's place in the queue; returning nil
// finishes the task.
type Job interface {
	Run(didTimeout bool) (Job, error)
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(didTimeout bool) (Job, error)

// Run implements Job.
func (f JobFunc) Run(didTimeout bool) (Job, error) {
	return f(didTimeout)
}

// Func wraps a plain function as a Job without continuation.
func Func(fn func()) Job {
	return JobFunc(func(bool) (Job, error) {
		fn()
		return nil, nil
	})
}

// PanicError is returned from a flush when a job panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduler: job panicked: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Task is a scheduled job. It is only handed out so it can be cancelled.
type Task struct {
	id             uint64
	job            Job
	priority       Priority
	startTime      time.Duration
	expirationTime time.Duration
	sortIndex      time.Duration
	index          int
	cancelled      bool
	done           bool
}

// Priority returns the priority the task was scheduled with.
func (t *Task) Priority() Priority {
	if t == nil {
		return NoPriority
	}
	return t.priority
}

// ExpirationTime returns the scheduler time at which the task is overdue.
func (t *Task) ExpirationTime() time.Duration {
	return t.expirationTime
}

// Cancelled reports whether the task was cancelled.
func (t *Task) Cancelled() bool {
	return t == nil || t.cancelled
}

// Done reports whether the task ran to completion.
func (t *Task) Done() bool {
	return t != nil && t.done
}

// CallbackOption configures a single ScheduleCallback call.
type CallbackOption func(*callbackOptions)

type callbackOptions struct {
	delay   time.Duration
	timeout time.Duration
	hasTO   bool
}

// WithDelay postpones the task until delay has passed.
func WithDelay(delay time.Duration) CallbackOption {
	return func(o *callbackOptions) {
		o.delay = delay
	}
}

// WithTimeout overrides the priority's default timeout.
func WithTimeout(timeout time.Duration) CallbackOption {
	return func(o *callbackOptions) {
		o.timeout = timeout
		o.hasTO = true
	}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source. Default: a RealClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithFrameBudget sets how long a frame may run before yielding.
func WithFrameBudget(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.frameBudget = d
		}
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler is a priority queue of jobs processed in bounded frames.
// It is not safe for concurrent use; see Loop.
type Scheduler struct {
	clock       Clock
	frameBudget time.Duration
	logger      *slog.Logger

	taskQueue  taskHeap
	timerQueue taskHeap
	nextID     uint64

	currentTask      *Task
	currentPriority  Priority
	isPerformingWork bool
	deadline         time.Duration
	needsPaint       bool
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		frameBudget:     DefaultFrameBudget,
		logger:          slog.Default(),
		currentPriority: NormalPriority,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = NewRealClock()
	}
	return s
}

// Now returns the scheduler's current time.
func (s *Scheduler) Now() time.Duration {
	return s.clock.Now()
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// ScheduleCallback queues job at the given priority and returns its task.
func (s *Scheduler) ScheduleCallback(p Priority, job Job, opts ...CallbackOption) *Task {
	var o callbackOptions
	for _, opt := range opts {
		opt(&o)
	}
	if p == NoPriority {
		p = NormalPriority
	}

	now := s.clock.Now()
	start := now
	if o.delay > 0 {
		start = now + o.delay
	}
	timeout := p.Timeout()
	if o.hasTO {
		timeout = o.timeout
	}

	s.nextID++
	t := &Task{
		id:             s.nextID,
		job:            job,
		priority:       p,
		startTime:      start,
		expirationTime: start + timeout,
		index:          -1,
	}

	if start > now {
		t.sortIndex = start
		s.timerQueue.push(t)
	} else {
		t.sortIndex = t.expirationTime
		s.taskQueue.push(t)
	}
	return t
}

// CancelCallback cancels a task. Cancelling a finished task is a no-op.
func (s *Scheduler) CancelCallback(t *Task) {
	if t == nil {
		return
	}
	// Cancelled tasks are dropped lazily when they reach the front of the
	// queue; delayed tasks are removed eagerly so they do not keep a timer.
	t.job = nil
	t.cancelled = true
	s.timerQueue.remove(t)
}

// ShouldYield reports whether the running job should hand control back.
func (s *Scheduler) ShouldYield() bool {
	if s.needsPaint {
		return true
	}
	return s.clock.Now() >= s.deadline
}

// RequestPaint asks the current frame to end at the next yield point.
func (s *Scheduler) RequestPaint() {
	s.needsPaint = true
}

// CurrentPriority returns the priority of the running task, or the priority
// set by RunWithPriority.
func (s *Scheduler) CurrentPriority() Priority {
	return s.currentPriority
}

// RunWithPriority runs fn with CurrentPriority reporting p.
func (s *Scheduler) RunWithPriority(p Priority, fn func()) {
	prev := s.currentPriority
	s.currentPriority = p
	defer func() {
		s.currentPriority = prev
	}()
	fn()
}

// HasPendingWork reports whether any task is queued, delayed or not.
func (s *Scheduler) HasPendingWork() bool {
	s.dropCancelled()
	return s.taskQueue.Len() > 0 || s.timerQueue.Len() > 0
}

// HasDueWork reports whether a task is ready to run now.
func (s *Scheduler) HasDueWork() bool {
	s.advanceTimers(s.clock.Now())
	s.dropCancelled()
	return s.taskQueue.Len() > 0
}

// NextTimerDelay returns how long until the earliest delayed task starts.
func (s *Scheduler) NextTimerDelay() (time.Duration, bool) {
	for t := s.timerQueue.peek(); t != nil; t = s.timerQueue.peek() {
		if t.job != nil {
			d := t.startTime - s.clock.Now()
			if d < 0 {
				d = 0
			}
			return d, true
		}
		s.timerQueue.pop()
	}
	return 0, false
}

// FlushFrame runs due tasks until the frame budget is spent. It reports
// whether due work remains.
func (s *Scheduler) FlushFrame() (bool, error) {
	if s.isPerformingWork {
		return false, ErrReentrantFlush
	}
	s.isPerformingWork = true
	prevPriority := s.currentPriority
	defer func() {
		s.isPerformingWork = false
		s.currentTask = nil
		s.currentPriority = prevPriority
	}()

	now := s.clock.Now()
	s.deadline = now + s.frameBudget
	s.needsPaint = false

	err := s.workLoop(now)
	s.needsPaint = false
	return s.HasDueWork(), err
}

// FlushAll runs frames until no due task remains. Delayed tasks whose start
// time has not been reached stay queued. The first job error stops the flush
// and is returned; the remaining tasks stay queued.
func (s *Scheduler) FlushAll() error {
	for {
		more, err := s.FlushFrame()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

func (s *Scheduler) workLoop(now time.Duration) error {
	s.advanceTimers(now)
	for t := s.taskQueue.peek(); t != nil; t = s.taskQueue.peek() {
		if t.expirationTime > now && s.ShouldYield() {
			// This task hasn't expired and we've reached the deadline.
			return nil
		}
		job := t.job
		if job == nil {
			s.taskQueue.pop()
			continue
		}
		t.job = nil
		s.currentTask = t
		s.currentPriority = t.priority

		cont, err := s.runJob(job, t.expirationTime <= now)
		now = s.clock.Now()
		if cont != nil && !t.cancelled {
			t.job = cont
		} else {
			t.done = !t.cancelled
			s.taskQueue.remove(t)
		}
		s.advanceTimers(now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) runJob(job Job, didTimeout bool) (cont Job, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler job panicked", "panic", r)
			cont = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return job.Run(didTimeout)
}

func (s *Scheduler) advanceTimers(now time.Duration) {
	for t := s.timerQueue.peek(); t != nil; t = s.timerQueue.peek() {
		switch {
		case t.job == nil:
			s.timerQueue.pop()
		case t.startTime <= now:
			s.timerQueue.pop()
			t.sortIndex = t.expirationTime
			s.taskQueue.push(t)
		default:
			return
		}
	}
}

func (s *Scheduler) dropCancelled() {
	for t := s.taskQueue.peek(); t != nil && t.job == nil; t = s.taskQueue.peek() {
		s.taskQueue.pop()
	}
}
