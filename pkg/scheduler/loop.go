package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/petermattis/goid"
)

// ErrLoopClosed is returned by Post after Run has returned.
var ErrLoopClosed = errors.New("scheduler: loop is not running")

// ErrLoopRunning is returned when Run is called twice.
var ErrLoopRunning = errors.New("scheduler: loop is already running")

// LoopConfig configures a Loop.
type LoopConfig struct {
	// InboxSize is the buffer of the cross-goroutine inbox.
	// Default: 256.
	InboxSize int

	// OnError is called with every error returned by a flush. The loop keeps
	// running afterwards. Default: log the error.
	OnError func(error)

	// Logger is used for diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Loop owns a Scheduler and the goroutine that drives it. Everything that
// touches the scheduler (and whatever renderer runs on it) must happen on
// that goroutine; other goroutines hand work over with Post.
type Loop struct {
	s       *Scheduler
	inbox   chan func()
	onError func(error)
	logger  *slog.Logger

	gid     atomic.Int64
	running atomic.Bool
	closed  chan struct{}
}

// NewLoop wraps s in a Loop.
func NewLoop(s *Scheduler, cfg LoopConfig) *Loop {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	l := &Loop{
		s:      s,
		inbox:  make(chan func(), cfg.InboxSize),
		logger: cfg.Logger,
		closed: make(chan struct{}),
	}
	l.onError = cfg.OnError
	if l.onError == nil {
		l.onError = func(err error) {
			l.logger.Error("scheduler loop flush failed", "error", err)
		}
	}
	return l
}

// Scheduler returns the wrapped scheduler.
func (l *Loop) Scheduler() *Scheduler {
	return l.s
}

// InLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) InLoop() bool {
	return l.running.Load() && l.gid.Load() == goid.Get()
}

// Post runs fn on the loop goroutine. Called from the loop goroutine itself
// it runs fn inline; otherwise it blocks until fn is queued or ctx is done.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	if l.InLoop() {
		fn()
		return nil
	}
	select {
	case <-l.closed:
		return ErrLoopClosed
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.closed:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the scheduler until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	l.gid.Store(goid.Get())
	defer func() {
		l.running.Store(false)
		close(l.closed)
	}()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		l.drainInbox()

		if l.s.HasDueWork() {
			if _, err := l.s.FlushFrame(); err != nil {
				l.onError(err)
			}
			// Give posted work a chance to interleave with long renders.
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			continue
		}

		var timerC <-chan time.Time
		if d, ok := l.s.NextTimerDelay(); ok {
			timer.Reset(d)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.inbox:
			l.run(fn)
		case <-timerC:
		}
		if timerC != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func (l *Loop) drainInbox() {
	for {
		select {
		case fn := <-l.inbox:
			l.run(fn)
		default:
			return
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("posted function panicked", "panic", r)
		}
	}()
	fn()
}
