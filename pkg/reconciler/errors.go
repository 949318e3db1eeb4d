package reconciler

import (
	"errors"
	"fmt"
	"runtime/debug"

	ferrors "github.com/vango-dev/fiber/internal/errors"
)

var (
	// ErrUncaught wraps an error that no boundary captured. The root
	// renders nothing after such an error.
	ErrUncaught = errors.New("reconciler: uncaught error")

	// ErrRootUnmounted is reported for updates scheduled on a fiber that
	// is no longer attached to a root.
	ErrRootUnmounted = errors.New("reconciler: update on an unmounted component")
)

// Wakeable is something a component waits for. Then registers a listener
// that must be invoked once, on the renderer's goroutine, when the
// wakeable resolves.
type Wakeable interface {
	Then(onResolve func())
}

// SuspendError is returned from render to suspend the component until
// Wakeable resolves.
type SuspendError struct {
	Wakeable Wakeable
}

func (e *SuspendError) Error() string {
	return "reconciler: component suspended"
}

// Suspend returns an error that suspends rendering until w resolves.
func Suspend(w Wakeable) error {
	return &SuspendError{Wakeable: w}
}

// Deferred is a Wakeable resolved by calling Resolve.
type Deferred struct {
	resolved  bool
	listeners []func()
}

// Then implements Wakeable.
func (d *Deferred) Then(onResolve func()) {
	if d.resolved {
		onResolve()
		return
	}
	d.listeners = append(d.listeners, onResolve)
}

// Resolve runs every listener once.
func (d *Deferred) Resolve() {
	if d.resolved {
		return
	}
	d.resolved = true
	listeners := d.listeners
	d.listeners = nil
	for _, fn := range listeners {
		fn()
	}
}

// Resolved reports whether Resolve was called.
func (d *Deferred) Resolved() bool {
	return d.resolved
}

// ErrorInfo describes where a captured error came from.
type ErrorInfo struct {
	ComponentStack []string
}

// capturedValue pairs an error with the fiber that raised it.
type capturedValue struct {
	err   error
	info  ErrorInfo
	where *Fiber
}

func createCapturedValue(err error, source *Fiber) *capturedValue {
	return &capturedValue{
		err:   err,
		info:  ErrorInfo{ComponentStack: componentStack(source)},
		where: source,
	}
}

// UncaughtError is returned when no boundary captured a render or commit
// error.
type UncaughtError struct {
	Err            error
	ComponentStack []string
}

func (e *UncaughtError) Error() string {
	return fmt.Sprintf("%v: %v", ErrUncaught, e.Err)
}

func (e *UncaughtError) Unwrap() []error {
	return []error{ErrUncaught, e.Err}
}

// PanicError is a panic raised by component or host code, recovered and
// routed like any other render or commit error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("reconciler: panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// guard runs user or host code and converts panics into errors.
// Contract violations are re-raised.
func guard(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if ferrors.IsContract(rec) {
				panic(rec)
			}
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn()
}
