package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/render"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/telemetry"
	"github.com/vango-dev/fiber/pkg/vdom"
)

// Options configures Run.
type Options struct {
	// Logger receives renderer and scheduler logs (default: slog.Default()).
	Logger *slog.Logger

	// Observer is notified alongside the commit log.
	Observer reconciler.Observer

	// OnStep is called after each step with its index and the commits it
	// produced.
	OnStep func(i int, step Step, records []commitlog.Record)
}

// Result is the outcome of a run.
type Result struct {
	Records []commitlog.Record

	// HTML is the container's content after the last step.
	HTML string

	// Failures lists the expect checks that did not match.
	Failures []Failure

	// Elapsed is the scheduler time the run took.
	Elapsed time.Duration
}

// Failure is a failed expect check.
type Failure struct {
	Step int
	Want string
	Got  string
}

func (f Failure) String() string {
	return fmt.Sprintf("step %d: got %q, want %q", f.Step, f.Got, f.Want)
}

// OK reports whether every expect check matched.
func (r *Result) OK() bool { return len(r.Failures) == 0 }

// Run plays sc against a fresh renderer over a vdom host with a manual
// clock. It stops at the first error or when ctx is done.
func Run(ctx context.Context, sc *Scenario, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	tag, err := sc.rootTag()
	if err != nil {
		return nil, err
	}

	clock := scheduler.NewManualClock()
	sched := scheduler.New(
		scheduler.WithClock(clock),
		scheduler.WithFrameBudget(sc.frameBudget()),
		scheduler.WithLogger(opts.Logger),
	)
	host := vdom.NewHost(sched, vdom.WithLogger(opts.Logger))
	epoch := time.Now()
	log := commitlog.New(host, commitlog.WithNow(func() time.Time { return epoch.Add(clock.Now()) }))
	r := reconciler.New(host, sched,
		reconciler.WithLogger(opts.Logger),
		reconciler.WithObserver(telemetry.Multi(log, opts.Observer)),
	)
	container := host.NewContainer()
	root := r.CreateContainer(container, tag)
	b := newBuilder(clock)

	res := &Result{}
	for i, st := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		before := log.Len()

		if st.Render != nil {
			p, _ := st.priority()
			var uerr error
			sched.RunWithPriority(p, func() {
				if st.Unique {
					_, uerr = r.UpdateContainerUnique(b.build(st.Render), root, nil)
					return
				}
				_, uerr = r.UpdateContainer(b.build(st.Render), root, nil)
			})
			if uerr != nil {
				return res, fmt.Errorf("step %d: %w", i+1, uerr)
			}
		}
		if st.Advance > 0 {
			clock.Advance(time.Duration(st.Advance) * time.Millisecond)
		}
		if err := flush(sched, st.Flush); err != nil {
			return res, fmt.Errorf("step %d: %w", i+1, err)
		}
		if st.Expect != nil {
			if got := render.ToHTML(container); got != *st.Expect {
				res.Failures = append(res.Failures, Failure{Step: i + 1, Want: *st.Expect, Got: got})
			}
		}

		if opts.OnStep != nil {
			all := log.Records()
			opts.OnStep(i, st, all[before:])
		}
	}

	res.Records = log.Records()
	res.HTML = render.ToHTML(container)
	res.Elapsed = clock.Now()
	return res, nil
}

func flush(sched *scheduler.Scheduler, mode string) error {
	switch mode {
	case "", FlushAll:
		return sched.FlushAll()
	case FlushFrame:
		_, err := sched.FlushFrame()
		return err
	default:
		return nil
	}
}
