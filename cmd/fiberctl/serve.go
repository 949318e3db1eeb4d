package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/fiber/internal/config"
	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/server"
	"github.com/vango-dev/fiber/pkg/telemetry"
	"github.com/vango-dev/fiber/pkg/vdom"
)

type serveOptions struct {
	addr       string
	rows       int
	flushEvery time.Duration
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a live demo root",
		Long: `Run a ticking keyed list on the scheduler loop and serve it.

Every tick rotates the list and updates one row. The tree, the
commit stream and Prometheus metrics are served over HTTP:

  GET /healthz, /tree, /commits, /metrics, /ws

Commit records are appended to commitlog.path and uploaded to
commitlog.s3Bucket when those are set in fiber.json. S3 credentials
are read from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
AWS_SESSION_TOKEN.

Examples:
  fiberctl serve
  fiberctl serve --addr=:8080 --rows=500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if opts.addr != "" {
				cfg.Server.Addr = opts.addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.addr, "addr", "a", "", "Listen address (default from fiber.json)")
	cmd.Flags().IntVar(&opts.rows, "rows", 20, "Number of rows in the demo list")
	cmd.Flags().DurationVar(&opts.flushEvery, "flush-every", 10*time.Second, "Interval between commit log uploads")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts serveOptions) error {
	out := cmd.OutOrStdout()
	logger := newLogger(cmd.ErrOrStderr(), cfg.Log)

	sched := scheduler.New(
		scheduler.WithFrameBudget(cfg.FrameBudget()),
		scheduler.WithLogger(logger),
	)
	loop := scheduler.NewLoop(sched, scheduler.LoopConfig{Logger: logger})
	host := vdom.NewHost(sched, vdom.WithLogger(logger))
	commits := commitlog.New(host,
		commitlog.WithLimit(cfg.CommitLog.Limit),
		commitlog.WithLogger(logger),
	)

	observers := []reconciler.Observer{
		commits,
		telemetry.NewLogObserver(logger),
		telemetry.NewTracer(),
	}
	var gatherer prometheus.Gatherer
	if !cfg.Metrics.Disabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observers = append(observers, telemetry.NewMetrics(
			telemetry.WithNamespace(cfg.Metrics.Namespace),
			telemetry.WithRegistry(reg),
		))
		gatherer = reg
	}

	r := reconciler.New(host, sched,
		reconciler.WithLogger(logger),
		reconciler.WithObserver(telemetry.Multi(observers...)),
		reconciler.WithNestedUpdateLimit(cfg.Renderer.NestedUpdateLimit),
		reconciler.WithFallbackThrottle(cfg.FallbackThrottle()),
		reconciler.WithUncaughtErrorHandler(func(err error) {
			logger.Error("uncaught render error", "error", err)
		}),
	)
	tag := reconciler.ConcurrentRoot
	if cfg.Renderer.Mode == "legacy" {
		tag = reconciler.LegacyRoot
	}
	container := host.NewContainer()
	root := r.CreateContainer(container, tag)

	sink := commitSink(cfg)
	srv := server.New(&server.Config{Addr: cfg.Server.Addr, Gatherer: gatherer}, loop, container, commits, logger)

	printBanner(out)
	info(out, "Mode:     %s", cfg.Renderer.Mode)
	info(out, "Listen:   http://%s", cfg.Server.Addr)
	info(out, "Tick:     %s", cfg.Tick())
	fmt.Fprintln(out)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return loop.Post(ctx, func() {
			if _, err := r.UpdateContainer(h.C(demoApp(loop, cfg.Tick(), opts.rows)), root, nil); err != nil {
				logger.Error("mount demo", "error", err)
			}
		})
	})
	g.Go(func() error {
		return srv.Run(ctx)
	})
	if sink != nil {
		g.Go(func() error {
			return commits.FlushEvery(ctx, opts.flushEvery, sink)
		})
	}

	err := g.Wait()
	fmt.Fprintln(out, "\n  Shutting down...")
	return err
}

// commitSink builds the sink configured in fiber.json, or nil.
func commitSink(cfg *config.Config) commitlog.Sink {
	var sinks []commitlog.Sink
	if path := cfg.CommitLogPath(); path != "" {
		sinks = append(sinks, commitlog.NewFileSink(path))
	}
	if cfg.CommitLog.S3Bucket != "" {
		client := s3.New(s3.Options{
			Region:      cfg.CommitLog.S3Region,
			Credentials: aws.NewCredentialsCache(envCredentials{}),
		})
		sinks = append(sinks, commitlog.NewS3Sink(client, cfg.CommitLog.S3Bucket, cfg.CommitLog.S3Prefix))
	}

	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return commitlog.Tee(sinks...)
	}
}

// envCredentials reads static AWS credentials from the environment.
type envCredentials struct{}

func (envCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}

// demoState is the state of the demo list.
type demoState struct {
	tick int
	rows []row
}

func newDemoState(n int) demoState {
	rows := make([]row, n)
	for i := range rows {
		k := "row-" + strconv.Itoa(i)
		rows[i] = row{key: k, text: k}
	}
	return demoState{rows: rows}
}

// advance rotates the list by one and stamps the tick on the row now at
// the front.
func (s demoState) advance() demoState {
	next := demoState{tick: s.tick + 1}
	if len(s.rows) == 0 {
		return next
	}
	next.rows = append(append([]row{}, s.rows[1:]...), s.rows[0])
	next.rows[0].text = next.rows[0].key + " @" + strconv.Itoa(next.tick)
	return next
}

// demoApp renders a list that advances every tick. Ticks are posted to the
// loop so state updates run on the scheduler goroutine.
func demoApp(loop *scheduler.Loop, tick time.Duration, rows int) *reconciler.FunctionType {
	return reconciler.Func("Demo", func(hk *reconciler.Hooks, _ reconciler.Props) (reconciler.Node, error) {
		st, set := reconciler.UseState(hk, newDemoState(rows))

		hk.UseEffect(func() (func(), error) {
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				t := time.NewTicker(tick)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if err := loop.Post(ctx, func() { set.Update(demoState.advance) }); err != nil {
							return
						}
					}
				}
			}()
			return cancel, nil
		}, []any{})

		return h.Section(
			h.H1("tick ", strconv.Itoa(st.tick)),
			list(st.rows),
		), nil
	})
}
