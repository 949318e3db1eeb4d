package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/vango-dev/fiber/pkg/h"
	"github.com/vango-dev/fiber/pkg/reconciler"
	"github.com/vango-dev/fiber/pkg/scheduler"
	"github.com/vango-dev/fiber/pkg/vdom"
)

type row struct {
	key  string
	text string
}

// benchOp derives the next list from the current one.
type benchOp struct {
	name string
	next func(rows []row, iter int) []row
}

var benchOps = []benchOp{
	{"mount", nil},
	{"reverse", func(rows []row, _ int) []row {
		out := make([]row, len(rows))
		for i, r := range rows {
			out[len(rows)-1-i] = r
		}
		return out
	}},
	{"rotate", func(rows []row, _ int) []row {
		if len(rows) < 2 {
			return rows
		}
		out := append([]row{}, rows[1:]...)
		return append(out, rows[0])
	}},
	{"swap", func(rows []row, _ int) []row {
		out := append([]row{}, rows...)
		if len(out) > 2 {
			out[1], out[len(out)-2] = out[len(out)-2], out[1]
		}
		return out
	}},
	{"update", func(rows []row, iter int) []row {
		out := append([]row{}, rows...)
		for i := 0; i < len(out); i += 10 {
			out[i].text = out[i].key + "." + strconv.Itoa(iter)
		}
		return out
	}},
	{"replace-middle", func(rows []row, iter int) []row {
		out := append([]row{}, rows...)
		if len(out) > 0 {
			k := "r" + strconv.Itoa(iter)
			out[len(out)/2] = row{key: k, text: k}
		}
		return out
	}},
}

type benchOptions struct {
	sizes []int
	iters int
	mode  string
}

func benchCmd(flags *globalFlags) *cobra.Command {
	opts := benchOptions{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark keyed list reconciliation",
		Long: `Mount and rearrange keyed lists and report render+commit latency.

Each operation runs against a fresh renderer over a virtual host.
Times cover UpdateContainer through the end of the commit.

Examples:
  fiberctl bench
  fiberctl bench --sizes=100,1000 --iters=500
  fiberctl bench --mode=concurrent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if opts.mode == "" {
				opts.mode = cfg.Renderer.Mode
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
			return runBench(cmd.OutOrStdout(), opts, logger)
		},
	}

	cmd.Flags().IntSliceVar(&opts.sizes, "sizes", []int{10, 100, 1000}, "List sizes")
	cmd.Flags().IntVarP(&opts.iters, "iters", "n", 200, "Iterations per operation")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Root mode: legacy or concurrent (default from fiber.json)")

	return cmd
}

func runBench(w io.Writer, opts benchOptions, logger *slog.Logger) error {
	var tag reconciler.RootTag
	switch opts.mode {
	case "legacy":
		tag = reconciler.LegacyRoot
	case "concurrent":
		tag = reconciler.ConcurrentRoot
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
	if opts.iters <= 0 {
		return fmt.Errorf("iters must be positive")
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"size", "op", "avg", "min", "p75", "p99", "max", "patches/op"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	start := time.Now()
	for _, size := range opts.sizes {
		for _, op := range benchOps {
			res, err := benchOne(size, opts.iters, tag, op, logger)
			if err != nil {
				return fmt.Errorf("%s/%d: %w", op.name, size, err)
			}
			calc := res.tach.Calc()
			table.Append([]string{
				humanize.Comma(int64(size)),
				op.name,
				calc.Time.Avg.String(),
				calc.Time.Min.String(),
				calc.Time.P75.String(),
				calc.Time.P99.String(),
				calc.Time.Max.String(),
				strconv.FormatFloat(float64(res.patches)/float64(opts.iters), 'f', 1, 64),
			})
		}
	}

	fmt.Fprintf(w, "%s root, %s iterations per operation\n\n", opts.mode, humanize.Comma(int64(opts.iters)))
	table.Render()
	fmt.Fprintln(w)
	info(w, "Finished in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

type benchResult struct {
	tach    *tachymeter.Tachymeter
	patches int
}

func benchOne(size, iters int, tag reconciler.RootTag, op benchOp, logger *slog.Logger) (*benchResult, error) {
	sched := scheduler.New(scheduler.WithLogger(logger))
	host := vdom.NewHost(sched, vdom.WithLogger(logger))
	r := reconciler.New(host, sched, reconciler.WithLogger(logger))
	root := r.CreateContainer(host.NewContainer(), tag)

	render := func(root *reconciler.Root, rows []row) error {
		if _, err := r.UpdateContainer(list(rows), root, nil); err != nil {
			return err
		}
		return sched.FlushAll()
	}

	rows := make([]row, size)
	for i := range rows {
		k := "k" + strconv.Itoa(i)
		rows[i] = row{key: k, text: k}
	}
	if op.next != nil {
		if err := render(root, rows); err != nil {
			return nil, err
		}
		host.TakePatches()
	}

	res := &benchResult{tach: tachymeter.New(&tachymeter.Config{Size: iters})}
	for i := 0; i < iters; i++ {
		next := rows
		if op.next == nil {
			root = r.CreateContainer(host.NewContainer(), tag)
		} else {
			next = op.next(rows, i)
		}

		start := time.Now()
		if err := render(root, next); err != nil {
			return nil, err
		}
		res.tach.AddTime(time.Since(start))

		res.patches += len(host.TakePatches())
		rows = next
	}
	return res, nil
}

func list(rows []row) reconciler.Node {
	children := make([]any, 0, len(rows))
	for _, r := range rows {
		children = append(children, h.Li(h.Key(r.key), r.text))
	}
	return h.Ul(children...)
}
