package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vango-dev/fiber/internal/config"
	"github.com/vango-dev/fiber/pkg/commitlog"
	"github.com/vango-dev/fiber/pkg/scenario"
)

type runOptions struct {
	jsonOut bool
	outPath string
}

func runCmd(flags *globalFlags) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Replay a render scenario",
		Long: `Replay a scenario file against a virtual host tree.

Every commit is printed with its patches, followed by the final
markup. The command fails if any expect check does not match.

Relative paths that do not exist are looked up in the scenarios
directory from fiber.json.

Examples:
  fiberctl run scenarios/reorder.yaml
  fiberctl run reorder.yaml --json
  fiberctl run reorder.yaml --out commits.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)
			return runScenario(cmd.Context(), cmd.OutOrStdout(), resolveScenario(cfg, args[0]), opts, logger)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print commit records as JSON lines")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "Append commit records to a JSON lines file")

	return cmd
}

// resolveScenario returns name, or its path under the scenarios directory
// when name is relative and does not exist.
func resolveScenario(cfg *config.Config, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	candidate := filepath.Join(cfg.ScenariosPath(), name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return name
}

func runScenario(ctx context.Context, w io.Writer, path string, opts runOptions, logger *slog.Logger) error {
	sc, err := scenario.Load(path)
	if err != nil {
		return err
	}
	res, err := scenario.Run(ctx, sc, scenario.Options{Logger: logger})
	if err != nil {
		return err
	}

	if opts.jsonOut {
		if err := commitlog.Encode(w, res.Records); err != nil {
			return err
		}
	} else {
		printResult(w, sc, res)
	}

	if opts.outPath != "" {
		if err := commitlog.NewFileSink(opts.outPath).Write(ctx, res.Records); err != nil {
			return err
		}
		success(w, "Appended %s records to %s", humanize.Comma(int64(len(res.Records))), opts.outPath)
	}

	if !res.OK() {
		for _, f := range res.Failures {
			errorMsg(w, "%s", f)
		}
		return fmt.Errorf("%d expect check(s) failed", len(res.Failures))
	}
	return nil
}

func printResult(w io.Writer, sc *scenario.Scenario, res *scenario.Result) {
	name := sc.Name
	if name == "" {
		name = filepath.Base(sc.Path)
	}
	mode := sc.Mode
	if mode == "" {
		mode = "legacy"
	}
	fmt.Fprintf(w, "%s (%s)\n\n", name, mode)

	patches := 0
	for _, rec := range res.Records {
		fmt.Fprintf(w, "commit #%d  expiration %d  %s effects  %s\n",
			rec.Seq, rec.ExpirationTime, humanize.Comma(int64(rec.Effects)), rec.Duration)
		for _, p := range rec.Patches {
			fmt.Fprintf(w, "    %s\n", p)
		}
		patches += len(rec.Patches)
	}

	fmt.Fprintf(w, "\n%s\n\n", res.HTML)
	info(w, "%s commits, %s patches, %s of scheduler time",
		humanize.Comma(int64(len(res.Records))), humanize.Comma(int64(patches)), res.Elapsed)
	if res.OK() {
		success(w, "All expect checks passed")
	}
}
