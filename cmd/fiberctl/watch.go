package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		opts     runOptions
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <scenario.yaml>",
		Short: "Re-run a scenario whenever it changes",
		Long: `Run a scenario, then run it again every time the file is saved.

Failed expect checks are reported but do not stop the watch.

Examples:
  fiberctl watch scenarios/reorder.yaml
  fiberctl watch reorder.yaml --debounce=250ms`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watchScenario(ctx, cmd.OutOrStdout(), resolveScenario(cfg, args[0]), opts, debounce, logger)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print commit records as JSON lines")
	cmd.Flags().DurationVar(&debounce, "debounce", 100*time.Millisecond, "Quiet period before re-running")

	return cmd
}

// watchScenario runs path once and again after every write, until ctx is
// done. The directory is watched so editors that replace the file on save
// are seen.
func watchScenario(ctx context.Context, w io.Writer, path string, opts runOptions, debounce time.Duration, logger *slog.Logger) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	rerun := func() {
		if err := runScenario(ctx, w, abs, opts, logger); err != nil {
			errorMsg(w, "%s", err)
		}
		info(w, "Watching %s", path)
	}
	rerun()

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "\n  Shutting down...")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				warn(w, "%s was removed", path)
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			}

		case <-fire:
			fmt.Fprintln(w)
			rerun()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}
