// Package telemetry provides reconciler.Observer implementations.
//
// This package includes:
//   - LogObserver, which logs render and commit lifecycle through log/slog
//   - Metrics, which records Prometheus counters and histograms
//   - Tracer, which opens OpenTelemetry spans for render and commit
//   - Multi, which fans notifications out to several observers
//
// # Prometheus Metrics
//
// Metrics are registered on creation:
//   - fiber_render_slices_total: render slices by mode (sync or concurrent)
//   - fiber_render_yields_total: slices that yielded to the host
//   - fiber_render_results_total: finished renders by exit status
//   - fiber_render_restarts_total: in-progress renders thrown away
//   - fiber_commits_total: commits
//   - fiber_commit_duration_seconds: time spent in the three commit passes
//   - fiber_commit_effects: effects applied per commit
//   - fiber_updates_scheduled_total: updates by scheduler priority
//
//	reg := prometheus.NewRegistry()
//	m := telemetry.NewMetrics(telemetry.WithRegistry(reg))
//	r := reconciler.New(host, sched, reconciler.WithObserver(m))
//
// # OpenTelemetry
//
// Tracer resolves its tracer from the global provider unless one is given:
//
//	obs := telemetry.Multi(
//	    telemetry.NewLogObserver(logger),
//	    telemetry.NewTracer(telemetry.WithTracerName("my-app")),
//	)
package telemetry
