package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shepbot/shep/internal/runner"
)

// RecordRun emits the end-of-run metrics for one pass. A no-op when
// telemetry is disabled (the global meter is a noop provider then, so
// no guard is needed).
func RecordRun(ctx context.Context, s *runner.Summary, elapsed time.Duration) {
	m := Meter(instrumentationScope)
	attrs := metric.WithAttributes(
		attribute.String("shep.event", s.Event),
		attribute.Bool("shep.dry_run", s.DryRun),
	)

	runs, _ := m.Int64Counter("shep.runs",
		metric.WithDescription("Total runs executed"),
	)
	runs.Add(ctx, 1, attrs)

	dur, _ := m.Float64Histogram("shep.run.duration",
		metric.WithDescription("Run duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	dur.Record(ctx, float64(elapsed.Milliseconds()), attrs)

	processed, _ := m.Int64Counter("shep.issues.processed",
		metric.WithDescription("Issues processed across runs"),
	)
	processed.Add(ctx, int64(s.Processed), attrs)

	skipped, _ := m.Int64Counter("shep.issues.skipped",
		metric.WithDescription("Issues skipped across runs"),
	)
	skipped.Add(ctx, int64(s.Skipped), attrs)

	actions, _ := m.Int64Counter("shep.actions",
		metric.WithDescription("Actions executed or planned across runs"),
	)
	actions.Add(ctx, int64(s.Actions), attrs)

	errs, _ := m.Int64Counter("shep.run.errors",
		metric.WithDescription("Per-issue execution errors across runs"),
	)
	errs.Add(ctx, int64(s.Errors), attrs)

	redactions, _ := m.Int64Counter("shep.redactions",
		metric.WithDescription("Issues with sensitive content detected"),
	)
	redactions.Add(ctx, int64(s.Redactions), attrs)

	assigns, _ := m.Int64Counter("shep.assignments",
		metric.WithDescription("Agent assignments handed out across runs"),
	)
	assigns.Add(ctx, int64(s.Assignments), attrs)
}
