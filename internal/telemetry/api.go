package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/runner"
)

const apiScopeName = "github.com/shepbot/shep/github"

// InstrumentedAPI wraps a runner.API with OTel tracing and metrics.
// Every call gets a span and is counted in shep.github.* metrics.
// Use WrapAPI to create one; it returns the original API unchanged when
// telemetry is disabled.
type InstrumentedAPI struct {
	inner  runner.API
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapAPI returns api decorated with OTel instrumentation.
// When telemetry is disabled, api is returned as-is with zero overhead.
func WrapAPI(api runner.API) runner.API {
	if !Enabled() {
		return api
	}
	m := Meter(apiScopeName)
	ops, _ := m.Int64Counter("shep.github.operations",
		metric.WithDescription("Total GitHub API operations executed"),
	)
	dur, _ := m.Float64Histogram("shep.github.operation.duration",
		metric.WithDescription("GitHub API operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("shep.github.errors",
		metric.WithDescription("Total GitHub API operation errors"),
	)
	return &InstrumentedAPI{
		inner:  api,
		tracer: Tracer(apiScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and counts the named API operation.
func (a *InstrumentedAPI) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("gh.operation", name)}, attrs...)
	ctx, span := a.tracer.Start(ctx, "github."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	a.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (a *InstrumentedAPI) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	a.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func issueAttr(number int) attribute.KeyValue {
	return attribute.Int("gh.issue.number", number)
}

func (a *InstrumentedAPI) SearchIssues(ctx context.Context, query string, perPage int) ([]github.Issue, error) {
	attrs := []attribute.KeyValue{attribute.Int("gh.page.size", perPage)}
	ctx, span, t := a.op(ctx, "SearchIssues", attrs...)
	v, err := a.inner.SearchIssues(ctx, query, perPage)
	span.SetAttributes(attribute.Int("gh.result.count", len(v)))
	a.done(ctx, span, t, err, attrs...)
	return v, err
}

func (a *InstrumentedAPI) SearchCode(ctx context.Context, query string, perPage int) ([]github.CodeSearchItem, error) {
	attrs := []attribute.KeyValue{attribute.Int("gh.page.size", perPage)}
	ctx, span, t := a.op(ctx, "SearchCode", attrs...)
	v, err := a.inner.SearchCode(ctx, query, perPage)
	span.SetAttributes(attribute.Int("gh.result.count", len(v)))
	a.done(ctx, span, t, err, attrs...)
	return v, err
}

func (a *InstrumentedAPI) FetchIssue(ctx context.Context, number int) (*github.Issue, error) {
	attrs := []attribute.KeyValue{issueAttr(number)}
	ctx, span, t := a.op(ctx, "FetchIssue", attrs...)
	v, err := a.inner.FetchIssue(ctx, number)
	a.done(ctx, span, t, err, attrs...)
	return v, err
}

func (a *InstrumentedAPI) Retitle(ctx context.Context, number int, title string) error {
	attrs := []attribute.KeyValue{issueAttr(number)}
	ctx, span, t := a.op(ctx, "Retitle", attrs...)
	err := a.inner.Retitle(ctx, number, title)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) ListTimeline(ctx context.Context, number int) ([]github.TimelineEvent, error) {
	attrs := []attribute.KeyValue{issueAttr(number)}
	ctx, span, t := a.op(ctx, "ListTimeline", attrs...)
	v, err := a.inner.ListTimeline(ctx, number)
	span.SetAttributes(attribute.Int("gh.result.count", len(v)))
	a.done(ctx, span, t, err, attrs...)
	return v, err
}

func (a *InstrumentedAPI) FindIssueCard(ctx context.Context, projectID int64, issueURL string) (*github.ProjectCard, *github.ProjectColumn, error) {
	attrs := []attribute.KeyValue{attribute.Int64("gh.project.id", projectID)}
	ctx, span, t := a.op(ctx, "FindIssueCard", attrs...)
	card, col, err := a.inner.FindIssueCard(ctx, projectID, issueURL)
	a.done(ctx, span, t, err, attrs...)
	return card, col, err
}

func (a *InstrumentedAPI) CloseIssue(ctx context.Context, number int) error {
	attrs := []attribute.KeyValue{issueAttr(number)}
	ctx, span, t := a.op(ctx, "CloseIssue", attrs...)
	err := a.inner.CloseIssue(ctx, number)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) CreateComment(ctx context.Context, number int, text string) error {
	attrs := []attribute.KeyValue{issueAttr(number)}
	ctx, span, t := a.op(ctx, "CreateComment", attrs...)
	err := a.inner.CreateComment(ctx, number, text)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) AddLabels(ctx context.Context, number int, labels ...string) error {
	attrs := []attribute.KeyValue{issueAttr(number), attribute.Int("gh.label.count", len(labels))}
	ctx, span, t := a.op(ctx, "AddLabels", attrs...)
	err := a.inner.AddLabels(ctx, number, labels...)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) RemoveLabel(ctx context.Context, number int, label string) error {
	attrs := []attribute.KeyValue{issueAttr(number), attribute.String("gh.label", label)}
	ctx, span, t := a.op(ctx, "RemoveLabel", attrs...)
	err := a.inner.RemoveLabel(ctx, number, label)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) AddAssignees(ctx context.Context, number int, assignees ...string) error {
	attrs := []attribute.KeyValue{issueAttr(number), attribute.Int("gh.assignee.count", len(assignees))}
	ctx, span, t := a.op(ctx, "AddAssignees", attrs...)
	err := a.inner.AddAssignees(ctx, number, assignees...)
	a.done(ctx, span, t, err, attrs...)
	return err
}

func (a *InstrumentedAPI) MoveIssueToColumn(ctx context.Context, projectID, toColumnID int64, issue *github.Issue, createMissing bool) error {
	attrs := []attribute.KeyValue{
		issueAttr(issue.Number),
		attribute.Int64("gh.project.id", projectID),
		attribute.Int64("gh.column.id", toColumnID),
	}
	ctx, span, t := a.op(ctx, "MoveIssueToColumn", attrs...)
	err := a.inner.MoveIssueToColumn(ctx, projectID, toColumnID, issue, createMissing)
	a.done(ctx, span, t, err, attrs...)
	return err
}
