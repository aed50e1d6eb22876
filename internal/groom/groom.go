// Package groom implements the grooming decision engine: the per-issue
// state machine that keeps an already-triaged backlog moving.
//
// Each open issue walks an ordered ladder of checks. The ladder does not
// short-circuit: a stale issue that also carries needs-info is both closed
// and reassigned in the same pass, and every branch records its outcome on
// the audit trail whether the run is live or dry. Only the workflow
// transition list is first-match-wins.
package groom

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/templates"
	"github.com/shepbot/shep/internal/types"
)

// reviewColumnName is the board column an issue parks in once the
// automated agent reports its work finished.
const reviewColumnName = "In Review"

// staleLabel is added by the label-mode stale action.
const staleLabel = "stale"

// API is the slice of the GitHub client the engine drives. Everything here
// is already routed through retry and throttling by the client.
type API interface {
	ListTimeline(ctx context.Context, number int) ([]github.TimelineEvent, error)
	FindIssueCard(ctx context.Context, projectID int64, issueURL string) (*github.ProjectCard, *github.ProjectColumn, error)
	CloseIssue(ctx context.Context, number int) error
	CreateComment(ctx context.Context, number int, text string) error
	AddLabels(ctx context.Context, number int, labels ...string) error
	RemoveLabel(ctx context.Context, number int, label string) error
	AddAssignees(ctx context.Context, number int, assignees ...string) error
	MoveIssueToColumn(ctx context.Context, projectID, toColumnID int64, issue *github.Issue, createMissing bool) error
}

// RunState is the cross-issue mutable state of one grooming run. Processing
// is sequential, so plain fields suffice; a concurrent redesign would need
// the check-and-increment on CopilotAssigns to become atomic.
type RunState struct {
	// CopilotAssigns counts assignments handed out this run, live or
	// simulated. It never exceeds the configured cap.
	CopilotAssigns int
}

// Outcome is the audit-facing result of grooming one issue.
type Outcome struct {
	// Changed lists what changed, phrased "would ..." on dry runs.
	Changed []string
	// Notes accumulates "<thing> detected; " style fragments.
	Notes string
	// Narration is the action summary printed per issue.
	Narration []string
	// Errors counts failed mutations. Each failure is logged where it
	// happens; the count lets the run summary report them.
	Errors int
}

// Engine evaluates the grooming ladder against one issue at a time.
type Engine struct {
	API     API
	Rules   *rules.GroomingRules
	Project rules.ProjectConfig
	Tmpl    *templates.Catalog
	DryRun  bool
	Log     *slog.Logger

	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

// NewEngine wires an engine with the default clock and logger.
func NewEngine(api API, r *rules.GroomingRules, project rules.ProjectConfig, tmpl *templates.Catalog) *Engine {
	return &Engine{API: api, Rules: r, Project: project, Tmpl: tmpl, Log: slog.Default(), Now: time.Now}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) log() *slog.Logger {
	if e.Log != nil {
		return e.Log
	}
	return slog.Default()
}

// Process grooms one issue. A nil Outcome means the issue was skipped
// outright (closed); an Outcome with no Changed entries and a
// "status not groomable" note means the status gate failed closed.
func (e *Engine) Process(ctx context.Context, issue *github.Issue, state *RunState) *Outcome {
	snap := github.ToSnapshot(issue)
	if snap.IsClosed() {
		e.log().Debug("skipping closed issue", "issue", snap.Number)
		return nil
	}

	o := &Outcome{}
	if !e.groomable(ctx, &snap, issue) {
		o.Notes += "status not groomable; "
		return o
	}

	e.staleCheck(ctx, &snap, o)
	e.needsInfo(ctx, &snap, issue, o, state)
	e.needsWork(ctx, &snap, o, state)
	e.backlogMove(ctx, &snap, issue, o)
	e.transition(ctx, &snap, issue, o)
	return o
}

// groomable reports whether the issue carries a groomable status label,
// falling back to its board column when it carries none. With no status
// labels configured the gate is disabled.
func (e *Engine) groomable(ctx context.Context, snap *types.Snapshot, issue *github.Issue) bool {
	status := e.Rules.Settings.StatusLabels()
	if len(status) == 0 {
		return true
	}
	if snap.HasAnyLabel(status...) {
		return true
	}
	if e.Project.Enabled && e.Project.ProjectID != 0 {
		card, column, err := e.API.FindIssueCard(ctx, e.Project.ProjectID, issue.URL)
		if err != nil {
			e.log().Warn("board lookup failed", "issue", snap.Number, "error", err)
			return false
		}
		if card != nil && column != nil && slices.Contains(status, column.Name) {
			return true
		}
	}
	return false
}

func (e *Engine) staleCheck(ctx context.Context, snap *types.Snapshot, o *Outcome) {
	st := e.Rules.Settings.Stale
	if !st.Enabled || !snap.HasAnyLabel(st.LabelsToCheck...) {
		return
	}
	if snap.UpdatedAt.IsZero() {
		return
	}
	age := e.now().Sub(snap.UpdatedAt)
	if age <= time.Duration(st.ThresholdDays())*24*time.Hour {
		return
	}

	o.Notes += "stale detected; "
	switch st.Action {
	case "close":
		o.Narration = append(o.Narration, "close as stale")
		if e.DryRun {
			o.Changed = append(o.Changed, "would close as stale")
			return
		}
		if st.CloseComment != "" {
			if err := e.API.CreateComment(ctx, snap.Number, st.CloseComment); err != nil {
				e.log().Error("posting stale comment", "issue", snap.Number, "error", err)
				o.Errors++
			}
		}
		if err := e.API.CloseIssue(ctx, snap.Number); err != nil {
			e.log().Error("closing stale issue", "issue", snap.Number, "error", err)
			o.Errors++
			return
		}
		o.Changed = append(o.Changed, "closed as stale")
	case "comment":
		o.Narration = append(o.Narration, "comment as stale")
		if e.DryRun {
			o.Changed = append(o.Changed, "would comment as stale")
			return
		}
		if err := e.API.CreateComment(ctx, snap.Number, st.CloseComment); err != nil {
			e.log().Error("posting stale comment", "issue", snap.Number, "error", err)
			o.Errors++
			return
		}
		o.Changed = append(o.Changed, "commented as stale")
	case "label":
		o.Narration = append(o.Narration, "label as stale")
		if e.DryRun {
			o.Changed = append(o.Changed, "would label as stale")
			return
		}
		if err := e.API.AddLabels(ctx, snap.Number, staleLabel); err != nil {
			e.log().Error("labeling stale issue", "issue", snap.Number, "error", err)
			o.Errors++
			return
		}
		o.Changed = append(o.Changed, "labeled as stale")
	}
}

// needsInfo handles issues waiting on more information. The automated
// agent's timeline activity arbitrates whether assigning again is safe.
func (e *Engine) needsInfo(ctx context.Context, snap *types.Snapshot, issue *github.Issue, o *Outcome, state *RunState) {
	s := e.Rules.Settings
	if !snap.HasAnyLabel(s.Variants()...) {
		return
	}
	assignee := s.NeedsInfoAssignee()
	o.Narration = append(o.Narration, fmt.Sprintf("assign to %s and remove Triaged", assignee))
	o.Notes += "needs-info detected; "

	events, err := e.API.ListTimeline(ctx, snap.Number)
	if err != nil {
		e.log().Warn("fetching timeline", "issue", snap.Number, "error", err)
	}
	ev := LatestAgentEvent(events)

	switch {
	case ev.Kind == types.TimelineFinished:
		o.Notes += "agent finished; "
		e.moveToReview(ctx, snap, issue, o)
		return
	case ev.Kind == types.TimelineError:
		o.Notes += "agent error; skipping assignment; "
		return
	case ev.Kind == types.TimelineStart && ev.CreatedAt.After(ev.LastErrorTime):
		o.Notes += "agent restarted; skipping assignment; "
		return
	}

	if state.CopilotAssigns >= s.AssignCap() {
		o.Notes += "per-run cap reached; "
		return
	}
	if e.DryRun {
		o.Changed = append(o.Changed, fmt.Sprintf("would assign to %s and remove Triaged", assignee))
		state.CopilotAssigns++
		return
	}
	if err := e.API.AddAssignees(ctx, snap.Number, assignee); err != nil {
		e.log().Error("assigning issue", "issue", snap.Number, "assignee", assignee, "error", err)
		o.Errors++
		return
	}
	if s.RemoveTriaged() && snap.HasLabel(types.LabelTriaged) {
		if err := e.API.RemoveLabel(ctx, snap.Number, types.LabelTriaged); err != nil {
			e.log().Error("removing Triaged", "issue", snap.Number, "error", err)
			o.Errors++
		} else {
			o.Changed = append(o.Changed, "removed Triaged")
		}
	}
	o.Changed = append(o.Changed, fmt.Sprintf("assigned to %s", assignee))
	state.CopilotAssigns++
}

// moveToReview parks a finished issue in the review column when one is
// configured. No assignment is consumed on this path.
func (e *Engine) moveToReview(ctx context.Context, snap *types.Snapshot, issue *github.Issue, o *Outcome) {
	col := e.Project.Columns[reviewColumnName]
	if !e.Project.Enabled || e.Project.ProjectID == 0 || col == 0 {
		return
	}
	if e.DryRun {
		o.Changed = append(o.Changed, fmt.Sprintf("would move to %s column", reviewColumnName))
		return
	}
	if err := e.API.MoveIssueToColumn(ctx, e.Project.ProjectID, col, issue, false); err != nil {
		e.log().Error("moving issue to review column", "issue", snap.Number, "error", err)
		o.Errors++
		return
	}
	o.Changed = append(o.Changed, fmt.Sprintf("moved to %s column", reviewColumnName))
}

// needsWork reassigns flagged-for-rework issues with an explanatory
// comment. It shares the per-run cap with needsInfo.
func (e *Engine) needsWork(ctx context.Context, snap *types.Snapshot, o *Outcome, state *RunState) {
	s := e.Rules.Settings
	if !snap.HasLabel(types.LabelNeedsWork) {
		return
	}
	assignee := s.NeedsWorkAssignee()
	o.Narration = append(o.Narration, fmt.Sprintf("assign to %s and comment", assignee))
	o.Notes += "needs_work detected; "

	if state.CopilotAssigns >= s.AssignCap() {
		o.Notes += "per-run cap reached; "
		return
	}
	if e.DryRun {
		o.Changed = append(o.Changed, fmt.Sprintf("would assign to %s and comment", assignee))
		state.CopilotAssigns++
		return
	}
	if err := e.API.AddAssignees(ctx, snap.Number, assignee); err != nil {
		e.log().Error("assigning issue", "issue", snap.Number, "assignee", assignee, "error", err)
		o.Errors++
		return
	}
	if err := e.API.CreateComment(ctx, snap.Number, e.Tmpl.Text(templates.KeyNeedsWorkNotice)); err != nil {
		e.log().Error("posting rework comment", "issue", snap.Number, "error", err)
		o.Errors++
	}
	o.Changed = append(o.Changed, fmt.Sprintf("assigned to %s", assignee))
	state.CopilotAssigns++
}

// backlogMove keeps Triaged+Backlog issues positioned in the Backlog
// column. Cards are never created here; triage owns card creation.
func (e *Engine) backlogMove(ctx context.Context, snap *types.Snapshot, issue *github.Issue, o *Outcome) {
	s := e.Rules.Settings
	col := e.Project.BacklogColumn()
	if !s.MoveBacklogPair() || !snap.HasLabel(types.LabelTriaged) || !snap.HasLabel(types.LabelBacklog) {
		return
	}
	if !e.Project.Enabled || e.Project.ProjectID == 0 || col == 0 {
		return
	}
	o.Narration = append(o.Narration, "move to Backlog column on board")
	o.Notes += "Triaged+Backlog detected; "
	if e.DryRun {
		o.Changed = append(o.Changed, "would move to Backlog column")
		return
	}
	if err := e.API.MoveIssueToColumn(ctx, e.Project.ProjectID, col, issue, false); err != nil {
		e.log().Error("moving issue on board", "issue", snap.Number, "error", err)
		o.Errors++
		return
	}
	o.Changed = append(o.Changed, "moved to Backlog column")
}

// transition applies the first matching workflow transition, if any.
func (e *Engine) transition(ctx context.Context, snap *types.Snapshot, issue *github.Issue, o *Outcome) {
	w := e.Rules.Settings.Workflow
	if !w.Enabled {
		return
	}
	tr := MatchTransition(snap, w.Transitions)
	if tr == nil {
		return
	}
	name := tr.Name
	if name == "" {
		name = tr.ToColumn
	}
	col := e.Project.Columns[tr.ToColumn]
	if !e.Project.Enabled || e.Project.ProjectID == 0 || col == 0 {
		e.log().Warn("transition target column not configured", "transition", name, "column", tr.ToColumn)
		return
	}
	o.Narration = append(o.Narration, fmt.Sprintf("move to %s column (workflow)", tr.ToColumn))
	o.Notes += fmt.Sprintf("workflow %s matched; ", name)
	if e.DryRun {
		o.Changed = append(o.Changed, fmt.Sprintf("would move to %s column", tr.ToColumn))
		return
	}
	if err := e.API.MoveIssueToColumn(ctx, e.Project.ProjectID, col, issue, false); err != nil {
		e.log().Error("moving issue for transition", "issue", snap.Number, "transition", name, "error", err)
		o.Errors++
		return
	}
	o.Changed = append(o.Changed, fmt.Sprintf("moved to %s column", tr.ToColumn))
}

// MatchTransition returns the first transition whose conditions all hold:
// every required label present, no excluded label present, and the
// required assignee (when set) among the issue's assignees. Evaluation is
// pure and order-sensitive.
func MatchTransition(issue *types.Snapshot, transitions []rules.Transition) *rules.Transition {
	for i := range transitions {
		t := &transitions[i]
		if transitionMatches(issue, t) {
			return t
		}
	}
	return nil
}

func transitionMatches(issue *types.Snapshot, t *rules.Transition) bool {
	for _, l := range t.RequiredLabels {
		if !issue.HasLabel(l) {
			return false
		}
	}
	for _, l := range t.NotLabels {
		if issue.HasLabel(l) {
			return false
		}
	}
	if t.RequiredAssignee != "" && !issue.HasAssignee(t.RequiredAssignee) {
		return false
	}
	return true
}
