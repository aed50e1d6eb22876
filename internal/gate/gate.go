// Package gate turns a classification into the label, comment, board, and
// title actions that carry an issue through initial triage.
//
// Planning is pure. Plan emits the first action batch from the snapshot
// and its findings; PairPlan emits the follow-up batch from labels re-read
// after the first batch executed, so a single pass cannot leave the
// Triaged/Backlog pair torn. The runner executes both batches, or narrates
// them on dry runs.
package gate

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/templates"
	"github.com/shepbot/shep/internal/triage"
	"github.com/shepbot/shep/internal/types"
)

// PlannedAction pairs an Action with the changed_fields entry recorded
// once the action executes successfully. An empty ChangedField means the
// action leaves no mark of its own, as with most comments.
type PlannedAction struct {
	types.Action
	ChangedField string
}

// Decision is the complete first-batch plan for one issue.
type Decision struct {
	// Planned actions execute in order on live runs.
	Planned []PlannedAction
	// Narration holds the human phrasing printed on dry runs.
	Narration []string
	// Changed and Notes are the audit contributions known at planning
	// time, recorded in both live and dry modes.
	Changed []string
	Notes   string
	// RedactionActions is "redact" on live runs, "would_redact" on dry
	// runs, one entry per pass that found sensitive content.
	RedactionActions []string
	// CanBacklog reports the backlog-gate outcome.
	CanBacklog bool
}

func (d *Decision) add(a types.Action, changed string) {
	d.Planned = append(d.Planned, PlannedAction{Action: a, ChangedField: changed})
}

// Plan decides the first action batch for an issue. The narration order
// follows the classification; the executed order puts sensitive-content
// handling first.
func Plan(issue *types.Snapshot, f triage.Findings, r *rules.TriageRules, tmpl *templates.Catalog, dryRun bool) Decision {
	var d Decision
	num := issue.Number

	if len(f.MissingFields) > 0 {
		d.Narration = append(d.Narration,
			fmt.Sprintf("would add label: needs-info (missing: %s)", strings.Join(f.MissingFields, ",")))
		d.Notes += fmt.Sprintf("missing_fields=%v; ", f.MissingFields)
		d.Changed = append(d.Changed, "needs_info")
	}
	if f.PIIDetected {
		d.Narration = append(d.Narration, "would add label: security")
		if dryRun {
			d.RedactionActions = append(d.RedactionActions, "would_redact")
		} else {
			d.RedactionActions = append(d.RedactionActions, "redact")
		}
	}
	if len(f.Duplicates) > 0 {
		d.Narration = append(d.Narration, "would mark as duplicate and link to canonical issue(s)")
		d.Notes += fmt.Sprintf("duplicates=%v; ", f.Duplicates)
	}
	if f.TitleSanitized {
		if dryRun {
			d.Narration = append(d.Narration, "would sanitize title and record original_title")
			d.Changed = append(d.Changed, "would_replace_title")
		} else {
			d.Narration = append(d.Narration, "sanitize title and update original_title")
		}
	}

	missingSize := f.SizeEstimate == ""
	invalidSize := f.SizeEstimate != "" && !f.SizeEstimateAllowed
	if invalidSize {
		d.Narration = append(d.Narration, "would add label: needs-info (invalid size_estimate)")
	}
	productOK := true
	if r.Gate.FeatureApprovalRequired() {
		productOK = !issue.HasLabel(types.LabelFeatureRequest) || issue.HasLabel(types.LabelProductApproved)
	}
	d.CanBacklog = !missingSize && !invalidSize && productOK

	if f.PIIDetected {
		if !issue.HasLabel(types.LabelSecurity) {
			d.add(types.AddLabel(num, types.LabelSecurity), types.LabelSecurity)
		}
		d.add(types.Comment(num, tmpl.Text(templates.KeyRedactionNotice)), "")
	}
	if f.TitleSanitized {
		d.add(types.Retitle(num, f.SanitizedTitle), "title")
	}
	if len(f.MissingFields) > 0 {
		if !issue.HasLabel(types.LabelNeedsInfo) {
			d.add(types.AddLabel(num, types.LabelNeedsInfo), types.LabelNeedsInfo)
		}
		d.add(types.Comment(num, tmpl.Text(templates.KeyRequestMoreInfo)), "")
	}

	if d.CanBacklog {
		if !issue.HasLabel(types.LabelTriaged) {
			d.add(types.AddLabel(num, types.LabelTriaged), types.LabelTriaged)
			d.add(types.Comment(num, tmpl.Text(templates.KeyTriagedBacklogNotice)), "")
		}
		if !issue.HasLabel(types.LabelBacklog) {
			d.add(types.AddLabel(num, types.LabelBacklog), types.LabelBacklog)
			d.add(types.Comment(num, tmpl.Text(templates.KeyBacklogAddedNotice)), "")
		}
		if col := r.Project.BacklogColumn(); r.Project.Enabled && r.Project.ProjectID != 0 && col != 0 {
			d.add(types.MoveColumn(num, col), "")
		}
	} else {
		if !issue.HasLabel(types.LabelProductReview) {
			d.add(types.AddLabel(num, types.LabelProductReview), types.LabelProductReview)
		}
		if !issue.HasLabel(types.LabelNeedsWork) {
			d.add(types.AddLabel(num, types.LabelNeedsWork), types.LabelNeedsWork)
		}
		d.add(types.Comment(num, tmpl.Text(templates.KeyGateBlockedNotice)), "")
	}

	if f.Severity == types.SeverityCritical || issue.HasLabel(types.LabelSecurity) {
		d.add(types.Comment(num, tmpl.Text(templates.KeyEscalationNotice)), "escalation")
	}
	return d
}

// PairPlan decides the follow-up batch from the label state the first
// batch left behind: add the missing half of the enforced pair, then run
// the completion check. latest is the re-read label list; callers fall
// back to the stale snapshot labels when the re-read fails.
func PairPlan(issue *types.Snapshot, latest []string, f triage.Findings, r *rules.TriageRules, tmpl *templates.Catalog, owner string) []PlannedAction {
	var out []PlannedAction
	num := issue.Number

	first, second := r.LabelPolicy.PairEnforcement.Labels()
	skip := r.LabelPolicy.PairEnforcement.SkipIfAnyPresent
	suspended := false
	for _, s := range skip {
		if slices.Contains(latest, s) {
			suspended = true
			break
		}
	}
	hasFirst := slices.Contains(latest, first)
	hasSecond := slices.Contains(latest, second)

	if !suspended {
		if hasFirst && !hasSecond {
			out = append(out, PlannedAction{Action: types.AddLabel(num, second), ChangedField: second})
			out = append(out, PlannedAction{Action: types.Comment(num, tmpl.Text(templates.KeyBacklogAddedNotice))})
			if col := r.Project.BacklogColumn(); r.Project.Enabled && r.Project.ProjectID != 0 && col != 0 {
				out = append(out, PlannedAction{Action: types.MoveColumn(num, col)})
			}
		}
		if hasSecond && !hasFirst {
			out = append(out, PlannedAction{Action: types.AddLabel(num, first), ChangedField: first})
			out = append(out, PlannedAction{Action: types.Comment(num, tmpl.Text(templates.KeyLabelAdded))})
		}
	}

	if Complete(issue.Body, f, r, owner) && slices.Contains(latest, types.LabelNeedsTriage) {
		out = append(out, PlannedAction{
			Action:       types.RemoveLabel(num, types.LabelNeedsTriage),
			ChangedField: types.LabelNeedsTriage,
		})
	}
	return out
}

// Complete evaluates the triaged_if conditions. All configured conditions
// must hold; with none configured, triage counts as complete.
func Complete(body string, f triage.Findings, r *rules.TriageRules, owner string) bool {
	for _, c := range r.TriagedIf {
		if len(c.RequiredFieldsPresent) > 0 {
			if len(triage.MissingFields(body, c.RequiredFieldsPresent)) > 0 {
				return false
			}
		}
		if c.TriageOwnerAssigned != nil && owner == "" {
			return false
		}
		if c.SeverityAssigned != nil && f.Severity == "" {
			return false
		}
	}
	return true
}
