package gate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepbot/shep/internal/gate"
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/templates"
	"github.com/shepbot/shep/internal/triage"
	"github.com/shepbot/shep/internal/types"
)

func catalog(t *testing.T) *templates.Catalog {
	t.Helper()
	c, err := templates.NewCatalog("", nil)
	require.NoError(t, err)
	return c
}

func kinds(planned []gate.PlannedAction) []types.ActionKind {
	out := make([]types.ActionKind, 0, len(planned))
	for _, p := range planned {
		out = append(out, p.Kind)
	}
	return out
}

func labelsAdded(planned []gate.PlannedAction) []string {
	var out []string
	for _, p := range planned {
		if p.Kind == types.ActionAddLabel {
			out = append(out, p.Label)
		}
	}
	return out
}

func TestPlanCleanIssuePassesGate(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 5, Title: "Fix flaky sync", Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	assert.True(t, d.CanBacklog)
	assert.Equal(t, []string{"Triaged", "Backlog"}, labelsAdded(d.Planned))
	assert.Equal(t, []types.ActionKind{
		types.ActionAddLabel, types.ActionComment,
		types.ActionAddLabel, types.ActionComment,
	}, kinds(d.Planned))
	assert.Equal(t, "Triaged", d.Planned[0].ChangedField)
	assert.Equal(t, "Backlog", d.Planned[2].ChangedField)
	assert.Empty(t, d.Changed)
	assert.Empty(t, d.Notes)
}

func TestPlanGatePassMovesCardWhenProjectEnabled(t *testing.T) {
	r := rules.TriageRules{
		Project: rules.ProjectConfig{
			Enabled:   true,
			ProjectID: 42,
			Columns:   map[string]int64{"Backlog": 7},
		},
	}
	issue := &types.Snapshot{Number: 5, Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	last := d.Planned[len(d.Planned)-1]
	assert.Equal(t, types.ActionMoveColumn, last.Kind)
	assert.Equal(t, int64(7), last.ColumnID)
	assert.Empty(t, last.ChangedField)
}

func TestPlanMissingFieldsAndPII(t *testing.T) {
	r := rules.TriageRules{
		RequiredFields: map[string]rules.FieldSpec{"repro_steps": {}},
	}
	issue := &types.Snapshot{Number: 9, Title: "Crash", Body: "an api key leaked here"}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	assert.Contains(t, d.Narration, "would add label: needs-info (missing: repro_steps)")
	assert.Contains(t, d.Narration, "would add label: security")
	assert.Equal(t, []string{"needs_info"}, d.Changed)
	assert.Equal(t, "missing_fields=[repro_steps]; ", d.Notes)
	assert.Equal(t, []string{"redact"}, d.RedactionActions)

	// execution order: security first, then needs-info, then the blocked gate
	assert.False(t, d.CanBacklog)
	assert.Equal(t, []string{"security", "needs-info", "needs-product-review", "needs_work"},
		labelsAdded(d.Planned))
	assert.Equal(t, types.ActionComment, d.Planned[len(d.Planned)-1].Kind)
	assert.Equal(t, templates.Builtin[templates.KeyGateBlockedNotice],
		d.Planned[len(d.Planned)-1].Body)
}

func TestPlanMissingFieldsWithoutPII(t *testing.T) {
	r := rules.TriageRules{
		RequiredFields: map[string]rules.FieldSpec{
			"expected_behavior": {},
			"repro_steps":       {},
		},
	}
	issue := &types.Snapshot{Number: 7, Title: "Crash", Body: "it just stopped working"}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	assert.Equal(t, []string{"needs_info"}, d.Changed)
	assert.Contains(t, labelsAdded(d.Planned), "needs-info")
	assert.NotContains(t, labelsAdded(d.Planned), "security")
}

func TestPlanSkipsAlreadyPresentLabels(t *testing.T) {
	r := rules.TriageRules{
		RequiredFields: map[string]rules.FieldSpec{"repro_steps": {}},
	}
	issue := &types.Snapshot{
		Number: 9,
		Body:   "password = hunter2",
		Labels: []string{"security", "needs-info", "needs-product-review", "needs_work"},
	}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	assert.Empty(t, labelsAdded(d.Planned), "present labels are not re-added")
	var comments int
	for _, p := range d.Planned {
		if p.Kind == types.ActionComment {
			comments++
		}
	}
	// redaction notice, request-more-info, gate-blocked, escalation
	assert.Equal(t, 4, comments)
	assert.Equal(t, "escalation", d.Planned[len(d.Planned)-1].ChangedField)
}

func TestPlanFeatureRequestGate(t *testing.T) {
	r := rules.TriageRules{}
	body := "size_estimate: medium"

	blocked := &types.Snapshot{Number: 1, Body: body, Labels: []string{"feature-request"}}
	d := gate.Plan(blocked, triage.Classify(blocked, &r, nil), &r, catalog(t), false)
	assert.False(t, d.CanBacklog)
	assert.Equal(t, []string{"needs-product-review", "needs_work"}, labelsAdded(d.Planned))

	approved := &types.Snapshot{Number: 1, Body: body, Labels: []string{"feature-request", "product-approved"}}
	d = gate.Plan(approved, triage.Classify(approved, &r, nil), &r, catalog(t), false)
	assert.True(t, d.CanBacklog)

	off := false
	relaxed := rules.TriageRules{
		Gate: rules.BacklogGate{FeatureRequiresApprovalLabel: &off},
	}
	d = gate.Plan(blocked, triage.Classify(blocked, &relaxed, nil), &relaxed, catalog(t), false)
	assert.True(t, d.CanBacklog, "unapproved feature request passes when approval is not required")
}

func TestPlanInvalidSizeEstimate(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 2, Body: "size_estimate: gigantic"}
	f := triage.Classify(issue, &r, nil)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	assert.False(t, d.CanBacklog)
	assert.Contains(t, d.Narration, "would add label: needs-info (invalid size_estimate)")
}

func TestPlanEscalatesCriticalSeverity(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 3, Title: "Possible data loss", Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)
	require.Equal(t, types.SeverityCritical, f.Severity)

	d := gate.Plan(issue, f, &r, catalog(t), false)

	last := d.Planned[len(d.Planned)-1]
	assert.Equal(t, types.ActionComment, last.Kind)
	assert.Equal(t, templates.Builtin[templates.KeyEscalationNotice], last.Body)
	assert.Equal(t, "escalation", last.ChangedField)
}

func TestPlanTitleSanitization(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 4, Title: "[P0] Crash on save", Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	live := gate.Plan(issue, f, &r, catalog(t), false)
	require.Equal(t, types.ActionRetitle, live.Planned[0].Kind)
	assert.Equal(t, "Crash on save", live.Planned[0].Title)
	assert.Equal(t, "title", live.Planned[0].ChangedField)
	assert.NotContains(t, live.Changed, "would_replace_title")

	dry := gate.Plan(issue, f, &r, catalog(t), true)
	assert.Contains(t, dry.Changed, "would_replace_title")
	assert.Contains(t, dry.Narration, "would sanitize title and record original_title")
	for _, p := range dry.Planned {
		assert.NotEqual(t, types.ActionRetitle, p.Kind)
	}
}

func TestPlanRedactionActionPhrasing(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 6, Body: "secret: hush\nsize_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	assert.Equal(t, []string{"redact"},
		gate.Plan(issue, f, &r, catalog(t), false).RedactionActions)
	assert.Equal(t, []string{"would_redact"},
		gate.Plan(issue, f, &r, catalog(t), true).RedactionActions)
}

func TestPairPlanAddsMissingHalf(t *testing.T) {
	r := rules.TriageRules{
		Project: rules.ProjectConfig{Enabled: true, ProjectID: 1, Columns: map[string]int64{"Backlog": 3}},
	}
	issue := &types.Snapshot{Number: 8, Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	out := gate.PairPlan(issue, []string{"Triaged"}, f, &r, catalog(t), "copilot-bot")
	require.Len(t, out, 3)
	assert.Equal(t, types.ActionAddLabel, out[0].Kind)
	assert.Equal(t, "Backlog", out[0].Label)
	assert.Equal(t, "Backlog", out[0].ChangedField)
	assert.Equal(t, types.ActionComment, out[1].Kind)
	assert.Equal(t, types.ActionMoveColumn, out[2].Kind)

	out = gate.PairPlan(issue, []string{"Backlog"}, f, &r, catalog(t), "copilot-bot")
	require.Len(t, out, 2)
	assert.Equal(t, "Triaged", out[0].Label)
	assert.Equal(t, templates.Builtin[templates.KeyLabelAdded], out[1].Body)
}

func TestPairPlanRespectsSkipLabels(t *testing.T) {
	r := rules.TriageRules{
		LabelPolicy: rules.LabelPolicy{
			PairEnforcement: rules.PairEnforcement{
				Pair:             []string{"Triaged", "Backlog"},
				SkipIfAnyPresent: []string{"on-hold"},
			},
		},
	}
	issue := &types.Snapshot{Number: 8, Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	out := gate.PairPlan(issue, []string{"Triaged", "on-hold"}, f, &r, catalog(t), "copilot-bot")
	assert.Empty(t, out)
}

func TestPairPlanBothOrNeitherPresent(t *testing.T) {
	r := rules.TriageRules{}
	issue := &types.Snapshot{Number: 8, Body: "size_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	assert.Empty(t, gate.PairPlan(issue, []string{"Triaged", "Backlog"}, f, &r, catalog(t), "bot"))
	assert.Empty(t, gate.PairPlan(issue, nil, f, &r, catalog(t), "bot"))
}

func TestPairPlanCompletionRemovesNeedsTriage(t *testing.T) {
	tr := true
	r := rules.TriageRules{
		TriagedIf: []rules.CompletionCondition{
			{RequiredFieldsPresent: []string{"environment"}},
			{TriageOwnerAssigned: &tr},
			{SeverityAssigned: &tr},
		},
	}
	issue := &types.Snapshot{Number: 8, Body: "environment: linux\nsize_estimate: small"}
	f := triage.Classify(issue, &r, nil)

	out := gate.PairPlan(issue, []string{"Triaged", "Backlog", "Needs Triage"}, f, &r, catalog(t), "copilot-bot")
	require.Len(t, out, 1)
	assert.Equal(t, types.ActionRemoveLabel, out[0].Kind)
	assert.Equal(t, "Needs Triage", out[0].Label)
	assert.Equal(t, "Needs Triage", out[0].ChangedField)

	// incomplete: required field absent from body
	bare := &types.Snapshot{Number: 8, Body: "size_estimate: small"}
	bf := triage.Classify(bare, &r, nil)
	assert.Empty(t, gate.PairPlan(bare, []string{"Triaged", "Backlog", "Needs Triage"}, bf, &r, catalog(t), "copilot-bot"))
}

func TestComplete(t *testing.T) {
	tr := true
	fields := rules.CompletionCondition{RequiredFieldsPresent: []string{"environment"}}
	owner := rules.CompletionCondition{TriageOwnerAssigned: &tr}
	sev := rules.CompletionCondition{SeverityAssigned: &tr}

	r := rules.TriageRules{TriagedIf: []rules.CompletionCondition{fields, owner, sev}}
	f := triage.Findings{Severity: types.SeverityMedium}

	assert.True(t, gate.Complete("environment: linux", f, &r, "copilot-bot"))
	assert.False(t, gate.Complete("no fields", f, &r, "copilot-bot"))
	assert.False(t, gate.Complete("environment: linux", f, &r, ""))
	assert.False(t, gate.Complete("environment: linux", triage.Findings{}, &r, "copilot-bot"))

	empty := rules.TriageRules{}
	assert.True(t, gate.Complete("anything", triage.Findings{}, &empty, ""))
}
