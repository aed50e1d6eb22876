package rules_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/types"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const triageDoc = `
triage_audit_schema:
  version: "1.0"
execution_policy:
  protected_branches: [main, release]
triage_ownership:
  default_owner: triage-bot
required_issue_fields:
  steps_to_reproduce:
    description: How to reproduce the problem
  expected_behavior:
    description: What should have happened
steps:
  - scan_for_pii:
      patterns:
        - 'token\s*[:=]\s*\S+'
  - detect_duplicates:
      similarity_threshold: 0.9
pii_handling:
  detect_patterns:
    - 'ssn\s*[:=]\s*\S+'
label_mappings:
  label_to_severity:
    crash: critical
    papercut: low
  label_to_priority:
    crash: p0
quick_size_estimates:
  allowed_values: [small, medium, large]
backlog_gate:
  feature_requires_approval_label: false
label_policy:
  pair_enforcement:
    pair: [Triaged, Backlog]
    skip_if_any_present: [wontfix]
triaged_if:
  - required_fields_present: [steps_to_reproduce]
  - triage_owner_assigned: true
bot_comment_templates:
  request_more_info: "Please add the missing fields."
project_management:
  enabled: true
  project_id: 42
  columns:
    Backlog: 7001
    "In Review": 7002
log_triage_event:
  path: logs/triage_log.json
  max_entries: 500
`

func TestLoadTriageRules(t *testing.T) {
	path := writeRules(t, triageDoc)

	r, err := rules.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "1.0", r.AuditSchema.Version)
	assert.Equal(t, []string{"main", "release"}, r.ExecutionPolicy.Branches())
	assert.Equal(t, "triage-bot", r.Ownership.Owner())
	assert.Equal(t, []string{"expected_behavior", "steps_to_reproduce"}, r.RequiredFieldNames())
	assert.InDelta(t, 0.9, r.DuplicateThreshold(), 1e-9)

	// Step patterns come before pii_handling patterns.
	assert.Equal(t, []string{`token\s*[:=]\s*\S+`, `ssn\s*[:=]\s*\S+`}, r.PIIPatterns())
	require.Len(t, r.CompiledPIIPatterns(), 2)
	assert.True(t, r.CompiledPIIPatterns()[0].MatchString("TOKEN: abc123"))

	assert.Equal(t, types.SeverityCritical, r.LabelMappings.LabelToSeverity["crash"])
	assert.Equal(t, types.PriorityP0, r.LabelMappings.LabelToPriority["crash"])
	assert.Equal(t, []string{"small", "medium", "large"}, r.SizeEstimates.Allowed())
	assert.False(t, r.Gate.FeatureApprovalRequired())

	first, second := r.LabelPolicy.PairEnforcement.Labels()
	assert.Equal(t, "Triaged", first)
	assert.Equal(t, "Backlog", second)
	assert.Equal(t, []string{"wontfix"}, r.LabelPolicy.PairEnforcement.SkipIfAnyPresent)

	require.Len(t, r.TriagedIf, 2)
	assert.Equal(t, []string{"steps_to_reproduce"}, r.TriagedIf[0].RequiredFieldsPresent)
	require.NotNil(t, r.TriagedIf[1].TriageOwnerAssigned)
	assert.True(t, *r.TriagedIf[1].TriageOwnerAssigned)

	assert.Equal(t, "Please add the missing fields.", r.Templates["request_more_info"])

	assert.True(t, r.Project.Enabled)
	assert.Equal(t, int64(42), r.Project.ProjectID)
	assert.Equal(t, int64(7001), r.Project.BacklogColumn())

	assert.Equal(t, "logs/triage_log.json", r.AuditLog.LogPath())
	assert.Equal(t, 500, r.AuditLog.MaxEntries)
}

func TestTriageRuleDefaults(t *testing.T) {
	path := writeRules(t, "triage_audit_schema:\n  version: \"1.0\"\n")

	r, err := rules.Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"main"}, r.ExecutionPolicy.Branches())
	assert.Equal(t, "copilot-bot", r.Ownership.Owner())
	assert.InDelta(t, rules.DefaultDuplicateSimilarityThreshold, r.DuplicateThreshold(), 1e-9)
	assert.Equal(t, []string{"xsmall", "small", "medium", "large", "epic"}, r.SizeEstimates.Allowed())
	assert.True(t, r.Gate.FeatureApprovalRequired())
	assert.Equal(t, "triage_log.json", r.AuditLog.LogPath())

	first, second := r.LabelPolicy.PairEnforcement.Labels()
	assert.Equal(t, "Triaged", first)
	assert.Equal(t, "Backlog", second)

	assert.Empty(t, r.PIIPatterns())
	assert.Empty(t, r.RequiredFieldNames())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := rules.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading rules file")
}

func TestLoadEmptyFile(t *testing.T) {
	_, err := rules.Load(writeRules(t, "\n  \n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	_, err = rules.LoadGrooming(writeRules(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeRules(t, "steps:\n  - scan_for_pii: [not a mapping\n")
	_, err := rules.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing rules file")
}

const groomingDoc = `
grooming_bot_settings:
  needs_info_variants: [needs-info, needs_info]
  assignee_for_needs_info: copilot-bot
  remove_triaged_on_needs_info: true
  assignee_for_needs_work: copilot
  max_assigns_per_run: 2
  groomable_status_labels: [Backlog, "In progress"]
  move_to_backlog_if_triaged_and_backlog: true
  stale_issue_handling:
    enabled: true
    labels_to_check: [needs-info]
    days_threshold: 2w
    action: close
    close_comment: Closing due to inactivity.
  workflow_transitions:
    enabled: true
    transitions:
      - name: review-ready
        required_labels: [Triaged, in-review]
        not_labels: [blocked]
        to_column: "In Review"
      - name: done
        required_labels: [resolved]
        required_assignee: copilot
        to_column: Done
`

func TestLoadGroomingRules(t *testing.T) {
	path := writeRules(t, groomingDoc)

	g, err := rules.LoadGrooming(path)
	require.NoError(t, err)
	s := g.Settings

	assert.Equal(t, []string{"needs-info", "needs_info"}, s.Variants())
	assert.Equal(t, "copilot-bot", s.NeedsInfoAssignee())
	assert.Equal(t, "copilot", s.NeedsWorkAssignee())
	assert.True(t, s.RemoveTriaged())
	assert.Equal(t, 2, s.AssignCap())
	assert.Equal(t, []string{"Backlog", "In progress"}, s.StatusLabels())
	assert.True(t, s.MoveBacklogPair())

	assert.True(t, s.Stale.Enabled)
	assert.Equal(t, 14, s.Stale.ThresholdDays())
	assert.Equal(t, "close", s.Stale.Action)
	assert.Equal(t, "Closing due to inactivity.", s.Stale.CloseComment)

	require.Len(t, s.Workflow.Transitions, 2)
	assert.Equal(t, "review-ready", s.Workflow.Transitions[0].Name)
	assert.Equal(t, []string{"blocked"}, s.Workflow.Transitions[0].NotLabels)
	assert.Equal(t, "Done", s.Workflow.Transitions[1].ToColumn)
	assert.Equal(t, "copilot", s.Workflow.Transitions[1].RequiredAssignee)
}

func TestGroomingDefaults(t *testing.T) {
	path := writeRules(t, "grooming_bot_settings: {}\n")

	g, err := rules.LoadGrooming(path)
	require.NoError(t, err)
	s := g.Settings

	assert.Equal(t, []string{"needs-info"}, s.Variants())
	assert.Equal(t, "copilot-bot", s.NeedsInfoAssignee())
	assert.Equal(t, "copilot", s.NeedsWorkAssignee())
	assert.True(t, s.RemoveTriaged())
	assert.Equal(t, rules.DefaultMaxAssignsPerRun, s.AssignCap())
	assert.True(t, s.MoveBacklogPair())
	assert.Equal(t, rules.DefaultStaleThresholdDays, s.Stale.ThresholdDays())
}

func TestThresholdAcceptsBareDays(t *testing.T) {
	path := writeRules(t, `
grooming_bot_settings:
  stale_issue_handling:
    enabled: true
    labels_to_check: [needs-info]
    days_threshold: 45
    action: comment
`)
	g, err := rules.LoadGrooming(path)
	require.NoError(t, err)
	assert.Equal(t, 45, g.Settings.Stale.ThresholdDays())
}

func TestThresholdRejectsNonsense(t *testing.T) {
	path := writeRules(t, `
grooming_bot_settings:
  stale_issue_handling:
    days_threshold: whenever
`)
	_, err := rules.LoadGrooming(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "days_threshold")
}

func TestValidateTriageRules(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "valid document",
			doc:     triageDoc,
			wantErr: "",
		},
		{
			name: "threshold out of range",
			doc: `
steps:
  - detect_duplicates:
      similarity_threshold: 1.5
`,
			wantErr: "similarity_threshold",
		},
		{
			name: "bad pii pattern",
			doc: `
pii_handling:
  detect_patterns: ['(unclosed']
`,
			wantErr: "invalid pii pattern",
		},
		{
			name: "pair of three",
			doc: `
label_policy:
  pair_enforcement:
    pair: [a, b, c]
`,
			wantErr: "exactly two labels",
		},
		{
			name: "project without id",
			doc: `
project_management:
  enabled: true
  columns:
    Backlog: 7001
`,
			wantErr: "requires project_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := rules.Load(writeRules(t, tt.doc))
			require.NoError(t, err)
			res := r.Validate()
			if tt.wantErr == "" {
				assert.True(t, res.OK(), "unexpected errors: %v", res.Errors)
				return
			}
			require.False(t, res.OK())
			assert.Contains(t, res.Errors[0], tt.wantErr)
		})
	}
}

func TestValidateGroomingRules(t *testing.T) {
	g, err := rules.LoadGrooming(writeRules(t, `
grooming_bot_settings:
  max_assigns_per_run: -1
  stale_issue_handling:
    enabled: true
    action: destroy
`))
	require.NoError(t, err)

	res := g.Validate()
	require.False(t, res.OK())
	assert.Contains(t, res.Errors[0], "max_assigns_per_run")
	assert.Contains(t, res.Errors[1], "action must be close, comment, or label")
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "labels_to_check")
}

func TestCheckUnknownKeys(t *testing.T) {
	path := writeRules(t, `
triage_audit_schema:
  version: "1.0"
mystery_block:
  value: 1
another_block: true
`)
	unknown, err := rules.CheckUnknownKeys(path, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"another_block", "mystery_block"}, unknown)

	groomPath := writeRules(t, "grooming_bot_settings: {}\n")
	unknown, err = rules.CheckUnknownKeys(groomPath, true)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}
