package rules

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// knownTriageKeys are the recognized top-level keys of the triage rules
// document. Anything else is reported as a warning, not an error, so a
// newer rules file still loads on an older engine.
var knownTriageKeys = map[string]bool{
	"triage_audit_schema":   true,
	"execution_policy":      true,
	"triage_ownership":      true,
	"required_issue_fields": true,
	"steps":                 true,
	"pii_handling":          true,
	"label_mappings":        true,
	"quick_size_estimates":  true,
	"backlog_gate":          true,
	"label_policy":          true,
	"triaged_if":            true,
	"bot_comment_templates": true,
	"project_management":    true,
	"log_triage_event":      true,
}

var knownGroomingKeys = map[string]bool{
	"grooming_bot_settings": true,
}

var staleActions = map[string]bool{
	"close":   true,
	"comment": true,
	"label":   true,
}

// Result carries the outcome of a validation pass.
type Result struct {
	Errors   []string
	Warnings []string
}

// OK reports whether validation found no errors. Warnings do not fail
// validation.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks the triage rules for configuration mistakes that would
// produce surprising runs.
func (r *TriageRules) Validate() *Result {
	res := &Result{}

	if t := r.DuplicateThreshold(); t <= 0 || t > 1 {
		res.errorf("detect_duplicates.similarity_threshold must be in (0, 1], got %v", t)
	}
	for _, p := range r.PIIPatterns() {
		if _, err := regexp.Compile("(?i)" + p); err != nil {
			res.errorf("invalid pii pattern %q: %v", p, err)
		}
	}
	if n := len(r.LabelPolicy.PairEnforcement.Pair); n != 0 && n != 2 {
		res.errorf("label_policy.pair_enforcement.pair must name exactly two labels, got %d", n)
	}
	if r.Project.Enabled {
		if r.Project.ProjectID == 0 {
			res.errorf("project_management.enabled requires project_id")
		}
		if r.Project.BacklogColumn() == 0 {
			res.errorf("project_management.enabled requires columns.Backlog")
		}
	}
	for label, sev := range r.LabelMappings.LabelToSeverity {
		if !sev.IsValid() {
			res.errorf("label_mappings.label_to_severity[%s]: unknown severity %q", label, sev)
		}
	}
	for _, size := range r.SizeEstimates.AllowedValues {
		if size == "" {
			res.errorf("quick_size_estimates.allowed_values must not contain empty strings")
		}
	}
	return res
}

// Validate checks the grooming rules.
func (g *GroomingRules) Validate() *Result {
	res := &Result{}
	s := g.Settings

	if s.MaxAssignsPerRun != nil && *s.MaxAssignsPerRun < 0 {
		res.errorf("grooming_bot_settings.max_assigns_per_run must not be negative")
	}
	if s.Stale.Enabled {
		if s.Stale.Action != "" && !staleActions[s.Stale.Action] {
			res.errorf("stale_issue_handling.action must be close, comment, or label, got %q", s.Stale.Action)
		}
		if len(s.Stale.LabelsToCheck) == 0 {
			res.warnf("stale_issue_handling.enabled with empty labels_to_check matches no issues")
		}
	}
	if s.Workflow.Enabled {
		for i, t := range s.Workflow.Transitions {
			if t.ToColumn == "" {
				res.errorf("workflow_transitions.transitions[%d] (%s) is missing to_column", i, t.Name)
			}
			if len(t.RequiredLabels) == 0 && t.RequiredAssignee == "" {
				res.warnf("workflow_transitions.transitions[%d] (%s) has no conditions and matches every issue", i, t.Name)
			}
		}
	}
	return res
}

// CheckUnknownKeys re-reads the document at path and reports top-level
// keys the engine does not recognize. Grooming selects the grooming key
// set; otherwise the triage key set applies.
func CheckUnknownKeys(path string, grooming bool) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	known := knownTriageKeys
	if grooming {
		known = knownGroomingKeys
	}
	var unknown []string
	for key := range doc {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}
