// Package rules models the policy documents that drive triage and grooming
// decisions. Two documents are in play: the triage rules carry label
// mappings, gating policy, and project-board configuration; the grooming
// rules carry the grooming bot settings. Loading is tolerant of absent
// optional blocks; validation is a separate, stricter pass.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shepbot/shep/internal/timeparsing"
	"github.com/shepbot/shep/internal/types"
)

// DefaultDuplicateSimilarityThreshold is used when the rules file does not
// override detect_duplicates.similarity_threshold.
const DefaultDuplicateSimilarityThreshold = 0.78

// DefaultMaxAssignsPerRun caps automated-agent assignments in one run when
// the grooming rules do not set max_assigns_per_run.
const DefaultMaxAssignsPerRun = 3

// DefaultStaleThresholdDays applies when stale handling is enabled without
// an explicit threshold.
const DefaultStaleThresholdDays = 30

// defaultAllowedSizes is the fallback for quick_size_estimates.allowed_values.
var defaultAllowedSizes = []string{"xsmall", "small", "medium", "large", "epic"}

// TriageRules mirrors the triage policy document.
type TriageRules struct {
	AuditSchema     AuditSchema            `yaml:"triage_audit_schema"`
	ExecutionPolicy ExecutionPolicy        `yaml:"execution_policy"`
	Ownership       Ownership              `yaml:"triage_ownership"`
	RequiredFields  map[string]FieldSpec   `yaml:"required_issue_fields"`
	Steps           []Step                 `yaml:"steps"`
	PIIHandling     PIIHandling            `yaml:"pii_handling"`
	LabelMappings   LabelMappings          `yaml:"label_mappings"`
	SizeEstimates   SizeEstimates          `yaml:"quick_size_estimates"`
	Gate            BacklogGate            `yaml:"backlog_gate"`
	LabelPolicy     LabelPolicy            `yaml:"label_policy"`
	TriagedIf       []CompletionCondition  `yaml:"triaged_if"`
	Templates       map[string]string      `yaml:"bot_comment_templates"`
	Project         ProjectConfig          `yaml:"project_management"`
	AuditLog        AuditLogConfig         `yaml:"log_triage_event"`
}

// AuditSchema pins the audit entry schema version recorded with every entry.
type AuditSchema struct {
	Version string `yaml:"version"`
}

// ExecutionPolicy controls when a run defaults to live mode.
type ExecutionPolicy struct {
	// ProtectedBranches are the branches on which a run may go live when no
	// explicit dry-run setting is present. Everywhere else defaults to
	// dry-run.
	ProtectedBranches []string `yaml:"protected_branches"`
}

// Branches returns the protected branch list, defaulting to ["main"].
func (p ExecutionPolicy) Branches() []string {
	if len(p.ProtectedBranches) == 0 {
		return []string{"main"}
	}
	return p.ProtectedBranches
}

// Ownership names the default triage owner recorded on audit entries.
type Ownership struct {
	DefaultOwner string `yaml:"default_owner"`
}

// Owner returns the default triage owner, falling back to "copilot-bot".
func (o Ownership) Owner() string {
	if o.DefaultOwner == "" {
		return "copilot-bot"
	}
	return o.DefaultOwner
}

// FieldSpec describes one required issue field. Only the key matters for
// the required-field check; the description feeds comment templates.
type FieldSpec struct {
	Description string `yaml:"description,omitempty"`
	Example     string `yaml:"example,omitempty"`
}

// Step is one entry of the ordered triage step list. Each step carries at
// most one configured operation.
type Step struct {
	ScanForPII       *PIIStep       `yaml:"scan_for_pii,omitempty"`
	DetectDuplicates *DuplicateStep `yaml:"detect_duplicates,omitempty"`
}

// PIIStep configures the PII scan step.
type PIIStep struct {
	Patterns []string `yaml:"patterns"`
}

// DuplicateStep configures duplicate detection.
type DuplicateStep struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// PIIHandling supplies additional detection patterns outside the step list.
type PIIHandling struct {
	DetectPatterns []string `yaml:"detect_patterns"`
}

// LabelMappings override the severity/priority heuristics per label.
type LabelMappings struct {
	LabelToSeverity map[string]types.Severity `yaml:"label_to_severity"`
	LabelToPriority map[string]types.Priority `yaml:"label_to_priority"`
}

// SizeEstimates constrains the size_estimate field for backlog admission.
type SizeEstimates struct {
	AllowedValues []string `yaml:"allowed_values"`
}

// Allowed returns the allowed size estimate values with defaults applied.
func (s SizeEstimates) Allowed() []string {
	if len(s.AllowedValues) == 0 {
		return defaultAllowedSizes
	}
	return s.AllowedValues
}

// BacklogGate tunes backlog admission beyond the size estimate checks.
type BacklogGate struct {
	// FeatureRequiresApprovalLabel blocks feature-request issues from the
	// backlog until they carry the product-approved label. Defaults to true.
	FeatureRequiresApprovalLabel *bool `yaml:"feature_requires_approval_label"`
}

// FeatureApprovalRequired reports whether feature requests need product
// approval to pass the backlog gate.
func (b BacklogGate) FeatureApprovalRequired() bool {
	if b.FeatureRequiresApprovalLabel == nil {
		return true
	}
	return *b.FeatureRequiresApprovalLabel
}

// LabelPolicy holds label consistency invariants.
type LabelPolicy struct {
	PairEnforcement PairEnforcement `yaml:"pair_enforcement"`
}

// PairEnforcement names two labels that must co-occur once triage
// completes, plus labels that suspend enforcement when present.
type PairEnforcement struct {
	Pair             []string `yaml:"pair"`
	SkipIfAnyPresent []string `yaml:"skip_if_any_present"`
}

// Labels returns the enforced pair, defaulting to Triaged/Backlog.
func (p PairEnforcement) Labels() (string, string) {
	if len(p.Pair) == 2 {
		return p.Pair[0], p.Pair[1]
	}
	return "Triaged", "Backlog"
}

// CompletionCondition is one entry of triaged_if: the conjunction of all
// entries decides whether initial triage is complete.
type CompletionCondition struct {
	RequiredFieldsPresent []string `yaml:"required_fields_present,omitempty"`
	TriageOwnerAssigned   *bool    `yaml:"triage_owner_assigned,omitempty"`
	SeverityAssigned      *bool    `yaml:"severity_assigned,omitempty"`
}

// ProjectConfig wires the engine to a project board.
type ProjectConfig struct {
	Enabled   bool             `yaml:"enabled"`
	ProjectID int64            `yaml:"project_id"`
	Columns   map[string]int64 `yaml:"columns"`
}

// BacklogColumn returns the Backlog column id, zero when unconfigured.
func (p ProjectConfig) BacklogColumn() int64 {
	return p.Columns["Backlog"]
}

// AuditLogConfig locates the audit log and bounds its size.
type AuditLogConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
}

// LogPath returns the audit log path, defaulting to triage_log.json.
func (a AuditLogConfig) LogPath() string {
	if a.Path == "" {
		return "triage_log.json"
	}
	return a.Path
}

// RequiredFieldNames returns the required field names in stable order.
func (r *TriageRules) RequiredFieldNames() []string {
	names := make([]string, 0, len(r.RequiredFields))
	for name := range r.RequiredFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DuplicateThreshold returns the similarity threshold from the step list,
// or the default when no step overrides it.
func (r *TriageRules) DuplicateThreshold() float64 {
	for _, s := range r.Steps {
		if s.DetectDuplicates != nil && s.DetectDuplicates.SimilarityThreshold > 0 {
			return s.DetectDuplicates.SimilarityThreshold
		}
	}
	return DefaultDuplicateSimilarityThreshold
}

// PIIPatterns collects detection patterns from the step list and the
// pii_handling block, in that order.
func (r *TriageRules) PIIPatterns() []string {
	var patterns []string
	for _, s := range r.Steps {
		if s.ScanForPII != nil {
			patterns = append(patterns, s.ScanForPII.Patterns...)
		}
	}
	patterns = append(patterns, r.PIIHandling.DetectPatterns...)
	return patterns
}

// CompiledPIIPatterns compiles the configured patterns case-insensitively.
// Patterns that fail to compile are skipped; Validate reports them.
func (r *TriageRules) CompiledPIIPatterns() []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range r.PIIPatterns() {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}

// GroomingRules mirrors the grooming policy document.
type GroomingRules struct {
	Settings GroomingSettings `yaml:"grooming_bot_settings"`
}

// GroomingSettings drive the grooming decision ladder.
type GroomingSettings struct {
	NeedsInfoVariants        []string    `yaml:"needs_info_variants"`
	AssigneeForNeedsInfo     string      `yaml:"assignee_for_needs_info"`
	RemoveTriagedOnNeedsInfo *bool       `yaml:"remove_triaged_on_needs_info"`
	AssigneeForNeedsWork     string      `yaml:"assignee_for_needs_work"`
	MaxAssignsPerRun         *int        `yaml:"max_assigns_per_run"`
	GroomableStatusLabels    []string    `yaml:"groomable_status_labels"`
	MoveToBacklog            *bool       `yaml:"move_to_backlog_if_triaged_and_backlog"`
	Stale                    StaleConfig `yaml:"stale_issue_handling"`
	Workflow                 Workflow    `yaml:"workflow_transitions"`
}

// Variants returns the needs-info label variants, defaulting to needs-info.
func (g GroomingSettings) Variants() []string {
	if len(g.NeedsInfoVariants) == 0 {
		return []string{"needs-info"}
	}
	return g.NeedsInfoVariants
}

// NeedsInfoAssignee returns the assignee used for needs-info issues.
func (g GroomingSettings) NeedsInfoAssignee() string {
	if g.AssigneeForNeedsInfo == "" {
		return "copilot-bot"
	}
	return g.AssigneeForNeedsInfo
}

// NeedsWorkAssignee returns the assignee used for needs_work issues.
func (g GroomingSettings) NeedsWorkAssignee() string {
	if g.AssigneeForNeedsWork == "" {
		return "copilot"
	}
	return g.AssigneeForNeedsWork
}

// RemoveTriaged reports whether a needs-info assignment also removes the
// Triaged label. Defaults to true.
func (g GroomingSettings) RemoveTriaged() bool {
	if g.RemoveTriagedOnNeedsInfo == nil {
		return true
	}
	return *g.RemoveTriagedOnNeedsInfo
}

// AssignCap returns the per-run assignment cap.
func (g GroomingSettings) AssignCap() int {
	if g.MaxAssignsPerRun == nil {
		return DefaultMaxAssignsPerRun
	}
	return *g.MaxAssignsPerRun
}

// StatusLabels returns the labels that admit an issue into grooming, such
// as "Backlog" or "In progress". An empty list disables the status gate.
func (g GroomingSettings) StatusLabels() []string {
	return g.GroomableStatusLabels
}

// MoveBacklogPair reports whether Triaged+Backlog issues are moved to the
// Backlog column. Defaults to true.
func (g GroomingSettings) MoveBacklogPair() bool {
	if g.MoveToBacklog == nil {
		return true
	}
	return *g.MoveToBacklog
}

// StaleConfig controls stale-issue handling.
type StaleConfig struct {
	Enabled       bool      `yaml:"enabled"`
	LabelsToCheck []string  `yaml:"labels_to_check"`
	DaysThreshold Threshold `yaml:"days_threshold"`
	Action        string    `yaml:"action"` // close, comment, or label
	CloseComment  string    `yaml:"close_comment"`
}

// ThresholdDays returns the staleness age in days with the default applied.
func (s StaleConfig) ThresholdDays() int {
	if s.DaysThreshold <= 0 {
		return DefaultStaleThresholdDays
	}
	return int(s.DaysThreshold)
}

// Threshold is a staleness age in days. The YAML value may be a bare day
// count, a compact duration ("14d", "2w"), or natural language ("in two
// weeks"), all normalized to days at load time.
type Threshold int

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Threshold) UnmarshalYAML(value *yaml.Node) error {
	var n int
	if err := value.Decode(&n); err == nil {
		*t = Threshold(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("days_threshold must be a number or duration: %w", err)
	}
	days, err := timeparsing.ThresholdDays(s, time.Now())
	if err != nil {
		return fmt.Errorf("days_threshold: %w", err)
	}
	*t = Threshold(days)
	return nil
}

// Workflow is the ordered transition list evaluated during grooming.
type Workflow struct {
	Enabled     bool         `yaml:"enabled"`
	Transitions []Transition `yaml:"transitions"`
}

// Transition is one workflow rule. The first transition whose conditions
// all hold wins; later transitions are not evaluated.
type Transition struct {
	Name             string   `yaml:"name,omitempty"`
	RequiredLabels   []string `yaml:"required_labels"`
	NotLabels        []string `yaml:"not_labels,omitempty"`
	RequiredAssignee string   `yaml:"required_assignee,omitempty"`
	ToColumn         string   `yaml:"to_column"`
}
