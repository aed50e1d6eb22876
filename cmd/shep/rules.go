package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/templates"
	"github.com/shepbot/shep/internal/ui"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rules files",
}

// ruleFileResult is the validation outcome for one rules document.
type ruleFileResult struct {
	File     string   `json:"file"`
	Grooming bool     `json:"grooming"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	OK       bool     `json:"ok"`
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Schema-check rules files",
	Long: `Validates rules documents against the engine's schema. With no
arguments the triage rules file is checked, plus the grooming rules
file when it exists. Unknown top-level keys are warnings; schema
violations are errors and exit 1.`,
	Run: func(cmd *cobra.Command, args []string) {
		paths := args
		if len(paths) == 0 {
			paths = []string{rulesPath}
			if _, err := os.Stat(groomingRulesPath); err == nil {
				paths = append(paths, groomingRulesPath)
			}
		}

		failed := false
		results := make([]ruleFileResult, 0, len(paths))
		for _, path := range paths {
			res, grooming := validateRulesFile(path)
			fr := ruleFileResult{
				File:     path,
				Grooming: grooming,
				Errors:   res.Errors,
				Warnings: res.Warnings,
				OK:       res.OK(),
			}
			if !fr.OK {
				failed = true
			}
			results = append(results, fr)
		}

		if jsonOutput {
			outputJSON(results)
		} else {
			printRulesValidation(results)
		}
		if failed {
			os.Exit(1)
		}
	},
}

// validateRulesFile loads one rules document and validates it. Grooming
// documents are recognized by their grooming_bot_settings block.
func validateRulesFile(path string) (*rules.Result, bool) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator arguments
	if err != nil {
		return &rules.Result{Errors: []string{err.Error()}}, false
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return &rules.Result{Errors: []string{err.Error()}}, false
	}
	if len(doc) == 0 {
		return &rules.Result{Errors: []string{"empty rules document"}}, false
	}
	_, grooming := doc["grooming_bot_settings"]

	var res *rules.Result
	if grooming {
		g, err := rules.LoadGrooming(path)
		if err != nil {
			return &rules.Result{Errors: []string{err.Error()}}, true
		}
		res = g.Validate()
	} else {
		r, err := rules.Load(path)
		if err != nil {
			return &rules.Result{Errors: []string{err.Error()}}, false
		}
		res = r.Validate()
	}
	if unknown, err := rules.CheckUnknownKeys(path, grooming); err == nil {
		for _, key := range unknown {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown top-level key %q", key))
		}
	}
	return res, grooming
}

func printRulesValidation(results []ruleFileResult) {
	var pass, fail int
	for _, r := range results {
		kind := "triage"
		if r.Grooming {
			kind = "grooming"
		}
		icon := ui.RenderPassIcon()
		if r.OK {
			pass++
		} else {
			icon = ui.RenderFailIcon()
			fail++
		}
		fmt.Printf("%s  %s %s\n", icon, r.File, ui.RenderMuted("("+kind+")"))
		for _, e := range r.Errors {
			fmt.Printf("   %s%s\n", ui.MutedStyle.Render(ui.TreeLast), ui.RenderFail(e))
		}
		for _, w := range r.Warnings {
			fmt.Printf("   %s%s\n", ui.MutedStyle.Render(ui.TreeLast), ui.RenderWarn(w))
		}
	}
	fmt.Println()
	fmt.Printf("%s %d passed  %s %d failed\n", ui.RenderPassIcon(), pass, ui.RenderFailIcon(), fail)
}

// effectiveRules is the merged view printed by rules show: file values
// with the compiled-in defaults applied, the way the engine sees them.
type effectiveRules struct {
	SchemaVersion       string             `json:"schema_version,omitempty" yaml:"schema_version,omitempty"`
	ProtectedBranches   []string           `json:"protected_branches" yaml:"protected_branches"`
	TriageOwner         string             `json:"triage_owner" yaml:"triage_owner"`
	RequiredFields      []string           `json:"required_fields" yaml:"required_fields"`
	SimilarityThreshold float64            `json:"similarity_threshold" yaml:"similarity_threshold"`
	PIIPatterns         []string           `json:"pii_patterns" yaml:"pii_patterns"`
	AllowedSizes        []string           `json:"allowed_sizes" yaml:"allowed_sizes"`
	FeatureApproval     bool               `json:"feature_requires_approval" yaml:"feature_requires_approval"`
	LabelPair           []string           `json:"label_pair" yaml:"label_pair"`
	PairSkipLabels      []string           `json:"pair_skip_labels,omitempty" yaml:"pair_skip_labels,omitempty"`
	ProjectEnabled      bool               `json:"project_enabled" yaml:"project_enabled"`
	ProjectID           int64              `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	AuditLogPath        string             `json:"audit_log_path" yaml:"audit_log_path"`
	AuditMaxEntries     int                `json:"audit_max_entries,omitempty" yaml:"audit_max_entries,omitempty"`
	Templates           []string           `json:"templates" yaml:"templates"`
	Grooming            *effectiveGrooming `json:"grooming,omitempty" yaml:"grooming,omitempty"`
}

type effectiveGrooming struct {
	StatusLabels       []string `json:"groomable_status_labels,omitempty" yaml:"groomable_status_labels,omitempty"`
	NeedsInfoVariants  []string `json:"needs_info_variants" yaml:"needs_info_variants"`
	NeedsInfoAssignee  string   `json:"needs_info_assignee" yaml:"needs_info_assignee"`
	NeedsWorkAssignee  string   `json:"needs_work_assignee" yaml:"needs_work_assignee"`
	RemoveTriaged      bool     `json:"remove_triaged_on_needs_info" yaml:"remove_triaged_on_needs_info"`
	AssignCap          int      `json:"max_assigns_per_run" yaml:"max_assigns_per_run"`
	MoveBacklogPair    bool     `json:"move_backlog_pair" yaml:"move_backlog_pair"`
	StaleEnabled       bool     `json:"stale_enabled" yaml:"stale_enabled"`
	StaleThresholdDays int      `json:"stale_threshold_days,omitempty" yaml:"stale_threshold_days,omitempty"`
	StaleAction        string   `json:"stale_action,omitempty" yaml:"stale_action,omitempty"`
	Transitions        int      `json:"workflow_transitions" yaml:"workflow_transitions"`
}

// effectiveTemplateKeys lists the merged comment template keys: builtin,
// pack, and rules overrides.
func effectiveTemplateKeys(r *rules.TriageRules) []string {
	tmpl, err := templates.NewCatalog(templatePack, r.Templates)
	if err != nil {
		WarnError("%v", err)
		tmpl, _ = templates.NewCatalog("", r.Templates)
	}
	return tmpl.Keys()
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective ruleset",
	Long: `Prints the merged ruleset as the engine sees it: file values with
the compiled-in defaults applied. Grooming settings are included when
the grooming rules file exists.`,
	Run: func(cmd *cobra.Command, args []string) {
		r := loadTriageRules()

		pairA, pairB := r.LabelPolicy.PairEnforcement.Labels()
		eff := effectiveRules{
			SchemaVersion:       r.AuditSchema.Version,
			ProtectedBranches:   r.ExecutionPolicy.Branches(),
			TriageOwner:         r.Ownership.Owner(),
			RequiredFields:      r.RequiredFieldNames(),
			SimilarityThreshold: r.DuplicateThreshold(),
			PIIPatterns:         r.PIIPatterns(),
			AllowedSizes:        r.SizeEstimates.Allowed(),
			FeatureApproval:     r.Gate.FeatureApprovalRequired(),
			LabelPair:           []string{pairA, pairB},
			PairSkipLabels:      r.LabelPolicy.PairEnforcement.SkipIfAnyPresent,
			ProjectEnabled:      r.Project.Enabled,
			ProjectID:           r.Project.ProjectID,
			AuditLogPath:        r.AuditLog.LogPath(),
			AuditMaxEntries:     r.AuditLog.MaxEntries,
			Templates:           effectiveTemplateKeys(r),
		}
		if _, err := os.Stat(groomingRulesPath); err == nil {
			g := loadGroomingRules()
			s := g.Settings
			eff.Grooming = &effectiveGrooming{
				StatusLabels:       s.StatusLabels(),
				NeedsInfoVariants:  s.Variants(),
				NeedsInfoAssignee:  s.NeedsInfoAssignee(),
				NeedsWorkAssignee:  s.NeedsWorkAssignee(),
				RemoveTriaged:      s.RemoveTriaged(),
				AssignCap:          s.AssignCap(),
				MoveBacklogPair:    s.MoveBacklogPair(),
				StaleEnabled:       s.Stale.Enabled,
				StaleThresholdDays: s.Stale.ThresholdDays(),
				StaleAction:        s.Stale.Action,
				Transitions:        len(s.Workflow.Transitions),
			}
		}

		if jsonOutput {
			outputJSON(eff)
			return
		}
		out, err := yaml.Marshal(eff)
		if err != nil {
			FatalError("%v", err)
		}
		fmt.Print(string(out))
	},
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rootCmd.AddCommand(rulesCmd)
}
