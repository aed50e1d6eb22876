// Package shep provides a minimal public API for embedding the triage
// engine in other automation.
//
// Most deployments run the shep binary from a CI workflow. Programs that
// want the classification logic without the GitHub plumbing get the
// snapshot types, rule loading, and the pure classification pass here;
// everything else stays internal.
package shep

import (
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/triage"
	"github.com/shepbot/shep/internal/types"
)

// Core types for working with issue snapshots.
type (
	Snapshot = types.Snapshot
	Action   = types.Action
	Severity = types.Severity
	Priority = types.Priority
)

// Severity values, most to least damaging.
const (
	SeverityCritical = types.SeverityCritical
	SeverityHigh     = types.SeverityHigh
	SeverityMedium   = types.SeverityMedium
	SeverityLow      = types.SeverityLow
)

// Priority buckets; p0 is most urgent.
const (
	PriorityP0 = types.PriorityP0
	PriorityP1 = types.PriorityP1
	PriorityP2 = types.PriorityP2
	PriorityP3 = types.PriorityP3
)

// TriageRules is a parsed triage ruleset.
type TriageRules = rules.TriageRules

// GroomingRules is a parsed grooming ruleset.
type GroomingRules = rules.GroomingRules

// Findings is the outcome of classifying one snapshot.
type Findings = triage.Findings

// LoadRules parses the triage ruleset at path.
func LoadRules(path string) (*TriageRules, error) {
	return rules.Load(path)
}

// LoadGroomingRules parses the grooming ruleset at path.
func LoadGroomingRules(path string) (*GroomingRules, error) {
	return rules.LoadGrooming(path)
}

// Classify runs the pure classification pass over one snapshot.
// Candidates are the caller's duplicate pool, usually recent issues
// sharing the snapshot's title terms.
func Classify(issue *Snapshot, r *TriageRules, candidates []Snapshot) Findings {
	return triage.Classify(issue, r, candidates)
}
