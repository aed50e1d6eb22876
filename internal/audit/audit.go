// Package audit builds and persists the per-issue decision trail. Every
// triage or grooming pass produces one Entry per processed issue; the
// store appends them to a JSON array on disk at the end of the run. The
// file is the system of record for what the bot did, live or simulated.
package audit

import (
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shepbot/shep/internal/triage"
)

// Entry event types.
const (
	EventInitialTriage = "initial_triage"
	EventGrooming      = "grooming"
)

// Redacted replaces a notes field that resembles PII.
const Redacted = "[REDACTED: Potential PII]"

// timestampLayout is RFC3339 at second precision with a literal Z; entries
// are always stamped in UTC.
const timestampLayout = "2006-01-02T15:04:05Z"

// Entry is one issue's audit record for one run. Triage entries fill the
// classification fields; grooming entries leave them empty and rely on
// changed_fields and notes.
type Entry struct {
	SchemaVersion    string             `json:"schema_version,omitempty"`
	RunID            string             `json:"run_id,omitempty"`
	Repo             string             `json:"repo,omitempty"`
	IssueNumber      int                `json:"issue_number"`
	Timestamp        string             `json:"timestamp"`
	EventType        string             `json:"event_type"`
	DryRun           bool               `json:"dry_run"`
	ExecutionBranch  string             `json:"execution_branch,omitempty"`
	TriageOwner      string             `json:"triage_owner,omitempty"`
	Severity         string             `json:"severity,omitempty"`
	Priority         string             `json:"priority,omitempty"`
	SizeEstimate     string             `json:"size_estimate,omitempty"`
	PIIDetected      bool               `json:"pii_detected"`
	RedactedFields   []string           `json:"redacted_fields,omitempty"`
	RedactionActions []string           `json:"redaction_actions,omitempty"`
	TitleSanitized   bool               `json:"title_sanitized"`
	OriginalTitle    string             `json:"original_title,omitempty"`
	Duplicates       []triage.Duplicate `json:"duplicates,omitempty"`
	References       []string           `json:"references,omitempty"`
	ChangedFields    []string           `json:"changed_fields"`
	Notes            string             `json:"notes"`
}

// NewEntry stamps a fresh entry for one issue. The caller fills the
// findings and run metadata before handing it to the store.
func NewEntry(eventType string, issueNumber int, t time.Time) *Entry {
	return &Entry{
		IssueNumber:   issueNumber,
		Timestamp:     t.UTC().Format(timestampLayout),
		EventType:     eventType,
		ChangedFields: []string{},
	}
}

// NewRunID returns a sortable unique id shared by all entries of one run.
func NewRunID() string {
	return ulid.Make().String()
}

// piiLikePatterns flag free text that resembles PII: emails, US social
// security numbers, and payment card numbers.
var piiLikePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
}

// SanitizeNotes replaces the whole notes string when any fragment of it
// resembles PII. Redaction is all-or-nothing per field.
func SanitizeNotes(notes string) string {
	for _, p := range piiLikePatterns {
		if p.MatchString(notes) {
			return Redacted
		}
	}
	return notes
}

// Sanitized returns a copy of the entry safe to persist.
func (e Entry) Sanitized() Entry {
	e.Notes = SanitizeNotes(e.Notes)
	return e
}
