// Package types defines core data structures for the shep triage engine.
package types

import (
	"time"
)

// Canonical names of the labels the engine manages. Rulesets may remap
// some of these; the constants are the defaults and the fixed vocabulary
// of the gate logic.
const (
	LabelTriaged         = "Triaged"
	LabelBacklog         = "Backlog"
	LabelNeedsTriage     = "Needs Triage"
	LabelNeedsInfo       = "needs-info"
	LabelNeedsWork       = "needs_work"
	LabelSecurity        = "security"
	LabelProductReview   = "needs-product-review"
	LabelFeatureRequest  = "feature-request"
	LabelProductApproved = "product-approved"
)

// Severity classifies how damaging an issue is if left unaddressed.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IsValid reports whether s is one of the known severity values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Priority is the scheduling bucket for an issue (p0 is most urgent).
type Priority string

const (
	PriorityP0 Priority = "p0"
	PriorityP1 Priority = "p1"
	PriorityP2 Priority = "p2"
	PriorityP3 Priority = "p3"
)

// PriorityForSeverity maps severity to priority when no label override exists.
// This is the single source of truth for the severity→priority derivation.
var PriorityForSeverity = map[Severity]Priority{
	SeverityCritical: PriorityP0,
	SeverityHigh:     PriorityP1,
	SeverityMedium:   PriorityP2,
	SeverityLow:      PriorityP3,
}

// Snapshot is a read-only view of an issue at fetch time. Planning never
// mutates a Snapshot; observing the effect of an executed Action requires a
// fresh fetch.
type Snapshot struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"` // "open" or "closed"
	Labels    []string  `json:"labels,omitempty"`
	Assignees []string  `json:"assignees,omitempty"`
	Author    string    `json:"author,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsClosed reports whether the snapshot was taken from a closed issue.
func (s *Snapshot) IsClosed() bool {
	return s.State == "closed"
}

// HasLabel reports whether the snapshot carries the named label.
// Label names are compared exactly; GitHub preserves label case.
func (s *Snapshot) HasLabel(name string) bool {
	for _, l := range s.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// HasAnyLabel reports whether the snapshot carries at least one of names.
func (s *Snapshot) HasAnyLabel(names ...string) bool {
	for _, n := range names {
		if s.HasLabel(n) {
			return true
		}
	}
	return false
}

// HasAssignee reports whether the snapshot lists the given login.
func (s *Snapshot) HasAssignee(login string) bool {
	for _, a := range s.Assignees {
		if a == login {
			return true
		}
	}
	return false
}

// ActionKind names one kind of mutation the engine can request.
type ActionKind string

const (
	ActionAddLabel    ActionKind = "add_label"
	ActionRemoveLabel ActionKind = "remove_label"
	ActionAssign      ActionKind = "assign"
	ActionComment     ActionKind = "comment"
	ActionMoveColumn  ActionKind = "move_column"
	ActionClose       ActionKind = "close"
	ActionRetitle     ActionKind = "retitle"
)

// Action is one requested mutation against an issue. Execution is idempotent
// at the API layer (adding a label that is already present is a no-op), but
// planners still record changed vs already-satisfied for audit accuracy.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Issue    int        `json:"issue"`
	Label    string     `json:"label,omitempty"`    // AddLabel, RemoveLabel
	Assignee string     `json:"assignee,omitempty"` // Assign
	Body     string     `json:"body,omitempty"`     // Comment
	ColumnID int64      `json:"column_id,omitempty"` // MoveColumn
	Title    string     `json:"title,omitempty"`    // Retitle
}

// AddLabel builds a label-add action.
func AddLabel(issue int, label string) Action {
	return Action{Kind: ActionAddLabel, Issue: issue, Label: label}
}

// RemoveLabel builds a label-remove action.
func RemoveLabel(issue int, label string) Action {
	return Action{Kind: ActionRemoveLabel, Issue: issue, Label: label}
}

// Assign builds an assignment action.
func Assign(issue int, actor string) Action {
	return Action{Kind: ActionAssign, Issue: issue, Assignee: actor}
}

// Comment builds a comment action.
func Comment(issue int, body string) Action {
	return Action{Kind: ActionComment, Issue: issue, Body: body}
}

// MoveColumn builds a board-move action.
func MoveColumn(issue int, columnID int64) Action {
	return Action{Kind: ActionMoveColumn, Issue: issue, ColumnID: columnID}
}

// Close builds a close action.
func Close(issue int) Action {
	return Action{Kind: ActionClose, Issue: issue}
}

// Retitle builds a title-update action.
func Retitle(issue int, title string) Action {
	return Action{Kind: ActionRetitle, Issue: issue, Title: title}
}

// TimelineKind classifies automated-agent activity found in an issue's
// event feed. Classification is a best-effort heuristic over free text.
type TimelineKind string

const (
	TimelineStart    TimelineKind = "start"
	TimelineError    TimelineKind = "error"
	TimelineFinished TimelineKind = "finished"
	TimelineOther    TimelineKind = "other"
)

// AgentEvent is the most recent automated-agent-related event on an issue,
// used to decide whether a new assignment is safe.
type AgentEvent struct {
	Kind          TimelineKind
	CreatedAt     time.Time
	LastErrorTime time.Time // newest error-classified event, zero if none
}
