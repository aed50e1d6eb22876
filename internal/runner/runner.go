// Package runner orchestrates one full pass of the bot. It resolves the
// write mode from the environment, fetches the issue batch, drives the
// triage or grooming engine over each issue strictly in order, and
// persists the collected audit entries in a single batch at the end of
// the run.
//
// The runner owns every live API write for triage; classification and
// planning stay pure in their own packages. Grooming writes live inside
// the groom engine, which receives the same dry-run setting.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shepbot/shep/internal/audit"
	"github.com/shepbot/shep/internal/gate"
	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/groom"
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/templates"
	"github.com/shepbot/shep/internal/types"
)

// API is the slice of the GitHub client a run drives. *github.Client
// satisfies it; tests substitute a recorder.
type API interface {
	groom.API
	SearchIssues(ctx context.Context, query string, perPage int) ([]github.Issue, error)
	SearchCode(ctx context.Context, query string, perPage int) ([]github.CodeSearchItem, error)
	FetchIssue(ctx context.Context, number int) (*github.Issue, error)
	Retitle(ctx context.Context, number int, title string) error
}

// Mode is the resolved write mode of one run.
type Mode struct {
	DryRun bool
	// Branch is the branch name with any refs/heads/ prefix stripped,
	// empty when the environment carries no ref.
	Branch string
	// Ref is the raw ref recorded on audit entries, "unknown" when the
	// environment carries none.
	Ref string
}

// ResolveMode decides whether a run may write. An explicit dry-run
// setting wins; otherwise only runs on a protected branch go live. A
// missing token forces dry-run regardless of everything else.
func ResolveMode(explicit *bool, hasToken bool, ref string, protected []string) Mode {
	m := Mode{Ref: "unknown"}
	if ref != "" {
		m.Ref = ref
		m.Branch = strings.TrimPrefix(ref, "refs/heads/")
	}
	if explicit != nil {
		m.DryRun = *explicit
	} else {
		m.DryRun = !slices.Contains(protected, m.Branch)
	}
	if !hasToken {
		m.DryRun = true
	}
	return m
}

var classicTokenPattern = regexp.MustCompile(`^\w{40}$`)

// ValidToken reports whether a credential looks like a GitHub token:
// the gh_/github_ prefixed formats or a classic 40-character token. An
// empty credential is not valid; callers treat empty and malformed
// differently (empty forces dry-run, malformed is fatal).
func ValidToken(token string) bool {
	if strings.HasPrefix(token, "gh_") || strings.HasPrefix(token, "github_") {
		return true
	}
	return classicTokenPattern.MatchString(token)
}

// TriageQuery selects the open issues still awaiting triage.
func TriageQuery(repo string) string {
	return fmt.Sprintf(`repo:%s is:issue is:open -label:"Triaged"`, repo)
}

// GroomQuery selects every open issue for a grooming pass.
func GroomQuery(repo string) string {
	return fmt.Sprintf("repo:%s is:issue is:open", repo)
}

// Summary is the end-of-run accounting rendered by the CLI.
type Summary struct {
	Event       string `json:"event"`
	Processed   int    `json:"processed"`
	Skipped     int    `json:"skipped"`
	Actions     int    `json:"actions"`
	Errors      int    `json:"errors"`
	Redactions  int    `json:"redactions"`
	Assignments int    `json:"assignments"`
	AssignCap   int    `json:"assign_cap"`
	Entries     int    `json:"audit_entries"`
	DryRun      bool   `json:"dry_run"`
}

// Runner wires one pass end to end. Rules, Tmpl, and API are required;
// Grooming only for grooming passes. A nil Store disables persistence,
// which the grooming engine's tests and local simulation use.
type Runner struct {
	API      API
	Rules    *rules.TriageRules
	Grooming *rules.GroomingRules
	Tmpl     *templates.Catalog
	Store    *audit.Store
	Repo     string
	Mode     Mode

	// Issue targets a single issue instead of the search batch, 0 means
	// the full batch.
	Issue int

	Log *slog.Logger
	Out io.Writer

	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

// New wires a runner with the default clock, logger, and a discarded
// output stream. Callers hand the CLI's stdout to Out when they want
// the per-issue narration.
func New(api API, r *rules.TriageRules, tmpl *templates.Catalog, repo string, mode Mode) *Runner {
	return &Runner{
		API:   api,
		Rules: r,
		Tmpl:  tmpl,
		Repo:  repo,
		Mode:  mode,
		Log:   slog.Default(),
		Out:   io.Discard,
		Now:   time.Now,
	}
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return io.Discard
}

func (r *Runner) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// execute applies one planned batch in order, recording each action's
// changed-fields mark as it lands. The first failure abandons the rest
// of the batch; the issue keeps its audit entry and the run moves on.
func (r *Runner) execute(ctx context.Context, issue *github.Issue, batch []gate.PlannedAction, e *audit.Entry, s *Summary) bool {
	for _, pa := range batch {
		if err := r.apply(ctx, issue, pa.Action); err != nil {
			r.log().Error("failed to apply live changes", "issue", e.IssueNumber, "error", err)
			e.Notes += fmt.Sprintf("execution error: %v; ", err)
			s.Errors++
			return false
		}
		if pa.ChangedField != "" {
			e.ChangedFields = append(e.ChangedFields, pa.ChangedField)
		}
		s.Actions++
	}
	return true
}

func (r *Runner) apply(ctx context.Context, issue *github.Issue, a types.Action) error {
	switch a.Kind {
	case types.ActionAddLabel:
		return r.API.AddLabels(ctx, a.Issue, a.Label)
	case types.ActionRemoveLabel:
		return r.API.RemoveLabel(ctx, a.Issue, a.Label)
	case types.ActionComment:
		return r.API.CreateComment(ctx, a.Issue, a.Body)
	case types.ActionAssign:
		return r.API.AddAssignees(ctx, a.Issue, a.Assignee)
	case types.ActionRetitle:
		return r.API.Retitle(ctx, a.Issue, a.Title)
	case types.ActionClose:
		return r.API.CloseIssue(ctx, a.Issue)
	case types.ActionMoveColumn:
		return r.API.MoveIssueToColumn(ctx, r.Rules.Project.ProjectID, a.ColumnID, issue, true)
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// persist writes the collected entries in one batch. Runs that executed
// their actions but cannot persist the trail fail loudly; nothing was
// written, so the caller's exit code should say so.
func (r *Runner) persist(entries []audit.Entry, s *Summary) error {
	if r.Store == nil || len(entries) == 0 {
		return nil
	}
	if err := r.Store.Append(entries...); err != nil {
		return fmt.Errorf("failed to append audit entries: %w", err)
	}
	s.Entries = len(entries)
	fmt.Fprintf(r.out(), "Appended %d audit entries to %s\n", len(entries), r.Store.Path)
	return nil
}
