package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/shepbot/shep/internal/audit"
	"github.com/shepbot/shep/internal/gate"
	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/triage"
	"github.com/shepbot/shep/internal/types"
)

// maxDocReferences caps how many related-docs links an entry records.
const maxDocReferences = 3

// Triage runs one triage pass: classify each candidate, plan its label
// and comment actions, execute them on live runs, and collect one audit
// entry per processed issue. The returned error covers the initial fetch
// and the final audit append; per-issue execution failures only count
// toward Summary.Errors.
func (r *Runner) Triage(ctx context.Context) (*Summary, error) {
	s := &Summary{Event: audit.EventInitialTriage, DryRun: r.Mode.DryRun}

	var issues []github.Issue
	if r.Issue != 0 {
		target, err := r.API.FetchIssue(ctx, r.Issue)
		if err != nil {
			return s, fmt.Errorf("failed to fetch issue #%d: %w", r.Issue, err)
		}
		if target == nil {
			fmt.Fprintf(r.out(), "Issue #%d not found or inaccessible\n", r.Issue)
			return s, nil
		}
		issues = []github.Issue{*target}
	} else {
		var err error
		issues, err = r.API.SearchIssues(ctx, TriageQuery(r.Repo), github.TriagePageSize)
		if err != nil {
			return s, fmt.Errorf("failed to query issues: %w", err)
		}
	}
	if len(issues) == 0 {
		fmt.Fprintf(r.out(), "No issues labeled %q found (up to %d).\n", "Needs Triage", github.TriagePageSize)
		return s, nil
	}
	fmt.Fprintf(r.out(), "Found %d candidate issues\n", len(issues))

	runID := audit.NewRunID()
	var entries []audit.Entry
	for i := range issues {
		issue := &issues[i]
		snap := github.ToSnapshot(issue)
		fmt.Fprintln(r.out(), "---")
		fmt.Fprintf(r.out(), "Issue #%d: %s\n", snap.Number, snap.Title)
		if snap.HasLabel(types.LabelTriaged) {
			fmt.Fprintf(r.out(), "Issue #%d already triaged, skipping\n", snap.Number)
			s.Skipped++
			continue
		}
		entries = append(entries, r.triageOne(ctx, issue, &snap, runID, s))
		s.Processed++
	}
	return s, r.persist(entries, s)
}

// triageOne classifies and gates a single issue, returning its audit
// entry. Live runs execute the planned batch, re-read the labels, and
// run pair enforcement on what they find; dry runs narrate the plan.
func (r *Runner) triageOne(ctx context.Context, issue *github.Issue, snap *types.Snapshot, runID string, s *Summary) audit.Entry {
	e := audit.NewEntry(audit.EventInitialTriage, snap.Number, r.now())
	e.RunID = runID
	e.Repo = r.Repo
	e.SchemaVersion = r.Rules.AuditSchema.Version
	e.DryRun = r.Mode.DryRun
	e.ExecutionBranch = r.Mode.Ref
	e.TriageOwner = r.Rules.Ownership.Owner()
	e.References = r.relatedDocs(ctx, snap)

	f := triage.Classify(snap, r.Rules, r.duplicateCandidates(ctx, snap))
	e.Severity = string(f.Severity)
	e.Priority = string(f.Priority)
	e.SizeEstimate = f.SizeEstimate
	e.PIIDetected = f.PIIDetected
	e.RedactedFields = f.PIIMatches
	e.Duplicates = f.Duplicates
	e.TitleSanitized = f.TitleSanitized
	if f.TitleSanitized {
		e.OriginalTitle = snap.Title
	}
	if f.PIIDetected {
		s.Redactions++
	}

	d := gate.Plan(snap, f, r.Rules, r.Tmpl, r.Mode.DryRun)
	e.Notes = d.Notes
	e.ChangedFields = append(e.ChangedFields, d.Changed...)
	e.RedactionActions = d.RedactionActions

	if r.Mode.DryRun {
		fmt.Fprintln(r.out(), "[dry-run] "+strings.Join(d.Narration, ", "))
		s.Actions += len(d.Planned)
		return *e
	}

	fmt.Fprintln(r.out(), "[live] performing actions...")
	if !r.execute(ctx, issue, d.Planned, e, s) {
		return *e
	}
	latest := r.latestLabels(ctx, snap)
	r.execute(ctx, issue, gate.PairPlan(snap, latest, f, r.Rules, r.Tmpl, e.TriageOwner), e, s)
	return *e
}

// latestLabels re-reads the label set after the first batch landed so
// pair enforcement sees what the writes actually produced. A failed
// re-read falls back to the stale snapshot labels.
func (r *Runner) latestLabels(ctx context.Context, snap *types.Snapshot) []string {
	latest, err := r.API.FetchIssue(ctx, snap.Number)
	if err != nil || latest == nil {
		r.log().Warn("label re-read failed, using stale labels", "issue", snap.Number, "error", err)
		return snap.Labels
	}
	return github.LabelNames(latest.Labels)
}

// relatedDocs searches the repository's docs tree for pages related to
// the issue. The search is best-effort: failures and empty keyword sets
// just yield no references.
func (r *Runner) relatedDocs(ctx context.Context, snap *types.Snapshot) []string {
	keywords := triage.DocKeywords(snap.Title, snap.Body)
	if len(keywords) == 0 {
		return nil
	}
	query := fmt.Sprintf("repo:%s path:docs/ %s", r.Repo, strings.Join(keywords, " "))
	items, err := r.API.SearchCode(ctx, query, github.TriagePageSize)
	if err != nil {
		r.log().Warn("related-docs search failed", "issue", snap.Number, "error", err)
		return nil
	}
	var refs []string
	for _, item := range items {
		refs = append(refs, item.HTMLURL)
		if len(refs) == maxDocReferences {
			break
		}
	}
	return refs
}

// duplicateCandidates fetches the open issues the duplicate scan will
// compare titles against, keyed by the issue's own title words. Failures
// degrade to an empty candidate list rather than failing the pass.
func (r *Runner) duplicateCandidates(ctx context.Context, snap *types.Snapshot) []types.Snapshot {
	terms := triage.QueryTerms(snap.Title)
	if len(terms) == 0 {
		return nil
	}
	query := fmt.Sprintf("repo:%s is:issue is:open %s", r.Repo, strings.Join(terms, " "))
	found, err := r.API.SearchIssues(ctx, query, github.TriagePageSize)
	if err != nil {
		r.log().Warn("duplicate search failed", "issue", snap.Number, "error", err)
		return nil
	}
	return github.ToSnapshots(found)
}
