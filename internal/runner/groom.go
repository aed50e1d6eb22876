package runner

import (
	"context"
	"fmt"
	"strings"

	"github.com/shepbot/shep/internal/audit"
	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/groom"
)

// Groom runs one grooming pass over every open issue. The engine makes
// its own API writes (or simulates them on dry runs); the runner
// contributes the batch fetch, the per-issue audit entries, and the
// end-of-run persistence.
func (r *Runner) Groom(ctx context.Context) (*Summary, error) {
	s := &Summary{
		Event:     audit.EventGrooming,
		DryRun:    r.Mode.DryRun,
		AssignCap: r.Grooming.Settings.AssignCap(),
	}

	issues, err := r.API.SearchIssues(ctx, GroomQuery(r.Repo), github.MaxPageSize)
	if err != nil {
		return s, fmt.Errorf("failed to query issues: %w", err)
	}
	if len(issues) == 0 {
		fmt.Fprintln(r.out(), "No open issues found.")
		return s, nil
	}
	fmt.Fprintf(r.out(), "Found %d open issues\n", len(issues))

	engine := groom.NewEngine(r.API, r.Grooming, r.Rules.Project, r.Tmpl)
	engine.DryRun = r.Mode.DryRun
	engine.Log = r.log()
	engine.Now = r.Now

	runID := audit.NewRunID()
	state := &groom.RunState{}
	var entries []audit.Entry
	for i := range issues {
		issue := &issues[i]
		snap := github.ToSnapshot(issue)
		fmt.Fprintln(r.out(), "---")
		fmt.Fprintf(r.out(), "Issue #%d: %s\n", snap.Number, snap.Title)
		fmt.Fprintf(r.out(), "Labels: %v\n", snap.Labels)

		o := engine.Process(ctx, issue, state)
		if o == nil {
			s.Skipped++
			continue
		}
		s.Processed++
		s.Actions += len(o.Changed)
		s.Errors += o.Errors
		if len(o.Narration) > 0 {
			prefix := "[live] "
			if r.Mode.DryRun {
				prefix = "[dry-run] "
			}
			fmt.Fprintln(r.out(), prefix+strings.Join(o.Narration, ", "))
		}

		e := audit.NewEntry(audit.EventGrooming, snap.Number, r.now())
		e.RunID = runID
		e.Repo = r.Repo
		e.DryRun = r.Mode.DryRun
		e.ExecutionBranch = r.Mode.Ref
		e.ChangedFields = append(e.ChangedFields, o.Changed...)
		e.Notes = o.Notes
		entries = append(entries, *e)
	}
	s.Assignments = state.CopilotAssigns
	return s, r.persist(entries, s)
}
