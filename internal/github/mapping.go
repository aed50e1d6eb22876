package github

import (
	"time"

	"github.com/shepbot/shep/internal/types"
)

// ToSnapshot converts a wire Issue into the engine's read-only snapshot.
func ToSnapshot(issue *Issue) types.Snapshot {
	snap := types.Snapshot{
		Number:    issue.Number,
		Title:     issue.Title,
		Body:      issue.Body,
		State:     issue.State,
		Labels:    LabelNames(issue.Labels),
		Assignees: assigneeLogins(issue.Assignees),
		URL:       issue.URL,
	}
	if issue.User != nil {
		snap.Author = issue.User.Login
	}
	if issue.CreatedAt != nil {
		snap.CreatedAt = *issue.CreatedAt
	}
	if issue.UpdatedAt != nil {
		snap.UpdatedAt = *issue.UpdatedAt
	}
	return snap
}

// ToSnapshots converts a batch of wire issues.
func ToSnapshots(issues []Issue) []types.Snapshot {
	snaps := make([]types.Snapshot, len(issues))
	for i := range issues {
		snaps[i] = ToSnapshot(&issues[i])
	}
	return snaps
}

func assigneeLogins(users []User) []string {
	if len(users) == 0 {
		return nil
	}
	logins := make([]string, len(users))
	for i, u := range users {
		logins[i] = u.Login
	}
	return logins
}

// EventTime returns the event's creation time or the zero time.
func EventTime(ev *TimelineEvent) time.Time {
	if ev.CreatedAt == nil {
		return time.Time{}
	}
	return *ev.CreatedAt
}
