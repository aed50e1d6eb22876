package groom

import (
	"strings"

	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/types"
)

// Timeline event types emitted for coding-agent sessions. Agent failures
// surface as comments from the agent rather than a distinct event type.
const (
	eventWorkStarted  = "copilot_work_started"
	eventWorkFinished = "copilot_work_finished"
	eventCommented    = "commented"
)

// LatestAgentEvent scans an issue's timeline for automated-agent activity
// and returns the newest agent event together with the newest error time.
// The timeline arrives oldest-first, so the last agent event wins. With no
// agent activity the kind is TimelineOther, which reads as "nothing blocks
// an assignment".
func LatestAgentEvent(events []github.TimelineEvent) types.AgentEvent {
	out := types.AgentEvent{Kind: types.TimelineOther}
	for i := range events {
		ev := &events[i]
		kind, ok := classifyEvent(ev)
		if !ok {
			continue
		}
		t := github.EventTime(ev)
		if kind == types.TimelineError && t.After(out.LastErrorTime) {
			out.LastErrorTime = t
		}
		out.Kind = kind
		out.CreatedAt = t
	}
	return out
}

func classifyEvent(ev *github.TimelineEvent) (types.TimelineKind, bool) {
	switch ev.Event {
	case eventWorkStarted:
		return types.TimelineStart, true
	case eventWorkFinished:
		return types.TimelineFinished, true
	case eventCommented:
		if isAgent(ev.Actor) && mentionsError(ev.Body) {
			return types.TimelineError, true
		}
	}
	return types.TimelineOther, false
}

func isAgent(actor *github.User) bool {
	return actor != nil && strings.Contains(strings.ToLower(actor.Login), "copilot")
}

func mentionsError(body string) bool {
	return strings.Contains(strings.ToLower(body), "error")
}
