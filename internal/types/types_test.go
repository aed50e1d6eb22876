package types_test

import (
	"testing"

	"github.com/shepbot/shep/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestPriorityForSeverity(t *testing.T) {
	tests := []struct {
		severity types.Severity
		want     types.Priority
	}{
		{types.SeverityCritical, types.PriorityP0},
		{types.SeverityHigh, types.PriorityP1},
		{types.SeverityMedium, types.PriorityP2},
		{types.SeverityLow, types.PriorityP3},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Equal(t, tt.want, types.PriorityForSeverity[tt.severity])
		})
	}
}

func TestSeverityIsValid(t *testing.T) {
	assert.True(t, types.SeverityCritical.IsValid())
	assert.True(t, types.SeverityLow.IsValid())
	assert.False(t, types.Severity("urgent").IsValid())
	assert.False(t, types.Severity("").IsValid())
}

func TestSnapshotLabels(t *testing.T) {
	snap := &types.Snapshot{
		Number: 7,
		Labels: []string{"Triaged", "needs-info"},
	}

	assert.True(t, snap.HasLabel("Triaged"))
	assert.False(t, snap.HasLabel("triaged"), "label comparison is case-exact")
	assert.True(t, snap.HasAnyLabel("missing", "needs-info"))
	assert.False(t, snap.HasAnyLabel("missing", "also-missing"))
}

func TestSnapshotAssignees(t *testing.T) {
	snap := &types.Snapshot{Assignees: []string{"copilot"}}
	assert.True(t, snap.HasAssignee("copilot"))
	assert.False(t, snap.HasAssignee("human"))
}

func TestSnapshotIsClosed(t *testing.T) {
	assert.True(t, (&types.Snapshot{State: "closed"}).IsClosed())
	assert.False(t, (&types.Snapshot{State: "open"}).IsClosed())
}

func TestActionConstructors(t *testing.T) {
	assert.Equal(t, types.Action{Kind: types.ActionAddLabel, Issue: 1, Label: "Backlog"}, types.AddLabel(1, "Backlog"))
	assert.Equal(t, types.Action{Kind: types.ActionRemoveLabel, Issue: 2, Label: "Triaged"}, types.RemoveLabel(2, "Triaged"))
	assert.Equal(t, types.Action{Kind: types.ActionAssign, Issue: 3, Assignee: "copilot"}, types.Assign(3, "copilot"))
	assert.Equal(t, types.Action{Kind: types.ActionComment, Issue: 4, Body: "hi"}, types.Comment(4, "hi"))
	assert.Equal(t, types.Action{Kind: types.ActionMoveColumn, Issue: 5, ColumnID: 9}, types.MoveColumn(5, 9))
	assert.Equal(t, types.Action{Kind: types.ActionClose, Issue: 6}, types.Close(6))
	assert.Equal(t, types.Action{Kind: types.ActionRetitle, Issue: 7, Title: "t"}, types.Retitle(7, "t"))
}
