package main

import (
	"fmt"
	"strconv"

	"github.com/shepbot/shep/internal/runner"
	"github.com/shepbot/shep/internal/ui"
)

// printRunSummary renders the end-of-run accounting. An empty batch
// still prints the block with zeros so CI logs always show one.
func printRunSummary(s *runner.Summary) {
	mode := "live"
	if s.DryRun {
		mode = "dry-run"
	}
	assignments := strconv.Itoa(s.Assignments)
	if s.AssignCap > 0 {
		assignments = fmt.Sprintf("%d of %d", s.Assignments, s.AssignCap)
	}

	fmt.Println()
	fmt.Println(ui.RenderCategory("Run Summary"))
	rows := []struct {
		name  string
		value string
	}{
		{"Mode", mode},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Skipped", strconv.Itoa(s.Skipped)},
		{"Actions", strconv.Itoa(s.Actions)},
		{"Redactions", strconv.Itoa(s.Redactions)},
		{"Assignments", assignments},
		{"Audit entries", strconv.Itoa(s.Entries)},
	}
	for _, row := range rows {
		fmt.Printf("  %-14s %s\n", row.name+":", row.value)
	}
	fmt.Println(ui.RenderSeparator())
	if s.Errors > 0 {
		fmt.Printf("%s %d action(s) failed; details are in the audit notes\n", ui.RenderWarnIcon(), s.Errors)
	} else {
		fmt.Printf("%s no action failures\n", ui.RenderPassIcon())
	}
}
