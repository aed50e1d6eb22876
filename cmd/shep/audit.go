package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shepbot/shep/internal/audit"
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/ui"
)

var (
	auditLogFlag string
	auditLimit   int
	auditEvent   string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit log entries",
	Long: `Renders the audit log, oldest first. The log path comes from the
triage rules file when one loads, from --log otherwise. Long listings
go through the pager on a terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		path := resolveAuditLogPath()
		store := audit.NewStore(path, 0)
		entries, err := store.Load()
		if err != nil {
			FatalError("%v", err)
		}
		entries = filterEntries(entries, issueFlag, auditEvent)
		if auditLimit > 0 && len(entries) > auditLimit {
			entries = entries[len(entries)-auditLimit:]
		}

		if jsonOutput {
			outputJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Printf("No audit entries in %s\n", path)
			return
		}
		var b strings.Builder
		renderAuditTable(&b, entries)
		if err := ui.ToPager(b.String(), ui.PagerOptions{}); err != nil {
			FatalError("%v", err)
		}
	},
}

// resolveAuditLogPath prefers --log, then the rules file, then the
// compiled-in default.
func resolveAuditLogPath() string {
	if auditLogFlag != "" {
		return auditLogFlag
	}
	if r, err := rules.Load(rulesPath); err == nil {
		return r.AuditLog.LogPath()
	}
	return rules.AuditLogConfig{}.LogPath()
}

func filterEntries(entries []audit.Entry, issue int, event string) []audit.Entry {
	if issue == 0 && event == "" {
		return entries
	}
	var out []audit.Entry
	for _, e := range entries {
		if issue != 0 && e.IssueNumber != issue {
			continue
		}
		if event != "" && e.EventType != event {
			continue
		}
		out = append(out, e)
	}
	return out
}

func renderAuditTable(out io.Writer, entries []audit.Entry) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tISSUE\tMODE\tCHANGED\tNOTES")
	for _, e := range entries {
		mode := "live"
		if e.DryRun {
			mode = "dry-run"
		}
		changed := ui.TruncateSimple(strings.Join(e.ChangedFields, ", "), 40)
		notes := ui.TruncateSimple(strings.TrimSpace(e.Notes), 60)
		fmt.Fprintf(w, "%s\t%s\t#%d\t%s\t%s\t%s\n",
			e.Timestamp, e.EventType, e.IssueNumber, mode, changed, notes)
	}
	_ = w.Flush()
}

func init() {
	auditListCmd.Flags().StringVar(&auditLogFlag, "log", "", "Audit log path (default: from the rules file)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 0, "Show only the most recent N entries")
	auditListCmd.Flags().StringVar(&auditEvent, "event", "", "Show only entries of one event type (initial_triage, grooming)")
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}
