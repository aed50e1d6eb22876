package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shepbot/shep/internal/telemetry"
)

var groomCmd = &cobra.Command{
	Use:   "groom",
	Short: "Groom the open backlog",
	Long: `Runs the grooming ladder over every open issue: stale handling,
needs-info and needs-work assignment under the per-run cap, backlog
label-pair moves, and workflow transitions. Project board wiring comes
from the triage rules; grooming behavior from the grooming rules.`,
	Run: func(cmd *cobra.Command, args []string) {
		r := loadTriageRules()
		g := loadGroomingRules()
		announceRules(r)
		if !ensureRepo() {
			return
		}
		token, mode := resolveCredential(r)

		ctx := cmd.Context()
		if err := telemetry.Init(ctx, "shep", Version); err != nil {
			WarnError("telemetry init failed: %v", err)
		}
		defer telemetry.Shutdown(ctx)

		run := buildRunner(r, token, mode)
		run.Grooming = g
		start := time.Now()
		s, err := run.Groom(ctx)
		telemetry.RecordRun(ctx, s, time.Since(start))
		if err != nil {
			telemetry.Shutdown(ctx)
			FatalError("%v", err)
		}

		if jsonOutput {
			outputJSON(s)
			return
		}
		printRunSummary(s)
	},
}

func init() {
	rootCmd.AddCommand(groomCmd)
}
