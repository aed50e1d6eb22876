package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/shepbot/shep/internal/telemetry"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage open issues awaiting classification",
	Long: `Classifies open issues that are not yet triaged: required fields,
PII, duplicates, severity and priority. Applies labels, comments, and
board moves according to the rules file and appends one audit entry per
processed issue. Runs outside the protected branches are forced into
dry-run.`,
	Run: func(cmd *cobra.Command, args []string) {
		r := loadTriageRules()
		announceRules(r)
		if !ensureRepo("Runner exits after parsing rules (no API calls without repository).") {
			return
		}
		token, mode := resolveCredential(r)

		ctx := cmd.Context()
		if err := telemetry.Init(ctx, "shep", Version); err != nil {
			WarnError("telemetry init failed: %v", err)
		}
		defer telemetry.Shutdown(ctx)

		run := buildRunner(r, token, mode)
		start := time.Now()
		s, err := run.Triage(ctx)
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
	rootCmd.AddCommand(triageCmd)
}
