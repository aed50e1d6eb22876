package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shepbot/shep/internal/ui"
)

var (
	repoFlag          string
	rulesPath         string
	groomingRulesPath string
	templatePack      string
	dryRunFlag        bool
	issueFlag         int
	jsonOutput        bool
	verboseFlag       bool
	quietFlag         bool
)

const (
	defaultTriageRules   = "triage_rules.yml"
	defaultGroomingRules = "grooming_rules.yml"
)

// env backs flag defaults with the environment. Priority is flags, then
// environment, then compiled-in defaults; applyEnvOverrides does the merge.
var env = viper.New()

func init() {
	env.SetDefault("rules", defaultTriageRules)
	env.SetDefault("grooming-rules", defaultGroomingRules)
	_ = env.BindEnv("repo", "GITHUB_REPOSITORY")
	_ = env.BindEnv("rules", "SHEP_RULES")
	_ = env.BindEnv("grooming-rules", "SHEP_GROOMING_RULES")
	_ = env.BindEnv("templates", "SHEP_TEMPLATES")
	_ = env.BindEnv("dry-run", "SHEP_DRY_RUN")
	_ = env.BindEnv("issue", "SHEP_ISSUE")

	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository slug owner/name (default: $GITHUB_REPOSITORY)")
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", defaultTriageRules, "Path to the triage rules file (default: $SHEP_RULES)")
	rootCmd.PersistentFlags().StringVar(&groomingRulesPath, "grooming-rules", defaultGroomingRules, "Path to the grooming rules file (default: $SHEP_GROOMING_RULES)")
	rootCmd.PersistentFlags().StringVar(&templatePack, "templates", "", "Path to a TOML comment-template pack (default: $SHEP_TEMPLATES)")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Plan actions without writing to GitHub")
	rootCmd.PersistentFlags().IntVar(&issueFlag, "issue", 0, "Process a single issue number instead of the full batch")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	// Add --version flag to root command (same behavior as version subcommand)
	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:   "shep",
	Short: "shep - Issue triage and grooming bot",
	Long: `A shepherd for GitHub issue backlogs. Classifies incoming issues,
enforces backlog gating and label invariants, arbitrates automated
assignment, and records every decision in an audit log.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Handle --version flag on root command
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("shep version %s (%s)\n", Version, Build)
			return
		}
		// No subcommand - show help
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyEnvOverrides(cmd)
		configureLogging()
		ui.ConfigureColor()
	},
}

// applyEnvOverrides merges environment values into flags that weren't
// explicitly set on the command line.
// Priority: flags > env vars > defaults.
func applyEnvOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("repo") && repoFlag == "" {
		repoFlag = env.GetString("repo")
	}
	if !flags.Changed("rules") {
		rulesPath = env.GetString("rules")
	}
	if !flags.Changed("grooming-rules") {
		groomingRulesPath = env.GetString("grooming-rules")
	}
	if !flags.Changed("templates") && templatePack == "" {
		templatePack = env.GetString("templates")
	}
	dryRunSet = flags.Changed("dry-run") || env.IsSet("dry-run")
	if !flags.Changed("dry-run") && env.IsSet("dry-run") {
		dryRunFlag = envTruthy(env.GetString("dry-run"))
	}
	if !flags.Changed("issue") && issueFlag == 0 {
		issueFlag = env.GetInt("issue")
	}
}

// configureLogging installs the process-wide slog handler. The engine and
// runner log through slog; user-facing narration stays on plain stdout.
func configureLogging() {
	level := slog.LevelWarn
	if verboseFlag {
		level = slog.LevelDebug
	}
	if quietFlag {
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
