package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shepbot/shep/internal/audit"
	"github.com/shepbot/shep/internal/github"
	"github.com/shepbot/shep/internal/rules"
	"github.com/shepbot/shep/internal/runner"
	"github.com/shepbot/shep/internal/telemetry"
	"github.com/shepbot/shep/internal/templates"
)

// dryRunSet records whether dry-run was forced explicitly, by flag or by
// SHEP_DRY_RUN. Without it the branch protection policy decides.
var dryRunSet bool

// envTruthy reports whether an environment value means "on".
func envTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// resolveToken returns the credential, preferring SHEP_GITHUB_TOKEN over
// the GITHUB_TOKEN that Actions injects into every job.
func resolveToken() string {
	if t := os.Getenv("SHEP_GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GITHUB_TOKEN")
}

// ensureRepo reports whether a repository is configured, printing the
// local-simulation notice when it is not. A missing repository is not an
// error: cron and fork contexts run the binary without one, and the run
// degrades to parsing rules only. Callers return (exit 0) on false.
func ensureRepo(extra ...string) bool {
	if repoFlag != "" {
		return true
	}
	fmt.Println("No GITHUB_REPOSITORY environment — running in local simulation mode")
	for _, line := range extra {
		fmt.Println(line)
	}
	return false
}

// loadTriageRules loads and schema-checks the triage rules. Configuration
// errors are fatal before any issue is touched.
func loadTriageRules() *rules.TriageRules {
	r, err := rules.Load(rulesPath)
	if err != nil {
		fatalConfig(err, fmt.Sprintf("rules file not found at %s", rulesPath), "Pass --rules or set SHEP_RULES")
	}
	if res := r.Validate(); !res.OK() {
		fatalValidation(rulesPath, res)
	}
	return r
}

// loadGroomingRules loads and schema-checks the grooming rules.
func loadGroomingRules() *rules.GroomingRules {
	g, err := rules.LoadGrooming(groomingRulesPath)
	if err != nil {
		fatalConfig(err, fmt.Sprintf("grooming rules file not found at %s", groomingRulesPath), "Pass --grooming-rules or set SHEP_GROOMING_RULES")
	}
	if res := g.Validate(); !res.OK() {
		fatalValidation(groomingRulesPath, res)
	}
	return g
}

func fatalConfig(err error, notFoundMsg, hint string) {
	if jsonOutput {
		outputJSONError(err, "config")
	}
	if errors.Is(err, os.ErrNotExist) {
		FatalErrorWithHint(notFoundMsg, hint)
	}
	FatalError("%v", err)
}

func fatalValidation(path string, res *rules.Result) {
	if jsonOutput {
		outputJSONError(fmt.Errorf("invalid rules in %s: %s", path, strings.Join(res.Errors, "; ")), "validation")
	}
	for _, msg := range res.Errors {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", path, msg)
	}
	os.Exit(1)
}

// announceRules prints the loaded schema version, matching the runner's
// long-standing startup line.
func announceRules(r *rules.TriageRules) {
	if v := r.AuditSchema.Version; v != "" {
		fmt.Printf("Loaded triage rules version: %s\n", v)
	}
}

// resolveCredential validates the token shape and resolves the write
// mode. A malformed token is fatal; a missing one only forces dry-run.
func resolveCredential(r *rules.TriageRules) (string, runner.Mode) {
	token := resolveToken()
	if token == "" {
		fmt.Fprintln(os.Stderr, "No GITHUB_TOKEN present — will operate in dry-run only")
	} else if !runner.ValidToken(token) {
		FatalError("malformed GitHub token (want gh_/github_ prefix or a 40-character classic token)")
	}

	var explicit *bool
	if dryRunSet {
		explicit = &dryRunFlag
	}
	mode := runner.ResolveMode(explicit, token != "", os.Getenv("GITHUB_REF"), r.ExecutionPolicy.Branches())
	fmt.Printf("Dry-run: %v\n", mode.DryRun)
	return token, mode
}

// buildRunner wires the API client, template catalog, and audit store
// into a runner for the resolved mode.
func buildRunner(r *rules.TriageRules, token string, mode runner.Mode) *runner.Runner {
	owner, name, ok := strings.Cut(repoFlag, "/")
	if !ok || owner == "" || name == "" {
		FatalError("invalid repository %q (want owner/name)", repoFlag)
	}
	tmpl, err := templates.NewCatalog(templatePack, r.Templates)
	if err != nil {
		FatalError("%v", err)
	}

	api := telemetry.WrapAPI(github.NewClient(token, owner, name))
	run := runner.New(api, r, tmpl, repoFlag, mode)
	run.Store = audit.NewStore(r.AuditLog.LogPath(), r.AuditLog.MaxEntries)
	run.Issue = issueFlag
	run.Out = os.Stdout
	return run
}
