package main

import "testing"

func TestEnvTruthy(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"Yes", true},
		{"", false},
		{"0", false},
		{"false", false},
		{"no", false},
		{"on", false},
	}
	for _, tt := range tests {
		if got := envTruthy(tt.value); got != tt.want {
			t.Errorf("envTruthy(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestResolveToken(t *testing.T) {
	t.Run("SHEP_GITHUB_TOKEN wins", func(t *testing.T) {
		t.Setenv("SHEP_GITHUB_TOKEN", "gh_shep")
		t.Setenv("GITHUB_TOKEN", "gh_actions")
		if got := resolveToken(); got != "gh_shep" {
			t.Errorf("got %q, want \"gh_shep\"", got)
		}
	})

	t.Run("falls back to GITHUB_TOKEN", func(t *testing.T) {
		t.Setenv("SHEP_GITHUB_TOKEN", "")
		t.Setenv("GITHUB_TOKEN", "gh_actions")
		if got := resolveToken(); got != "gh_actions" {
			t.Errorf("got %q, want \"gh_actions\"", got)
		}
	})

	t.Run("empty when neither set", func(t *testing.T) {
		t.Setenv("SHEP_GITHUB_TOKEN", "")
		t.Setenv("GITHUB_TOKEN", "")
		if got := resolveToken(); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestEnvBindings(t *testing.T) {
	t.Run("repository from GITHUB_REPOSITORY", func(t *testing.T) {
		t.Setenv("GITHUB_REPOSITORY", "octo/raptor")
		if got := env.GetString("repo"); got != "octo/raptor" {
			t.Errorf("got %q, want \"octo/raptor\"", got)
		}
	})

	t.Run("rules default", func(t *testing.T) {
		t.Setenv("SHEP_RULES", "")
		if got := env.GetString("rules"); got != defaultTriageRules {
			t.Errorf("got %q, want %q", got, defaultTriageRules)
		}
	})

	t.Run("rules override via SHEP_RULES", func(t *testing.T) {
		t.Setenv("SHEP_RULES", "custom.yml")
		if got := env.GetString("rules"); got != "custom.yml" {
			t.Errorf("got %q, want \"custom.yml\"", got)
		}
	})

	t.Run("issue override via SHEP_ISSUE", func(t *testing.T) {
		t.Setenv("SHEP_ISSUE", "17")
		if got := env.GetInt("issue"); got != 17 {
			t.Errorf("got %d, want 17", got)
		}
	})

	t.Run("dry-run unset is not set", func(t *testing.T) {
		t.Setenv("SHEP_DRY_RUN", "")
		if env.IsSet("dry-run") {
			t.Error("dry-run should not be set without SHEP_DRY_RUN")
		}
	})

	t.Run("dry-run set via SHEP_DRY_RUN", func(t *testing.T) {
		t.Setenv("SHEP_DRY_RUN", "yes")
		if !env.IsSet("dry-run") {
			t.Fatal("dry-run should be set")
		}
		if !envTruthy(env.GetString("dry-run")) {
			t.Error("SHEP_DRY_RUN=yes should read as truthy")
		}
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	origRepo, origRules, origGrooming := repoFlag, rulesPath, groomingRulesPath
	origDry, origDrySet, origIssue := dryRunFlag, dryRunSet, issueFlag
	t.Cleanup(func() {
		repoFlag, rulesPath, groomingRulesPath = origRepo, origRules, origGrooming
		dryRunFlag, dryRunSet, issueFlag = origDry, origDrySet, origIssue
	})

	repoFlag, issueFlag, dryRunFlag, dryRunSet = "", 0, false, false
	t.Setenv("GITHUB_REPOSITORY", "octo/raptor")
	t.Setenv("SHEP_RULES", "team_rules.yml")
	t.Setenv("SHEP_DRY_RUN", "1")
	t.Setenv("SHEP_ISSUE", "42")

	applyEnvOverrides(rootCmd)

	if repoFlag != "octo/raptor" {
		t.Errorf("repoFlag = %q, want \"octo/raptor\"", repoFlag)
	}
	if rulesPath != "team_rules.yml" {
		t.Errorf("rulesPath = %q, want \"team_rules.yml\"", rulesPath)
	}
	if !dryRunFlag || !dryRunSet {
		t.Errorf("dryRunFlag = %v, dryRunSet = %v, want both true", dryRunFlag, dryRunSet)
	}
	if issueFlag != 42 {
		t.Errorf("issueFlag = %d, want 42", issueFlag)
	}
}
