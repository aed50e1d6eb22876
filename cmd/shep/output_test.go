package main

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOutputJSON_Object(t *testing.T) {
	data := map[string]interface{}{
		"event":     "initial_triage",
		"processed": 4,
	}
	got := captureStdout(t, func() error {
		outputJSON(data)
		return nil
	})

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(got), &result); err != nil {
		t.Fatalf("not valid JSON: %v\nGot: %s", err, got)
	}
	if result["event"] != "initial_triage" {
		t.Errorf("got event %v, want \"initial_triage\"", result["event"])
	}
	if result["processed"] != float64(4) {
		t.Errorf("got processed %v, want 4", result["processed"])
	}
	if !strings.Contains(got, "\n  \"event\"") {
		t.Errorf("expected 2-space indented output, got: %s", got)
	}
}

func TestOutputJSON_Array(t *testing.T) {
	data := []map[string]string{
		{"event": "initial_triage"},
		{"event": "grooming"},
	}
	got := captureStdout(t, func() error {
		outputJSON(data)
		return nil
	})

	var result []map[string]string
	if err := json.Unmarshal([]byte(got), &result); err != nil {
		t.Fatalf("not valid JSON array: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 items, got %d", len(result))
	}
}

func TestOutputJSON_Nil(t *testing.T) {
	got := captureStdout(t, func() error {
		outputJSON(nil)
		return nil
	})
	if strings.TrimSpace(got) != "null" {
		t.Errorf("expected \"null\", got: %q", strings.TrimSpace(got))
	}
}
