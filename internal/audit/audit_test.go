package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSanitizeNotes(t *testing.T) {
	cases := []struct {
		name  string
		notes string
		want  string
	}{
		{"email", "My email is user@example.com", Redacted},
		{"ssn", "ssn on file: 123-45-6789", Redacted},
		{"card", "paid with 4111 1111 1111 1111", Redacted},
		{"safe", "needs-info detected; ", "needs-info detected; "},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeNotes(tc.notes); got != tc.want {
				t.Errorf("SanitizeNotes(%q) = %q, want %q", tc.notes, got, tc.want)
			}
		})
	}
}

func TestSanitizedDoesNotMutate(t *testing.T) {
	e := Entry{Notes: "reach me at user@example.com"}
	clean := e.Sanitized()
	if clean.Notes != Redacted {
		t.Errorf("sanitized notes = %q, want %q", clean.Notes, Redacted)
	}
	if e.Notes == Redacted {
		t.Error("Sanitized mutated the receiver")
	}
}

func TestNewEntry(t *testing.T) {
	at := time.Date(2025, 11, 25, 9, 30, 0, 0, time.FixedZone("PST", -8*3600))
	e := NewEntry(EventInitialTriage, 42, at)

	if e.IssueNumber != 42 || e.EventType != EventInitialTriage {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Timestamp != "2025-11-25T17:30:00Z" {
		t.Errorf("timestamp = %q, want UTC seconds with Z suffix", e.Timestamp)
	}
	if e.ChangedFields == nil || len(e.ChangedFields) != 0 {
		t.Errorf("ChangedFields should start as an empty list, got %#v", e.ChangedFields)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 26 {
		t.Errorf("run id length = %d, want 26", len(a))
	}
	if a == b {
		t.Error("consecutive run ids collided")
	}
}

func TestEntryJSONShape(t *testing.T) {
	groom := NewEntry(EventGrooming, 7, time.Now())
	data, err := json.Marshal(groom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"issue_number"`, `"event_type"`, `"dry_run"`, `"changed_fields"`, `"notes"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("grooming entry missing %s: %s", key, data)
		}
	}
	if strings.Contains(string(data), `"severity"`) {
		t.Errorf("grooming entry should omit severity: %s", data)
	}

	tri := NewEntry(EventInitialTriage, 8, time.Now())
	tri.Severity = "high"
	tri.OriginalTitle = "[P0] crash"
	data, err = json.Marshal(tri)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"severity":"high"`) ||
		!strings.Contains(string(data), `"original_title"`) {
		t.Errorf("triage entry missing classification fields: %s", data)
	}
}

func testStore(t *testing.T, maxEntries int) *Store {
	t.Helper()
	s := NewStore(filepath.Join(t.TempDir(), "triage_log.json"), maxEntries)
	return s
}

func entryFor(n int) Entry {
	e := NewEntry(EventInitialTriage, n, time.Date(2025, 11, 25, 0, 0, 0, 0, time.UTC))
	e.Notes = "triaged; "
	return *e
}

func TestAppendCreatesAndSanitizes(t *testing.T) {
	s := testStore(t, 0)

	leaky := entryFor(1)
	leaky.Notes = "reporter is user@example.com"
	if err := s.Append(leaky, entryFor(2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.HasPrefix(string(data), "[\n  {") {
		t.Errorf("log should be an indented JSON array, got prefix %q", string(data[:8]))
	}
	if strings.Contains(string(data), "user@example.com") {
		t.Error("persisted log leaked PII")
	}
	if !strings.Contains(string(data), Redacted) {
		t.Error("persisted log missing redaction marker")
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestAppendPreservesExistingEntries(t *testing.T) {
	s := testStore(t, 0)

	if err := s.Append(entryFor(1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(entryFor(2)); err != nil {
		t.Fatalf("second append: %v", err)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].IssueNumber != 1 || entries[1].IssueNumber != 2 {
		t.Errorf("entries out of order: %d, %d", entries[0].IssueNumber, entries[1].IssueNumber)
	}
	if entries[0].Notes != "triaged; " || entries[0].Timestamp != "2025-11-25T00:00:00Z" {
		t.Errorf("earlier run's entry was modified: %+v", entries[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := testStore(t, 0)
	entries, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if entries != nil {
		t.Errorf("expected empty log, got %d entries", len(entries))
	}
}

func TestLoadCorruptFileStartsFresh(t *testing.T) {
	s := testStore(t, 0)
	if err := os.WriteFile(s.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt log: %v", err)
	}

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("corrupt log should read as empty, got %d", len(entries))
	}

	if err := s.Append(entryFor(1)); err != nil {
		t.Fatalf("append after corrupt: %v", err)
	}
	entries, err = s.Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected fresh log with 1 entry, got %d", len(entries))
	}
}

func TestArchiveRotation(t *testing.T) {
	s := testStore(t, 3)
	s.Now = func() time.Time {
		return time.Date(2025, 11, 25, 12, 0, 0, 0, time.UTC)
	}

	var batch []Entry
	for n := 1; n <= 5; n++ {
		batch = append(batch, entryFor(n))
	}
	if err := s.Append(batch...); err != nil {
		t.Fatalf("append: %v", err)
	}

	live, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(live) != 3 {
		t.Fatalf("live log should keep 3 newest, got %d", len(live))
	}
	if live[0].IssueNumber != 3 || live[2].IssueNumber != 5 {
		t.Errorf("live log kept wrong entries: %d..%d", live[0].IssueNumber, live[2].IssueNumber)
	}

	archivePath := filepath.Join(filepath.Dir(s.Path), "triage_log_20251125_120000.json")
	archived := readFileEntries(archivePath, s.log())
	if len(archived) != 2 {
		t.Fatalf("archive should hold 2 oldest, got %d", len(archived))
	}
	if archived[0].IssueNumber != 1 || archived[1].IssueNumber != 2 {
		t.Errorf("archive holds wrong entries: %d, %d", archived[0].IssueNumber, archived[1].IssueNumber)
	}
}

func TestArchiveMergesWithinSameSecond(t *testing.T) {
	s := testStore(t, 1)
	s.Now = func() time.Time {
		return time.Date(2025, 11, 25, 12, 0, 0, 0, time.UTC)
	}

	if err := s.Append(entryFor(1), entryFor(2)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.Append(entryFor(3)); err != nil {
		t.Fatalf("second append: %v", err)
	}

	archivePath := filepath.Join(filepath.Dir(s.Path), "triage_log_20251125_120000.json")
	archived := readFileEntries(archivePath, s.log())
	if len(archived) != 2 {
		t.Fatalf("same-second rotations should merge, got %d archived", len(archived))
	}
	if archived[0].IssueNumber != 1 || archived[1].IssueNumber != 2 {
		t.Errorf("archive order wrong: %d, %d", archived[0].IssueNumber, archived[1].IssueNumber)
	}

	live, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(live) != 1 || live[0].IssueNumber != 3 {
		t.Fatalf("live log should hold only the newest entry, got %+v", live)
	}
}

func TestAppendNothingIsNoop(t *testing.T) {
	s := testStore(t, 0)
	if err := s.Append(); err != nil {
		t.Fatalf("empty append: %v", err)
	}
	if _, err := os.Stat(s.Path); !os.IsNotExist(err) {
		t.Error("empty append should not create the log file")
	}
}
