package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shepbot/shep/internal/lockfile"
)

// archiveStamp names archive files down to the second.
const archiveStamp = "20060102_150405"

// Store persists audit entries as a single JSON array. Writes are atomic
// (temp file + rename) and the read-modify-write cycle holds an exclusive
// lock on a sidecar file, so concurrent runs serialize instead of dropping
// each other's entries.
type Store struct {
	Path string
	// MaxEntries bounds the live log; zero or negative means unbounded.
	// Overflow is archived, oldest first, to a timestamped file next to
	// the log.
	MaxEntries int
	Log        *slog.Logger

	// Now is a test seam; nil means time.Now.
	Now func() time.Time
}

// NewStore returns a store over the given log path.
func NewStore(path string, maxEntries int) *Store {
	return &Store{Path: path, MaxEntries: maxEntries, Log: slog.Default()}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Store) lockPath() string {
	return s.Path + ".lock"
}

// Load reads the audit log. A missing or corrupt file reads as empty; a
// corrupt file is logged. Readers take a shared lock when one is free and
// fall back to a lock-free read while a writer holds the exclusive lock,
// which is safe because writes replace the file atomically.
func (s *Store) Load() ([]Entry, error) {
	if lk, err := lockfile.TryShared(s.lockPath()); err == nil {
		defer func() { _ = lk.Release() }()
	} else if !errors.Is(err, lockfile.ErrLockBusy) {
		s.log().Warn("audit log read lock unavailable", "error", err)
	}
	return s.read()
}

// Append sanitizes the given entries and persists them at the end of the
// log under an exclusive lock.
func (s *Store) Append(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	lk, err := lockfile.Acquire(s.lockPath())
	if err != nil {
		return fmt.Errorf("locking audit log: %w", err)
	}
	defer func() { _ = lk.Release() }()

	existing, err := s.read()
	if err != nil {
		return err
	}

	combined := make([]Entry, 0, len(existing)+len(entries))
	combined = append(combined, existing...)
	for _, e := range entries {
		combined = append(combined, e.Sanitized())
	}

	if s.MaxEntries > 0 && len(combined) > s.MaxEntries {
		cut := len(combined) - s.MaxEntries
		if err := s.archive(combined[:cut]); err != nil {
			return err
		}
		combined = combined[cut:]
	}

	return writeEntries(s.Path, combined)
}

// ArchivePattern returns the glob matching this store's archive files.
func (s *Store) ArchivePattern() string {
	base := strings.TrimSuffix(s.Path, filepath.Ext(s.Path))
	return base + "_*" + filepath.Ext(s.Path)
}

func (s *Store) archivePath() string {
	base := strings.TrimSuffix(s.Path, filepath.Ext(s.Path))
	stamp := s.now().UTC().Format(archiveStamp)
	return base + "_" + stamp + filepath.Ext(s.Path)
}

// archive moves overflow entries into a timestamped file. Two rotations in
// the same second merge into one archive rather than overwriting.
func (s *Store) archive(overflow []Entry) error {
	path := s.archivePath()
	existing := readFileEntries(path, s.log())
	all := append(existing, overflow...)
	if err := writeEntries(path, all); err != nil {
		return fmt.Errorf("archiving audit entries: %w", err)
	}
	s.log().Info("archived audit entries", "count", len(overflow), "archive", path)
	return nil
}

func (s *Store) read() ([]Entry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log().Warn("audit log corrupt, starting fresh", "path", s.Path, "error", err)
		return nil, nil
	}
	return entries, nil
}

// readFileEntries is the tolerant read used for archive files.
func readFileEntries(path string, log *slog.Logger) []Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn("archive file corrupt, overwriting", "path", path, "error", err)
		return nil
	}
	return entries
}

// writeEntries replaces path with the serialized entries atomically: the
// JSON lands in a temp file in the same directory, then renames over the
// target. A crash mid-write leaves the previous log intact.
func writeEntries(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling audit log: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp audit log: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(fmt.Errorf("writing temp audit log: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(fmt.Errorf("syncing temp audit log: %w", err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp audit log: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("setting audit log mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing audit log: %w", err)
	}
	return nil
}
