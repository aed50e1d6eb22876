// Package lockfile serializes multi-process access to on-disk state with
// advisory file locks. The audit log is read-modify-written by every run,
// and two runs racing that cycle would drop entries; an exclusive lock on a
// sidecar file makes the cycle atomic across processes. Locks are advisory
// and release automatically when the holding process exits.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLockBusy is returned by the non-blocking acquire variants when another
// process holds a conflicting lock.
var ErrLockBusy = errors.New("lock already held by another process")

// Lock is a held advisory lock. Release it with Release; it is also
// released by the kernel if the process dies while holding it.
type Lock struct {
	f    *os.File
	path string
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Acquire takes an exclusive lock on path, blocking until the lock is
// free. The lock file is created if absent and is stamped with the owner
// pid for diagnostics.
func Acquire(path string) (*Lock, error) {
	f, err := openLockFile(path)
	if err != nil {
		return nil, err
	}
	if err := FlockExclusiveBlocking(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	stampOwner(f)
	return &Lock{f: f, path: path}, nil
}

// TryAcquire is Acquire without blocking. When the lock is held elsewhere
// it returns an error wrapping ErrLockBusy that names the holder when the
// owner stamp is readable.
func TryAcquire(path string) (*Lock, error) {
	f, err := openLockFile(path)
	if err != nil {
		return nil, err
	}
	if err := FlockExclusiveNonBlock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			if owner, rerr := ReadOwner(path); rerr == nil && owner.PID > 0 {
				return nil, fmt.Errorf("%s held by pid %d since %s: %w",
					path, owner.PID, owner.StartedAt.Format(time.RFC3339), ErrLockBusy)
			}
			return nil, fmt.Errorf("%s: %w", path, ErrLockBusy)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	stampOwner(f)
	return &Lock{f: f, path: path}, nil
}

// TryShared takes a shared lock without blocking. Readers hold shared
// locks so a writer's read-modify-write cycle waits for in-flight reads;
// ErrLockBusy means a writer currently holds the exclusive lock.
func TryShared(path string) (*Lock, error) {
	f, err := openLockFile(path)
	if err != nil {
		return nil, err
	}
	if err := FlockSharedNonBlock(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			return nil, fmt.Errorf("%s: %w", path, ErrLockBusy)
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Lock{f: f, path: path}, nil
}

// Release drops the lock and closes the file. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := FlockUnlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("unlocking %s: %w", l.path, unlockErr)
	}
	return closeErr
}

// Owner is the stamp an exclusive holder leaves in the lock file. It is
// purely diagnostic: the flock itself, not the stamp, is the lock.
type Owner struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// ReadOwner reports who holds, or last held, the lock at path.
func ReadOwner(path string) (*Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	var owner Owner
	if err := json.Unmarshal(data, &owner); err != nil {
		return nil, fmt.Errorf("parsing lock file %s: %w", path, err)
	}
	return &owner, nil
}

func openLockFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	return f, nil
}

// stampOwner best-effort records the holder. Errors are ignored: a missing
// stamp only degrades the busy message, never the lock.
func stampOwner(f *os.File) {
	data, err := json.Marshal(Owner{PID: os.Getpid(), StartedAt: time.Now().UTC()})
	if err != nil {
		return
	}
	if err := f.Truncate(0); err != nil {
		return
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return
	}
	_ = f.Sync()
}
