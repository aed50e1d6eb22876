package retry

import (
	"context"
	"log/slog"
	"time"
)

// MinRemaining is the quota floor: when fewer calls than this remain in the
// rate-limit window, the engine voluntarily waits for the reset.
const MinRemaining = 5

// minResetWait is the shortest cooperative sleep once the floor is hit,
// used when the reset time is unknown, past, or implausibly near.
const minResetWait = 60 * time.Second

// RateLimit is the remaining-quota signal surfaced by an API response.
// Remaining is -1 when the response carried no rate-limit headers.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}

// Low reports whether the remaining quota is known and under the floor.
func (rl RateLimit) Low() bool {
	return rl.Remaining >= 0 && rl.Remaining < MinRemaining
}

// wait returns how long to sleep for the window to reset.
func (rl RateLimit) wait(now time.Time) time.Duration {
	d := rl.Reset.Sub(now)
	if d < minResetWait {
		d = minResetWait
	}
	return d
}

// Throttle blocks until the rate-limit window resets when the remaining
// quota is low. This is cooperative, not preemptive: callers invoke it after
// every successful call so a batch run slows down before hitting the wall.
func Throttle(ctx context.Context, log *slog.Logger, rl RateLimit) error {
	if !rl.Low() {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	wait := rl.wait(time.Now())
	log.Warn("rate limit nearly exhausted, sleeping until reset",
		"remaining", rl.Remaining, "wait", wait.Round(time.Second))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
