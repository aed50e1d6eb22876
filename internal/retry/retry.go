// Package retry wraps external calls with exponential backoff, jitter, and
// cooperative rate-limit throttling.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Defaults for the retry policy.
const (
	DefaultMaxRetries    = 5
	DefaultBackoffFactor = 2.0
	DefaultBaseDelay     = time.Second

	// jitterMax is the upper bound of the uniform jitter added to every
	// backoff delay so batch runs don't retry in lockstep.
	jitterMax = 2 * time.Second
)

// Policy controls how a family of call sites retries transient failures.
// The zero value uses the defaults above and the default slog logger.
type Policy struct {
	MaxRetries    int
	BackoffFactor float64
	BaseDelay     time.Duration
	Jitter        time.Duration // upper bound of per-attempt jitter
	Log           *slog.Logger
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.BackoffFactor <= 0 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.Jitter <= 0 {
		p.Jitter = jitterMax
	}
	if p.Log == nil {
		p.Log = slog.Default()
	}
	return p
}

// Transienter is implemented by errors that know whether they are worth
// retrying. The client boundary classifies; this package only asks.
type Transienter interface {
	Transient() bool
}

// IsTransient reports whether err is a transient failure (connection error,
// timeout, retryable HTTP status). Permission and validation errors are not
// transient and propagate immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var t Transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, frag := range transientFragments {
		if strings.Contains(errStr, frag) {
			return true
		}
	}
	return false
}

// transientFragments matches transport-level blips that arrive wrapped in
// untyped errors.
var transientFragments = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"timeout",
	"temporarily unavailable",
	"unexpected eof",
	"no such host",
}

// jitteredBackOff implements backoff.BackOff with the delay formula
// baseDelay * factor^(attempt-1) plus uniform jitter in [0, jitterMax).
type jitteredBackOff struct {
	policy  Policy
	attempt int
	lastErr error
}

func (b *jitteredBackOff) NextBackOff() time.Duration {
	b.attempt++
	if b.attempt >= b.policy.MaxRetries {
		return backoff.Stop
	}
	base := float64(b.policy.BaseDelay) * math.Pow(b.policy.BackoffFactor, float64(b.attempt-1))
	delay := time.Duration(base) + time.Duration(rand.Int63n(int64(b.policy.Jitter)))
	b.policy.Log.Warn(fmt.Sprintf("Attempt %d failed: %v. Retrying in %.1fs...", b.attempt, b.lastErr, delay.Seconds()))
	return delay
}

func (b *jitteredBackOff) Reset() {
	b.attempt = 0
}

// Do runs op, retrying transient failures up to MaxRetries total attempts.
// Non-transient errors stop immediately. ctx bounds the whole retry budget,
// including backoff sleeps.
func (p Policy) Do(ctx context.Context, name string, op func() error) error {
	p = p.withDefaults()
	bo := &jitteredBackOff{policy: p}

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		bo.lastErr = err
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		if bo.attempt >= p.MaxRetries {
			p.Log.Error(fmt.Sprintf("Max retries (%d) exceeded for %s", p.MaxRetries, name))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
