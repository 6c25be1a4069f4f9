// Package retry defines the two-class error taxonomy every stage boundary in
// this repo classifies failures into, plus the bounded full-jitter backoff
// loop used wherever spec.md calls for retrying a publish or an outbound call.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/clinicore/scribeflow/internal/config"
	"github.com/clinicore/scribeflow/internal/logger"
)

// RetryableError signals a transient failure (timeout, 5xx, 429, unknown
// upstream state): the caller should retry with backoff. Surfaces as 503/500
// at a worker boundary.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("retryable: %s", e.Op)
	}
	return fmt.Sprintf("retryable: %s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

func Retryable(op string, err error) *RetryableError {
	return &RetryableError{Op: op, Err: err}
}

// PermanentError signals a failure that will never succeed on retry (4xx,
// schema violation, missing required input). Surfaces as 422/400.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("permanent: %s", e.Op)
	}
	return fmt.Sprintf("permanent: %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(op string, err error) *PermanentError {
	return &PermanentError{Op: op, Err: err}
}

func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// Policy configures the bounded full-jitter exponential backoff used around
// publish/enqueue/outbound calls, matching the original's tenacity
// wait_random_exponential(base, cap) + stop_after_attempt/stop_after_delay.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		MaxAttempts: 5,
		MaxElapsed:  30 * time.Second,
	}
}

// PolicyFromEnv loads the retry knobs spec.md §6 lists as operator-tunable
// config (`MAX_RETRIES`, `BACKOFF_BASE_MS`, `BACKOFF_CAP_MS`,
// `RETRY_BUDGET_S`), falling back to DefaultPolicy's values for any unset key.
func PolicyFromEnv(log *logger.Logger) Policy {
	def := DefaultPolicy()
	return Policy{
		BaseDelay:   time.Duration(config.GetEnvAsInt("BACKOFF_BASE_MS", int(def.BaseDelay/time.Millisecond), log)) * time.Millisecond,
		MaxDelay:    time.Duration(config.GetEnvAsInt("BACKOFF_CAP_MS", int(def.MaxDelay/time.Millisecond), log)) * time.Millisecond,
		MaxAttempts: config.GetEnvAsInt("MAX_RETRIES", def.MaxAttempts, log),
		MaxElapsed:  time.Duration(config.GetEnvAsInt("RETRY_BUDGET_S", int(def.MaxElapsed/time.Second), log)) * time.Second,
	}
}

// Do runs fn, retrying only on RetryableError until the policy's attempt or
// elapsed-time budget is exhausted. A PermanentError (or any other error)
// returns immediately without retrying.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < max(policy.MaxAttempts, 1); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if time.Since(start) >= policy.MaxElapsed {
			return lastErr
		}
		delay := backoff(policy, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// backoff implements full-jitter exponential backoff: a uniform random
// duration in [0, min(cap, base*2^attempt)], both ends included.
func backoff(policy Policy, attempt int) time.Duration {
	cap := policy.MaxDelay
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if cap <= 0 {
		cap = 10 * time.Second
	}
	upper := base * time.Duration(1<<uint(min(attempt, 20)))
	if upper <= 0 || upper > cap {
		upper = cap
	}
	return time.Duration(rand.Int63n(int64(upper) + 1))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
