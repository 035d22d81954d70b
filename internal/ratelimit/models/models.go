package models

import "time"

// Decision is the outcome of one action rate limit check.
type Decision struct {
	Allowed bool
	// RetryAfter is the remaining wait. Zero when Allowed.
	RetryAfter time.Duration
}

// Allow returns an allowed decision.
func Allow() *Decision {
	return &Decision{Allowed: true}
}

// Reject returns a rejected decision with the remaining wait.
func Reject(retryAfter time.Duration) *Decision {
	return &Decision{Allowed: false, RetryAfter: retryAfter}
}

// RetryAfterSeconds is the user-facing wait in whole seconds.
func (d *Decision) RetryAfterSeconds() int {
	if d == nil || d.Allowed {
		return 0
	}
	return FormatRetrySeconds(d.RetryAfter)
}

// Evaluate applies the minimum-interval rule to the last accepted attempt.
// seen is false when the key was never accepted. A last timestamp in the future
// (clock moved backwards) counts as zero elapsed time.
func Evaluate(last time.Time, seen bool, now time.Time, window time.Duration) *Decision {
	if !seen {
		return Allow()
	}
	elapsed := max(now.Sub(last), 0)
	if elapsed < window {
		return Reject(window - elapsed)
	}
	return Allow()
}

// FormatRetrySeconds rounds a wait up to whole seconds, never below one.
func FormatRetrySeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	secs := int((d + time.Second - 1) / time.Second)
	return max(secs, 1)
}
