package worker

import "time"

// RetryPolicy is an exponential backoff schedule. Attempt numbers are
// 1-based and count retries, not the initial try.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// SyncPolicy is used for sheet mirror tasks.
var SyncPolicy = RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}

// FixedRetry retries n times after the same delay.
func FixedRetry(n int, delay time.Duration) RetryPolicy {
	return RetryPolicy{MaxRetries: n, InitialDelay: delay, MaxDelay: delay, BackoffFactor: 1}
}

// withDefaults fills zero fields from SyncPolicy.
func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries == 0 {
		r.MaxRetries = SyncPolicy.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = SyncPolicy.InitialDelay
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = SyncPolicy.MaxDelay
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = SyncPolicy.BackoffFactor
	}
	return r
}

// Exhausted reports whether attempt is past the last allowed retry.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt > r.MaxRetries
}

// NextDelay is InitialDelay * BackoffFactor^(attempt-1), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	d := float64(initial)
	for i := 1; i < attempt; i++ {
		d *= factor
		if r.MaxDelay > 0 && d >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && time.Duration(d) > r.MaxDelay {
		return r.MaxDelay
	}
	return time.Duration(d)
}
