// Package cron implements the scheduler's cron evaluator (spec §4.8): three
// schedule kinds (at/every/5-field expression), exponential backoff on
// failure, and isolated-session cron runs. It does no stuck-run reaping.
package cron

import "time"

// RetryConfig bounds provider-call retries within a single cron run (not to
// be confused with the job-level backoff in backoff.go, which spaces out
// repeated failures of the job itself across scheduler ticks).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig matches the agent loop's provider-retry policy (spec
// §5: up to 3 attempts, jittered exponential backoff starting at 2s).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}
