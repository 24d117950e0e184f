package cron

import "time"

// backoffSteps are seconds-to-wait indexed by (failureCount-1), capped at the
// last entry (spec §4.8: "steps = [30, 60, 300, 900, 3600] seconds, cap 1h").
var backoffSteps = []int64{30, 60, 300, 900, 3600}

// BackoffFor returns the duration to wait before retrying a job that has
// just failed for the failureCount-th time (failureCount >= 1).
func BackoffFor(failureCount int) time.Duration {
	if failureCount <= 0 {
		return 0
	}
	idx := failureCount - 1
	if idx >= len(backoffSteps) {
		idx = len(backoffSteps) - 1
	}
	return time.Duration(backoffSteps[idx]) * time.Second
}
