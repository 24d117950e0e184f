package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"

	"github.com/bashclaw/bashclaw/internal/store"
)

// searchHorizon bounds how far ahead a cron expression's next tick is
// searched for (spec §4.8: "search up to 1 year ahead").
const searchHorizon = 365 * 24 * time.Hour

// NextRun computes when job is next due, given its schedule kind and
// LastRunAt; a time at or before now means the job is due. ok is false if
// the job will never run again (an "at" schedule that already ran) or the
// schedule string is malformed.
func NextRun(job store.CronJob, now time.Time) (next time.Time, ok bool, err error) {
	switch {
	case strings.HasPrefix(job.Schedule, "at:"):
		return nextAt(job, job.Schedule[len("at:"):])
	case strings.HasPrefix(job.Schedule, "every:"):
		return nextEvery(job, job.Schedule[len("every:"):], now)
	default:
		return nextCron(job.Schedule, job.LastRunAt, now)
	}
}

func nextAt(job store.CronJob, iso string) (time.Time, bool, error) {
	if job.LastRunAt != 0 {
		return time.Time{}, false, nil // one-shot: already ran
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cron: invalid 'at' schedule %q: %w", iso, err)
	}
	return t, true, nil
}

func nextEvery(job store.CronJob, msStr string, now time.Time) (time.Time, bool, error) {
	everyMs, err := strconv.ParseInt(strings.TrimSpace(msStr), 10, 64)
	if err != nil || everyMs <= 0 {
		return time.Time{}, false, fmt.Errorf("cron: invalid 'every' schedule %q", msStr)
	}
	interval := time.Duration(everyMs) * time.Millisecond
	if job.LastRunAt == 0 {
		return now, true, nil
	}
	last := time.UnixMilli(job.LastRunAt)
	return last.Add(interval), true, nil
}

func nextCron(expr string, lastRunAtMs int64, now time.Time) (time.Time, bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return time.Time{}, false, fmt.Errorf("cron: empty schedule expression")
	}
	if !gronx.IsValid(expr) {
		return time.Time{}, false, fmt.Errorf("cron: invalid expression %q", expr)
	}
	// Search from the last run, or from one scheduler tick ago for a job that
	// never ran, so a tick that fell since then is reported as due.
	ref := now.Add(-tickInterval)
	if lastRunAtMs != 0 {
		ref = time.UnixMilli(lastRunAtMs)
	}
	next, err := gronx.NextTickAfter(expr, ref, false)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cron: compute next tick for %q: %w", expr, err)
	}
	if next.Sub(ref) > searchHorizon {
		return time.Time{}, false, nil
	}
	return next, true, nil
}
