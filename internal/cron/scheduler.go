package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bashclaw/bashclaw/internal/events"
	"github.com/bashclaw/bashclaw/internal/sessions"
	"github.com/bashclaw/bashclaw/internal/statepath"
	"github.com/bashclaw/bashclaw/internal/store"
)

const (
	tickInterval           = 10 * time.Second
	sessionReapInterval    = 300 * time.Second
	defaultStuckRunTimeout = 2 * time.Hour
	defaultSessionRetain   = 24 * time.Hour
	defaultJobTimeout      = 10 * time.Minute
)

// RunResult is what a job execution produces.
type RunResult struct {
	Content string
}

// IsolatedRunFunc executes prompt under a fresh isolated session key and
// returns its result. Implemented by the agent loop.
type IsolatedRunFunc func(ctx context.Context, sessionKey, prompt string) (RunResult, error)

// Config bounds the scheduler's timeouts, independent of per-run provider
// retries (see RetryConfig).
type Config struct {
	StuckRunTimeout  time.Duration
	SessionRetention time.Duration
	JobTimeout       time.Duration
}

// DefaultConfig matches the spec's defaults (2h StuckRunTimeout, 24h session
// retention, 10min isolated-run timeout). The loop does not read
// StuckRunTimeout.
func DefaultConfig() Config {
	return Config{
		StuckRunTimeout:  defaultStuckRunTimeout,
		SessionRetention: defaultSessionRetain,
		JobTimeout:       defaultJobTimeout,
	}
}

// Scheduler is the single background loop described in spec §4.8: it wakes
// every 10s, reaps stale cron sessions, and dispatches due jobs — either into
// the main agent's event queue or as an isolated run. It does not reap stuck
// runs: Config.StuckRunTimeout is not read.
type Scheduler struct {
	root      statepath.Root
	jobs      store.CronStore
	sessions  store.SessionStore
	eventQ    *events.Queue
	runIsolated IsolatedRunFunc
	agentID   string // agent cron jobs run under; spec's data model carries no per-job agent id
	cfg       Config

	cancel context.CancelFunc
	done   chan struct{}

	lastSessionReap time.Time
}

// New builds a cron Scheduler. runIsolated executes sessionTarget=="isolated"
// jobs; sessionTarget=="main" jobs are delivered through eventQ instead.
func New(root statepath.Root, jobs store.CronStore, sess store.SessionStore, eventQ *events.Queue, agentID string, cfg Config, runIsolated IsolatedRunFunc) *Scheduler {
	return &Scheduler{
		root:        root,
		jobs:        jobs,
		sessions:    sess,
		eventQ:      eventQ,
		runIsolated: runIsolated,
		agentID:     agentID,
		cfg:         cfg,
	}
}

// Start runs the scheduler loop in a background goroutine until ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.lastSessionReap = time.Now()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if time.Since(s.lastSessionReap) >= sessionReapInterval {
		s.reapStaleSessions()
		s.lastSessionReap = time.Now()
	}

	jobs, err := s.jobs.List()
	if err != nil {
		slog.Error("cron: list jobs", "error", err)
		return
	}
	now := time.Now()
	for _, job := range jobs {
		if !job.Enabled {
			continue
		}
		if job.BackoffUntil != 0 && now.UnixMilli() < job.BackoffUntil {
			continue
		}
		next, ok, err := NextRun(job, now)
		if err != nil {
			slog.Warn("cron: bad schedule", "job", job.ID, "error", err)
			continue
		}
		if !ok || next.After(now) {
			continue
		}
		s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job store.CronJob) {
	switch job.SessionTarget {
	case "isolated":
		s.runIsolatedJob(ctx, job)
	default: // "main"
		s.deliverToMain(job)
	}
}

func (s *Scheduler) deliverToMain(job store.CronJob) {
	mainKey := sessions.BuildAgentMainSessionKey(s.agentID, "main")
	text := fmt.Sprintf("[SYSTEM EVENT]\ncron job %q fired: %s", job.ID, job.Prompt)
	if err := s.eventQ.Enqueue(mainKey, text); err != nil {
		slog.Error("cron: enqueue event", "job", job.ID, "error", err)
		return
	}
	s.recordSuccess(job, "delivered to main event queue")
}

func (s *Scheduler) runIsolatedJob(ctx context.Context, job store.CronJob) {
	timeout := s.cfg.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	runID := uuid.NewString()
	sessionKey := sessions.BuildCronSessionKey(s.agentID, job.ID, runID)

	result, err := s.runIsolated(runCtx, sessionKey, job.Prompt)
	if err != nil {
		s.recordFailure(job, err)
		return
	}
	s.recordSuccess(job, result.Content)
}

func (s *Scheduler) recordSuccess(job store.CronJob, result string) {
	job.FailureCount = 0
	job.BackoffUntil = 0
	job.LastRunAt = nowMs()
	job.LastResult = result
	if err := s.jobs.Upsert(job); err != nil {
		slog.Error("cron: save job after success", "job", job.ID, "error", err)
	}
	_ = appendRun(s.root, RunRecord{Ts: nowMs(), JobID: job.ID, Success: true, Result: result})
}

func (s *Scheduler) recordFailure(job store.CronJob, runErr error) {
	job.FailureCount++
	job.LastRunAt = nowMs()
	job.LastResult = runErr.Error()
	job.BackoffUntil = time.Now().Add(BackoffFor(job.FailureCount)).UnixMilli()
	if err := s.jobs.Upsert(job); err != nil {
		slog.Error("cron: save job after failure", "job", job.ID, "error", err)
	}
	_ = appendRun(s.root, RunRecord{Ts: nowMs(), JobID: job.ID, Success: false, Error: runErr.Error()})
}

// reapStaleSessions deletes cron:* sessions whose metadata hasn't been
// touched within cfg.SessionRetention (spec §4.8 session reap).
func (s *Scheduler) reapStaleSessions() {
	retention := s.cfg.SessionRetention
	if retention <= 0 {
		retention = defaultSessionRetain
	}
	infos, err := s.sessions.List("")
	if err != nil {
		slog.Error("cron: list sessions for reap", "error", err)
		return
	}
	cutoff := time.Now().Add(-retention).UnixMilli()
	for _, info := range infos {
		if !sessions.IsCronSession(info.Key) {
			continue
		}
		if info.UpdatedAt >= cutoff {
			continue
		}
		if err := s.sessions.Delete(info.Key); err != nil {
			slog.Warn("cron: reap stale session", "key", info.Key, "error", err)
		}
	}
}
