// Package scheduler implements the dual-layer queue engine: a typed global
// lane (bounding how many runs of a given kind execute concurrently across
// the whole process) wrapping a per-session queue (serializing runs that
// share a session key, per one of five queue modes).
package scheduler

import (
	"context"
	"sync"

	"github.com/bashclaw/bashclaw/internal/agent"
)

// Lane names a global concurrency pool. Runs in different lanes never
// compete for each other's slots.
type Lane string

const (
	LaneMain     Lane = "main"
	LaneCron     Lane = "cron"
	LaneSubagent Lane = "subagent"
	LaneDelegate Lane = "delegate" // nested/delegated runs spawned by another run; unbounded by default
)

// QueueMode controls what happens when a new run is scheduled for a session
// key that already has an active or backlogged run.
type QueueMode string

const (
	// ModeFollowup queues the new run behind the active one; it runs once
	// the active run completes, in arrival order.
	ModeFollowup QueueMode = "followup"
	// ModeCollect merges the new message into the single pending follow-up
	// run instead of queuing a second one, so rapid-fire messages coalesce
	// into one turn.
	ModeCollect QueueMode = "collect"
	// ModeInterrupt cancels the active run and starts the new one immediately.
	ModeInterrupt QueueMode = "interrupt"
	// ModeSteer is handled as ModeFollowup: RunFunc offers no way to inject
	// a message into an in-flight run, so no steering takes place.
	ModeSteer QueueMode = "steer"
	// ModeSteerBacklog is handled as ModeCollect for the same reason (and as
	// ModeFollowup once the session nears its context limit).
	ModeSteerBacklog QueueMode = "steer-backlog"
)

// LanesConfig caps concurrent runs per lane. A cap of 0 means unbounded.
type LanesConfig map[Lane]int

// DefaultLanes returns the spec's default lane concurrency caps: main=4,
// cron=1 (a job never overlaps itself or another job), subagent=8,
// delegate=0 (unbounded — delegation chains nest arbitrarily deep).
func DefaultLanes() LanesConfig {
	return LanesConfig{
		LaneMain:     4,
		LaneCron:     1,
		LaneSubagent: 8,
		LaneDelegate: 0,
	}
}

// QueueConfig holds process-wide queue defaults.
type QueueConfig struct {
	DefaultMode QueueMode
	// SteerTokenRatio: above this fraction of a session's context window,
	// ModeCollect degrades to ModeFollowup so merged messages don't push a
	// session straight into compaction mid-merge.
	SteerTokenRatio float64
}

// DefaultQueueConfig returns followup as the default mode (the conservative
// choice — nothing is dropped or raced) and a 0.85 collect/steer guard
// ratio.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{DefaultMode: ModeFollowup, SteerTokenRatio: 0.85}
}

// ScheduleOpts customizes one Schedule call.
type ScheduleOpts struct {
	MaxConcurrent int       // per-lane override for this call; 0 = use the lane's configured cap
	Mode          QueueMode // per-call queue mode override; "" = scheduler's configured default
}

// RunFunc executes one agent turn to completion.
type RunFunc func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error)

// Outcome is delivered on a Schedule call's return channel exactly once.
type Outcome struct {
	Result *agent.RunResult
	Err    error
}

type laneSlot struct {
	slots chan struct{} // nil == unbounded
}

func newLaneSlot(cap int) *laneSlot {
	if cap <= 0 {
		return &laneSlot{}
	}
	return &laneSlot{slots: make(chan struct{}, cap)}
}

func (l *laneSlot) acquire(ctx context.Context) error {
	if l.slots == nil {
		return nil
	}
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *laneSlot) release() {
	if l.slots == nil {
		return
	}
	<-l.slots
}

// pendingRun is one queued-behind-an-active-run request.
type pendingRun struct {
	ctx    context.Context
	req    agent.RunRequest
	outCh  chan Outcome
	cancel context.CancelFunc
}

// sessionQueue serializes runs sharing one session key.
type sessionQueue struct {
	mu             sync.Mutex
	active         bool
	cancels        []context.CancelFunc // oldest-first; /stop cancels index 0, /stopall cancels all
	pending        []*pendingRun
	abortRequested bool // set by ModeInterrupt, consumed by CheckAbort
}

// Scheduler is the process-wide dual-layer queue engine.
type Scheduler struct {
	lanesCfg LanesConfig
	queueCfg QueueConfig
	run      RunFunc

	mu    sync.Mutex
	lanes map[Lane]*laneSlot

	sessMu   sync.Mutex
	sessions map[string]*sessionQueue

	tokenEstimate func(sessionKey string) (estimatedTokens int, contextWindow int)

	stopOnce sync.WaitGroup
}

// NewScheduler builds a Scheduler with the given lane caps and queue
// defaults, dispatching accepted runs through run.
func NewScheduler(lanesCfg LanesConfig, queueCfg QueueConfig, run RunFunc) *Scheduler {
	lanes := make(map[Lane]*laneSlot, len(lanesCfg))
	for lane, n := range lanesCfg {
		lanes[lane] = newLaneSlot(n)
	}
	return &Scheduler{
		lanesCfg: lanesCfg,
		queueCfg: queueCfg,
		run:      run,
		lanes:    lanes,
		sessions: make(map[string]*sessionQueue),
	}
}

// SetTokenEstimateFunc installs the adaptive-throttle hook: given a session
// key, it returns the session's estimated prompt tokens and its agent's
// context window, used to demote ModeCollect to ModeFollowup as a session
// nears its compaction threshold.
func (s *Scheduler) SetTokenEstimateFunc(f func(string) (int, int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenEstimate = f
}

func (s *Scheduler) laneFor(lane Lane, override int) *laneSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lanes[lane]; ok && override == 0 {
		return l
	}
	l := newLaneSlot(override)
	s.lanes[lane] = l
	return l
}

// Schedule enqueues req onto lane with the scheduler's default queue mode.
func (s *Scheduler) Schedule(ctx context.Context, lane Lane, req agent.RunRequest) <-chan Outcome {
	return s.ScheduleWithOpts(ctx, string(lane), req, ScheduleOpts{})
}

// ScheduleWithOpts enqueues req onto the named lane, applying a per-call
// concurrency override and/or queue-mode override.
func (s *Scheduler) ScheduleWithOpts(ctx context.Context, lane string, req agent.RunRequest, opts ScheduleOpts) <-chan Outcome {
	outCh := make(chan Outcome, 1)
	mode := opts.Mode
	if mode == "" {
		mode = s.queueCfg.DefaultMode
	}
	mode = s.degradeModeIfNearLimit(req.SessionKey, mode)

	runCtx, cancel := context.WithCancel(ctx)

	sq := s.sessionFor(req.SessionKey)
	sq.mu.Lock()
	if !sq.active {
		sq.active = true
		sq.cancels = append(sq.cancels, cancel)
		sq.mu.Unlock()
		go s.execute(runCtx, Lane(lane), opts.MaxConcurrent, req, outCh, sq)
		return outCh
	}

	// A run is already active for this session: apply the queue mode.
	switch mode {
	case ModeInterrupt:
		// Cancel the active run; its goroutine will observe ctx.Done(), report
		// a cancellation Outcome on its own channel, and drain the next
		// pending entry (this one) on completion.
		if len(sq.cancels) > 0 {
			sq.cancels[0]()
		}
		sq.abortRequested = true
		pr := &pendingRun{ctx: runCtx, req: req, outCh: outCh, cancel: cancel}
		sq.pending = append([]*pendingRun{pr}, sq.pending...) // front of the line
		sq.mu.Unlock()

	case ModeCollect:
		if n := len(sq.pending); n > 0 {
			// Merge into the most recently queued pending run instead of
			// growing the backlog.
			last := sq.pending[n-1]
			last.req.Message = last.req.Message + "\n" + req.Message
			if len(req.Media) > 0 {
				last.req.Media = append(last.req.Media, req.Media...)
			}
			cancel() // this call's own context is no longer needed
			sq.mu.Unlock()
			outCh <- Outcome{Result: &agent.RunResult{Content: ""}, Err: errCollected}
			close(outCh)
			return outCh
		}
		pr := &pendingRun{ctx: runCtx, req: req, outCh: outCh, cancel: cancel}
		sq.pending = append(sq.pending, pr)
		sq.mu.Unlock()

	case ModeSteer, ModeSteerBacklog:
		// No agent-loop hook exists to inject a message into an in-flight
		// run (RunFunc only exposes full-turn execution), so steering
		// degrades to the mode it would otherwise be nearest to.
		fallback := ModeFollowup
		if mode == ModeSteerBacklog {
			fallback = ModeCollect
		}
		sq.mu.Unlock()
		return s.ScheduleWithOpts(ctx, lane, req, ScheduleOpts{MaxConcurrent: opts.MaxConcurrent, Mode: fallback})

	default: // ModeFollowup
		pr := &pendingRun{ctx: runCtx, req: req, outCh: outCh, cancel: cancel}
		sq.pending = append(sq.pending, pr)
		sq.mu.Unlock()
	}

	return outCh
}

// errCollected is a sentinel carried on the Outcome of a call whose message
// was merged into another pending run rather than executed on its own.
var errCollected = collectedError{}

type collectedError struct{}

func (collectedError) Error() string { return "message collected into a pending follow-up run" }

func (s *Scheduler) degradeModeIfNearLimit(sessionKey string, mode QueueMode) QueueMode {
	if mode != ModeCollect && mode != ModeSteerBacklog {
		return mode
	}
	s.mu.Lock()
	f := s.tokenEstimate
	ratio := s.queueCfg.SteerTokenRatio
	s.mu.Unlock()
	if f == nil {
		return mode
	}
	tokens, window := f(sessionKey)
	if window <= 0 {
		return mode
	}
	if float64(tokens)/float64(window) >= ratio {
		if mode == ModeCollect {
			return ModeFollowup
		}
		return ModeSteer
	}
	return mode
}

func (s *Scheduler) sessionFor(key string) *sessionQueue {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	sq, ok := s.sessions[key]
	if !ok {
		sq = &sessionQueue{}
		s.sessions[key] = sq
	}
	return sq
}

// execute acquires the lane slot, runs req, delivers the Outcome, releases
// the slot, and then drains the session's next pending run (if any).
func (s *Scheduler) execute(ctx context.Context, lane Lane, maxConcurrent int, req agent.RunRequest, outCh chan Outcome, sq *sessionQueue) {
	slot := s.laneFor(lane, maxConcurrent)
	if err := slot.acquire(ctx); err != nil {
		outCh <- Outcome{Err: err}
		close(outCh)
		s.finishAndDrain(lane, sq)
		return
	}
	defer slot.release()

	result, err := s.run(ctx, req)
	outCh <- Outcome{Result: result, Err: err}
	close(outCh)

	s.finishAndDrain(lane, sq)
}

func (s *Scheduler) finishAndDrain(lane Lane, sq *sessionQueue) {
	sq.mu.Lock()
	// Drop the cancel func for the run that just finished.
	if len(sq.cancels) > 0 {
		sq.cancels = sq.cancels[1:]
	}
	if len(sq.pending) == 0 {
		sq.active = false
		sq.mu.Unlock()
		return
	}
	next := sq.pending[0]
	sq.pending = sq.pending[1:]
	sq.cancels = append(sq.cancels, next.cancel)
	sq.mu.Unlock()

	go s.execute(next.ctx, lane, 0, next.req, next.outCh, sq)
}

// CancelOneSession cancels the oldest active run for key, returning true if
// one was active. Used by the /stop command.
func (s *Scheduler) CancelOneSession(key string) bool {
	s.sessMu.Lock()
	sq, ok := s.sessions[key]
	s.sessMu.Unlock()
	if !ok {
		return false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if len(sq.cancels) == 0 {
		return false
	}
	sq.cancels[0]()
	return true
}

// CancelSession cancels every active and pending run for key and drops its
// backlog, returning true if anything was cancelled. Used by /stopall.
func (s *Scheduler) CancelSession(key string) bool {
	s.sessMu.Lock()
	sq, ok := s.sessions[key]
	s.sessMu.Unlock()
	if !ok {
		return false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	cancelled := len(sq.cancels) > 0 || len(sq.pending) > 0
	for _, c := range sq.cancels {
		c()
	}
	for _, p := range sq.pending {
		p.cancel()
		p.outCh <- Outcome{Err: context.Canceled}
		close(p.outCh)
	}
	sq.pending = nil
	return cancelled
}

// IsBusy reports whether key has an active run.
func (s *Scheduler) IsBusy(key string) bool {
	s.sessMu.Lock()
	sq, ok := s.sessions[key]
	s.sessMu.Unlock()
	if !ok {
		return false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return sq.active
}

// Stop is a no-op placeholder for graceful-shutdown symmetry with the rest
// of the gateway's service lifecycle; in-flight runs are left to finish or
// be cancelled by the caller's own context.
func (s *Scheduler) Stop() {}

// DualEnqueue is the canonical two-layer enqueue operation named in spec
// §4.4: acquire the session lock, then a lane slot, run the turn, release
// both in reverse order. It is Schedule's spec-facing name, kept distinct so
// call sites can name the operation the way the design doc does.
func (s *Scheduler) DualEnqueue(ctx context.Context, sessionKey string, lane Lane, req agent.RunRequest) <-chan Outcome {
	req.SessionKey = sessionKey
	return s.Schedule(ctx, lane, req)
}

// HandleBusy classifies what would happen to a message arriving for
// sessionKey under mode, per the §4.4 queue-mode table, without submitting a
// run. Schedule/ScheduleWithOpts perform the actual enqueue and apply the
// same degradation rule (ModeCollect falling back to ModeFollowup near the
// compaction threshold); this is exposed for callers — status surfaces,
// transport acks — that need the classification alone.
func (s *Scheduler) HandleBusy(sessionKey string, mode QueueMode) string {
	if !s.IsBusy(sessionKey) {
		return ""
	}
	switch s.degradeModeIfNearLimit(sessionKey, mode) {
	case ModeInterrupt:
		return "interrupted"
	case ModeCollect:
		return "collected"
	default:
		return "queued"
	}
}

// DrainPending returns the message text of every run currently queued behind
// the active run for sessionKey, oldest first. The scheduler drains and
// executes these itself as the active run completes; this accessor lets
// callers (e.g. a status endpoint) observe the backlog without consuming it.
func (s *Scheduler) DrainPending(sessionKey string) []string {
	s.sessMu.Lock()
	sq, ok := s.sessions[sessionKey]
	s.sessMu.Unlock()
	if !ok {
		return nil
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	out := make([]string, len(sq.pending))
	for i, p := range sq.pending {
		out[i] = p.req.Message
	}
	return out
}

// CheckAbort reports and clears the interrupt marker for sessionKey, set
// when ModeInterrupt preempts an in-flight run. The agent loop calls this
// between tool iterations (spec §4.7 step 8) to exit early; the marker is
// consumed exactly once.
func (s *Scheduler) CheckAbort(sessionKey string) bool {
	s.sessMu.Lock()
	sq, ok := s.sessions[sessionKey]
	s.sessMu.Unlock()
	if !ok {
		return false
	}
	sq.mu.Lock()
	defer sq.mu.Unlock()
	v := sq.abortRequested
	sq.abortRequested = false
	return v
}
