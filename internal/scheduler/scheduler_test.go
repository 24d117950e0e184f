package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bashclaw/bashclaw/internal/agent"
)

func blockingRun(started, release chan struct{}) RunFunc {
	return func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &agent.RunResult{Content: req.Message}, nil
	}
}

func TestSchedule_SameSessionSerializes(t *testing.T) {
	var running int32
	var maxSeen int32
	run := func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		n := atomic.AddInt32(&running, 1)
		if n > atomic.LoadInt32(&maxSeen) {
			atomic.StoreInt32(&maxSeen, n)
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return &agent.RunResult{Content: req.Message}, nil
	}
	s := NewScheduler(DefaultLanes(), DefaultQueueConfig(), run)

	ch1 := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "one"})
	ch2 := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "two"})

	o1 := <-ch1
	o2 := <-ch2
	if o1.Err != nil || o2.Err != nil {
		t.Fatalf("unexpected errors: %v, %v", o1.Err, o2.Err)
	}
	if atomic.LoadInt32(&maxSeen) != 1 {
		t.Errorf("same-session runs overlapped: maxSeen=%d, want 1", maxSeen)
	}
}

func TestScheduleWithOpts_ModeCollectMerges(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := NewScheduler(DefaultLanes(), QueueConfig{DefaultMode: ModeCollect}, blockingRun(started, release))

	ch1 := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "first"})
	<-started // first run is now active and blocked on release

	ch2 := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "second"})
	ch3 := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "third"})

	// ch3 arrives while ch2 is already the queued follow-up, so it merges
	// into ch2's pending request and reports "collected" immediately.
	o3 := <-ch3
	if o3.Err == nil {
		t.Fatalf("expected ch3 to report collected, got nil error")
	}

	close(release)
	o1 := <-ch1
	if o1.Err != nil {
		t.Fatalf("first run failed: %v", o1.Err)
	}

	o2 := <-ch2
	if o2.Err != nil {
		t.Fatalf("merged run failed: %v", o2.Err)
	}
	if o2.Result.Content != "second\nthird" {
		t.Errorf("merged content = %q, want %q", o2.Result.Content, "second\nthird")
	}
}

func TestCancelOneSession(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	s := NewScheduler(DefaultLanes(), DefaultQueueConfig(), blockingRun(started, release))

	ch := s.Schedule(context.Background(), LaneMain, agent.RunRequest{SessionKey: "agent:a:chat:1", Message: "hi"})
	<-started

	if !s.CancelOneSession("agent:a:chat:1") {
		t.Fatal("expected CancelOneSession to report an active run")
	}
	o := <-ch
	if o.Err == nil {
		t.Error("expected cancellation error, got nil")
	}
	close(release)
}

func TestLaneConcurrencyCap(t *testing.T) {
	var running int32
	var maxSeen int32
	release := make(chan struct{})
	run := func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error) {
		n := atomic.AddInt32(&running, 1)
		if n > atomic.LoadInt32(&maxSeen) {
			atomic.StoreInt32(&maxSeen, n)
		}
		<-release
		atomic.AddInt32(&running, -1)
		return &agent.RunResult{}, nil
	}
	s := NewScheduler(LanesConfig{LaneCron: 1}, DefaultQueueConfig(), run)

	var chans []<-chan Outcome
	for i := 0; i < 3; i++ {
		key := "agent:a:cron:job" + string(rune('0'+i))
		chans = append(chans, s.Schedule(context.Background(), LaneCron, agent.RunRequest{SessionKey: key}))
	}

	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&maxSeen); got != 1 {
		t.Errorf("cron lane allowed %d concurrent runs, want 1", got)
	}
	close(release)
	for _, ch := range chans {
		<-ch
	}
}
