package cmd

import (
	"context"
	"fmt"

	"github.com/bashclaw/bashclaw/internal/agent"
	"github.com/bashclaw/bashclaw/internal/cron"
	"github.com/bashclaw/bashclaw/internal/scheduler"
)

// makeCronRunFunc builds the IsolatedRunFunc the cron scheduler invokes for
// sessionTarget=="isolated" jobs, routing the run through the agent
// scheduler's cron lane so a cron job shares the same per-session
// concurrency control and /stop handling as every other agent turn
// (DefaultLanes reserves one cron slot).
func makeCronRunFunc(sched *scheduler.Scheduler) cron.IsolatedRunFunc {
	return func(ctx context.Context, sessionKey, prompt string) (cron.RunResult, error) {
		outCh := sched.Schedule(ctx, scheduler.LaneCron, agent.RunRequest{
			SessionKey: sessionKey,
			Message:    prompt,
			Channel:    "cron",
			ChatID:     sessionKey,
			RunID:      fmt.Sprintf("cron:%s", sessionKey),
			TraceName:  "cron " + sessionKey,
			TraceTags:  []string{"cron"},
		})

		outcome := <-outCh
		if outcome.Err != nil {
			return cron.RunResult{}, outcome.Err
		}
		return cron.RunResult{Content: outcome.Result.Content}, nil
	}
}
