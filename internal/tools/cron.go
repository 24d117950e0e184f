package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bashclaw/bashclaw/internal/store"
)

// CronTool exposes CRUD over the cron job store (spec §4: cron(action,
// id?, schedule?, prompt?, sessionTarget?)).
type CronTool struct {
	jobs store.CronStore
}

// NewCronTool builds a cron tool backed by jobs.
func NewCronTool(jobs store.CronStore) *CronTool {
	return &CronTool{jobs: jobs}
}

func (t *CronTool) Name() string { return "cron" }
func (t *CronTool) Description() string {
	return "Create, update, delete, or list scheduled jobs that run a prompt on a schedule."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"create", "update", "delete", "list", "get"},
				"description": "Operation to perform",
			},
			"id": map[string]interface{}{
				"type":        "string",
				"description": "Job ID (required for update/delete/get; generated for create if omitted)",
			},
			"schedule": map[string]interface{}{
				"type":        "string",
				"description": `Schedule: "at:<ISO8601>", "every:<milliseconds>", or a 5-field cron expression`,
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Prompt to run when the job fires",
			},
			"sessionTarget": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"main", "isolated"},
				"description": `"main" delivers into the agent's main session; "isolated" runs in its own session (default)`,
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.jobs == nil {
		return ErrorResult("cron store not available")
	}

	action, _ := args["action"].(string)
	id, _ := args["id"].(string)

	switch action {
	case "create", "update":
		return t.upsert(id, args)
	case "delete":
		if id == "" {
			return ErrorResult("id is required for delete")
		}
		if err := t.jobs.Delete(id); err != nil {
			return ErrorResult(fmt.Sprintf("cron delete failed: %v", err))
		}
		return SilentResult(fmt.Sprintf("Deleted cron job %q.", id))
	case "get":
		if id == "" {
			return ErrorResult("id is required for get")
		}
		job, found, err := t.jobs.Get(id)
		if err != nil {
			return ErrorResult(fmt.Sprintf("cron get failed: %v", err))
		}
		if !found {
			return SilentResult(fmt.Sprintf("No cron job %q.", id))
		}
		out, _ := json.Marshal(job)
		return SilentResult(string(out))
	case "list":
		jobs, err := t.jobs.List()
		if err != nil {
			return ErrorResult(fmt.Sprintf("cron list failed: %v", err))
		}
		if len(jobs) == 0 {
			return SilentResult("No cron jobs scheduled.")
		}
		var lines []string
		for _, j := range jobs {
			lines = append(lines, fmt.Sprintf("- %s [%s] %s -> %q", j.ID, j.Schedule, j.SessionTarget, j.Prompt))
		}
		return SilentResult(strings.Join(lines, "\n"))
	default:
		return ErrorResult(fmt.Sprintf("unknown cron action %q", action))
	}
}

func (t *CronTool) upsert(id string, args map[string]interface{}) *Result {
	schedule, _ := args["schedule"].(string)
	prompt, _ := args["prompt"].(string)
	sessionTarget, _ := args["sessionTarget"].(string)
	if sessionTarget == "" {
		sessionTarget = "isolated"
	}

	job := store.CronJob{
		ID:            id,
		Schedule:      schedule,
		Prompt:        prompt,
		SessionTarget: sessionTarget,
		Enabled:       true,
	}

	if job.ID != "" {
		if existing, found, err := t.jobs.Get(job.ID); err == nil && found {
			if schedule == "" {
				job.Schedule = existing.Schedule
			}
			if prompt == "" {
				job.Prompt = existing.Prompt
			}
			job.FailureCount = existing.FailureCount
			job.LastRunAt = existing.LastRunAt
			job.LastResult = existing.LastResult
		}
	} else {
		job.ID = store.GenNewID().String()
	}

	if job.Schedule == "" || job.Prompt == "" {
		return ErrorResult("schedule and prompt are required")
	}

	if err := t.jobs.Upsert(job); err != nil {
		return ErrorResult(fmt.Sprintf("cron upsert failed: %v", err))
	}
	return SilentResult(fmt.Sprintf("Scheduled cron job %q (%s).", job.ID, job.Schedule))
}
