package tools

import (
	"context"
	"fmt"
)

// AgentMessageFunc invokes another configured agent's loop with message as
// a one-off subagent turn (restricted tools, no workspace) and returns its
// final response. It is supplied by the caller that owns the agent router,
// since internal/tools cannot import internal/agent without a cycle.
type AgentMessageFunc func(ctx context.Context, targetAgent, message, fromAgent string) (string, error)

// AgentMessageTool exposes inter-agent messaging (spec §4: agent_message).
type AgentMessageTool struct {
	invoke AgentMessageFunc
}

// NewAgentMessageTool builds an agent_message tool backed by invoke.
func NewAgentMessageTool(invoke AgentMessageFunc) *AgentMessageTool {
	return &AgentMessageTool{invoke: invoke}
}

func (t *AgentMessageTool) Name() string { return "agent_message" }
func (t *AgentMessageTool) Description() string {
	return "Send a message to another configured agent and return its response."
}

func (t *AgentMessageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"target_agent": map[string]interface{}{
				"type":        "string",
				"description": "ID of the agent to message",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "Message to send",
			},
			"from_agent": map[string]interface{}{
				"type":        "string",
				"description": "ID of the sending agent (defaults to the current agent)",
			},
		},
		"required": []string{"target_agent", "message"},
	}
}

func (t *AgentMessageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.invoke == nil {
		return ErrorResult("agent messaging not available")
	}

	target, _ := args["target_agent"].(string)
	message, _ := args["message"].(string)
	if target == "" || message == "" {
		return ErrorResult("target_agent and message are required")
	}

	fromAgent, _ := args["from_agent"].(string)
	if fromAgent == "" {
		fromAgent = ToolAgentKeyFromCtx(ctx)
	}

	reply, err := t.invoke(ctx, target, message, fromAgent)
	if err != nil {
		return ErrorResult(fmt.Sprintf("agent_message to %q failed: %v", target, err))
	}
	return NewResult(reply)
}

// ============================================================
// spawn_status
// ============================================================

// SpawnStatusTool reports the status of a previously spawned subagent
// task (spec §4: spawn_status(task_id)).
type SpawnStatusTool struct {
	manager *SubagentManager
}

// NewSpawnStatusTool builds a spawn_status tool backed by manager.
func NewSpawnStatusTool(manager *SubagentManager) *SpawnStatusTool {
	return &SpawnStatusTool{manager: manager}
}

func (t *SpawnStatusTool) Name() string { return "spawn_status" }
func (t *SpawnStatusTool) Description() string {
	return "Check the status of a background subagent task spawned with spawn."
}

func (t *SpawnStatusTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "ID returned by spawn",
			},
		},
		"required": []string{"task_id"},
	}
}

func (t *SpawnStatusTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.manager == nil {
		return ErrorResult("subagent manager not available")
	}

	taskID, _ := args["task_id"].(string)
	if taskID == "" {
		return ErrorResult("task_id is required")
	}

	task, found := t.manager.Get(taskID)
	if !found {
		return SilentResult(fmt.Sprintf("No subagent task %q (it may have been archived).", taskID))
	}

	if task.Status == TaskStatusRunning {
		return SilentResult(fmt.Sprintf("Subagent %q (%s) is still running.", task.Label, task.ID))
	}
	return SilentResult(fmt.Sprintf("Subagent %q (%s) status=%s: %s", task.Label, task.ID, task.Status, task.Result))
}
