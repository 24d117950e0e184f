package tools

import (
	"context"
	"fmt"
)

// SpawnTool exposes SubagentManager.Spawn as an async tool: it returns
// immediately with a status message while the subagent runs in the
// background and announces its result back to the parent session.
type SpawnTool struct {
	manager *SubagentManager
}

// NewSpawnTool builds a spawn tool backed by manager.
func NewSpawnTool(manager *SubagentManager) *SpawnTool {
	return &SpawnTool{manager: manager}
}

func (t *SpawnTool) Name() string { return "spawn" }
func (t *SpawnTool) Description() string {
	return "Spawn a background subagent for a task. Returns immediately; the subagent's result is announced back to this session when it finishes."
}

func (t *SpawnTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this subagent (optional)",
			},
			"model": map[string]interface{}{
				"type":        "string",
				"description": "Override model for this subagent (optional)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.manager == nil {
		return ErrorResult("subagent manager not available")
	}

	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)
	model, _ := args["model"].(string)

	parentID := ToolAgentKeyFromCtx(ctx)
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)
	peerKind := ToolPeerKindFromCtx(ctx)

	msg, err := t.manager.Spawn(ctx, parentID, 0, task, label, model, channel, chatID, peerKind, ToolAsyncCBFromCtx(ctx))
	if err != nil {
		return ErrorResult(fmt.Sprintf("spawn failed: %v", err))
	}
	return SilentResult(msg)
}

// SubagentTool exposes SubagentManager.RunSync as a blocking tool: it
// waits for the subagent to finish and returns its result directly,
// for callers that need the answer inline rather than announced later.
type SubagentTool struct {
	manager *SubagentManager
}

// NewSubagentTool builds a subagent tool backed by manager.
func NewSubagentTool(manager *SubagentManager) *SubagentTool {
	return &SubagentTool{manager: manager}
}

func (t *SubagentTool) Name() string { return "subagent" }
func (t *SubagentTool) Description() string {
	return "Run a subagent synchronously and return its result. Blocks until the subagent completes."
}

func (t *SubagentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]interface{}{
				"type":        "string",
				"description": "Short human-readable label for this subagent (optional)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SubagentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.manager == nil {
		return ErrorResult("subagent manager not available")
	}

	task, _ := args["task"].(string)
	if task == "" {
		return ErrorResult("task is required")
	}
	label, _ := args["label"].(string)

	parentID := ToolAgentKeyFromCtx(ctx)
	channel := ToolChannelFromCtx(ctx)
	chatID := ToolChatIDFromCtx(ctx)

	result, iterations, err := t.manager.RunSync(ctx, parentID, 0, task, label, channel, chatID)
	if err != nil {
		return ErrorResult(fmt.Sprintf("subagent failed after %d iterations: %v", iterations, err))
	}
	return NewResult(result)
}
