package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bashclaw/bashclaw/internal/store"
)

// MemoryTool exposes the durable memory KV store to the agent as a single
// action-dispatched tool (spec §4: memory(action, key?, value?, query?)).
type MemoryTool struct {
	memory store.MemoryStore
}

// NewMemoryTool builds a memory tool backed by memory. memory may be nil
// (e.g. a global agent with no durable memory configured), in which case
// Execute reports the feature as unavailable rather than panicking.
func NewMemoryTool(memory store.MemoryStore) *MemoryTool {
	return &MemoryTool{memory: memory}
}

func (t *MemoryTool) Name() string { return "memory" }
func (t *MemoryTool) Description() string {
	return "Get, set, delete, list, or search durable key/value memory entries."
}

func (t *MemoryTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"get", "set", "delete", "list", "search"},
				"description": "Operation to perform",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Memory key (required for get/set/delete)",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Value to store (required for set)",
			},
			"tags": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Optional tags to store alongside the value (set only)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Search query (required for search)",
			},
		},
		"required": []string{"action"},
	}
}

func (t *MemoryTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.memory == nil {
		return ErrorResult("memory store not available")
	}

	action, _ := args["action"].(string)
	switch action {
	case "get":
		return t.get(args)
	case "set":
		return t.set(args)
	case "delete":
		return t.delete(args)
	case "list":
		return t.list()
	case "search":
		return t.search(args)
	default:
		return ErrorResult(fmt.Sprintf("unknown memory action %q", action))
	}
}

func (t *MemoryTool) get(args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	if key == "" {
		return ErrorResult("key is required for get")
	}

	entry, found, err := t.memory.Get(key)
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory get failed: %v", err))
	}
	if !found {
		return SilentResult(fmt.Sprintf("No memory entry for key %q.", key))
	}

	out, _ := json.Marshal(entry)
	return SilentResult(string(out))
}

func (t *MemoryTool) set(args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	value, _ := args["value"].(string)
	if key == "" {
		return ErrorResult("key is required for set")
	}

	var tags []string
	if raw, ok := args["tags"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				tags = append(tags, s)
			}
		}
	}

	if err := t.memory.Set(key, value, tags, "agent"); err != nil {
		return ErrorResult(fmt.Sprintf("memory set failed: %v", err))
	}
	return SilentResult(fmt.Sprintf("Stored memory %q.", key))
}

func (t *MemoryTool) delete(args map[string]interface{}) *Result {
	key, _ := args["key"].(string)
	if key == "" {
		return ErrorResult("key is required for delete")
	}
	if err := t.memory.Delete(key); err != nil {
		return ErrorResult(fmt.Sprintf("memory delete failed: %v", err))
	}
	return SilentResult(fmt.Sprintf("Deleted memory %q.", key))
}

func (t *MemoryTool) list() *Result {
	entries, err := t.memory.List()
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory list failed: %v", err))
	}
	if len(entries) == 0 {
		return SilentResult("No memory entries stored.")
	}

	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("- %s: %s", e.Key, e.Value))
	}
	return SilentResult(strings.Join(lines, "\n"))
}

func (t *MemoryTool) search(args map[string]interface{}) *Result {
	query, _ := args["query"].(string)
	if query == "" {
		return ErrorResult("query is required for search")
	}

	entries, err := t.memory.Search(query)
	if err != nil {
		return ErrorResult(fmt.Sprintf("memory search failed: %v", err))
	}
	if len(entries) == 0 {
		return SilentResult(fmt.Sprintf("No memory entries match %q.", query))
	}

	var lines []string
	for _, e := range entries {
		line := fmt.Sprintf("- %s: %s", e.Key, e.Value)
		if len(e.Tags) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(e.Tags, ", "))
		}
		lines = append(lines, line)
	}
	return SilentResult(strings.Join(lines, "\n"))
}
