package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Trace/span status values.
const (
	TraceStatusRunning   = "running"
	TraceStatusCompleted = "completed"
	TraceStatusError     = "error"
	TraceStatusCancelled = "cancelled"

	SpanStatusCompleted = "completed"
	SpanStatusError     = "error"
)

// Span kinds recorded within a trace.
const (
	SpanTypeAgent   = "agent"
	SpanTypeLLMCall = "llm_call"
	SpanTypeToolCall = "tool_call"
)

// SpanLevelDefault is the default verbosity level attached to spans that
// don't otherwise classify themselves (debug/warning/error).
const SpanLevelDefault = "DEFAULT"

// TraceData is the root record of one agent run, optionally parented to
// another trace when the run was spawned as a delegated/announced child.
type TraceData struct {
	ID            uuid.UUID  `json:"id"`
	RunID         string     `json:"run_id"`
	SessionKey    string     `json:"session_key"`
	UserID        string     `json:"user_id,omitempty"`
	Channel       string     `json:"channel,omitempty"`
	Name          string     `json:"name"`
	InputPreview  string     `json:"input_preview,omitempty"`
	OutputPreview string     `json:"output_preview,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	Tags          []string   `json:"tags,omitempty"`
	AgentID       *uuid.UUID `json:"agent_id,omitempty"`
	ParentTraceID *uuid.UUID `json:"parent_trace_id,omitempty"`
}

// SpanData is one LLM call, tool call, or agent-run span nested within a
// trace.
type SpanData struct {
	ID           uuid.UUID       `json:"id"`
	TraceID      uuid.UUID       `json:"trace_id"`
	ParentSpanID *uuid.UUID      `json:"parent_span_id,omitempty"`
	AgentID      *uuid.UUID      `json:"agent_id,omitempty"`
	SpanType     string          `json:"span_type"`
	Name         string          `json:"name"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	DurationMS   int             `json:"duration_ms"`
	Model        string          `json:"model,omitempty"`
	Provider     string          `json:"provider,omitempty"`
	ToolName     string          `json:"tool_name,omitempty"`
	ToolCallID   string          `json:"tool_call_id,omitempty"`
	InputPreview  string         `json:"input_preview,omitempty"`
	OutputPreview string         `json:"output_preview,omitempty"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	Level        string          `json:"level,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
