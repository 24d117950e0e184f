// Package hooks implements the gateway's hook pipeline: named lifecycle
// events that external scripts or built-in evaluators can observe (void),
// rewrite (modifying), or gate (sync), plus the one-off quality-gate
// evaluation used by agent-to-agent delegation.
package hooks

// Strategy is how a hook's result is applied to the event it observed.
type Strategy string

const (
	// StrategyVoid fires every matching hook concurrently and ignores the
	// result — used for side effects (logging, metrics, notifications).
	StrategyVoid Strategy = "void"
	// StrategyModifying runs hooks serially in ascending priority order,
	// feeding each hook's output payload into the next.
	StrategyModifying Strategy = "modifying"
	// StrategySync runs hooks serially and blocks the event until every
	// hook completes; a BlockOnFailure hook that errors aborts the event.
	StrategySync Strategy = "sync"
)

// Named lifecycle events a hook can subscribe to.
const (
	EventPreMessage       = "pre_message"
	EventPostMessage      = "post_message"
	EventMessageReceived  = "message_received"
	EventMessageSending   = "message_sending"
	EventMessageSent      = "message_sent"
	EventPreTool          = "pre_tool"
	EventPostTool         = "post_tool"
	EventToolResultPersist = "tool_result_persist"
	EventSessionStart     = "session_start"
	EventSessionEnd       = "session_end"
	EventSessionReset     = "on_session_reset"
	EventBeforeCompaction = "before_compaction"
	EventAfterCompaction  = "after_compaction"
	EventBeforeAgentStart = "before_agent_start"
	EventAgentEnd         = "agent_end"
	EventGatewayStart     = "gateway_start"
	EventGatewayStop      = "gateway_stop"
	EventOnError          = "on_error"
	EventDelegationDone   = "delegation.completed"
)

// DefaultStrategyFor returns the canonical dispatch strategy for a named
// event; a hook registration may override it explicitly.
func DefaultStrategyFor(event string) Strategy {
	switch event {
	case EventPreTool, EventPostTool, EventBeforeCompaction:
		return StrategyModifying
	case EventPreMessage, EventBeforeAgentStart, EventSessionReset, EventDelegationDone:
		return StrategySync
	default:
		return StrategyVoid
	}
}

// HookConfig describes one hook registration. It is JSON-decodable directly
// off an agent's other_config.quality_gates array, or off the gateway's
// hooks.json registry.
type HookConfig struct {
	Name           string   `json:"name"`
	Event          string   `json:"event"`
	Type           string   `json:"type"` // evaluator kind: "command", "contains", or a custom-registered one
	Command        string   `json:"command,omitempty"`
	Contains       []string `json:"contains,omitempty"`
	Enabled        bool     `json:"enabled"`
	Priority       int      `json:"priority"`
	Strategy       Strategy `json:"strategy,omitempty"`
	Source         string   `json:"source,omitempty"`
	MaxRetries     int      `json:"max_retries"`
	BlockOnFailure bool     `json:"block_on_failure"`
	TimeoutSec     int      `json:"timeout_sec,omitempty"`
}

// HookContext is the payload passed to every hook invocation.
type HookContext struct {
	Event          string
	SessionKey     string
	SourceAgentKey string
	TargetAgentKey string
	UserID         string
	Content        string
	Task           string
	Payload        map[string]string
}

// HookResult is what a single hook evaluation produces.
type HookResult struct {
	Passed   bool
	Feedback string
	Payload  map[string]string // for modifying-strategy hooks: the rewritten payload
}
