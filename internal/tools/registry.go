package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/bashclaw/bashclaw/internal/providers"
)

// secretPatterns matches common API key / token shapes that tool output
// (file reads, exec stdout, web fetches) might echo back verbatim.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)(AKIA|ASIA)[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]{20,}`),
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`xox[baprs]-[A-Za-z0-9-]{10,}`),
}

func scrubSecrets(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// Tool is the interface every built-in and MCP-bridged tool implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *Result
}

// ToProviderDef converts a Tool's schema into the wire shape providers send
// to the LLM as part of a ChatRequest.
func ToProviderDef(tool Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		},
	}
}

// Registry holds every tool available to the agent loop, keyed by name.
// Safe for concurrent use; tools are normally registered once at startup
// and only read afterward.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	limiter  *ToolRateLimiter
	scrubbed bool
}

// NewRegistry builds an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool under its own Name(), replacing any prior tool with
// the same name (a later registration — e.g. an MCP server reconnect —
// wins).
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool, used when an MCP server disconnects.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool name, sorted for deterministic
// policy evaluation and logging.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ProviderDefs returns definitions for every registered tool, unfiltered.
// The agent loop falls back to this when no PolicyEngine is configured.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		defs = append(defs, ToProviderDef(r.tools[name]))
	}
	return defs
}

// SetRateLimiter installs a per-agent, per-tool rate limiter. Nil disables
// limiting.
func (r *Registry) SetRateLimiter(limiter *ToolRateLimiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiter = limiter
}

// SetScrubbing toggles whether ExecuteWithContext redacts likely secrets
// (API keys, tokens) from a tool's ForLLM output before it reaches the
// model — on by default for hosted deployments, off for local/dev runs
// where the redaction only gets in the way of debugging.
func (r *Registry) SetScrubbing(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrubbed = enabled
}

// ExecuteWithContext runs the named tool with channel/chat/session context
// attached, enforcing the rate limiter (if any) and optional output
// scrubbing. extra is reserved for call-site-specific values (e.g. a
// sandbox key override) threaded through WithToolSandboxKey by the caller
// before invoking this method; it is otherwise unused here.
func (r *Registry) ExecuteWithContext(ctx context.Context, name string, args map[string]interface{}, channel, chatID, peerKind, sessionKey string, extra interface{}) *Result {
	tool, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", name))
	}

	r.mu.RLock()
	limiter := r.limiter
	scrub := r.scrubbed
	r.mu.RUnlock()

	if limiter != nil && !limiter.Allow(sessionKey, name) {
		return ErrorResult(fmt.Sprintf("tool %q rate limit exceeded for this session", name))
	}

	ctx = WithToolChannel(ctx, channel)
	ctx = WithToolChatID(ctx, chatID)
	ctx = WithToolPeerKind(ctx, peerKind)
	ctx = WithToolAgentKey(ctx, sessionKey)

	result := tool.Execute(ctx, args)
	if result != nil && scrub {
		result.ForLLM = scrubSecrets(result.ForLLM)
	}
	return result
}

// Execute runs the named tool with no channel/session context attached and
// no rate limiting — used by the subagent loop, which scopes its own tool
// set per task rather than per session.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	tool, ok := r.Get(name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", name))
	}

	result := tool.Execute(ctx, args)
	r.mu.RLock()
	scrub := r.scrubbed
	r.mu.RUnlock()
	if result != nil && scrub {
		result.ForLLM = scrubSecrets(result.ForLLM)
	}
	return result
}

// ToolRateLimiter caps tool invocations per (session, tool) pair using a
// token bucket per key, refilling at perHour/3600 tokens per second.
type ToolRateLimiter struct {
	perHour int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewToolRateLimiter builds a limiter allowing perHour calls per hour per
// (session, tool) pair, with a burst of one-tenth the hourly rate (minimum
// 1). perHour<=0 disables limiting (Allow always returns true).
func NewToolRateLimiter(perHour int) *ToolRateLimiter {
	return &ToolRateLimiter{perHour: perHour, limiters: make(map[string]*rate.Limiter)}
}

// Allow reports whether a call for (sessionKey, toolName) is permitted
// right now, consuming a token if so.
func (l *ToolRateLimiter) Allow(sessionKey, toolName string) bool {
	if l == nil || l.perHour <= 0 {
		return true
	}

	key := sessionKey + "|" + toolName

	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		burst := l.perHour / 10
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(float64(l.perHour)/3600.0), burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}
