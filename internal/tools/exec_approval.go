package tools

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bashclaw/bashclaw/internal/bus"
	"github.com/bashclaw/bashclaw/internal/config"
)

// ApprovalDecision is the outcome of an exec approval request.
type ApprovalDecision string

const (
	ApprovalAllow ApprovalDecision = "allow"
	ApprovalDeny  ApprovalDecision = "deny"
)

// ExecApprovalRequest is the payload broadcast as protocol.EventExecApprovalReq
// when a command needs a human decision.
type ExecApprovalRequest struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	AgentID string `json:"agent_id"`
}

// ApprovalAware is implemented by tools that gate execution behind an
// ExecApprovalManager (currently just ExecTool).
type ApprovalAware interface {
	SetApprovalManager(mgr *ExecApprovalManager, agentID string)
}

// ExecApprovalManager gates exec tool commands against the configured
// security policy (ToolsConfig.ExecApproval), optionally pausing for an
// interactive decision delivered over the gateway's event bus (exec.approval.*
// RPC methods resolve the pending request by ID).
type ExecApprovalManager struct {
	cfg config.ExecApprovalCfg
	pub bus.EventPublisher

	mu      sync.Mutex
	pending map[string]chan ApprovalDecision
}

// NewExecApprovalManager builds a manager from the tools.execApproval config
// block. pub may be nil, in which case "ask" decisions always time out
// (nothing can resolve them) — callers should treat that as equivalent to
// deny.
func NewExecApprovalManager(cfg config.ExecApprovalCfg, pub bus.EventPublisher) *ExecApprovalManager {
	return &ExecApprovalManager{
		cfg:     cfg,
		pub:     pub,
		pending: make(map[string]chan ApprovalDecision),
	}
}

// CheckCommand classifies command against the configured security mode,
// returning "deny" (reject outright), "ask" (needs RequestApproval), or ""
// (run without asking).
func (m *ExecApprovalManager) CheckCommand(command string) string {
	security := m.cfg.Security
	if security == "" {
		security = "full"
	}

	switch security {
	case "deny":
		return "deny"

	case "allowlist":
		if m.matchesAllowlist(command) {
			if m.cfg.Ask == "always" {
				return "ask"
			}
			return ""
		}
		if m.cfg.Ask == "off" {
			return "deny"
		}
		return "ask"

	default: // "full"
		if m.cfg.Ask == "always" {
			return "ask"
		}
		return ""
	}
}

func (m *ExecApprovalManager) matchesAllowlist(command string) bool {
	for _, pattern := range m.cfg.Allowlist {
		if ok, err := path.Match(pattern, command); err == nil && ok {
			return true
		}
	}
	return false
}

// RequestApproval publishes an approval-request event and blocks until a
// decision arrives via Resolve, ctx timeout elapses, or the timeout fires.
// A timeout is treated as a deny with an explanatory error.
func (m *ExecApprovalManager) RequestApproval(command, agentID string, timeout time.Duration) (ApprovalDecision, error) {
	id := uuid.NewString()
	ch := make(chan ApprovalDecision, 1)

	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	if m.pub != nil {
		m.pub.Broadcast(bus.Event{
			Name: "exec.approval.requested",
			Payload: ExecApprovalRequest{
				ID:      id,
				Command: command,
				AgentID: agentID,
			},
		})
	}

	select {
	case decision := <-ch:
		return decision, nil
	case <-time.After(timeout):
		return ApprovalDeny, fmt.Errorf("exec approval request %s timed out after %s", id, timeout)
	}
}

// Resolve delivers a decision for a pending approval request, returning
// false if no such request is outstanding (already resolved or timed out).
func (m *ExecApprovalManager) Resolve(id string, decision ApprovalDecision) bool {
	m.mu.Lock()
	ch, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		return false
	}
	ch <- decision
	return true
}

// Pending returns the IDs of all outstanding approval requests (backs
// exec.approval.list).
func (m *ExecApprovalManager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	return ids
}
