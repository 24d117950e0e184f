// Package statepath resolves the fixed directory tree BashClaw persists
// state under, and provides the atomic-write and file-lock primitives every
// other package builds on.
package statepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root is the writable state directory (default ~/.bashclaw). Every other
// persistent path is derived from it so no caller hand-builds path strings.
type Root string

// DefaultRoot returns ~/.bashclaw, expanding $HOME.
func DefaultRoot() (Root, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return Root(filepath.Join(home, ".bashclaw")), nil
}

func (r Root) join(parts ...string) string {
	return filepath.Join(append([]string{string(r)}, parts...)...)
}

func (r Root) Sessions() string              { return r.join("sessions") }
func (r Root) SessionFile(key string) string { return r.join("sessions", key+".jsonl") }
func (r Root) SessionMeta(key string) string { return r.join("sessions", key+".meta.json") }
func (r Root) Memory() string                { return r.join("memory") }
func (r Root) MemoryKey(safeKey string) string { return r.join("memory", safeKey+".json") }
func (r Root) Cron() string                  { return r.join("cron") }
func (r Root) CronJobs() string              { return r.join("cron", "jobs.json") }
func (r Root) CronRuns(jobID string) string  { return r.join("cron", "runs", jobID+".jsonl") }
func (r Root) Logs() string                  { return r.join("logs") }
func (r Root) AuditLog() string              { return r.join("logs", "audit.jsonl") }
func (r Root) GatewayLog() string            { return r.join("logs", "gateway.log") }
func (r Root) UsageLog() string              { return r.join("logs", "usage.jsonl") }
func (r Root) Pairing() string               { return r.join("pairing") }
func (r Root) PairingCode(safeKey string) string { return r.join("pairing", safeKey+".json") }
func (r Root) PairingVerified(safeKey string) string {
	return r.join("pairing", "verified", safeKey)
}
func (r Root) RateLimit() string  { return r.join("ratelimit") }
func (r Root) Events() string     { return r.join("events") }
func (r Root) EventQueue(sessionKey string) string {
	return r.join("events", sessionKey+".json")
}
func (r Root) Spawn() string                 { return r.join("spawn") }
func (r Root) SpawnStatus(id string) string  { return r.join("spawn", id+".json") }
func (r Root) Approvals() string             { return r.join("approvals") }
func (r Root) ApprovalMarker(sessionKey, tool string) string {
	return r.join("approvals", sessionKey+"__"+tool)
}

// Queue subtree (transient state for the dual-layer queue engine).
func (r Root) QueueSessionLock(sessionKey string) string {
	return r.join("queue", "session_locks", sessionKey+".lock")
}
func (r Root) QueueLaneDir(laneType string) string {
	return r.join("queue", "global_lanes", laneType)
}
func (r Root) QueueLaneSlot(laneType, slotID string) string {
	return r.join("queue", "global_lanes", laneType, slotID+".slot")
}
func (r Root) QueuePending(sessionKey string) string {
	return r.join("queue", "pending", sessionKey+".json")
}
func (r Root) QueueAbort(sessionKey string) string {
	return r.join("queue", "abort", sessionKey+".marker")
}
func (r Root) QueueMeta(sessionKey string) string {
	return r.join("queue", "meta", sessionKey+".json")
}

func (r Root) Traces() string                { return r.join("traces") }
func (r Root) TraceFile(traceID string) string { return r.join("traces", traceID+".json") }
func (r Root) SpanLog(traceID string) string { return r.join("traces", traceID+".spans.jsonl") }

// EnsureTree creates every fixed subdirectory the spec's file layout names,
// idempotently, at process start.
func (r Root) EnsureTree() error {
	dirs := []string{
		r.Sessions(), r.Memory(), r.Cron(), r.join("cron", "runs"), r.Logs(),
		r.Pairing(), r.join("pairing", "verified"), r.RateLimit(), r.Events(),
		r.Spawn(), r.Approvals(),
		r.join("queue", "session_locks"), r.join("queue", "global_lanes"),
		r.join("queue", "pending"), r.join("queue", "abort"), r.join("queue", "meta"),
		r.Traces(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create state dir %s: %w", d, err)
		}
	}
	return nil
}
