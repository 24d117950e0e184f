package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AsyncCallback is invoked with the final Result once an async tool call
// (spawn, subagent) completes, delivered out-of-band from the tool's
// original Execute return.
type AsyncCallback func(ctx context.Context, result *Result)

// generateSubagentID returns a short, sortable-enough identifier for a
// subagent task, distinct from the parent agent's session key.
func generateSubagentID() string {
	return fmt.Sprintf("sub-%s", uuid.New().String()[:8])
}

// truncate shortens s to at most n runes, appending an ellipsis marker if
// it was cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// scheduleArchive removes a completed subagent task from memory after
// delay, bounding how long SubagentManager keeps finished tasks around
// for sessions_history/session_status lookups.
func (sm *SubagentManager) scheduleArchive(id string, delay time.Duration) {
	time.Sleep(delay)
	sm.mu.Lock()
	delete(sm.tasks, id)
	sm.mu.Unlock()
}
