// Package events implements the per-session background-to-foreground event
// queue (spec §4.8): a bounded FIFO populated by cron runs, spawn
// completions, and other subsystems, drained by the agent loop at the start
// of its next turn and prepended as a synthetic "[SYSTEM EVENT]" message.
package events

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/bashclaw/bashclaw/internal/statepath"
)

// MaxQueueLen is the bound after which the oldest entry is dropped.
const MaxQueueLen = 20

type entry struct {
	Text string `json:"text"`
}

// Queue is a file-backed, per-session bounded FIFO.
type Queue struct {
	root statepath.Root
	mu   sync.Mutex
}

// NewQueue creates an event queue rooted at the given state root.
func NewQueue(root statepath.Root) *Queue {
	return &Queue{root: root}
}

// Enqueue appends text to sessionKey's queue, deduplicating against the most
// recent entry and dropping the oldest entry once MaxQueueLen is exceeded.
func (q *Queue) Enqueue(sessionKey, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load(sessionKey)
	if err != nil {
		return err
	}
	if len(entries) > 0 && entries[len(entries)-1].Text == text {
		return nil
	}
	entries = append(entries, entry{Text: text})
	if len(entries) > MaxQueueLen {
		entries = entries[len(entries)-MaxQueueLen:]
	}
	return q.save(sessionKey, entries)
}

// Drain returns and clears all queued events for sessionKey, in FIFO order.
func (q *Queue) Drain(sessionKey string) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.load(sessionKey)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if err := q.save(sessionKey, nil); err != nil {
		return nil, err
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out, nil
}

func (q *Queue) load(sessionKey string) ([]entry, error) {
	data, err := os.ReadFile(q.root.EventQueue(sessionKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil // corrupt queue file: treat as empty rather than fail the turn
	}
	return entries, nil
}

func (q *Queue) save(sessionKey string, entries []entry) error {
	if entries == nil {
		entries = []entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return statepath.WriteFileAtomic(q.root.EventQueue(sessionKey), data, 0o644)
}
