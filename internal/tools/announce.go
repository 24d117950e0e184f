package tools

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bashclaw/bashclaw/internal/bus"
)

// AnnounceQueueItem is one subagent's finished (or failed) result, queued
// for delivery back to its parent session.
type AnnounceQueueItem struct {
	SubagentID string
	Label      string
	Status     string
	Result     string
	Runtime    time.Duration
	Iterations int
}

// AnnounceMetadata carries the origin context needed to route a batched
// announce back into the parent's channel/session.
type AnnounceMetadata struct {
	OriginChannel    string
	OriginChatID     string
	OriginPeerKind   string
	OriginUserID     string
	ParentAgent      string
	OriginTraceID    string
	OriginRootSpanID string
}

// AnnounceQueue batches subagent completions arriving within a short window
// for the same parent session into a single inbound message, so a parent
// fanning out ten subagents doesn't interrupt the user ten times in a row.
type AnnounceQueue struct {
	window time.Duration
	msgBus *bus.MessageBus

	mu      sync.Mutex
	pending map[string]*announceBatch
}

type announceBatch struct {
	items []AnnounceQueueItem
	meta  AnnounceMetadata
	timer *time.Timer
}

// NewAnnounceQueue builds a queue that flushes each session's batch window
// after the window elapses since its first pending item.
func NewAnnounceQueue(window time.Duration, msgBus *bus.MessageBus) *AnnounceQueue {
	return &AnnounceQueue{
		window:  window,
		msgBus:  msgBus,
		pending: make(map[string]*announceBatch),
	}
}

// Enqueue adds item to sessionKey's in-flight batch, starting the flush
// timer if this is the first item for that session.
func (q *AnnounceQueue) Enqueue(sessionKey string, item AnnounceQueueItem, meta AnnounceMetadata) {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch, ok := q.pending[sessionKey]
	if !ok {
		batch = &announceBatch{meta: meta}
		q.pending[sessionKey] = batch
		batch.timer = time.AfterFunc(q.window, func() { q.flush(sessionKey) })
	}
	batch.items = append(batch.items, item)
}

func (q *AnnounceQueue) flush(sessionKey string) {
	q.mu.Lock()
	batch, ok := q.pending[sessionKey]
	if ok {
		delete(q.pending, sessionKey)
	}
	q.mu.Unlock()

	if !ok || len(batch.items) == 0 || q.msgBus == nil {
		return
	}

	content := FormatBatchedAnnounce(batch.items, 0)
	meta := batch.meta

	q.msgBus.PublishInbound(bus.InboundMessage{
		Channel:  "system",
		SenderID: fmt.Sprintf("subagent-batch:%s", meta.ParentAgent),
		ChatID:   meta.OriginChatID,
		Content:  content,
		UserID:   meta.OriginUserID,
		Metadata: map[string]string{
			"origin_channel":      meta.OriginChannel,
			"origin_peer_kind":    meta.OriginPeerKind,
			"parent_agent":        meta.ParentAgent,
			"origin_trace_id":     meta.OriginTraceID,
			"origin_root_span_id": meta.OriginRootSpanID,
		},
	})
}

// FormatBatchedAnnounce renders one or more subagent results as a single
// system message for the parent agent to reformulate for the user.
// remainingActive, if > 0, notes how many siblings are still running.
func FormatBatchedAnnounce(items []AnnounceQueueItem, remainingActive int) string {
	var b strings.Builder

	if len(items) == 1 {
		b.WriteString(formatAnnounceItem(items[0]))
	} else {
		fmt.Fprintf(&b, "%d subagents finished:\n", len(items))
		for _, item := range items {
			b.WriteString("- ")
			b.WriteString(formatAnnounceItem(item))
			b.WriteString("\n")
		}
	}

	if remainingActive > 0 {
		fmt.Fprintf(&b, "\n(%d subagent(s) still running)", remainingActive)
	}

	return b.String()
}

func formatAnnounceItem(item AnnounceQueueItem) string {
	label := item.Label
	if label == "" {
		label = item.SubagentID
	}

	switch item.Status {
	case TaskStatusFailed:
		return fmt.Sprintf("Subagent %q failed after %s (%d iterations): %s", label, item.Runtime.Round(time.Second), item.Iterations, item.Result)
	case TaskStatusCancelled:
		return fmt.Sprintf("Subagent %q was cancelled after %s", label, item.Runtime.Round(time.Second))
	default:
		return fmt.Sprintf("Subagent %q completed in %s (%d iterations): %s", label, item.Runtime.Round(time.Second), item.Iterations, item.Result)
	}
}
