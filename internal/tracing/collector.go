package tracing

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bashclaw/bashclaw/internal/statepath"
	"github.com/bashclaw/bashclaw/internal/store"
)

const spanQueueCap = 256

// Collector persists trace/span records under the state root's traces/ dir.
// Trace creation and finish are synchronous (one small file write); span
// emission is buffered through a background goroutine so a verbose trace
// never adds latency to the LLM/tool call it's describing.
type Collector struct {
	root    statepath.Root
	verbose bool

	spans  chan spanWrite
	done   chan struct{}
	mu     sync.Mutex // guards per-trace file appends
}

type spanWrite struct {
	span store.SpanData
}

// NewCollector builds a Collector rooted at root. verbose controls whether
// full message/output previews are recorded (BASHCLAW_TRACE_VERBOSE).
func NewCollector(root statepath.Root, verbose bool) *Collector {
	return &Collector{
		root:    root,
		verbose: verbose,
		spans:   make(chan spanWrite, spanQueueCap),
	}
}

// Verbose reports whether full message bodies should be recorded on spans.
func (c *Collector) Verbose() bool { return c.verbose }

// Start launches the background span writer. Safe to call once.
func (c *Collector) Start() {
	if c.done != nil {
		return
	}
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		for sw := range c.spans {
			c.writeSpan(sw.span)
		}
	}()
}

// Stop drains and closes the span writer.
func (c *Collector) Stop() {
	close(c.spans)
	if c.done != nil {
		<-c.done
	}
}

// CreateTrace writes the initial trace record.
func (c *Collector) CreateTrace(ctx context.Context, t *store.TraceData) error {
	return c.writeTrace(*t)
}

// FinishTrace updates a trace's terminal status, error, and output preview.
func (c *Collector) FinishTrace(ctx context.Context, traceID uuid.UUID, status, errMsg, outputPreview string) {
	t, err := c.readTrace(traceID)
	if err != nil {
		slog.Warn("tracing: finish trace: read", "trace", traceID, "error", err)
		return
	}
	now := time.Now().UTC()
	t.Status = status
	t.Error = errMsg
	t.OutputPreview = outputPreview
	t.EndTime = &now
	if err := c.writeTrace(t); err != nil {
		slog.Warn("tracing: finish trace: write", "trace", traceID, "error", err)
	}
}

// EmitSpan enqueues a span for async persistence. Drops the span (logging a
// warning) if the writer is backed up rather than block the caller.
func (c *Collector) EmitSpan(span store.SpanData) {
	if span.ID == uuid.Nil {
		span.ID = store.GenNewID()
	}
	select {
	case c.spans <- spanWrite{span: span}:
	default:
		slog.Warn("tracing: span queue full, dropping span", "trace", span.TraceID, "type", span.SpanType)
	}
}

func (c *Collector) writeTrace(t store.TraceData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return statepath.WriteFileAtomic(c.root.TraceFile(t.ID.String()), data, 0o644)
}

func (c *Collector) readTrace(id uuid.UUID) (store.TraceData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var t store.TraceData
	data, err := os.ReadFile(c.root.TraceFile(id.String()))
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, err
	}
	return t, nil
}

func (c *Collector) writeSpan(span store.SpanData) {
	if span.CreatedAt.IsZero() {
		span.CreatedAt = time.Now().UTC()
	}
	line, err := json.Marshal(span)
	if err != nil {
		slog.Warn("tracing: encode span", "error", err)
		return
	}
	if err := statepath.AppendLineAtomic(c.root.SpanLog(span.TraceID.String()), line); err != nil {
		slog.Warn("tracing: append span", "error", err)
	}
}
