// Package tracing records per-run LLM/tool spans for local inspection. It is
// the optional observability layer described for the agent loop: every run
// may open a trace, nest LLM-call and tool-call spans under it, and persist
// the result as newline-delimited JSON under the state root's traces/ dir.
package tracing

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	ctxTraceID ctxKey = iota
	ctxCollector
	ctxParentSpanID
	ctxAnnounceParentSpanID
	ctxDelegateParentTraceID
)

func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}

func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxTraceID).(uuid.UUID)
	return id
}

func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxCollector, c)
}

func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxCollector).(*Collector)
	return c
}

// WithParentSpanID attaches the span that any LLM/tool span emitted from ctx
// should nest under (typically the run's root "agent" span).
func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxParentSpanID, id)
}

func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxParentSpanID).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID marks an announce-back run's agent span as a
// child of the run that triggered it, so the trace tree stays linked across
// an async spawn/delegate announce.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxAnnounceParentSpanID, id)
}

func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxAnnounceParentSpanID).(uuid.UUID)
	return id
}

// WithDelegateParentTraceID marks a new run as logically caused by an
// existing trace (e.g. a delegated/spawned sub-run) without reusing that
// trace's ID, so the child gets its own trace record linked via
// TraceData.ParentTraceID.
func WithDelegateParentTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxDelegateParentTraceID, id)
}

func DelegateParentTraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxDelegateParentTraceID).(uuid.UUID)
	return id
}
