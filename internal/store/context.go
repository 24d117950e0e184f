package store

import (
	"context"

	"github.com/google/uuid"
)

// GenNewID returns a fresh random identifier, used for trace and span IDs.
func GenNewID() uuid.UUID { return uuid.New() }

type ctxKey int

const (
	ctxAgentID ctxKey = iota
	ctxUserID
	ctxAgentType
	ctxSenderID
)

// WithAgentID/AgentIDFromContext propagate the identity of the agent
// handling the current run, for per-agent tool scoping. Zero value
// (uuid.Nil) when the runtime has no multi-agent identity to attach.
func WithAgentID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxAgentID, id)
}

func AgentIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(ctxAgentID).(uuid.UUID)
	return id
}

// WithUserID/UserIDFromContext propagate the end user's identifier for
// per-user scoping (memory, context files, approvals).
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserID).(string)
	return id
}

// WithAgentType/AgentTypeFromContext propagate the agent's configured type
// (e.g. "open" or "predefined") for interceptor routing.
func WithAgentType(ctx context.Context, agentType string) context.Context {
	return context.WithValue(ctx, ctxAgentType, agentType)
}

func AgentTypeFromContext(ctx context.Context) string {
	t, _ := ctx.Value(ctxAgentType).(string)
	return t
}

// WithSenderID/SenderIDFromContext propagate the original message sender,
// distinct from UserID when a run is relayed (e.g. group file permission
// checks that must see who actually sent the triggering message).
func WithSenderID(ctx context.Context, senderID string) context.Context {
	return context.WithValue(ctx, ctxSenderID, senderID)
}

func SenderIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxSenderID).(string)
	return id
}
