package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/bashclaw/bashclaw/pkg/protocol"
)

// HandlerFunc processes one RequestFrame for a connected client. Handlers
// write their reply themselves (via client.Reply/ReplyError) so long-running
// methods (chat.send streaming, agent.wait) can push multiple frames before
// the final response.
type HandlerFunc func(ctx context.Context, client *Client, req *protocol.RequestFrame)

// MethodRouter dispatches RequestFrame.Method to registered handlers. One
// router per Server; cmd/gateway_methods.go's registerAllMethods populates
// it at startup.
type MethodRouter struct {
	server *Server

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewMethodRouter builds a MethodRouter bound to server (handlers close over
// it to reach stores, the scheduler, the agent router, etc.)
func NewMethodRouter(server *Server) *MethodRouter {
	return &MethodRouter{
		server:   server,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register installs the handler for method, replacing any prior handler.
func (r *MethodRouter) Register(method string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = fn
}

// Dispatch runs the handler registered for req.Method, replying with a
// "method not found" error if none is registered.
func (r *MethodRouter) Dispatch(ctx context.Context, client *Client, req *protocol.RequestFrame) {
	r.mu.RLock()
	fn, ok := r.handlers[req.Method]
	r.mu.RUnlock()

	if !ok {
		client.ReplyError(req.ID, "method_not_found", fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	fn(ctx, client, req)
}
