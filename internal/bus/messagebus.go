package bus

import (
	"context"
	"sync"
)

const (
	inboundBufferSize  = 256
	outboundBufferSize = 256
)

// MessageBus is the process-wide inbound/outbound message queue and event
// fanout hub. Channels publish InboundMessage and drain OutboundMessage;
// the gateway server subscribes to Broadcast events for WebSocket fanout.
// One MessageBus per process; safe for concurrent use.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu        sync.RWMutex
	listeners map[string]EventHandler
}

// New builds a MessageBus with buffered inbound/outbound channels.
func New() *MessageBus {
	return &MessageBus{
		inbound:   make(chan InboundMessage, inboundBufferSize),
		outbound:  make(chan OutboundMessage, outboundBufferSize),
		listeners: make(map[string]EventHandler),
	}
}

// PublishInbound enqueues msg for the inbound consumer. Drops (with no
// error — callers don't have a retry story) if the buffer is full, since a
// channel webhook handler can't block indefinitely.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	default:
	}
}

// ConsumeInbound blocks for the next inbound message, or returns
// (zero, false) if ctx is cancelled first.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// PublishOutbound enqueues msg for delivery back to its source channel.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	default:
	}
}

// SubscribeOutbound blocks for the next outbound message, or returns
// (zero, false) if ctx is cancelled first.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case msg := <-b.outbound:
		return msg, true
	case <-ctx.Done():
		return OutboundMessage{}, false
	}
}

// Subscribe registers handler under id, replacing any prior handler with
// the same id (e.g. a reconnecting gateway client reusing its connection id).
func (b *MessageBus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[id] = handler
}

// Unsubscribe removes the handler registered under id.
func (b *MessageBus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// Broadcast delivers event to every subscribed listener synchronously.
// Handlers are expected to be non-blocking (the gateway's client handler
// enqueues onto a per-connection send buffer rather than writing directly).
func (b *MessageBus) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.listeners {
		handler(event)
	}
}
