package bus

import (
	"sync"
	"time"
)

// InboundDebouncer coalesces rapid-fire inbound messages from the same
// sender into one merged message, flushing it once window has elapsed
// since the last Push for that sender. Each Push restarts the window.
type InboundDebouncer struct {
	window time.Duration
	flush  func(InboundMessage)

	mu      sync.Mutex
	pending map[string]*debounceEntry
}

type debounceEntry struct {
	msg   InboundMessage
	timer *time.Timer
}

// NewInboundDebouncer builds a debouncer that calls flush at most once per
// window per sender, with accumulated message content merged in arrival
// order.
func NewInboundDebouncer(window time.Duration, flush func(InboundMessage)) *InboundDebouncer {
	return &InboundDebouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]*debounceEntry),
	}
}

func debounceKey(msg InboundMessage) string {
	return msg.Channel + "|" + msg.ChatID + "|" + msg.SenderID
}

// Push queues msg, merging it into any in-flight pending message for the
// same (channel, chatID, senderID) and restarting the flush timer.
func (d *InboundDebouncer) Push(msg InboundMessage) {
	key := debounceKey(msg)

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[key]
	if !ok {
		entry = &debounceEntry{msg: msg}
		d.pending[key] = entry
		entry.timer = time.AfterFunc(d.window, func() { d.fire(key) })
		return
	}

	if msg.Content != "" {
		if entry.msg.Content != "" {
			entry.msg.Content += "\n" + msg.Content
		} else {
			entry.msg.Content = msg.Content
		}
	}
	entry.msg.Media = append(entry.msg.Media, msg.Media...)
	entry.msg.Metadata = msg.Metadata // latest metadata wins (message_id, reply target, etc.)
	entry.timer.Reset(d.window)
}

func (d *InboundDebouncer) fire(key string) {
	d.mu.Lock()
	entry, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if ok {
		d.flush(entry.msg)
	}
}

// Stop flushes nothing but stops all pending timers, for clean shutdown.
func (d *InboundDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, entry := range d.pending {
		entry.timer.Stop()
		delete(d.pending, key)
	}
}
