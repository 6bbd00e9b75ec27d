package capture

import (
	"sync"

	"github.com/kozaktomas/cashier/internal/constants"
)

// Event types emitted by a capture loop.
const (
	EventOpened       = "opened"
	EventCaptured     = "captured"
	EventUploadFailed = "upload_failed"
	EventError        = "error"
	EventClosed       = "closed"
)

// Event is a capture loop notification.
type Event struct {
	Type       string `json:"type"`
	Activation string `json:"activation,omitempty"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// EventBroadcaster fans capture events out to listeners. Slow listeners
// miss events instead of blocking the loop.
type EventBroadcaster struct {
	listeners []chan Event
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
