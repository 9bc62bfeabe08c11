// Package events defines the notifications the pipeline emits toward
// the application shell or UI.
//
// Events flow through a Bus that keeps a bounded replay buffer (for
// shells that poll with a sequence cursor) and an optional subscriber
// channel (for shells that stream). Publishing never blocks pipeline
// progress: a slow subscriber drops events rather than stalling the
// worker pool.
package events

import (
	"sync"
	"time"
)

// Type classifies an emitted notification.
type Type string

// Notification types.
const (
	TypeTaskCreated       Type = "task:created"
	TypeTaskStatusChanged Type = "task:status-changed"
	TypeTaskDeleted       Type = "task:deleted"
	TypeStarted           Type = "compression-started"
	TypeRetry             Type = "compression-retry"
	TypeComplete          Type = "compression-complete"
	TypeFailed            Type = "compression-failed"
	TypeNewDownload       Type = "new-download"
)

// RetryInfo is the payload of a compression-retry event.
type RetryInfo struct {
	Path           string `json:"path"`
	Attempt        int    `json:"attempt"`
	FromQuality    int    `json:"original_quality"`
	ToQuality      int    `json:"retry_quality"`
	OriginalSize   int64  `json:"initial_size"`
	CompressedSize int64  `json:"compressed_size"`
}

// Event is a sequenced notification.
type Event struct {
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      Type        `json:"type"`
	JobID     string      `json:"job_id,omitempty"`
	Path      string      `json:"path,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Bus stores recent events and fans them out to one subscriber channel.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	subs      []chan Event
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event, assigning its sequence and timestamp, and
// forwards it to subscribers without blocking.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- event:
		default:
			// Subscriber is not keeping up; drop rather than stall.
		}
	}

	return event
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// Subscribe registers a buffered channel that receives every event
// published after the call. Events are dropped for subscribers whose
// buffer is full.
func (b *Bus) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 64
	}

	ch := make(chan Event, buffer)

	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	return ch
}
