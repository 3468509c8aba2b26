// Package events implements the observability event stream emitted by the
// primitive dispatcher and orchestration context for external observers
// (the out-of-scope event-stream adapter reads from a Bus).
package events

import (
	"encoding/json"
	"sync"
)

// Type enumerates the observable event kinds.
type Type string

const (
	TypeChange      Type = "change"
	TypeLink        Type = "link"
	TypeParticipant Type = "participant"
)

// Event is one observable occurrence: a type tag, an opaque payload, and a
// Unix millisecond timestamp. It marshals to the wire record adapters
// consume: {"type", "payload", "timestamp"}.
type Event struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

// New builds an Event, marshaling payload to JSON. A payload that
// json.Marshal cannot encode is recorded as a JSON null payload; New never
// panics or fails.
func New(typ Type, payload any, timestampMillis int64) Event {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Event{Type: typ, Payload: raw, Timestamp: timestampMillis}
}

// Bus is a non-blocking, best-effort fan-out publisher. Publish never
// blocks the caller: when a subscriber's buffer is full, its oldest
// pending event is dropped to make room, so a slow observer never stalls
// the dispatcher thread that is emitting events.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
}

// NewBus returns a Bus whose subscriber channels each buffer bufferSize
// events before dropping the oldest.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{subscribers: make(map[int]chan Event), bufferSize: bufferSize}
}

// Subscribe registers a new observer and returns its event channel plus an
// unsubscribe function. The channel is never closed by Publish; callers
// must call unsubscribe to stop receiving and release the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans out ev to every current subscriber without blocking. A full
// subscriber channel has its oldest event dropped, then ev is enqueued;
// this never fails and never blocks the publisher.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live subscribers, for tests and
// maintenance tooling.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
