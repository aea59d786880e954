package server

import (
	"sync"
)

// Event is the payload streamed to a workout session's subscribers.
type Event struct {
	Type       string `json:"type"`
	ExerciseID string `json:"exercise_id,omitempty"`
	AwardID    string `json:"award_id,omitempty"`
}

// Event types. EventClosed is always the last event of a session.
const (
	EventRestExpired = "rest_expired"
	EventFinalized   = "finalized"
	EventClosed      = "closed"
)

const streamBuffer = 16

// Broker fans session events out to event streams. A stream lives until its
// subscriber cancels it or the session ends.
type Broker struct {
	mu      sync.Mutex
	streams map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		streams: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe opens a stream for the session. The channel is closed after the
// session's EventClosed. cancel releases the stream and is safe to call more
// than once.
func (b *Broker) Subscribe(sessionID string) (events <-chan Event, cancel func()) {
	ch := make(chan Event, streamBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.streams[sessionID] == nil {
		b.streams[sessionID] = make(map[chan Event]struct{})
	}
	b.streams[sessionID][ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.streams[sessionID][ch]; !ok {
			return
		}
		delete(b.streams[sessionID], ch)
		if len(b.streams[sessionID]) == 0 {
			delete(b.streams, sessionID)
		}
		close(ch)
	}
}

// Publish delivers ev to the session's open streams. A stream whose buffer
// is full misses the event.
func (b *Broker) Publish(sessionID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.streams[sessionID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// End sends EventClosed to the session's streams and closes them.
func (b *Broker) End(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.streams[sessionID] {
		select {
		case ch <- Event{Type: EventClosed}:
		default:
		}
		close(ch)
	}
	delete(b.streams, sessionID)
}

// subscribers returns the number of open streams of a session.
func (b *Broker) subscribers(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams[sessionID])
}
