// Package conntest provides an in-memory domain.Conn that records what it is sent.
package conntest

import (
	"errors"
	"sync"

	"live-quiz-service/internal/domain"
)

// ErrClosed is returned by Send once the recorder is closed.
var ErrClosed = errors.New("connection closed")

// Recorder is a domain.Conn that keeps every event in memory.
type Recorder struct {
	id string

	mu     sync.Mutex
	events []domain.Event
	closed bool
}

func NewRecorder(id string) *Recorder {
	return &Recorder{id: id}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(evt domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Open() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Events returns a copy of everything received so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// Types returns the EventType of everything received so far, in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.EventType())
	}
	return out
}

// Last returns the most recent event of the given type.
func (r *Recorder) Last(eventType string) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].EventType() == eventType {
			return r.events[i], true
		}
	}
	return nil, false
}

// Count returns how many events of the given type were received.
func (r *Recorder) Count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.EventType() == eventType {
			n++
		}
	}
	return n
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
