// Package replay keeps a short per-room history of broadcast events so a
// reconnecting participant can catch up on what it missed.
package replay

import (
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// DefaultCapacity is the number of events retained per room.
const DefaultCapacity = 50

// Entry is one buffered event with the time it was recorded.
type Entry struct {
	At    time.Time
	Event domain.Event
}

// Buffer is a per-room, fixed-capacity FIFO of recent events. Eviction is by
// insertion order only; there is no time-based expiry.
type Buffer struct {
	capacity int
	now      func() time.Time

	mu    sync.Mutex
	last  time.Time
	rooms map[string][]Entry
}

func NewBuffer(capacity int) *Buffer {
	return NewBufferWithClock(capacity, time.Now)
}

// NewBufferWithClock allows deterministic timestamps in tests.
func NewBufferWithClock(capacity int, now func() time.Time) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		now:      now,
		rooms:    make(map[string][]Entry),
	}
}

// Record appends evt for roomID, evicting the oldest entry once capacity is exceeded.
// Record times are whole milliseconds and strictly increasing, so a cursor in unix
// milliseconds never straddles two events. Stamped events are stored carrying it.
func (b *Buffer) Record(roomID string, evt domain.Event) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := b.now().Truncate(time.Millisecond)
	if !at.After(b.last) {
		at = b.last.Add(time.Millisecond)
	}
	b.last = at
	if s, ok := evt.(domain.Stamped); ok {
		evt = s.WithRecordedAt(at)
	}
	entry := Entry{At: at, Event: evt}
	entries := append(b.rooms[roomID], entry)
	if over := len(entries) - b.capacity; over > 0 {
		// copy down so the backing array does not grow without bound
		entries = append(entries[:0], entries[over:]...)
	}
	b.rooms[roomID] = entries
	return entry
}

// ReplaySince returns, oldest first, every buffered event recorded strictly after since.
func (b *Buffer) ReplaySince(roomID string, since time.Time) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.rooms[roomID]
	out := make([]domain.Event, 0, len(entries))
	for _, e := range entries {
		if e.At.After(since) {
			out = append(out, e.Event)
		}
	}
	return out
}

// Len reports how many events are buffered for roomID.
func (b *Buffer) Len(roomID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.rooms[roomID])
}

// Drop forgets everything buffered for roomID.
func (b *Buffer) Drop(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, roomID)
}

// Capacity returns the per-room retention limit.
func (b *Buffer) Capacity() int {
	return b.capacity
}
