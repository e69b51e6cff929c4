package domain

import "time"

// Event is an outbound message. Type is the wire discriminator.
type Event interface {
	EventType() string
}

// Stamped is implemented by events that carry the time the room recorded them.
// Clients pass the latest stamp they saw back as their replay cursor.
type Stamped interface {
	Event
	WithRecordedAt(at time.Time) Event
}

// Conn is a live bidirectional client connection. Send must not block on the network.
type Conn interface {
	ID() string
	Send(evt Event) error
	Open() bool
	Close() error
}
