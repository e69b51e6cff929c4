package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id is not open.
	ErrRoomNotFound = errors.New("room not found")
	// ErrDuplicateRoom is returned when a host is registered twice for the same room id.
	ErrDuplicateRoom = errors.New("room already exists")
	// ErrParticipantNotFound is returned when a participant id never joined the room.
	ErrParticipantNotFound = errors.New("participant not found in room")
	// ErrNameConflict is returned when a different participant already uses the name.
	ErrNameConflict = errors.New("name already taken in room")
	// ErrDuplicateAnswer is returned on a second submission for the same question.
	ErrDuplicateAnswer = errors.New("already answered")
	// ErrStaleAnswer is returned when the answer targets a question that is not the open one.
	ErrStaleAnswer = errors.New("question is not open")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrLateJoinNotAllowed is returned when a room already started and forbids late joins.
	ErrLateJoinNotAllowed = errors.New("room does not accept late joins")
	// ErrNotHost is returned when a host-only operation comes from another connection.
	ErrNotHost = errors.New("only the host can do this")
	// ErrInvalidTransition is returned when a room is not in a state that allows the operation.
	ErrInvalidTransition = errors.New("operation not allowed in current room state")
	// ErrMalformedMessage is returned for payloads that cannot be parsed or miss required fields.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnknownMessageType is returned for messages with an unrecognised type.
	ErrUnknownMessageType = errors.New("unknown message type")
)
