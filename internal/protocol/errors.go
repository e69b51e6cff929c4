package protocol

import (
	"errors"

	"live-quiz-service/internal/domain"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrRoomNotFound, "room_not_found"},
	{domain.ErrDuplicateRoom, "duplicate_room"},
	{domain.ErrParticipantNotFound, "participant_not_found"},
	{domain.ErrNameConflict, "name_conflict"},
	{domain.ErrDuplicateAnswer, "duplicate_answer"},
	{domain.ErrStaleAnswer, "stale_answer"},
	{domain.ErrQuizNotFound, "quiz_not_found"},
	{domain.ErrLateJoinNotAllowed, "late_join_not_allowed"},
	{domain.ErrNotHost, "not_host"},
	{domain.ErrInvalidTransition, "invalid_state"},
	{domain.ErrMalformedMessage, "malformed_message"},
	{domain.ErrUnknownMessageType, "unknown_message_type"},
}

// ErrorCode maps a domain error onto its stable wire code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

type Error struct {
	header
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds the error event sent back to the originating connection.
// Internal failures are not described to clients.
func NewError(gameID string, err error) Error {
	code := ErrorCode(err)
	var message string
	switch code {
	case "internal":
		message = "internal error"
	case "unknown_message_type":
		message = "Unknown message type"
	case "malformed_message":
		message = "Invalid message"
	default:
		message = domainMessage(err)
	}
	return Error{header: header{Type: EventError, GameID: gameID}, Code: code, Message: message}
}

// domainMessage returns the text of the sentinel wrapped in err.
func domainMessage(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.err.Error()
		}
	}
	return err.Error()
}
