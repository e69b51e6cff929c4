// Package protocol defines the JSON messages exchanged over a game connection.
// Inbound messages form a closed set; anything that does not decode into one of
// them with its required fields is rejected at the boundary.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"live-quiz-service/internal/domain"
)

const (
	TypeCreateGame       = "create_game"
	TypeJoinGame         = "join_game"
	TypeReconnect        = "reconnect"
	TypeStartGame        = "start_game"
	TypeNextQuestion     = "next_question"
	TypeAddAnswer        = "addAnswer"
	TypeSubmitAnswer     = "submit_answer"
	TypeQuestionTimeout  = "question_timeout"
	TypeDisconnectPlayer = "disconnect_player"
	TypeFinishGame       = "finish_game"
	TypeGetTime          = "get_time"
)

var validate = validator.New()

// Message is one decoded inbound message.
type Message interface {
	MessageType() string
}

// RoomMessage is implemented by messages addressed to an existing room.
type RoomMessage interface {
	Message
	Room() string
}

type CreateGameData struct {
	QuizID   string           `json:"quizId" validate:"required_without=QuizData"`
	QuizData *domain.Quiz     `json:"quizData"`
	Settings *domain.Settings `json:"settings"`
}

type CreateGame struct {
	Data CreateGameData `json:"data"`
}

type Player struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=64"`
}

type JoinGame struct {
	GameID string `json:"gameId" validate:"required"`
	Player Player `json:"player"`
	// Since is the last event time (unix ms) a rejoining client saw.
	Since int64 `json:"since" validate:"gte=0"`
}

type Reconnect struct {
	GameID   string `json:"gameId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Since    int64  `json:"since" validate:"gte=0"`
}

type StartGame struct {
	GameID string `json:"gameId" validate:"required"`
}

type NextQuestion struct {
	GameID string `json:"gameId" validate:"required"`
}

// SubmitAnswer is sent as either addAnswer or submit_answer.
type SubmitAnswer struct {
	Kind          string             `json:"type"`
	GameID        string             `json:"gameId" validate:"required"`
	PlayerID      string             `json:"playerId" validate:"required"`
	QuestionIndex *int               `json:"questionIndex" validate:"required,gte=0"`
	Answer        domain.AnswerValue `json:"answer"`
}

type QuestionTimeout struct {
	GameID string `json:"gameId" validate:"required"`
}

type DisconnectPlayer struct {
	GameID   string `json:"gameId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
}

type FinishGame struct {
	GameID string `json:"gameId" validate:"required"`
}

type GetTime struct{}

func (CreateGame) MessageType() string       { return TypeCreateGame }
func (JoinGame) MessageType() string         { return TypeJoinGame }
func (Reconnect) MessageType() string        { return TypeReconnect }
func (StartGame) MessageType() string        { return TypeStartGame }
func (NextQuestion) MessageType() string     { return TypeNextQuestion }
func (m SubmitAnswer) MessageType() string   { return m.Kind }
func (QuestionTimeout) MessageType() string  { return TypeQuestionTimeout }
func (DisconnectPlayer) MessageType() string { return TypeDisconnectPlayer }
func (FinishGame) MessageType() string       { return TypeFinishGame }
func (GetTime) MessageType() string          { return TypeGetTime }

func (m JoinGame) Room() string         { return m.GameID }
func (m Reconnect) Room() string        { return m.GameID }
func (m StartGame) Room() string        { return m.GameID }
func (m NextQuestion) Room() string     { return m.GameID }
func (m SubmitAnswer) Room() string     { return m.GameID }
func (m QuestionTimeout) Room() string  { return m.GameID }
func (m DisconnectPlayer) Room() string { return m.GameID }
func (m FinishGame) Room() string       { return m.GameID }

type envelope struct {
	Type string `json:"type"`
}

// Decode parses raw into one of the known message kinds. It returns an error
// wrapping domain.ErrMalformedMessage or domain.ErrUnknownMessageType.
func Decode(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}

	var msg Message
	switch env.Type {
	case TypeCreateGame:
		msg = &CreateGame{}
	case TypeJoinGame:
		msg = &JoinGame{}
	case TypeReconnect:
		msg = &Reconnect{}
	case TypeStartGame:
		msg = &StartGame{}
	case TypeNextQuestion:
		msg = &NextQuestion{}
	case TypeAddAnswer, TypeSubmitAnswer:
		msg = &SubmitAnswer{}
	case TypeQuestionTimeout:
		msg = &QuestionTimeout{}
	case TypeDisconnectPlayer:
		msg = &DisconnectPlayer{}
	case TypeFinishGame:
		msg = &FinishGame{}
	case TypeGetTime:
		return GetTime{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, env.Type)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedMessage, env.Type, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedMessage, env.Type, err)
	}

	switch m := msg.(type) {
	case *SubmitAnswer:
		if m.Answer.IsZero() {
			return nil, fmt.Errorf("%w: %s: answer is required", domain.ErrMalformedMessage, env.Type)
		}
		return *m, nil
	case *CreateGame:
		return *m, nil
	case *JoinGame:
		return *m, nil
	case *Reconnect:
		return *m, nil
	case *StartGame:
		return *m, nil
	case *NextQuestion:
		return *m, nil
	case *QuestionTimeout:
		return *m, nil
	case *DisconnectPlayer:
		return *m, nil
	case *FinishGame:
		return *m, nil
	}
	return msg, nil
}
