package protocol

import (
	"time"

	"live-quiz-service/internal/domain"
)

const (
	EventGameCreated        = "game_created"
	EventGameStarted        = "game_started"
	EventJoined             = "joined"
	EventReconnected        = "reconnected"
	EventCountdown          = "countdown"
	EventQuestion           = "question"
	EventResults            = "results"
	EventAnswerReceived     = "answer_received"
	EventAnswerUpdate       = "answer_update"
	EventPlayerDisconnected = "player_disconnected"
	EventDisconnected       = "disconnected"
	EventGameFinished       = "game_finished"
	EventServerTime         = "server_time"
	EventError              = "error"
)

// header is embedded in every outbound event; its fields are flattened into the JSON object.
type header struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
	// At is the unix-millisecond time a broadcast event entered the replay buffer.
	At int64 `json:"at,omitempty"`
}

func (h header) EventType() string { return h.Type }

type GameCreated struct {
	header
	Game domain.Room `json:"game"`
}

func NewGameCreated(room domain.Room) GameCreated {
	return GameCreated{header: header{Type: EventGameCreated, GameID: room.ID}, Game: room}
}

type GameStarted struct {
	header
	TotalQuestions int `json:"totalQuestions"`
}

func NewGameStarted(gameID string, total int) GameStarted {
	return GameStarted{header: header{Type: EventGameStarted, GameID: gameID}, TotalQuestions: total}
}

func (e GameStarted) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type Joined struct {
	header
	Player   domain.Participant `json:"player"`
	Rejoined bool               `json:"rejoined,omitempty"`
}

func NewJoined(gameID string, p domain.Participant, rejoined bool) Joined {
	return Joined{header: header{Type: EventJoined, GameID: gameID}, Player: p, Rejoined: rejoined}
}

func (e Joined) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type Reconnected struct {
	header
	PlayerID             string         `json:"playerId"`
	Status               domain.Status  `json:"status"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	TotalQuestions       int            `json:"totalQuestions"`
	MissedEvents         []domain.Event `json:"missedEvents"`
}

func NewReconnected(gameID, playerID string, status domain.Status, current, total int, missed []domain.Event) Reconnected {
	if missed == nil {
		missed = []domain.Event{}
	}
	return Reconnected{
		header:               header{Type: EventReconnected, GameID: gameID},
		PlayerID:             playerID,
		Status:               status,
		CurrentQuestionIndex: current,
		TotalQuestions:       total,
		MissedEvents:         missed,
	}
}

type Countdown struct {
	header
	Seconds int `json:"seconds"`
}

func NewCountdown(gameID string, d time.Duration) Countdown {
	return Countdown{header: header{Type: EventCountdown, GameID: gameID}, Seconds: int((d + time.Second - 1) / time.Second)}
}

func (e Countdown) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type Question struct {
	header
	Index        int                   `json:"index"`
	Question     domain.PublicQuestion `json:"question"`
	QuestionType domain.QuestionType   `json:"questionType"`
	EndsAt       *time.Time            `json:"endsAt,omitempty"`
}

func NewQuestion(gameID string, index int, q domain.Question, endsAt *time.Time) Question {
	return Question{
		header:       header{Type: EventQuestion, GameID: gameID},
		Index:        index,
		Question:     q.Public(),
		QuestionType: q.Type,
		EndsAt:       endsAt,
	}
}

func (e Question) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

// CorrectAnswer is included in results only when the room reveals answers.
type CorrectAnswer struct {
	Bool    *bool `json:"correctAnswer,omitempty"`
	Options []int `json:"correctAnswers,omitempty"`
}

type Results struct {
	header
	QuestionIndex int             `json:"questionIndex"`
	Correct       *CorrectAnswer  `json:"correct,omitempty"`
	Answers       []domain.Answer `json:"answers"`
}

func NewResults(gameID string, index int, correct *CorrectAnswer, answers []domain.Answer) Results {
	if answers == nil {
		answers = []domain.Answer{}
	}
	return Results{header: header{Type: EventResults, GameID: gameID}, QuestionIndex: index, Correct: correct, Answers: answers}
}

func (e Results) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type AnswerReceived struct {
	header
	QuestionIndex int  `json:"questionIndex"`
	IsCorrect     bool `json:"isCorrect"`
	Points        int  `json:"points"`
	TotalPoints   int  `json:"totalPoints"`
}

func NewAnswerReceived(gameID string, a domain.Answer, total int) AnswerReceived {
	return AnswerReceived{
		header:        header{Type: EventAnswerReceived, GameID: gameID},
		QuestionIndex: a.QuestionIndex,
		IsCorrect:     a.IsCorrect,
		Points:        a.Points,
		TotalPoints:   total,
	}
}

type AnswerUpdate struct {
	header
	AnsweredQuestions []domain.AnsweredQuestion `json:"answeredQuestions"`
}

func NewAnswerUpdate(gameID string, answered []domain.AnsweredQuestion) AnswerUpdate {
	return AnswerUpdate{header: header{Type: EventAnswerUpdate, GameID: gameID}, AnsweredQuestions: answered}
}

const (
	ReasonConnectionLost = "connection_lost"
	ReasonRemoved        = "removed"
)

type PlayerDisconnected struct {
	header
	PlayerID string `json:"playerId"`
	Reason   string `json:"reason"`
}

func NewPlayerDisconnected(gameID, playerID, reason string) PlayerDisconnected {
	return PlayerDisconnected{header: header{Type: EventPlayerDisconnected, GameID: gameID}, PlayerID: playerID, Reason: reason}
}

func (e PlayerDisconnected) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type Disconnected struct {
	header
	Reason string `json:"reason"`
}

func NewDisconnected(gameID, reason string) Disconnected {
	return Disconnected{header: header{Type: EventDisconnected, GameID: gameID}, Reason: reason}
}

type GameFinished struct {
	header
	Winners []domain.ScoreEntry `json:"winners"`
}

func NewGameFinished(gameID string, winners []domain.ScoreEntry) GameFinished {
	if winners == nil {
		winners = []domain.ScoreEntry{}
	}
	return GameFinished{header: header{Type: EventGameFinished, GameID: gameID}, Winners: winners}
}

func (e GameFinished) WithRecordedAt(at time.Time) domain.Event {
	e.At = at.UnixMilli()
	return e
}

type ServerTime struct {
	header
	Time int64 `json:"time"`
}

func NewServerTime(now time.Time) ServerTime {
	return ServerTime{header: header{Type: EventServerTime}, Time: now.UnixMilli()}
}
