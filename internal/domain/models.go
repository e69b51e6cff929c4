package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// QuestionType discriminates the question shapes a quiz may contain.
type QuestionType string

const (
	QuestionTrueFalse QuestionType = "true-false"
	QuestionStandard  QuestionType = "standard"
)

// Settings is carried with a room. Only AllowLateJoins and ShowCorrectAnswers change server behaviour.
type Settings struct {
	QuestionTimeLimit  int  `json:"questionTimeLimit" yaml:"questionTimeLimit"` // seconds
	ShowCorrectAnswers bool `json:"showCorrectAnswers" yaml:"showCorrectAnswers"`
	AllowLateJoins     bool `json:"allowLateJoins" yaml:"allowLateJoins"`
}

// DefaultSettings mirrors what hosts get when create_game omits settings.
func DefaultSettings() Settings {
	return Settings{
		QuestionTimeLimit:  30,
		ShowCorrectAnswers: true,
		AllowLateJoins:     true,
	}
}

// Participant is a joined player. Online status lives in the connection registry, not here.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joinedAt"`
}

// AnswerValue is the raw answer payload: a boolean for true-false questions,
// one or more option indices for standard questions.
type AnswerValue struct {
	Bool    *bool
	Options []int
}

// BoolAnswer builds a true-false answer.
func BoolAnswer(v bool) AnswerValue {
	return AnswerValue{Bool: &v}
}

// OptionAnswer builds a standard answer from option indices.
func OptionAnswer(indices ...int) AnswerValue {
	return AnswerValue{Options: indices}
}

// IsZero reports whether no answer was supplied.
func (a AnswerValue) IsZero() bool {
	return a.Bool == nil && len(a.Options) == 0
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case a.Bool != nil:
		return json.Marshal(*a.Bool)
	case len(a.Options) == 1:
		return json.Marshal(a.Options[0])
	case len(a.Options) > 1:
		return json.Marshal(a.Options)
	default:
		return []byte("null"), nil
	}
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*a = AnswerValue{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		a.Bool = &b
		return nil
	case '[':
		var opts []int
		if err := json.Unmarshal(data, &opts); err != nil {
			return err
		}
		a.Options = opts
		return nil
	default:
		var idx int
		if err := json.Unmarshal(data, &idx); err != nil {
			return fmt.Errorf("answer must be a boolean, an option index or a list of indices: %w", err)
		}
		a.Options = []int{idx}
		return nil
	}
}

// Answer is one participant's submission for one shown question.
type Answer struct {
	ParticipantID string      `json:"participantId"`
	QuestionID    string      `json:"questionId"`
	QuestionIndex int         `json:"questionIndex"`
	Answer        AnswerValue `json:"answer"`
	AnsweredAt    time.Time   `json:"answeredAt"`
	IsCorrect     bool        `json:"isCorrect"`
	Points        int         `json:"points"`
}

// AnsweredQuestion is appended when a question is opened. It accepts answers only
// once Revealed is set; an entry still counting down when the room finishes is
// dropped, so a finished room holds one entry per question actually shown.
type AnsweredQuestion struct {
	QuestionIndex int        `json:"questionIndex"`
	StartedAt     time.Time  `json:"startedAt"`
	EndsAt        *time.Time `json:"endsAt,omitempty"`
	Revealed      bool       `json:"revealed"`
	Answers       []Answer   `json:"answers"`
}

// HasAnswerFrom reports whether participantID already answered this question.
func (q AnsweredQuestion) HasAnswerFrom(participantID string) bool {
	for _, a := range q.Answers {
		if a.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// QuestionOption is one selectable option of a standard question.
type QuestionOption struct {
	Text  string `json:"text" yaml:"text"`
	Image string `json:"image,omitempty" yaml:"image,omitempty"`
}

// Question is read-only quiz content.
type Question struct {
	ID             string           `json:"id" yaml:"id"`
	Type           QuestionType     `json:"type" yaml:"type"`
	Question       string           `json:"question" yaml:"question"`
	Options        []QuestionOption `json:"options,omitempty" yaml:"options,omitempty"`
	CorrectAnswer  bool             `json:"correctAnswer,omitempty" yaml:"correctAnswer,omitempty"`
	CorrectAnswers []int            `json:"correctAnswers,omitempty" yaml:"correctAnswers,omitempty"`
	Image          string           `json:"image,omitempty" yaml:"image,omitempty"`
}

// Public strips the correct answer so the question can be shown to players.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:       q.ID,
		Type:     q.Type,
		Question: q.Question,
		Options:  q.Options,
		Image:    q.Image,
	}
}

// PublicQuestion is the player-facing view of a Question.
type PublicQuestion struct {
	ID       string           `json:"id"`
	Type     QuestionType     `json:"type"`
	Question string           `json:"question"`
	Options  []QuestionOption `json:"options,omitempty"`
	Image    string           `json:"image,omitempty"`
}

// Quiz is a collection of questions.
type Quiz struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	Questions   []Question `json:"questions" yaml:"questions"`
}

// Room is a single trivia game. It holds no connection handles so it can be
// snapshotted and archived as-is.
type Room struct {
	ID                   string             `json:"id"`
	GamePin              string             `json:"gamePin"`
	QuizID               string             `json:"quizId,omitempty"`
	QuizTitle            string             `json:"quizTitle,omitempty"`
	Status               Status             `json:"status"`
	CurrentQuestionIndex int                `json:"currentQuestionIndex"`
	TotalQuestions       int                `json:"totalQuestions"`
	Participants         []Participant      `json:"participants"`
	AnsweredQuestions    []AnsweredQuestion `json:"answeredQuestions"`
	Settings             Settings           `json:"settings"`
	CreatedAt            time.Time          `json:"createdAt"`
	StartedAt            *time.Time         `json:"startedAt,omitempty"`
	FinishedAt           *time.Time         `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy safe to hand out of the owning lock.
func (r Room) Clone() Room {
	out := r
	out.Participants = append([]Participant(nil), r.Participants...)
	out.AnsweredQuestions = make([]AnsweredQuestion, len(r.AnsweredQuestions))
	for i, q := range r.AnsweredQuestions {
		q.Answers = append([]Answer(nil), q.Answers...)
		out.AnsweredQuestions[i] = q
	}
	return out
}

// ScoreEntry is one row of the final scoreboard.
type ScoreEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// GameArchive is the document handed to archive sinks when a room finishes.
type GameArchive struct {
	Game       Room         `json:"game"`
	Quiz       Quiz         `json:"quiz"`
	Winners    []ScoreEntry `json:"winners"`
	ArchivedAt time.Time    `json:"archivedAt"`
}
