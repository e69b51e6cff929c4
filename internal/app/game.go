package app

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// Game is the in-memory state of one open room. Every mutation happens under mu,
// so no two operations on the same room interleave; different rooms never share a lock.
type Game struct {
	mu   sync.Mutex
	room domain.Room
	quiz domain.Quiz
	// reveal is bumped on every advance so a late countdown callback can tell it is stale.
	reveal int
}

// NewGame wraps a freshly created room and the quiz it plays.
func NewGame(room domain.Room, quiz domain.Quiz) *Game {
	return &Game{room: room, quiz: quiz}
}

// ID returns the room id. It never changes after creation.
func (g *Game) ID() string {
	return g.room.ID
}

// Snapshot returns a deep copy of the room state.
func (g *Game) Snapshot() domain.Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.room.Clone()
}

func (g *Game) hasParticipantLocked(participantID string) bool {
	for _, p := range g.room.Participants {
		if p.ID == participantID {
			return true
		}
	}
	return false
}

// openQuestionLocked returns the answered-question entry of the most recently opened question.
func (g *Game) openQuestionLocked() (*domain.AnsweredQuestion, bool) {
	open := g.room.CurrentQuestionIndex - 1
	if open < 0 {
		return nil, false
	}
	for i := len(g.room.AnsweredQuestions) - 1; i >= 0; i-- {
		if g.room.AnsweredQuestions[i].QuestionIndex == open {
			return &g.room.AnsweredQuestions[i], true
		}
	}
	return nil, false
}

func (g *Game) questionLocked(index int) (domain.Question, bool) {
	if index < 0 || index >= len(g.quiz.Questions) {
		return domain.Question{}, false
	}
	return g.quiz.Questions[index], true
}
