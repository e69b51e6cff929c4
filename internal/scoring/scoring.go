// Package scoring turns submitted answers into points and ranks participants.
// Everything here is pure: no clocks, no locks, no I/O.
package scoring

import (
	"sort"
	"time"

	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

const (
	BasePoints       = 500
	MaxTimeBonus     = 500
	PenaltyPerSecond = 10
)

// Evaluate reports whether answer is correct for q. True-false questions need an
// exact boolean match; standard questions need every submitted index to be one of
// the correct options. There is no partial credit.
func Evaluate(q domain.Question, answer domain.AnswerValue) bool {
	switch q.Type {
	case domain.QuestionTrueFalse:
		return answer.Bool != nil && *answer.Bool == q.CorrectAnswer
	case domain.QuestionStandard:
		if len(answer.Options) == 0 {
			return false
		}
		return lo.Every(q.CorrectAnswers, answer.Options)
	default:
		return false
	}
}

// Score awards BasePoints plus a time bonus that loses PenaltyPerSecond for every
// whole second between the question start and the answer. Incorrect answers get 0.
func Score(correct bool, startedAt, answeredAt time.Time) int {
	if !correct {
		return 0
	}
	elapsed := answeredAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	seconds := int(elapsed / time.Second)
	bonus := MaxTimeBonus - PenaltyPerSecond*seconds
	if bonus < 0 {
		bonus = 0
	}
	return BasePoints + bonus
}

// Aggregate sums the points participantID earned across every answered question.
// It is recomputed on each call.
func Aggregate(room domain.Room, participantID string) int {
	total := 0
	for _, q := range room.AnsweredQuestions {
		total += lo.SumBy(q.Answers, func(a domain.Answer) int {
			if a.ParticipantID != participantID {
				return 0
			}
			return a.Points
		})
	}
	return total
}

// Rank returns every participant with their total, highest first. Ties keep join order.
func Rank(room domain.Room) []domain.ScoreEntry {
	entries := lo.Map(room.Participants, func(p domain.Participant, _ int) domain.ScoreEntry {
		return domain.ScoreEntry{
			ID:     p.ID,
			Name:   p.Name,
			Points: Aggregate(room, p.ID),
		}
	})
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	return entries
}
