package memory

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

// ArchiveStore keeps finished games in memory. Used when no durable sink is
// configured, and by tests.
type ArchiveStore struct {
	mu    sync.Mutex
	games []domain.GameArchive
	err   error
}

func NewArchiveStore() *ArchiveStore {
	return &ArchiveStore{}
}

// FailWith makes every following Archive call return err.
func (s *ArchiveStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *ArchiveStore) Archive(ctx context.Context, game domain.GameArchive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.games = append(s.games, game)
	return nil
}

// Games returns the archived games in write order.
func (s *ArchiveStore) Games() []domain.GameArchive {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.GameArchive(nil), s.games...)
}
