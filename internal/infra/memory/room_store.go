package memory

import (
	"sync"

	"live-quiz-service/internal/app"
)

// RoomStore is an in-memory implementation of app.RoomStore.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*app.Game
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*app.Game),
	}
}

func (s *RoomStore) Insert(game *app.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.rooms[game.ID()]; taken {
		return false
	}
	s.rooms[game.ID()] = game
	return true
}

func (s *RoomStore) Get(roomID string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.rooms[roomID]
	return game, ok
}

// Touch is a no-op: in-memory rooms do not expire.
func (s *RoomStore) Touch(string) {}

func (s *RoomStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, roomID)
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
