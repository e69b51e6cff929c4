package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/app"
)

// RoomStore is a Redis-aware implementation of app.RoomStore.
//   - Games live in a local map: a room and its connections are owned by one process.
//   - Redis holds a liveness key per open room (quiz:room:{id} -> quiz id), which also
//     claims the join code so two instances sharing a Redis never hand out the same one.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*app.Game
}

func NewRoomStore(client *redis.Client, ttl time.Duration, log *slog.Logger) *RoomStore {
	if log == nil {
		log = slog.Default()
	}
	return &RoomStore{
		client: client,
		ttl:    ttl,
		log:    log,
		rooms:  make(map[string]*app.Game),
	}
}

func (s *RoomStore) Insert(game *app.Game) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := game.ID()
	if _, taken := s.rooms[id]; taken {
		return false
	}
	claimed, err := s.client.SetNX(context.Background(), s.key(id), game.Snapshot().QuizID, s.ttl).Result()
	if err != nil {
		// Redis down: the local map is still authoritative for this process
		s.log.Warn("claim room key failed", slog.String("room_id", id), slog.Any("error", err))
	} else if !claimed {
		return false
	}
	s.rooms[id] = game
	return true
}

func (s *RoomStore) Get(roomID string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.rooms[roomID]
	return game, ok
}

// Touch pushes the liveness key's expiry out by another ttl, so a room that keeps
// advancing holds its join code for as long as it runs.
func (s *RoomStore) Touch(roomID string) {
	if s.ttl <= 0 {
		return
	}
	s.mu.RLock()
	_, ok := s.rooms[roomID]
	s.mu.RUnlock()
	if !ok {
		return
	}
	if err := s.client.Expire(context.Background(), s.key(roomID), s.ttl).Err(); err != nil {
		s.log.Warn("refresh room key failed", slog.String("room_id", roomID), slog.Any("error", err))
	}
}

func (s *RoomStore) Delete(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return
	}
	delete(s.rooms, roomID)
	if err := s.client.Del(context.Background(), s.key(roomID)).Err(); err != nil {
		s.log.Warn("release room key failed", slog.String("room_id", roomID), slog.Any("error", err))
	}
}

func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomStore) key(roomID string) string {
	return "quiz:room:" + roomID
}
