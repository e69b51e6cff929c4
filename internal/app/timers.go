package app

import (
	"sync"
	"time"
)

// scheduler holds at most one pending timer per room. Scheduling replaces the
// previous timer; cancelling a room stops it before it fires.
type scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newScheduler() *scheduler {
	return &scheduler{timers: make(map[string]*time.Timer)}
}

func (s *scheduler) schedule(roomID string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[roomID]; ok {
		existing.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[roomID] == timer {
			delete(s.timers, roomID)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[roomID] = timer
}

func (s *scheduler) cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[roomID]; ok {
		timer.Stop()
		delete(s.timers, roomID)
	}
}

func (s *scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
