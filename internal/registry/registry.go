// Package registry binds rooms to their host connection and their participants'
// current connections. A participant stays on the roster after a network drop
// and only leaves it when removed explicitly.
package registry

import (
	"sync"

	"github.com/samber/lo"

	"live-quiz-service/internal/domain"
)

// JoinKind tells callers whether a join added a new participant or rebound an existing one.
type JoinKind int

const (
	JoinFresh JoinKind = iota
	JoinRejoin
)

func (k JoinKind) String() string {
	if k == JoinRejoin {
		return "rejoin"
	}
	return "fresh"
}

type roomEntry struct {
	mu     sync.Mutex
	host   domain.Conn
	roster []domain.Participant
	conns  map[string]domain.Conn
}

// Registry is safe for concurrent use. Operations on different rooms only share
// the short-lived lookup lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*roomEntry)}
}

func (r *Registry) entry(roomID string) (*roomEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[roomID]
	return e, ok
}

// RegisterHost binds the host connection of a newly created room.
func (r *Registry) RegisterHost(roomID string, conn domain.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; ok {
		return domain.ErrDuplicateRoom
	}
	r.rooms[roomID] = &roomEntry{
		host:  conn,
		conns: make(map[string]domain.Conn),
	}
	return nil
}

// JoinParticipant adds p to the roster and binds conn. A known id is treated as a
// rejoin and only rebinds the connection. A different id with a taken name fails
// with ErrNameConflict and changes nothing.
func (r *Registry) JoinParticipant(roomID string, p domain.Participant, conn domain.Conn) (JoinKind, error) {
	e, ok := r.entry(roomID)
	if !ok {
		return JoinFresh, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, known := lo.Find(e.roster, func(existing domain.Participant) bool { return existing.ID == p.ID }); known {
		e.bindLocked(p.ID, conn)
		return JoinRejoin, nil
	}
	if lo.ContainsBy(e.roster, func(existing domain.Participant) bool { return existing.Name == p.Name }) {
		return JoinFresh, domain.ErrNameConflict
	}
	e.roster = append(e.roster, p)
	e.bindLocked(p.ID, conn)
	return JoinFresh, nil
}

// Reconnect rebinds the connection of a participant that joined earlier.
func (r *Registry) Reconnect(roomID, participantID string, conn domain.Conn) (domain.Participant, error) {
	e, ok := r.entry(roomID)
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	p, known := lo.Find(e.roster, func(existing domain.Participant) bool { return existing.ID == participantID })
	if !known {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	e.bindLocked(participantID, conn)
	return p, nil
}

// bindLocked replaces the participant's connection. A superseded connection is
// left open: the client may still be using it for another room.
func (e *roomEntry) bindLocked(participantID string, conn domain.Conn) {
	if conn == nil {
		delete(e.conns, participantID)
		return
	}
	e.conns[participantID] = conn
}

// RemoveParticipant drops the participant from the roster and closes its live connection.
func (r *Registry) RemoveParticipant(roomID, participantID string) (domain.Participant, error) {
	e, ok := r.entry(roomID)
	if !ok {
		return domain.Participant{}, domain.ErrRoomNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, idx, ok := lo.FindIndexOf(e.roster, func(p domain.Participant) bool { return p.ID == participantID })
	if !ok {
		return domain.Participant{}, domain.ErrParticipantNotFound
	}
	e.roster = append(e.roster[:idx:idx], e.roster[idx+1:]...)
	if conn, ok := e.conns[participantID]; ok {
		delete(e.conns, participantID)
		_ = conn.Close()
	}
	return removed, nil
}

// OnConnectionClosed unbinds the participant's connection after an unexpected close.
// The roster entry stays. When conn is non-nil the binding is only removed if it is
// still that connection, so a close racing a reconnect does not unbind the new one.
func (r *Registry) OnConnectionClosed(roomID, participantID string, conn domain.Conn) bool {
	e, ok := r.entry(roomID)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	current, ok := e.conns[participantID]
	if !ok {
		return false
	}
	if conn != nil && current.ID() != conn.ID() {
		return false
	}
	delete(e.conns, participantID)
	return true
}

// RemoveRoom forgets the room and every binding it held. Connections stay open.
func (r *Registry) RemoveRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, roomID)
}

// Host returns the room's host connection.
func (r *Registry) Host(roomID string) (domain.Conn, bool) {
	e, ok := r.entry(roomID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.host, e.host != nil
}

// IsHost reports whether conn is the host connection of roomID.
func (r *Registry) IsHost(roomID string, conn domain.Conn) bool {
	if conn == nil {
		return false
	}
	host, ok := r.Host(roomID)
	return ok && host.ID() == conn.ID()
}

// Participants returns the roster in join order.
func (r *Registry) Participants(roomID string) []domain.Participant {
	e, ok := r.entry(roomID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]domain.Participant(nil), e.roster...)
}

// Conn returns the participant's currently bound connection.
func (r *Registry) Conn(roomID, participantID string) (domain.Conn, bool) {
	e, ok := r.entry(roomID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	conn, ok := e.conns[participantID]
	return conn, ok
}

// Destinations returns the host connection and the participant connections in
// roster order. Participants without a binding are skipped.
func (r *Registry) Destinations(roomID string) (domain.Conn, []domain.Conn) {
	e, ok := r.entry(roomID)
	if !ok {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]domain.Conn, 0, len(e.conns))
	for _, p := range e.roster {
		if conn, ok := e.conns[p.ID]; ok {
			conns = append(conns, conn)
		}
	}
	return e.host, conns
}
