// Package broadcast delivers room events to the host and participants.
package broadcast

import (
	"log/slog"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/registry"
	"live-quiz-service/internal/replay"
)

// Router fans events out to a room and records them for replay.
type Router struct {
	registry *registry.Registry
	buffer   *replay.Buffer
	log      *slog.Logger
}

func NewRouter(reg *registry.Registry, buffer *replay.Buffer, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{registry: reg, buffer: buffer, log: log}
}

// Broadcast records evt for roomID and sends it, stamped with its record time, to
// the host and every bound, open participant connection. It returns the number of connections the event was handed to.
func (r *Router) Broadcast(roomID string, evt domain.Event) int {
	evt = r.buffer.Record(roomID, evt).Event

	host, participants := r.registry.Destinations(roomID)
	delivered := 0
	if host != nil && host.Open() {
		if r.send(roomID, host, evt) {
			delivered++
		}
	}
	for _, conn := range participants {
		if host != nil && conn.ID() == host.ID() {
			continue
		}
		if !conn.Open() {
			continue
		}
		if r.send(roomID, conn, evt) {
			delivered++
		}
	}
	return delivered
}

// Unicast sends evt to a single connection without recording it.
func (r *Router) Unicast(conn domain.Conn, evt domain.Event) error {
	if conn == nil {
		return nil
	}
	return conn.Send(evt)
}

func (r *Router) send(roomID string, conn domain.Conn, evt domain.Event) bool {
	if err := conn.Send(evt); err != nil {
		r.log.Debug("broadcast send dropped",
			slog.String("room_id", roomID),
			slog.String("conn_id", conn.ID()),
			slog.String("event", evt.EventType()),
			slog.Any("error", err))
		return false
	}
	return true
}
