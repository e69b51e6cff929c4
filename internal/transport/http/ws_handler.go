package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/protocol"
)

const createTimeout = 5 * time.Second

type WSHandler struct {
	service  *app.GameService
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// session is the per-socket state: which participant this socket speaks for in each room.
type session struct {
	conn *wsConn

	mu       sync.Mutex
	bindings map[string]string
}

func (s *session) bind(roomID, participantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[roomID] = participantID
}

func (s *session) participant(roomID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bindings[roomID]
	return id, ok
}

func (s *session) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.bindings))
	for room, pid := range s.bindings {
		out[room] = pid
	}
	return out
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", slog.Any("error", err))
		return
	}
	conn := newWSConn(ws, h.log)
	sess := &session{conn: conn, bindings: make(map[string]string)}
	h.log.Debug("ws connected", slog.String("conn_id", conn.ID()), slog.String("remote", r.RemoteAddr))

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("ws read failed", slog.String("conn_id", conn.ID()), slog.Any("error", err))
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		h.handle(r.Context(), sess, raw)
	}

	_ = conn.Close()
	for roomID, participantID := range sess.snapshot() {
		h.service.ConnectionClosed(roomID, participantID, conn)
	}
	conn.wait()
}

func (h *WSHandler) handle(ctx context.Context, sess *session, raw []byte) {
	msg, err := protocol.Decode(raw)
	if err != nil {
		h.reply(sess, "", err)
		return
	}
	var roomID string
	if rm, ok := msg.(protocol.RoomMessage); ok {
		roomID = rm.Room()
	}
	if err := h.dispatch(ctx, sess, msg); err != nil {
		h.reply(sess, roomID, err)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, sess *session, msg protocol.Message) error {
	conn := sess.conn
	switch m := msg.(type) {
	case protocol.CreateGame:
		ctx, cancel := context.WithTimeout(ctx, createTimeout)
		defer cancel()
		_, err := h.service.CreateRoom(ctx, conn, app.CreateRoomRequest{
			QuizID:   m.Data.QuizID,
			Quiz:     m.Data.QuizData,
			Settings: m.Data.Settings,
		})
		return err

	case protocol.JoinGame:
		p := domain.Participant{ID: m.Player.ID, Name: m.Player.Name}
		if _, err := h.service.Join(m.GameID, p, conn, sinceTime(m.Since)); err != nil {
			return err
		}
		sess.bind(m.GameID, p.ID)
		return nil

	case protocol.Reconnect:
		if _, err := h.service.Reconnect(m.GameID, m.PlayerID, conn, sinceTime(m.Since)); err != nil {
			return err
		}
		sess.bind(m.GameID, m.PlayerID)
		return nil

	case protocol.StartGame:
		return h.service.Start(m.GameID, conn)

	case protocol.NextQuestion:
		return h.service.Advance(m.GameID, conn)

	case protocol.SubmitAnswer:
		// a socket may only answer for the participant it joined as
		if bound, ok := sess.participant(m.GameID); !ok || bound != m.PlayerID {
			return domain.ErrParticipantNotFound
		}
		_, err := h.service.SubmitAnswer(m.GameID, m.PlayerID, *m.QuestionIndex, m.Answer, conn)
		return err

	case protocol.QuestionTimeout:
		return h.service.RevealResults(m.GameID, conn)

	case protocol.DisconnectPlayer:
		return h.service.RemoveParticipant(m.GameID, m.PlayerID, conn)

	case protocol.FinishGame:
		_, err := h.service.Finish(m.GameID, conn)
		return err

	case protocol.GetTime:
		return conn.Send(protocol.NewServerTime(h.service.Now()))
	}
	return domain.ErrUnknownMessageType
}

func (h *WSHandler) reply(sess *session, roomID string, err error) {
	evt := protocol.NewError(roomID, err)
	log := h.log.With(slog.String("conn_id", sess.conn.ID()), slog.String("room_id", roomID), slog.String("code", evt.Code))
	if evt.Code == "internal" {
		log.Error("request failed", slog.Any("error", err))
	} else if !errors.Is(err, domain.ErrMalformedMessage) {
		log.Debug("request rejected", slog.Any("error", err))
	} else {
		log.Debug("malformed message", slog.Any("error", err))
	}
	_ = sess.conn.Send(evt)
}

// sinceTime converts a client's last-seen unix-millisecond stamp; 0 means "replay everything".
func sinceTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
