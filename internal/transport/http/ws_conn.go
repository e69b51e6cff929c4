package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendQueueSize  = 64
)

var (
	errConnClosed   = errors.New("connection closed")
	errSlowConsumer = errors.New("send queue full")
)

// wsConn is the domain.Conn behind one websocket. Send never blocks: frames are
// queued for a single writer goroutine, and a peer that stops draining its queue
// gets disconnected.
type wsConn struct {
	id  string
	ws  *websocket.Conn
	log *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writerEnd chan struct{}
}

var _ domain.Conn = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn, log *slog.Logger) *wsConn {
	id := uuid.NewString()
	c := &wsConn{
		id:        id,
		ws:        ws,
		log:       log.With(slog.String("conn_id", id)),
		send:      make(chan []byte, sendQueueSize),
		done:      make(chan struct{}),
		writerEnd: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(evt domain.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("dropping slow connection", slog.String("event", evt.EventType()))
		_ = c.Close()
		return errSlowConsumer
	}
}

func (c *wsConn) Open() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Close stops the writer after it flushed what is already queued.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// wait blocks until the writer has flushed and closed the socket.
func (c *wsConn) wait() {
	<-c.writerEnd
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.writerEnd)
	}()
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				c.log.Debug("ws write failed", slog.Any("error", err))
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (c *wsConn) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}
