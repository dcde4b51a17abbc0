package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/foxseedlab/ko2bn/internal/protocol"
	"github.com/foxseedlab/ko2bn/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	closeWriteTimeout        = 2 * time.Second
	messageUserDisconnected  = "a participant left the session"
	messageBinaryUnsupported = "binary frames are not supported; send JSON text frames"
)

// wsConn serialises writes to one websocket. gorilla/websocket allows a
// single concurrent writer only.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ctx context.Context, msg protocol.ServerMessage) error {
	b, err := protocol.EncodeServerMessage(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// closeWith sends a close frame carrying code and reason before closing.
func (c *wsConn) closeWith(code int, reason string) {
	c.mu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWriteTimeout))
	c.mu.Unlock()
	_ = c.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	// The session is checked before any frame is read from the client.
	sess, lookupErr := s.registry.Join(r.Context(), code)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session_code", code, "error", err)
		return
	}
	conn := newWSConn(ws, s.cfg.WSWriteTimeout())

	if lookupErr != nil {
		closeCode, reason := websocket.ClosePolicyViolation, "session not found"
		switch {
		case errors.Is(lookupErr, session.ErrSessionNotActive):
			reason = "session is not active"
		case !errors.Is(lookupErr, session.ErrNotFound):
			s.log.Error("session lookup failed on connect", "session_code", code, "error", lookupErr)
			closeCode, reason = websocket.CloseInternalServerErr, "failed to load session"
		}
		s.log.Info("websocket rejected", "session_code", code, "reason", reason)
		conn.closeWith(closeCode, reason)
		return
	}

	ws.SetReadLimit(s.cfg.WSMaxMessageBytes)
	if err := conn.Send(r.Context(), protocol.Connected{SessionCode: sess.Code}); err != nil {
		s.log.Warn("failed to send connected message", "session_code", code, "conn_id", conn.ID(), "error", err)
		_ = conn.Close()
		return
	}
	s.loops.Add(1)
	defer s.loops.Done()
	if err := s.hub.Register(sess.Code, conn); err != nil {
		conn.closeWith(websocket.CloseGoingAway, "server is shutting down")
		return
	}
	s.metrics.ConnectionOpened()
	defer s.disconnect(sess.Code, conn)

	s.log.Info("websocket connected", "session_code", sess.Code, "conn_id", conn.ID())
	s.receiveLoop(sess.Code, conn)
}

// receiveLoop handles one event at a time, in arrival order. The next frame
// is not read until the previous event's pipeline has finished.
func (s *Server) receiveLoop(code string, conn *wsConn) {
	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Warn("websocket read failed", "session_code", code, "conn_id", conn.ID(), "error", err)
			} else {
				s.log.Debug("websocket closed", "session_code", code, "conn_id", conn.ID(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			s.replyError(code, conn, messageBinaryUnsupported)
			continue
		}

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.log.Debug("invalid client message", "session_code", code, "conn_id", conn.ID(), "error", err)
			s.replyError(code, conn, err.Error())
			continue
		}
		if !s.handleEvent(code, conn, msg) {
			return
		}
	}
}

// handleEvent runs the pipeline for one message. A panic is contained to
// this connection, which is then dropped.
func (s *Server) handleEvent(code string, conn *wsConn, msg protocol.ClientMessage) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("panic while handling client message; closing connection",
				"session_code", code, "conn_id", conn.ID(), "panic", rec, "stack", string(debug.Stack()))
			ok = false
		}
	}()
	s.pipeline.Handle(s.baseCtx, code, conn, msg)
	return true
}

func (s *Server) replyError(code string, conn *wsConn, message string) {
	if err := s.hub.SendTo(s.baseCtx, conn, protocol.Error{Message: message}); err != nil {
		s.log.Warn("failed to send error to connection", "session_code", code, "conn_id", conn.ID(), "error", err)
	}
}

func (s *Server) disconnect(code string, conn *wsConn) {
	s.hub.Unregister(code, conn)
	_ = conn.Close()
	s.metrics.ConnectionClosed()
	s.log.Info("websocket disconnected", "session_code", code, "conn_id", conn.ID())
	s.hub.Broadcast(s.baseCtx, code, protocol.UserDisconnected{Message: messageUserDisconnected})
}
