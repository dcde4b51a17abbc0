// Package hub tracks the live websocket connections of every session and
// fans server messages out to them.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/foxseedlab/ko2bn/internal/protocol"
)

var ErrClosed = errors.New("hub is closed")

// Conn is a single participant connection. Send must be safe to call from
// multiple goroutines.
type Conn interface {
	ID() string
	Send(ctx context.Context, msg protocol.ServerMessage) error
	Close() error
}

type room struct {
	mu      sync.Mutex
	members map[Conn]struct{}
	// closed is set once the room emptied and left the hub map. A register
	// that raced with the removal must retry against a fresh room.
	closed bool
}

type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
	log    *slog.Logger
}

func New() *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		log:   slog.With("component", "hub"),
	}
}

// Register adds conn to the session's room, creating the room on first use.
func (h *Hub) Register(code string, conn Conn) error {
	for {
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			return ErrClosed
		}
		r, ok := h.rooms[code]
		if !ok {
			r = &room{members: make(map[Conn]struct{})}
			h.rooms[code] = r
		}
		h.mu.Unlock()

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		r.members[conn] = struct{}{}
		count := len(r.members)
		r.mu.Unlock()

		h.log.Info("connection registered", "session_code", code, "connection_id", conn.ID(), "connections", count)
		return nil
	}
}

// Unregister removes conn and reports whether it was still registered.
// Calling it again for the same connection is a no-op.
func (h *Hub) Unregister(code string, conn Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[code]
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[conn]; !ok {
		return false
	}
	delete(r.members, conn)
	remaining := len(r.members)
	if remaining == 0 {
		r.closed = true
		if h.rooms[code] == r {
			delete(h.rooms, code)
		}
	}
	h.log.Info("connection unregistered", "session_code", code, "connection_id", conn.ID(), "connections", remaining)
	return true
}

func (h *Hub) members(code string) []Conn {
	h.mu.Lock()
	r, ok := h.rooms[code]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.members))
	for c := range r.members {
		out = append(out, c)
	}
	return out
}

// Broadcast sends msg to every connection currently in the session. A
// connection whose send fails is dropped and closed; the others still
// receive the message.
func (h *Hub) Broadcast(ctx context.Context, code string, msg protocol.ServerMessage) {
	conns := h.members(code)
	if len(conns) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c Conn) {
			defer wg.Done()
			if err := c.Send(ctx, msg); err != nil {
				h.log.Warn("broadcast send failed; dropping connection", "session_code", code, "connection_id", c.ID(), "kind", msg.Kind(), "error", err)
				h.Unregister(code, c)
				_ = c.Close()
			}
		}(c)
	}
	wg.Wait()
}

// SendTo delivers msg to a single connection only.
func (h *Hub) SendTo(ctx context.Context, conn Conn, msg protocol.ServerMessage) error {
	return conn.Send(ctx, msg)
}

// ConnectionCount returns the number of live connections for a session.
func (h *Hub) ConnectionCount(code string) int {
	h.mu.Lock()
	r, ok := h.rooms[code]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// SessionCount returns how many sessions have at least one connection.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close disconnects every connection and rejects further registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	rooms := h.rooms
	h.rooms = make(map[string]*room)
	h.mu.Unlock()

	for code, r := range rooms {
		r.mu.Lock()
		r.closed = true
		conns := make([]Conn, 0, len(r.members))
		for c := range r.members {
			conns = append(conns, c)
		}
		r.members = make(map[Conn]struct{})
		r.mu.Unlock()

		for _, c := range conns {
			if err := c.Close(); err != nil {
				h.log.Warn("failed to close connection on shutdown", "session_code", code, "connection_id", c.ID(), "error", err)
			}
		}
	}
}
