package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"omnitak.com/support-hub/internal/auth"
	"omnitak.com/support-hub/internal/core"
)

const (
	readLimit    = 16 * 1024
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 5 * time.Second
	sendBuffer   = 64
)

// Client actions.
const (
	ActionJoin    = "join"
	ActionLeave   = "leave"
	ActionMessage = "message"
)

// Events sent only to the connection that caused them.
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventError  = "error"
)

// ClientFrame is a JSON frame sent by a client.
type ClientFrame struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message, sessionID string, userID *int64) core.Reply
}

// WSHandler serves the chat WebSocket. Clients join session groups to receive
// their events and may send chat messages over the same connection; the bot
// reply arrives as a group event.
type WSHandler struct {
	hub      *Hub
	chat     MessageProcessor
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, chat MessageProcessor) *WSHandler {
	return &WSHandler{
		hub:  hub,
		chat: chat,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// connection holds the per-socket state. joined is only touched by the reader
// goroutine.
type connection struct {
	sendCh chan Message
	joined map[string]func()
	userID *int64
}

func (c *connection) enqueue(msg Message) {
	select {
	case c.sendCh <- msg:
	default:
		log.Printf("[WS] Dropped %s for session %s (buffer full)", msg.Event, msg.SessionID)
	}
}

func (c *connection) direct(event, sessionID string, data any) {
	c.enqueue(Message{Event: event, SessionID: sessionID, Data: data, TS: time.Now().UnixMilli()})
}

func (h *WSHandler) join(c *connection, sessionID string) {
	if _, ok := c.joined[sessionID]; ok {
		return
	}
	c.joined[sessionID] = h.hub.Join(sessionID, c.enqueue)
}

func (h *WSHandler) leave(c *connection, sessionID string) {
	if leave, ok := c.joined[sessionID]; ok {
		leave()
		delete(c.joined, sessionID)
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	c := &connection{
		sendCh: make(chan Message, sendBuffer),
		joined: make(map[string]func()),
		userID: auth.UserIDFromContext(ctx),
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			for id := range c.joined {
				h.leave(c, id)
			}
		}()

		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			h.handleFrame(ctx, c, data)
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var writeMu sync.Mutex

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case msg := <-c.sendCh:
			writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(msg)
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, c *connection, data []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.direct(EventError, "", map[string]string{"error": "invalid frame"})
		return
	}
	sessionID := strings.TrimSpace(frame.SessionID)

	switch frame.Action {
	case ActionJoin:
		if sessionID == "" {
			c.direct(EventError, "", map[string]string{"error": "session_id is required"})
			return
		}
		h.join(c, sessionID)
		c.direct(EventJoined, sessionID, map[string]string{"group": GroupName(sessionID)})
	case ActionLeave:
		h.leave(c, sessionID)
		c.direct(EventLeft, sessionID, map[string]string{"group": GroupName(sessionID)})
	case ActionMessage:
		if strings.TrimSpace(frame.Message) == "" {
			c.direct(EventError, sessionID, map[string]string{"error": "message cannot be empty"})
			return
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		// The reply is published to the group, so the sender must be in it.
		h.join(c, sessionID)
		h.chat.ProcessMessage(ctx, frame.Message, sessionID, c.userID)
	default:
		c.direct(EventError, sessionID, map[string]string{"error": "unknown action " + frame.Action})
	}
}
