// Package realtime delivers chat events to WebSocket clients grouped by
// session.
package realtime

import (
	"log"
	"sync"
	"time"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	TS        int64  `json:"ts"` // Unix ms
}

// Listener receives every message published to a joined group.
type Listener func(Message)

// GroupName is the group a session's listeners join.
func GroupName(sessionID string) string {
	return "ChatSession_" + sessionID
}

// Hub fans session events out to the listeners that joined the session.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[uint64]Listener
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[uint64]Listener)}
}

// Join subscribes fn to a session group. The returned func leaves the group
// and is safe to call more than once.
func (h *Hub) Join(sessionID string, fn Listener) (leave func()) {
	group := GroupName(sessionID)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.groups[group] == nil {
		h.groups[group] = make(map[uint64]Listener)
	}
	h.groups[group][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.groups[group], id)
			if len(h.groups[group]) == 0 {
				delete(h.groups, group)
			}
		})
	}
}

// Publish sends an event to everyone in the session group. Listeners run on
// the caller's goroutine and must not block.
func (h *Hub) Publish(sessionID, event string, data any) {
	h.mu.RLock()
	members := h.groups[GroupName(sessionID)]
	listeners := make([]Listener, 0, len(members))
	for _, fn := range members {
		listeners = append(listeners, fn)
	}
	h.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}
	log.Printf("[WS] Publishing %s to %d listeners of %s", event, len(listeners), GroupName(sessionID))

	msg := Message{Event: event, SessionID: sessionID, Data: data, TS: time.Now().UnixMilli()}
	for _, fn := range listeners {
		fn(msg)
	}
}

// Members returns how many listeners are in the session group.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[GroupName(sessionID)])
}
