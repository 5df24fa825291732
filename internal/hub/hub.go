// Package hub is the real-time router: an explicit session registry with
// per-user and per-room addressing. Delivery is best-effort and never
// persisted; a disconnected client re-synchronizes over REST.
package hub

import (
	"log"
	"sync"
)

// Server -> client events.
const (
	EventReceiveMessage  = "receive_message"
	EventRequestAccepted = "request_accepted"
	EventBotTyping       = "bot_typing"
	EventBotStopTyping   = "bot_stop_typing"
	EventError           = "error"
)

// Client -> server events.
const (
	EventRegisterUser  = "register_user"
	EventJoinRoom      = "join_room"
	EventSendMessage   = "send_message"
	EventAcceptRequest = "accept_request"
)

// Envelope is the wire frame for server->client events.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// TypingPayload accompanies bot_typing / bot_stop_typing.
type TypingPayload struct {
	Room     string `json:"room"`
	SenderID string `json:"senderId"`
}

const sessionBuffer = 32

// Session is one connected client. A session subscribes to its own user
// id on register_user and to any number of room ids on join_room.
type Session struct {
	hub  *Hub
	send chan Envelope

	mu   sync.Mutex
	subs map[string]struct{}
}

// Out is the channel the transport writer drains. It is closed when the
// session is unregistered.
func (s *Session) Out() <-chan Envelope { return s.send }

// Subscribe adds a delivery target to the session.
func (s *Session) Subscribe(target string) {
	if target == "" {
		return
	}
	s.mu.Lock()
	s.subs[target] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) subscribed(targets []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range targets {
		if _, ok := s.subs[t]; ok {
			return true
		}
	}
	return false
}

// Hub owns the session registry. Lifecycle is explicit: Register on
// connect, Unregister on disconnect.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
}

func New() *Hub {
	return &Hub{sessions: make(map[*Session]struct{})}
}

func (h *Hub) Register() *Session {
	s := &Session{
		hub:  h,
		send: make(chan Envelope, sessionBuffer),
		subs: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.send)
	}
	h.mu.Unlock()
}

// Publish delivers payload to every session subscribed to any target.
// A session matching several targets still receives the event once; the
// client deduplicates by message id anyway for the dual-addressed path.
// Sessions with a full buffer are dropped rather than blocking the
// router.
func (h *Hub) Publish(event string, payload any, targets ...string) {
	h.PublishExcept(nil, event, payload, targets...)
}

// PublishExcept is Publish minus one session, used to relay a client's
// own message to everyone but its origin.
//
// Sends happen under the read lock: Unregister closes a session channel
// only under the write lock, so no channel in the registry can be closed
// while a send loop holds the read side. Slow sessions are collected and
// dropped after the lock is released.
func (h *Hub) PublishExcept(origin *Session, event string, payload any, targets ...string) {
	env := Envelope{Event: event, Payload: payload}

	var slow []*Session
	h.mu.RLock()
	for s := range h.sessions {
		if s == origin {
			continue
		}
		if !s.subscribed(targets) {
			continue
		}
		select {
		case s.send <- env:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		log.Printf("hub: dropping slow session on %s", event)
		h.Unregister(s)
	}
}

// Send pushes an event to a single session regardless of subscriptions,
// used for per-connection error reporting. Same locking discipline as
// PublishExcept: the send happens under the read lock, and only sessions
// still in the registry are touched.
func (h *Hub) Send(s *Session, event string, payload any) {
	var full bool
	h.mu.RLock()
	if _, ok := h.sessions[s]; ok {
		select {
		case s.send <- Envelope{Event: event, Payload: payload}:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		h.Unregister(s)
	}
}

// Sessions reports the current registry size.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
